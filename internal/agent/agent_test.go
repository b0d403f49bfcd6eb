package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

type fakeText struct {
	eval     gateway.Evaluation
	evalErr  error
	draft    string
	draftErr error
	drafts   int
}

func (f *fakeText) Evaluate(context.Context, string, string) (*gateway.Evaluation, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	eval := f.eval
	return &eval, nil
}

func (f *fakeText) Draft(context.Context, string, string) (string, error) {
	f.drafts++
	if f.draftErr != nil {
		return "", f.draftErr
	}
	if f.draft == "" {
		return "drafted message", nil
	}
	return f.draft, nil
}

func seedStudio(t *testing.T, s store.Store, deposit float64) *model.Studio {
	t.Helper()
	studio := &model.Studio{
		Name:          "Glow Studio",
		OwnerName:     "Nina",
		BrandVoice:    model.VoiceProfessionalChill,
		DepositAmount: deposit,
		BookingURL:    "https://book.glow.example/nina",
	}
	require.NoError(t, s.CreateStudio(context.Background(), studio))
	return studio
}

func seedService(t *testing.T, s store.Store, studio *model.Studio, name string, price float64) *model.Service {
	t.Helper()
	svc := &model.Service{StudioID: studio.ID, Name: name, Price: price, DurationMin: 60}
	require.NoError(t, s.CreateService(context.Background(), svc))
	return svc
}

func seedAddOn(t *testing.T, s store.Store, studio *model.Studio, svc *model.Service, name string, price float64) *model.AddOn {
	t.Helper()
	addon := &model.AddOn{
		ServiceID: svc.ID, StudioID: studio.ID,
		Name: name, Price: price, DurationMin: 15,
		Pitch: "quick add-on, big payoff",
	}
	require.NoError(t, s.CreateAddOn(context.Background(), addon))
	return addon
}

func commitDecision(t *testing.T, s store.Store, studio *model.Studio, d *Decision) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background(), studio.ID, d.Transitions, d.Events))
}

func seedLead(t *testing.T, s store.Store, studio *model.Studio, lead model.Lead) model.Lead {
	t.Helper()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	require.NoError(t, s.Commit(context.Background(), studio.ID,
		[]store.Transition{store.CreateLead{Lead: lead}}, nil))
	return lead
}

func seedBooking(t *testing.T, s store.Store, studio *model.Studio, booking model.Booking) model.Booking {
	t.Helper()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	require.NoError(t, s.Commit(context.Background(), studio.ID,
		[]store.Transition{store.CreateBooking{Booking: booking}}, nil))
	return booking
}
