package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

type fakeText struct {
	eval  gateway.Evaluation
	draft string
}

func (f *fakeText) Evaluate(context.Context, string, string) (*gateway.Evaluation, error) {
	eval := f.eval
	return &eval, nil
}

func (f *fakeText) Draft(context.Context, string, string) (string, error) {
	if f.draft == "" {
		return "drafted message", nil
	}
	return f.draft, nil
}

type fakeEffector struct {
	sent    []string
	synced  []uuid.UUID
	sendErr error
	syncErr error
}

func (f *fakeEffector) Send(_ context.Context, _, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeEffector) Sync(_ context.Context, b *model.Booking) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.synced = append(f.synced, b.ID)
	return nil
}

func seedStudio(t *testing.T, s store.Store) *model.Studio {
	t.Helper()
	studio := &model.Studio{Name: "Glow Studio", DepositAmount: 50, BookingURL: "https://book.glow.example/nina"}
	require.NoError(t, s.CreateStudio(context.Background(), studio))
	return studio
}

func actions(t *testing.T, s store.Store, studioID uuid.UUID) []string {
	t.Helper()
	events, err := s.RecentEvents(context.Background(), studioID, 50)
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func TestRouteFreshLeadGoesToIntake(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)

	text := &fakeText{eval: gateway.Evaluation{Score: 0.9, Reply: "Reply YES to confirm the deposit."}}
	r := New(s, &fakeEffector{}, text)

	d, err := r.Route(ctx, studio, agent.Trigger{
		Kind: agent.TriggerInbound, LeadName: "Maya", LeadPhone: "+15550001111", Message: "hi!",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AgentIntake, d.Agent)
	assert.Contains(t, actions(t, s, studio.ID), model.ActionLeadScreened)
}

func TestRouteDashboardGoesToMetrics(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)
	r := New(s, &fakeEffector{}, &fakeText{})

	d, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerDashboard})
	require.NoError(t, err)
	assert.Equal(t, model.AgentMetrics, d.Agent)
	_, ok := d.Payload.(*model.Dashboard)
	assert.True(t, ok)
	assert.Empty(t, actions(t, s, studio.ID), "dashboard reads leave no events")
}

func TestRouteUnknownKindIsUnroutable(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)
	r := New(s, &fakeEffector{}, &fakeText{})

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: "carrier_pigeon"})
	assert.ErrorIs(t, err, ErrUnroutable)
	assert.Contains(t, actions(t, s, studio.ID), model.ActionUnroutable)
}

func TestRouteWaitlistReplyByContext(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)

	lead := model.Lead{ID: uuid.New(), Name: "Waiter", Phone: "+15550002222", IntakeStatus: model.IntakeApproved}
	booking := model.Booking{
		ID: uuid.New(), LeadID: uuid.New(), Service: "lash fill",
		OriginalPrice: 90, FinalPrice: 90, ScheduledAt: time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, s.Commit(ctx, studio.ID, []store.Transition{
		store.CreateLead{Lead: lead},
		store.CreateBooking{Booking: booking},
	}, nil))
	entry := &model.WaitlistEntry{StudioID: studio.ID, LeadID: lead.ID, Service: "lash fill", PreferredAt: time.Now()}
	require.NoError(t, s.AddWaitlistEntry(ctx, entry))

	effector := &fakeEffector{}
	r := New(s, effector, &fakeText{})

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerCancellation, BookingID: booking.ID})
	require.NoError(t, err)
	require.Len(t, effector.sent, 1, "the offer went out after commit")

	d, err := r.Route(ctx, studio, agent.Trigger{
		Kind: agent.TriggerInbound, EntryID: entry.ID, BookingID: booking.ID, Message: "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AgentWaitlist, d.Agent, "entry context routes to the recoverer")
	assert.Contains(t, actions(t, s, studio.ID), model.ActionSlotFilled)
}

// stubAgent proposes a stale-priced add-on until redecided.
type stubAgent struct {
	s         store.Store
	bookingID uuid.UUID
	staleFor  int
	calls     int
}

func (a *stubAgent) Name() model.AgentTag { return model.AgentUpsell }

func (a *stubAgent) Decide(ctx context.Context, studio *model.Studio, _ agent.Trigger) (*agent.Decision, error) {
	a.calls++
	booking, err := a.s.BookingByID(ctx, studio.ID, a.bookingID)
	if err != nil {
		return nil, err
	}
	prior := booking.FinalPrice
	if a.calls <= a.staleFor {
		prior = booking.FinalPrice - 10 // somebody else moved the price
	}
	return &agent.Decision{
		Agent: model.AgentUpsell,
		Transitions: []store.Transition{store.AcceptAddOn{
			BookingID:  a.bookingID,
			AddOn:      model.BookingAddOn{Name: "chrome finish", Price: 15},
			PriorPrice: prior,
		}},
	}, nil
}

func routerWith(s store.Store, effector Effector, ag agent.Agent) *Router {
	return &Router{
		store:    s,
		effector: effector,
		agents:   map[model.AgentTag]agent.Agent{model.AgentUpsell: ag},
		now:      time.Now,
	}
}

func TestConflictRetriesOnceAndSucceeds(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)
	booking := model.Booking{ID: uuid.New(), Service: "gel manicure", OriginalPrice: 65, FinalPrice: 65}
	require.NoError(t, s.Commit(ctx, studio.ID, []store.Transition{store.CreateBooking{Booking: booking}}, nil))

	stub := &stubAgent{s: s, bookingID: booking.ID, staleFor: 1}
	r := routerWith(s, &fakeEffector{}, stub)

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerTick})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls, "one conflict, one fresh decide")

	got, err := s.BookingByID(ctx, studio.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.FinalPrice)
}

func TestConflictSurfacesAfterSecondMiss(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)
	booking := model.Booking{ID: uuid.New(), Service: "gel manicure", OriginalPrice: 65, FinalPrice: 65}
	require.NoError(t, s.Commit(ctx, studio.ID, []store.Transition{store.CreateBooking{Booking: booking}}, nil))

	stub := &stubAgent{s: s, bookingID: booking.ID, staleFor: 10}
	r := routerWith(s, &fakeEffector{}, stub)

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerTick})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 2, stub.calls, "exactly one retry, never a loop")
	assert.Contains(t, actions(t, s, studio.ID), model.ActionConflict)

	got, err := s.BookingByID(ctx, studio.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 65.0, got.FinalPrice, "nothing committed")
}

func TestSideEffectFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)

	lead := model.Lead{ID: uuid.New(), Name: "Maya", Phone: "+15550001111", IntakeStatus: model.IntakeApproved}
	booking := model.Booking{
		ID: uuid.New(), LeadID: lead.ID, Service: "gel manicure",
		OriginalPrice: 65, FinalPrice: 65, ScheduledAt: time.Now().Add(6 * time.Hour),
	}
	require.NoError(t, s.Commit(ctx, studio.ID, []store.Transition{
		store.CreateLead{Lead: lead},
		store.CreateBooking{Booking: booking},
	}, nil))
	svc := &model.Service{StudioID: studio.ID, Name: "gel manicure", Price: 65, DurationMin: 60}
	require.NoError(t, s.CreateService(ctx, svc))
	require.NoError(t, s.CreateAddOn(ctx, &model.AddOn{
		ServiceID: svc.ID, StudioID: studio.ID, Name: "chrome finish", Price: 15,
	}))

	effector := &fakeEffector{sendErr: errors.New("carrier down")}
	r := New(s, effector, &fakeText{})

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerTick})
	require.NoError(t, err, "a failed send is an outcome, not a routing failure")

	got := actions(t, s, studio.ID)
	assert.Contains(t, got, model.ActionUpsellSent, "the pitch stays committed")
	assert.Contains(t, got, model.ActionSideEffectFailed)
	assert.NotContains(t, got, model.ActionMessageSent)
}

type downAgent struct{}

func (downAgent) Name() model.AgentTag { return model.AgentIntake }
func (downAgent) Decide(context.Context, *model.Studio, agent.Trigger) (*agent.Decision, error) {
	return nil, gateway.ErrUnavailable
}

func TestGatewayExhaustionRecorded(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s)
	r := &Router{
		store:    s,
		effector: &fakeEffector{},
		agents:   map[model.AgentTag]agent.Agent{model.AgentUpsell: downAgent{}},
		now:      time.Now,
	}

	_, err := r.Route(ctx, studio, agent.Trigger{Kind: agent.TriggerTick})
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Contains(t, actions(t, s, studio.ID), model.ActionAgentUnavailable)
}
