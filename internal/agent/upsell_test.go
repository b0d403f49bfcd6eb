package agent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

type upsellFixture struct {
	store  *store.MemoryStore
	studio *model.Studio
	lead   model.Lead
	text   *fakeText
	agent  *Upsell
}

func newUpsellFixture(t *testing.T) *upsellFixture {
	s := store.NewMemoryStore()
	studio := seedStudio(t, s, 50)
	svc := seedService(t, s, studio, "gel manicure", 65)
	seedAddOn(t, s, studio, svc, "chrome finish", 15)
	lead := seedLead(t, s, studio, model.Lead{
		ID: uuid.New(), Name: "Maya", Phone: "+15550001111",
		IntakeStatus: model.IntakeApproved,
	})

	text := &fakeText{draft: "Want to add chrome finish for $15? Reply YES to add it."}
	return &upsellFixture{
		store: s, studio: studio, lead: lead, text: text,
		agent: NewUpsell(s, text),
	}
}

func (f *upsellFixture) booking(t *testing.T, scheduledIn time.Duration) model.Booking {
	return seedBooking(t, f.store, f.studio, model.Booking{
		ID: uuid.New(), LeadID: f.lead.ID, Service: "gel manicure",
		OriginalPrice: 65, FinalPrice: 65,
		ScheduledAt: time.Now().Add(scheduledIn),
		Source:      model.SourceInstagram,
	})
}

func TestUpsellSweepPitchesOnlyWindow(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	inWindow := f.booking(t, 6*time.Hour)
	f.booking(t, 72*time.Hour) // outside the window

	alreadyPitched := f.booking(t, 8*time.Hour)
	require.NoError(t, f.store.AppendEvent(ctx, &model.AgentEvent{
		StudioID: f.studio.ID, Agent: model.AgentUpsell, Action: model.ActionUpsellSent,
		Metadata: map[string]any{"booking_id": alreadyPitched.ID.String()},
	}))

	d, err := f.agent.Decide(ctx, f.studio, Trigger{Kind: TriggerTick, Now: time.Now()})
	require.NoError(t, err)

	require.Len(t, d.Events, 1)
	assert.Equal(t, model.ActionUpsellSent, d.Events[0].Action)
	assert.Equal(t, inWindow.ID.String(), d.Events[0].Metadata["booking_id"])

	require.Len(t, d.SideEffects, 1)
	send := d.SideEffects[0].(SendMessage)
	assert.Equal(t, f.lead.Phone, send.To)
	assert.Contains(t, send.Body, "chrome finish")
}

func TestUpsellSweepSecondTickIsQuiet(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	f.booking(t, 6*time.Hour)

	d, err := f.agent.Decide(ctx, f.studio, Trigger{Kind: TriggerTick, Now: time.Now()})
	require.NoError(t, err)
	commitDecision(t, f.store, f.studio, d)

	d2, err := f.agent.Decide(ctx, f.studio, Trigger{Kind: TriggerTick, Now: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, d2.Events, "a committed pitch is never repeated")
	assert.Empty(t, d2.SideEffects)
}

func TestUpsellSweepDrafterDown(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	f.booking(t, 6*time.Hour)
	f.text.draftErr = gateway.ErrUnavailable

	d, err := f.agent.Decide(ctx, f.studio, Trigger{Kind: TriggerTick, Now: time.Now()})
	require.NoError(t, err)

	require.Len(t, d.Events, 1)
	assert.Equal(t, model.ActionAgentUnavailable, d.Events[0].Action)
	assert.Empty(t, d.SideEffects, "no pitch goes out without a draft")
}

func TestUpsellReplyYes(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	booking := f.booking(t, 6*time.Hour)

	d, err := f.agent.Decide(ctx, f.studio, Trigger{
		Kind: TriggerInbound, BookingID: booking.ID, Message: "yes!",
	})
	require.NoError(t, err)
	commitDecision(t, f.store, f.studio, d)

	got, err := f.store.BookingByID(ctx, f.studio.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.FinalPrice)
	assert.True(t, got.HasAddOn("chrome finish"))

	require.Len(t, d.Events, 1)
	assert.Equal(t, model.ActionUpsellAccepted, d.Events[0].Action)
	require.Len(t, d.SideEffects, 1)
	sync := d.SideEffects[0].(SyncBooking)
	assert.Equal(t, 80.0, sync.Booking.FinalPrice)
	assert.Contains(t, d.Reply, "$80")
}

func TestUpsellReplyYesReplay(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	booking := f.booking(t, 6*time.Hour)
	require.NoError(t, f.store.AppendEvent(ctx, &model.AgentEvent{
		StudioID: f.studio.ID, Agent: model.AgentUpsell, Action: model.ActionUpsellAccepted,
		Metadata: map[string]any{"booking_id": booking.ID.String()},
	}))

	d, err := f.agent.Decide(ctx, f.studio, Trigger{
		Kind: TriggerInbound, BookingID: booking.ID, Message: "yes",
	})
	require.NoError(t, err)
	assert.Empty(t, d.Transitions, "a replayed yes never charges twice")
	assert.Empty(t, d.Events)
}

func TestUpsellReplyNo(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	booking := f.booking(t, 6*time.Hour)

	d, err := f.agent.Decide(ctx, f.studio, Trigger{
		Kind: TriggerInbound, BookingID: booking.ID, Message: "no thanks",
	})
	require.NoError(t, err)

	assert.Empty(t, d.Transitions)
	require.Len(t, d.Events, 1)
	assert.Equal(t, model.ActionUpsellDeclined, d.Events[0].Action)
}

func TestUpsellReplyAmbiguous(t *testing.T) {
	ctx := context.Background()
	f := newUpsellFixture(t)
	booking := f.booking(t, 6*time.Hour)

	d, err := f.agent.Decide(ctx, f.studio, Trigger{
		Kind: TriggerInbound, BookingID: booking.ID, Message: "hmm maybe, what is chrome?",
	})
	require.NoError(t, err)

	assert.Empty(t, d.Transitions)
	require.Len(t, d.Events, 1)
	assert.Equal(t, model.ActionAmbiguousReply, d.Events[0].Action)
	assert.Contains(t, d.Reply, "YES")
}
