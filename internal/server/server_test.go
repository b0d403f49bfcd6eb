package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/router"
	"github.com/glowstack/studio-automation/internal/store"
)

type fakeText struct {
	eval gateway.Evaluation
}

func (f *fakeText) Evaluate(context.Context, string, string) (*gateway.Evaluation, error) {
	eval := f.eval
	return &eval, nil
}

func (f *fakeText) Draft(context.Context, string, string) (string, error) {
	return "drafted message", nil
}

type nopEffector struct{}

func (nopEffector) Send(context.Context, string, string) error { return nil }
func (nopEffector) Sync(context.Context, *model.Booking) error { return nil }

type fixture struct {
	server *Server
	store  *store.MemoryStore
	text   *fakeText
	apiKey string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	text := &fakeText{eval: gateway.Evaluation{Score: 0.9, Reasoning: "good fit", Reply: "Reply YES to confirm the deposit."}}
	srv := New(s, router.New(s, nopEffector{}, text))

	f := &fixture{server: srv, store: s, text: text}

	body := f.do(t, http.MethodPost, "/api/studios", map[string]any{
		"name":           "Glow Studio",
		"owner_name":     "Nina",
		"deposit_amount": 50,
		"booking_url":    "https://book.glow.example/nina",
	}, http.StatusCreated)
	f.apiKey = body["api_key"].(string)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, payload any, wantStatus int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("X-API-Key", f.apiKey)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, wantStatus, rec.Code, "body: %s", rec.Body.String())

	var body map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	body := f.do(t, http.MethodGet, "/health", nil, http.StatusOK)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateStudioReturnsAPIKey(t *testing.T) {
	f := newFixture(t)
	assert.NotEmpty(t, f.apiKey)

	studio, err := f.store.StudioByAPIKey(context.Background(), f.apiKey)
	require.NoError(t, err)
	assert.Equal(t, "glow-studio", studio.Slug)
}

func TestMissingAPIKeyIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.apiKey = ""
	f.do(t, http.MethodGet, "/api/dashboard", nil, http.StatusUnauthorized)

	f.apiKey = "not-a-real-key"
	f.do(t, http.MethodGet, "/api/dashboard", nil, http.StatusUnauthorized)
}

func TestVibeCheckAndConfirmFlow(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/services", map[string]any{
		"name": "gel manicure", "price": 65, "duration_min": 60,
	}, http.StatusCreated)

	body := f.do(t, http.MethodPost, "/api/vibe-check", map[string]any{
		"name": "Maya", "phone": "+15550001111", "message": "hi! any gel openings?",
	}, http.StatusOK)
	assert.Contains(t, body["reply"], "YES")
	leadID := body["lead_id"].(string)

	body = f.do(t, http.MethodPost, "/api/vibe-check/confirm", map[string]any{
		"lead_id": leadID, "message": "yes",
	}, http.StatusOK)
	assert.Contains(t, body["reply"], "https://book.glow.example/nina")
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	body := f.do(t, http.MethodGet, "/api/dashboard", nil, http.StatusOK)
	assert.Contains(t, body, "found_money")
	assert.Contains(t, body, "conversion_rate")
}

func TestGapFillCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	studio, err := f.store.StudioByAPIKey(ctx, f.apiKey)
	require.NoError(t, err)

	booking := model.Booking{
		ID: uuid.New(), LeadID: uuid.New(), Service: "lash fill",
		OriginalPrice: 90, FinalPrice: 90, ScheduledAt: time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, f.store.Commit(ctx, studio.ID,
		[]store.Transition{store.CreateBooking{Booking: booking}}, nil))

	f.do(t, http.MethodPost, "/api/gap-fill/cancel", map[string]any{
		"booking_id": booking.ID.String(),
	}, http.StatusOK)

	got, err := f.store.BookingByID(ctx, studio.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
}

func TestUnknownBookingIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/upsell/reply", map[string]any{
		"booking_id": uuid.New().String(), "message": "yes",
	}, http.StatusNotFound)

	f.do(t, http.MethodPost, "/api/gap-fill/cancel", map[string]any{
		"booking_id": uuid.New().String(),
	}, http.StatusNotFound)
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/vibe-check/confirm", map[string]any{
		"lead_id": "definitely-not-a-uuid", "message": "yes",
	}, http.StatusBadRequest)
}

func TestBookingWebhookAndUpsellProcess(t *testing.T) {
	f := newFixture(t)

	svc := f.do(t, http.MethodPost, "/api/services", map[string]any{
		"name": "gel manicure", "price": 65, "duration_min": 60,
	}, http.StatusCreated)
	f.do(t, http.MethodPost, fmt.Sprintf("/api/services/%s/addons", svc["id"]), map[string]any{
		"name": "chrome finish", "price": 15, "pitch": "shiny",
	}, http.StatusCreated)

	leadID := uuid.New()
	ctx := context.Background()
	studio, err := f.store.StudioByAPIKey(ctx, f.apiKey)
	require.NoError(t, err)
	require.NoError(t, f.store.Commit(ctx, studio.ID, []store.Transition{
		store.CreateLead{Lead: model.Lead{ID: leadID, Name: "Maya", Phone: "+15550001111", IntakeStatus: model.IntakeApproved}},
	}, nil))

	f.do(t, http.MethodPost, "/api/bookings", map[string]any{
		"lead_id":      leadID.String(),
		"service":      "gel manicure",
		"price":        65,
		"scheduled_at": time.Now().Add(6 * time.Hour).Format(time.RFC3339),
	}, http.StatusCreated)

	body := f.do(t, http.MethodPost, "/api/upsell/process", nil, http.StatusOK)
	assert.Equal(t, float64(1), body["pitches"])
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/vibe-check", map[string]any{
		"name": "Maya", "message": "hi!",
	}, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("X-API-Key", f.apiKey)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []model.AgentEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events)
	assert.Equal(t, model.ActionLeadScreened, events[0].Action)
}
