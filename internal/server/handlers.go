package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type createStudioRequest struct {
	Name              string  `json:"name"`
	OwnerName         string  `json:"owner_name"`
	ContactEmail      string  `json:"contact_email"`
	BrandVoice        string  `json:"brand_voice"`
	DepositAmount     float64 `json:"deposit_amount"`
	LateFee           float64 `json:"late_fee"`
	CancelWindowHours int     `json:"cancel_window_hours"`
	BookingURL        string  `json:"booking_url"`
	VibeThreshold     float64 `json:"vibe_threshold"`
}

func (s *Server) createStudio(c echo.Context) error {
	var req createStudioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	studio := &model.Studio{
		Name:              req.Name,
		OwnerName:         req.OwnerName,
		ContactEmail:      req.ContactEmail,
		BrandVoice:        model.BrandVoice(req.BrandVoice),
		DepositAmount:     req.DepositAmount,
		LateFee:           req.LateFee,
		CancelWindowHours: req.CancelWindowHours,
		BookingURL:        req.BookingURL,
		VibeThreshold:     req.VibeThreshold,
	}
	if err := s.store.CreateStudio(c.Request().Context(), studio); err != nil {
		return err
	}

	// The API key is returned exactly once, at creation.
	return c.JSON(http.StatusCreated, map[string]any{
		"id":      studio.ID,
		"slug":    studio.Slug,
		"api_key": studio.APIKey,
	})
}

type vibeCheckRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram_handle"`
	Message   string `json:"message"`
}

func (s *Server) vibeCheck(c echo.Context) error {
	var req vibeCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind:      agent.TriggerInbound,
		Message:   req.Message,
		LeadName:  req.Name,
		LeadPhone: req.Phone,
		Instagram: req.Instagram,
	})
	if err != nil {
		return err
	}

	resp := map[string]any{"reply": decision.Reply}
	for _, t := range decision.Transitions {
		if create, ok := t.(store.CreateLead); ok {
			resp["lead_id"] = create.Lead.ID
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type confirmRequest struct {
	LeadID  string `json:"lead_id"`
	Message string `json:"message"`
}

func (s *Server) vibeCheckConfirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	leadID, err := parseID(c, req.LeadID, "lead_id")
	if err != nil {
		return err
	}

	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind:    agent.TriggerInbound,
		LeadID:  leadID,
		Message: req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"reply": decision.Reply})
}

// upsellProcess runs the sweep on demand, same trigger the scheduler emits.
func (s *Server) upsellProcess(c echo.Context) error {
	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind: agent.TriggerTick,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"pitches": len(decision.SideEffects)})
}

type upsellReplyRequest struct {
	BookingID string `json:"booking_id"`
	Message   string `json:"message"`
}

func (s *Server) upsellReply(c echo.Context) error {
	var req upsellReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	bookingID, err := parseID(c, req.BookingID, "booking_id")
	if err != nil {
		return err
	}

	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind:      agent.TriggerInbound,
		BookingID: bookingID,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"reply": decision.Reply})
}

type cancelRequest struct {
	BookingID string `json:"booking_id"`
}

func (s *Server) gapFillCancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	bookingID, err := parseID(c, req.BookingID, "booking_id")
	if err != nil {
		return err
	}

	_, err = s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind:      agent.TriggerCancellation,
		BookingID: bookingID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "processed"})
}

type gapFillReplyRequest struct {
	EntryID   string `json:"entry_id"`
	BookingID string `json:"booking_id"`
	Message   string `json:"message"`
}

func (s *Server) gapFillReply(c echo.Context) error {
	var req gapFillReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entryID, err := parseID(c, req.EntryID, "entry_id")
	if err != nil {
		return err
	}
	bookingID, err := parseID(c, req.BookingID, "booking_id")
	if err != nil {
		return err
	}

	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind:      agent.TriggerInbound,
		EntryID:   entryID,
		BookingID: bookingID,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"reply": decision.Reply})
}

func (s *Server) dashboard(c echo.Context) error {
	decision, err := s.router.Route(c.Request().Context(), currentStudio(c), agent.Trigger{
		Kind: agent.TriggerDashboard,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision.Payload)
}

func (s *Server) events(c echo.Context) error {
	events, err := s.store.RecentEvents(c.Request().Context(), currentStudio(c).ID, 50)
	if err != nil {
		return err
	}
	if events == nil {
		events = []model.AgentEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

type createServiceRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	DurationMin int     `json:"duration_min"`
}

func (s *Server) createService(c echo.Context) error {
	var req createServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	svc := &model.Service{
		StudioID:    currentStudio(c).ID,
		Name:        req.Name,
		Price:       req.Price,
		DurationMin: req.DurationMin,
	}
	if err := s.store.CreateService(c.Request().Context(), svc); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, svc)
}

func (s *Server) listServices(c echo.Context) error {
	services, err := s.store.ServicesForStudio(c.Request().Context(), currentStudio(c).ID)
	if err != nil {
		return err
	}
	if services == nil {
		services = []model.Service{}
	}
	return c.JSON(http.StatusOK, services)
}

type createAddOnRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	DurationMin int     `json:"duration_min"`
	Pitch       string  `json:"pitch"`
}

func (s *Server) createAddOn(c echo.Context) error {
	serviceID, err := parseID(c, c.Param("id"), "service id")
	if err != nil {
		return err
	}
	var req createAddOnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	addon := &model.AddOn{
		ServiceID:   serviceID,
		StudioID:    currentStudio(c).ID,
		Name:        req.Name,
		Price:       req.Price,
		DurationMin: req.DurationMin,
		Pitch:       req.Pitch,
	}
	if err := s.store.CreateAddOn(c.Request().Context(), addon); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, addon)
}

type createBookingRequest struct {
	LeadID      string    `json:"lead_id"`
	Service     string    `json:"service"`
	Price       float64   `json:"price"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Source      string    `json:"source"`
}

// createBooking is the booking-platform webhook: a new confirmed booking.
func (s *Server) createBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	leadID, err := parseID(c, req.LeadID, "lead_id")
	if err != nil {
		return err
	}
	if req.Service == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service is required")
	}

	studio := currentStudio(c)
	booking := model.Booking{
		ID:            uuid.New(),
		StudioID:      studio.ID,
		LeadID:        leadID,
		Service:       req.Service,
		OriginalPrice: req.Price,
		FinalPrice:    req.Price,
		ScheduledAt:   req.ScheduledAt,
		Status:        model.BookingConfirmed,
		Source:        model.BookingSource(req.Source),
	}
	if booking.Source == "" {
		booking.Source = model.SourceWeb
	}
	if err := s.store.Commit(c.Request().Context(), studio.ID,
		[]store.Transition{store.CreateBooking{Booking: booking}}, nil); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, booking)
}

type waitlistRequest struct {
	LeadID      string    `json:"lead_id"`
	Service     string    `json:"service"`
	PreferredAt time.Time `json:"preferred_at"`
}

func (s *Server) addWaitlistEntry(c echo.Context) error {
	var req waitlistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	leadID, err := parseID(c, req.LeadID, "lead_id")
	if err != nil {
		return err
	}
	if req.Service == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service is required")
	}

	entry := &model.WaitlistEntry{
		StudioID:    currentStudio(c).ID,
		LeadID:      leadID,
		Service:     req.Service,
		PreferredAt: req.PreferredAt,
	}
	if err := s.store.AddWaitlistEntry(c.Request().Context(), entry); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}
