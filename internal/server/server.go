// Package server is the HTTP ingress: webhook endpoints for triggers, the
// owner dashboard, and the minimum admin surface to stand up a studio.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/monitoring"
	"github.com/glowstack/studio-automation/internal/router"
	"github.com/glowstack/studio-automation/internal/store"
)

// TriggerRouter is the slice of the router the server needs.
type TriggerRouter interface {
	Route(ctx context.Context, studio *model.Studio, trig agent.Trigger) (*agent.Decision, error)
}

type Server struct {
	echo   *echo.Echo
	store  store.Store
	router TriggerRouter
}

func New(s store.Store, r TriggerRouter) *Server {
	srv := &Server{echo: echo.New(), store: s, router: r}
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.HTTPErrorHandler = errorHandler

	srv.echo.Use(middleware.RequestID())
	srv.echo.Use(middleware.Recover())
	srv.echo.Use(monitoring.HTTPMetrics())

	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/api/studios", s.createStudio)

	api := s.echo.Group("/api", s.authenticate)
	api.POST("/vibe-check", s.vibeCheck)
	api.POST("/vibe-check/confirm", s.vibeCheckConfirm)
	api.POST("/upsell/process", s.upsellProcess)
	api.POST("/upsell/reply", s.upsellReply)
	api.POST("/gap-fill/cancel", s.gapFillCancel)
	api.POST("/gap-fill/reply", s.gapFillReply)
	api.GET("/dashboard", s.dashboard)
	api.GET("/events", s.events)

	api.POST("/services", s.createService)
	api.GET("/services", s.listServices)
	api.POST("/services/:id/addons", s.createAddOn)
	api.POST("/bookings", s.createBooking)
	api.POST("/waitlist", s.addWaitlistEntry)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo handler. Tests only.
func (s *Server) Handler() http.Handler { return s.echo }

const studioContextKey = "studio"

// authenticate resolves the studio from the X-API-Key header. Every route in
// the authenticated group is tenant-scoped through the resolved studio.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey := c.Request().Header.Get("X-API-Key")
		if apiKey == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
		}
		studio, err := s.store.StudioByAPIKey(c.Request().Context(), apiKey)
		if errors.Is(err, store.ErrStudioNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown API key")
		}
		if err != nil {
			return err
		}
		c.Set(studioContextKey, studio)
		return next(c)
	}
}

func currentStudio(c echo.Context) *model.Studio {
	return c.Get(studioContextKey).(*model.Studio)
}

// errorHandler maps the domain failure kinds onto HTTP statuses.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrStudioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, gateway.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, router.ErrUnroutable):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	_ = c.JSON(status, map[string]any{"error": err.Error()})
}

func parseID(c echo.Context, value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+field)
	}
	return id, nil
}
