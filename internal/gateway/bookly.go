package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/model"
)

// BooklyClient mirrors booking changes to the external booking platform so
// its calendar stays consistent with ours.
type BooklyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewBooklyClient(baseURL, apiKey string) *BooklyClient {
	return &BooklyClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type booklySyncRequest struct {
	Service     string    `json:"service"`
	Status      string    `json:"status"`
	FinalPrice  float64   `json:"final_price"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (c *BooklyClient) Sync(ctx context.Context, booking *model.Booking) error {
	payload, err := json.Marshal(booklySyncRequest{
		Service:     booking.Service,
		Status:      string(booking.Status),
		FinalPrice:  booking.FinalPrice,
		ScheduledAt: booking.ScheduledAt,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/bookings/%s", c.baseURL, booking.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("booking platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// NoopBookingSystem is the stand-in when no booking platform is configured.
type NoopBookingSystem struct{}

func (NoopBookingSystem) Sync(_ context.Context, booking *model.Booking) error {
	log.Info().Str("booking_id", booking.ID.String()).Str("status", string(booking.Status)).
		Msg("Booking sync (simulated)")
	return nil
}
