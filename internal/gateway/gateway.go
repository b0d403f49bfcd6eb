// Package gateway is the only path to external capabilities. Agents never
// talk to an LLM, SMS, or booking provider directly; everything goes through
// Gateway, which owns the timeout and retry policy so callers see either a
// result or ErrUnavailable.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/model"
)

// ErrUnavailable means a capability failed all attempts. Callers must treat
// it as transient: leave state untouched and let a later trigger retry.
var ErrUnavailable = errors.New("capability unavailable")

// maxReplyLen caps model-drafted text before it goes near an SMS pipe.
const maxReplyLen = 1600

// Evaluation is the structured result of screening an inbound message.
type Evaluation struct {
	Score     float64 `json:"vibe_score"`
	Reasoning string  `json:"reasoning"`
	Reply     string  `json:"reply"`
}

// TextEvaluator scores and drafts text with a language model.
type TextEvaluator interface {
	Evaluate(ctx context.Context, system, prompt string) (*Evaluation, error)
	Draft(ctx context.Context, system, prompt string) (string, error)
}

// Messenger delivers an outbound SMS.
type Messenger interface {
	Send(ctx context.Context, to, body string) error
}

// BookingSystem mirrors booking state changes to the external platform.
type BookingSystem interface {
	Sync(ctx context.Context, booking *model.Booking) error
}

// Config tunes the retry envelope. The zero value gets production defaults.
type Config struct {
	Attempts int
	Timeout  time.Duration
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	return c
}

// Gateway wraps the three capability providers with a uniform envelope:
// per-attempt timeout, exponential backoff, fixed attempt count.
type Gateway struct {
	evaluator TextEvaluator
	messenger Messenger
	bookings  BookingSystem
	cfg       Config
}

func New(evaluator TextEvaluator, messenger Messenger, bookings BookingSystem, cfg Config) *Gateway {
	return &Gateway{
		evaluator: evaluator,
		messenger: messenger,
		bookings:  bookings,
		cfg:       cfg.withDefaults(),
	}
}

func attempt[T any](ctx context.Context, g *Gateway, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.cfg.Interval

	tries := 0
	result, err := backoff.RetryWithData(func() (T, error) {
		tries++
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		out, err := fn(callCtx)
		if err != nil {
			if ctx.Err() != nil {
				return out, backoff.Permanent(err)
			}
			log.Warn().Err(err).Str("capability", op).Int("attempt", tries).Msg("Capability call failed")
		}
		return out, err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.cfg.Attempts-1)), ctx))

	if err != nil {
		log.Error().Err(err).Str("capability", op).Int("attempts", tries).Msg("Capability exhausted retries")
		var zero T
		return zero, fmt.Errorf("%s after %d attempts: %w", op, tries, ErrUnavailable)
	}
	return result, nil
}

// Evaluate screens text through the language model and validates the result
// shape. A malformed or out-of-range response counts as a failed attempt.
func (g *Gateway) Evaluate(ctx context.Context, system, prompt string) (*Evaluation, error) {
	return attempt(ctx, g, "llm_evaluate", func(ctx context.Context) (*Evaluation, error) {
		eval, err := g.evaluator.Evaluate(ctx, system, prompt)
		if err != nil {
			return nil, err
		}
		if eval.Score < 0 || eval.Score > 1 {
			return nil, fmt.Errorf("score %v out of range", eval.Score)
		}
		if len(eval.Reply) > maxReplyLen {
			return nil, fmt.Errorf("reply length %d exceeds %d", len(eval.Reply), maxReplyLen)
		}
		return eval, nil
	})
}

// Draft produces a client-facing message in the studio's voice.
func (g *Gateway) Draft(ctx context.Context, system, prompt string) (string, error) {
	return attempt(ctx, g, "llm_draft", func(ctx context.Context) (string, error) {
		text, err := g.evaluator.Draft(ctx, system, prompt)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", errors.New("empty draft")
		}
		if len(text) > maxReplyLen {
			return "", fmt.Errorf("draft length %d exceeds %d", len(text), maxReplyLen)
		}
		return text, nil
	})
}

// Send delivers an SMS.
func (g *Gateway) Send(ctx context.Context, to, body string) error {
	_, err := attempt(ctx, g, "sms_send", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.messenger.Send(ctx, to, body)
	})
	return err
}

// Sync pushes a booking's current state to the booking platform.
func (g *Gateway) Sync(ctx context.Context, booking *model.Booking) error {
	_, err := attempt(ctx, g, "booking_sync", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.bookings.Sync(ctx, booking)
	})
	return err
}
