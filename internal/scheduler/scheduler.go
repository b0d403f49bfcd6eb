// Package scheduler emits the periodic triggers. It has no decision logic of
// its own: every sweep is one scheduled_tick trigger per studio, handed to
// the router like any other stimulus.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// TriggerRouter is the slice of the router the scheduler needs.
type TriggerRouter interface {
	Route(ctx context.Context, studio *model.Studio, trig agent.Trigger) (*agent.Decision, error)
}

// Scheduler sweeps all studios on an interval. Ticks are queued to a single
// background worker so a slow studio delays the others instead of piling up
// goroutines.
type Scheduler struct {
	store     store.Store
	router    TriggerRouter
	interval  time.Duration
	ticks     chan model.Studio
	now       func() time.Time
	lastSweep time.Time
}

func New(s store.Store, r TriggerRouter, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		store:    s,
		router:   r,
		interval: interval,
		ticks:    make(chan model.Studio, 10),
		now:      time.Now,
	}
}

// WithClock overrides the scheduler's clock. Tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run sweeps once immediately, then on every interval, until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.worker(ctx)

	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	studios, err := s.store.ListStudios(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list studios for sweep")
		return
	}
	for _, studio := range studios {
		select {
		case s.ticks <- studio:
		case <-ctx.Done():
			return
		}
	}
	s.lastSweep = s.now()
	log.Debug().Int("studios", len(studios)).Time("last_sweep", s.lastSweep).Msg("Sweep queued")
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case studio := <-s.ticks:
			trig := agent.Trigger{Kind: agent.TriggerTick, Now: s.now()}
			if _, err := s.router.Route(ctx, &studio, trig); err != nil {
				log.Error().Err(err).Str("studio", studio.Slug).Msg("Scheduled tick failed")
			}
		}
	}
}
