package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

type recordingRouter struct {
	mu    sync.Mutex
	ticks map[string]int
}

func (r *recordingRouter) Route(_ context.Context, studio *model.Studio, trig agent.Trigger) (*agent.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trig.Kind == agent.TriggerTick {
		r.ticks[studio.Slug]++
	}
	return &agent.Decision{Agent: model.AgentUpsell}, nil
}

func (r *recordingRouter) counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.ticks))
	for k, v := range r.ticks {
		out[k] = v
	}
	return out
}

func TestSweepTicksEveryStudio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.NewMemoryStore()
	for _, name := range []string{"Studio A", "Studio B", "Studio C"} {
		require.NoError(t, s.CreateStudio(ctx, &model.Studio{Name: name}))
	}

	r := &recordingRouter{ticks: make(map[string]int)}
	sched := New(s, r, time.Hour)

	go sched.Run(ctx)

	require.Eventually(t, func() bool {
		return len(r.counts()) == 3
	}, 2*time.Second, 10*time.Millisecond, "the initial sweep must reach every studio")

	for slug, n := range r.counts() {
		assert.Equal(t, 1, n, "studio %s ticked more than once in one sweep", slug)
	}
}

func TestRepeatedSweeps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.NewMemoryStore()
	require.NoError(t, s.CreateStudio(ctx, &model.Studio{Name: "Glow Studio"}))

	r := &recordingRouter{ticks: make(map[string]int)}
	sched := New(s, r, 20*time.Millisecond)

	go sched.Run(ctx)

	require.Eventually(t, func() bool {
		return r.counts()["glow-studio"] >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := store.NewMemoryStore()
	r := &recordingRouter{ticks: make(map[string]int)}
	sched := New(s, r, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
