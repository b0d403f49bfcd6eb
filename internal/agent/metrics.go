package agent

import (
	"context"

	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// Metrics answers dashboard reads. It is strictly read-only: no transitions,
// no events, so a dashboard refresh never pollutes the ledger.
type Metrics struct {
	store store.Store
}

func NewMetrics(s store.Store) *Metrics {
	return &Metrics{store: s}
}

func (a *Metrics) Name() model.AgentTag { return model.AgentMetrics }

func (a *Metrics) Decide(ctx context.Context, studio *model.Studio, _ Trigger) (*Decision, error) {
	dashboard, err := a.store.Dashboard(ctx, studio.ID)
	if err != nil {
		return nil, err
	}
	return &Decision{Agent: model.AgentMetrics, Payload: dashboard}, nil
}
