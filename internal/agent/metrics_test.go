package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

func TestMetricsReadsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	studio := seedStudio(t, s, 50)
	seedBooking(t, s, studio, model.Booking{
		ID: uuid.New(), Service: "gel manicure", OriginalPrice: 65, FinalPrice: 80,
	})

	metrics := NewMetrics(s)
	d, err := metrics.Decide(ctx, studio, Trigger{Kind: TriggerDashboard})
	require.NoError(t, err)

	dash, ok := d.Payload.(*model.Dashboard)
	require.True(t, ok)
	assert.Equal(t, 15.0, dash.FoundMoney)

	assert.Empty(t, d.Transitions)
	assert.Empty(t, d.Events, "reading the dashboard leaves no trace in the ledger")
	assert.Empty(t, d.SideEffects)
}
