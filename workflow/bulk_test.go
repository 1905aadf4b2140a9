package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireAll(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	cfg.TracingEnabled = false
	cfg.LogTransitions = false
	cfg.BulkConcurrency = 3

	def := Define[*document](exampleSpec(t, "bulk"), WithConfig(cfg))

	machines := make([]*Machine[*document], 0, 10)

	for i := range 10 {
		initial := ""
		if i == 4 {
			initial = "archived"
		}

		machines = append(machines, newMachine(t, def, &document{}, NewMemoryStore(initial)))
	}

	results := FireAll(t.Context(), machines, "accept")
	require.Len(t, results, len(machines))

	for i, res := range results {
		assert.Same(t, machines[i], res.Machine)

		if i == 4 {
			require.ErrorIs(t, res.Err, ErrNoSuchEvent)

			continue
		}

		require.NoError(t, res.Err)
		assert.Equal(t, "accepted", res.Result.State)
	}
}

func TestFireAllEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FireAll[*document](t.Context(), nil, "accept"))
}
