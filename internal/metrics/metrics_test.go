package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/metrics"
)

func TestPipeline_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := metrics.NewPipeline(reg)

	p.ObservePlan("create", metrics.OutcomeOK)
	p.ObservePlan("create", metrics.OutcomeOK)
	p.ObservePlan("modify", metrics.OutcomeError)
	p.ObserveMessage(metrics.OutcomeOK)
	p.ObserveCompletion(1500 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["travelplanner_plans_total"])
	assert.True(t, names["travelplanner_queue_messages_total"])
	assert.True(t, names["travelplanner_completion_seconds"])

	n, err := testutil.GatherAndCount(reg, "travelplanner_plans_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per mode/outcome pair")
}

func TestPipeline_NilIsNoop(t *testing.T) {
	var p *metrics.Pipeline

	assert.NotPanics(t, func() {
		p.ObservePlan("create", metrics.OutcomeOK)
		p.ObserveMessage(metrics.OutcomeError)
		p.ObserveCompletion(time.Second)
	})
}
