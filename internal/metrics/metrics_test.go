package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersInstruments(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Writes.WithLabelValues("course", "false").Inc()
	m.Intents.WithLabelValues("GRADES").Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Intents.WithLabelValues("GRADES")), 1e-9)
}

func TestNew_NilRegistererIsUsable(t *testing.T) {
	t.Parallel()
	m := New(nil)
	m.Fallbacks.Inc()
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Fallbacks), 1e-9)
}
