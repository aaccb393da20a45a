package spreadsheet

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newTestModel(t, nil, WithMetrics(metrics))

	setContent(t, m, "Sheet1", "A1", "1")
	setContent(t, m, "Sheet1", "A2", "=A1+1")
	setContent(t, m, "Sheet1", "A1", "5")
	m.Dispatch(DeleteSheet{SheetID: "Sheet1"})

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.commands.WithLabelValues("SET_VALUE", string(StatusSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.commands.WithLabelValues("DELETE_SHEET", string(StatusCancelled))))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.evaluatedCells))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.dispatchTime))

	// a second model shares the registered collectors
	again := NewMetrics(reg)
	assert.Same(t, metrics.commands, again.commands)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.observeDispatch("UNDO", Success, 0)
		metrics.addEvaluated(3)
		metrics.asyncResult("applied")
	})
}
