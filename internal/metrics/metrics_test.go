package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	assert.Equal(t, "/v1/books", normalizePattern("/v1/books/{isbn}"))
	assert.Equal(t, "/v1/books/bulk", normalizePattern("/v1/books/bulk"))
	assert.Equal(t, "", normalizePattern(""))
}

func TestCacheMetrics_RecordTier(t *testing.T) {
	reg := NewRegistry()
	cm := NewCacheMetrics(reg)

	cm.RecordTier("T1")
	cm.RecordTier("T1")
	cm.RecordTier("MISS")

	assert.Equal(t, float64(2), testutil.ToFloat64(cm.totals.WithLabelValues("T1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(cm.totals.WithLabelValues("MISS")))
}

func TestJobMetrics_RecordTerminal(t *testing.T) {
	reg := NewRegistry()
	jm := NewJobMetrics(reg)

	jm.RecordTerminal("ai_scan", "complete")
	jm.RecordTerminal("ai_scan", "failed")
	jm.RecordTerminal("ai_scan", "failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(jm.totals.WithLabelValues("ai_scan", "complete")))
	assert.Equal(t, float64(2), testutil.ToFloat64(jm.totals.WithLabelValues("ai_scan", "failed")))
}
