package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdjustedTTL_HighQualityDoubles(t *testing.T) {
	got := AdjustedTTL(KindTitleSearch, 0.9)
	assert.Equal(t, 48*time.Hour, got)
}

func TestAdjustedTTL_LowQualityHalves(t *testing.T) {
	got := AdjustedTTL(KindTitleSearch, 0.2)
	assert.Equal(t, 12*time.Hour, got)
}

func TestAdjustedTTL_MidrangeUnchanged(t *testing.T) {
	got := AdjustedTTL(KindTitleSearch, 0.6)
	assert.Equal(t, 24*time.Hour, got)
}

func TestQuality_AllComplete(t *testing.T) {
	got := Quality(4, 4, 50)
	assert.Equal(t, 1.0, got)
}

func TestQuality_NoneComplete(t *testing.T) {
	got := Quality(4, 0, 0)
	assert.Equal(t, 0.0, got)
}

func TestFuzz_StaysWithinRange(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 50; i++ {
		got := fuzz(base, 1.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, time.Duration(float64(base)*1.5))
	}
}
