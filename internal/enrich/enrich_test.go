package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/model"
)

func TestEnrichAll_PreservesInputOrder(t *testing.T) {
	items := []model.DetectedBook{
		{TitleGuess: "A"},
		{TitleGuess: "B"},
		{TitleGuess: "C"},
	}

	out := EnrichAll(context.Background(), items, func(_ context.Context, b model.DetectedBook) (model.DetectedBook, error) {
		b.EnrichmentStatus = "success"
		return b, nil
	}, nil, func(b model.DetectedBook) string { return b.TitleGuess }, 2, nil)

	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].TitleGuess)
	assert.Equal(t, "B", out[1].TitleGuess)
	assert.Equal(t, "C", out[2].TitleGuess)
	for _, b := range out {
		assert.Equal(t, "success", b.EnrichmentStatus)
	}
}

func TestEnrichAll_PerItemFailureDoesNotAbortBatch(t *testing.T) {
	items := []model.DetectedBook{
		{TitleGuess: "Good"},
		{TitleGuess: "Bad"},
		{TitleGuess: "AlsoGood"},
	}

	out := EnrichAll(context.Background(), items, func(_ context.Context, b model.DetectedBook) (model.DetectedBook, error) {
		if b.TitleGuess == "Bad" {
			return b, errors.New("upstream exploded")
		}
		b.EnrichmentStatus = "success"
		return b, nil
	}, nil, func(b model.DetectedBook) string { return b.TitleGuess }, 3, nil)

	require.Len(t, out, 3)
	assert.Equal(t, "success", out[0].EnrichmentStatus)
	assert.Equal(t, "error", out[1].EnrichmentStatus)
	assert.Equal(t, "upstream exploded", out[1].EnrichmentError)
	assert.Equal(t, "success", out[2].EnrichmentStatus)
}

func TestEnrichAll_ReportsProgressForEveryItem(t *testing.T) {
	items := make([]model.DetectedBook, 7)
	for i := range items {
		items[i] = model.DetectedBook{TitleGuess: "item"}
	}

	var calls int64
	out := EnrichAll(context.Background(), items, func(_ context.Context, b model.DetectedBook) (model.DetectedBook, error) {
		return b, nil
	}, func(completed, total int, _ string, isError bool) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, 7, total)
		assert.False(t, isError)
		assert.LessOrEqual(t, completed, total)
	}, func(b model.DetectedBook) string { return b.TitleGuess }, 3, nil)

	assert.Len(t, out, 7)
	assert.EqualValues(t, 7, calls)
}

func TestEnrichAll_ZeroConcurrencyFallsBackToDefault(t *testing.T) {
	items := []model.DetectedBook{{TitleGuess: "Solo"}}
	out := EnrichAll(context.Background(), items, func(_ context.Context, b model.DetectedBook) (model.DetectedBook, error) {
		return b, nil
	}, nil, nil, 0, nil)
	require.Len(t, out, 1)
}

// TestEnrichAll_CancellationShortCircuitsRemainingBatches exercises spec's
// "exactly k*concurrency items processed" boundary: with concurrency 2 and
// cancellation requested after the first batch, only the first 2 of 6 items
// should ever reach enrich.
func TestEnrichAll_CancellationShortCircuitsRemainingBatches(t *testing.T) {
	items := make([]model.DetectedBook, 6)
	for i := range items {
		items[i] = model.DetectedBook{TitleGuess: "item"}
	}

	var processed int64
	var canceled atomic.Bool

	out := EnrichAll(context.Background(), items, func(_ context.Context, b model.DetectedBook) (model.DetectedBook, error) {
		atomic.AddInt64(&processed, 1)
		b.EnrichmentStatus = "success"
		return b, nil
	}, func(completed, total int, _ string, isError bool) {
		if completed >= 2 {
			canceled.Store(true)
		}
	}, func(b model.DetectedBook) string { return b.TitleGuess }, 2, func() bool {
		return canceled.Load()
	})

	require.Len(t, out, 6)
	assert.EqualValues(t, 2, processed, "only the first batch should have run before cancellation was observed")
	assert.Equal(t, "success", out[0].EnrichmentStatus)
	assert.Equal(t, "success", out[1].EnrichmentStatus)
	assert.Empty(t, out[2].EnrichmentStatus, "items in the canceled batch are untouched copies of the input")
}
