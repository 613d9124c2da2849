package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/model"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []string
	closedAt int
}

func (f *fakeSink) send(msgType string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgType)
	return nil
}

func (f *fakeSink) close(code int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedAt = code
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return New(repo, NewTokenIssuer([]byte("test-secret")))
}

func TestInitializeJobState_IsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	j1, tok1, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 5)
	require.NoError(t, err)

	j2, tok2, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 99)
	require.NoError(t, err)

	assert.Equal(t, j1.ID, j2.ID)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, 5, j2.Total, "second call must not overwrite the original state")
}

func TestWaitForReady_UnblocksOnReadySignal(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 1)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.onReady("job-1")
	}()

	timedOut, disconnected := m.WaitForReady("job-1", time.Second)
	assert.False(t, timedOut)
	assert.False(t, disconnected)
}

func TestWaitForReady_TimesOutButWorkerProceeds(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 1)
	require.NoError(t, err)

	timedOut, _ := m.WaitForReady("job-1", 10*time.Millisecond)
	assert.True(t, timedOut)
}

func TestUpdateProgress_ThrottlesDuplicateValues(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 10)
	require.NoError(t, err)

	sink := &fakeSink{}
	m.bindStream("job-1", sink)

	m.UpdateProgress(ctx, "job-1", ProgressUpdate{Progress: 0.5, ProcessedCount: 5})
	m.UpdateProgress(ctx, "job-1", ProgressUpdate{Progress: 0.5, ProcessedCount: 5})
	m.UpdateProgress(ctx, "job-1", ProgressUpdate{Progress: 0.7, ProcessedCount: 7})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"job_progress", "job_progress"}, sink.messages)
}

func TestComplete_TransitionsAndClosesNormally(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 1)
	require.NoError(t, err)

	sink := &fakeSink{}
	m.bindStream("job-1", sink)

	m.Complete(ctx, "job-1", "https://example.test/results/job-1", map[string]int{"count": 3})

	j, ok := m.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, model.JobComplete, j.State)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Contains(t, sink.messages, "job_complete")
	assert.Equal(t, 1000, sink.closedAt)
}

func TestCancel_SetsFlagAndTerminalState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 1)
	require.NoError(t, err)

	m.onCancel("job-1")
	assert.True(t, m.IsCanceled("job-1"))

	m.Cancel(ctx, "job-1")
	j, ok := m.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, model.JobCanceled, j.State)
}

func TestCancel_SendsProgressBeforeClosingWithNormalCode(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, _, err := m.InitializeJobState(ctx, "job-1", model.PipelineAIScan, 1)
	require.NoError(t, err)

	sink := &fakeSink{}
	m.bindStream("job-1", sink)

	m.onCancel("job-1")
	m.Cancel(ctx, "job-1")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Contains(t, sink.messages, "job_progress")
	assert.Equal(t, 1000, sink.closedAt, "cancellation is not a shutdown (1001), it's a normal close")
}
