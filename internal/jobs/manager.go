// Package jobs implements Job State & the Progress Stream (C7): a per-job
// singleton state machine, durable across restarts via Repository, with a
// WebSocket transport for client progress updates.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfscan/shelfd/internal/model"
)

// ProgressUpdate is what updateProgress emits to the bound client stream.
type ProgressUpdate struct {
	Progress       float64 `json:"progress"`
	Status         string  `json:"status"`
	ProcessedCount int     `json:"processedCount"`
	CurrentItem    string  `json:"currentItem,omitempty"`
}

// CompletionPayload is the small, stream-safe summary sent on completion;
// the full result lives in the Results Store, addressed by ResultsURL.
type CompletionPayload struct {
	Summary    any    `json:"summary"`
	ResultsURL string `json:"resultsUrl"`
}

// ErrorPayload is sent on sendError.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// streamSink is how the manager pushes messages onto a bound client
// connection; satisfied by *streamConn (stream.go), narrowed here so this
// file has no direct websocket dependency.
type streamSink interface {
	send(msgType string, payload any) error
	close(code int, reason string)
}

// handle is the in-memory half of a job's per-job singleton: the parts too
// latency-sensitive, or too ephemeral, to round-trip through Repository on
// every call.
type handle struct {
	mu sync.Mutex

	job model.Job

	readyCh     chan struct{}
	readyClosed bool

	stream streamSink

	lastSentProgress float64
	sentAny          bool
}

// Manager owns every job's handle plus its durable Repository and token
// issuer. Exactly one handle exists per jobId, created by
// InitializeJobState and looked up by every subsequent operation.
type Manager struct {
	repo   Repository
	tokens *TokenIssuer

	mu      sync.Mutex
	handles map[string]*handle
}

// New builds a Manager.
func New(repo Repository, tokens *TokenIssuer) *Manager {
	return &Manager{repo: repo, tokens: tokens, handles: map[string]*handle{}}
}

// InitializeJobState creates the per-job singleton, idempotent if called
// again for the same jobID (spec.md §4.7).
func (m *Manager) InitializeJobState(ctx context.Context, jobID string, pipeline model.Pipeline, totalStages int) (model.Job, string, error) {
	m.mu.Lock()
	if h, ok := m.handles[jobID]; ok {
		m.mu.Unlock()
		h.mu.Lock()
		j := h.job
		h.mu.Unlock()
		return j, j.Token, nil
	}
	m.mu.Unlock()

	token, expires, err := m.tokens.Issue(jobID)
	if err != nil {
		return model.Job{}, "", err
	}

	j := model.Job{
		ID:             jobID,
		Pipeline:       pipeline,
		CreatedAt:      time.Now().UTC(),
		State:          model.JobPending,
		Total:          totalStages,
		Token:          token,
		TokenExpiresAt: expires,
	}
	if err := m.repo.Insert(ctx, j); err != nil {
		return model.Job{}, "", err
	}

	h := &handle{job: j, readyCh: make(chan struct{})}
	m.mu.Lock()
	m.handles[jobID] = h
	m.mu.Unlock()

	return j, token, nil
}

// NewJobID mints a fresh job identifier.
func NewJobID() string { return uuid.NewString() }

func (m *Manager) get(jobID string) (*handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[jobID]
	return h, ok
}

// bindStream attaches a client stream connection to jobID's handle, called
// by the WebSocket layer once the upgrade completes.
func (m *Manager) bindStream(jobID string, s streamSink) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	h.stream = s
	h.mu.Unlock()
}

// onReady is invoked by the stream layer when the client sends `ready`.
func (m *Manager) onReady(jobID string) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.ClientReady = true
	if !h.readyClosed {
		h.readyClosed = true
		close(h.readyCh)
	}
}

// onCancel is invoked by the stream layer when the client sends `cancel`.
func (m *Manager) onCancel(jobID string) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	h.job.CancelRequested = true
	h.mu.Unlock()
}

// WaitForReady blocks until the client signals ready, the deadline
// elapses, or the stream disconnects. The worker proceeds regardless.
func (m *Manager) WaitForReady(jobID string, timeout time.Duration) (timedOut, disconnected bool) {
	h, ok := m.get(jobID)
	if !ok {
		return false, true
	}

	select {
	case <-h.readyCh:
		// A disconnect closes readyCh too; only onReady sets ClientReady.
		h.mu.Lock()
		ready := h.job.ClientReady
		h.mu.Unlock()
		return false, !ready
	case <-time.After(timeout):
		return true, false
	}
}

// UpdateProgress emits a job_progress message, throttled so that repeated
// calls describing the same numeric progress are suppressed.
func (m *Manager) UpdateProgress(ctx context.Context, jobID string, update ProgressUpdate) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}

	h.mu.Lock()
	if h.job.State == model.JobPending {
		h.job.State = model.JobRunning
	}
	h.job.Processed = update.ProcessedCount
	suppress := h.sentAny && h.lastSentProgress == update.Progress
	h.lastSentProgress = update.Progress
	h.sentAny = true
	stream := h.stream
	h.mu.Unlock()

	_ = m.repo.UpdateProgress(ctx, jobID, update.ProcessedCount)

	if suppress || stream == nil {
		return
	}
	if err := stream.send("job_progress", update); err != nil {
		slog.Default().Warn("jobs: progress send failed", "job", jobID, "err", err)
	}
}

// Complete transitions a job to complete, writes the small completion
// payload to the stream, and closes it with the normal close code.
func (m *Manager) Complete(ctx context.Context, jobID string, resultsURL string, summary any) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	h.job.State = model.JobComplete
	stream := h.stream
	h.mu.Unlock()

	_ = m.repo.SetState(ctx, jobID, model.JobComplete)

	if stream == nil {
		return
	}
	payload := CompletionPayload{Summary: summary, ResultsURL: resultsURL}
	if err := stream.send("job_complete", payload); err != nil {
		slog.Default().Warn("jobs: complete send failed", "job", jobID, "err", err)
	}
	stream.close(1000, "normal")
}

// SendError transitions a job to failed, emits an `error` message, and
// closes the stream.
func (m *Manager) SendError(ctx context.Context, jobID string, payload ErrorPayload) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	h.job.State = model.JobFailed
	stream := h.stream
	h.mu.Unlock()

	_ = m.repo.SetState(ctx, jobID, model.JobFailed)

	if stream == nil {
		return
	}
	if err := stream.send("error", payload); err != nil {
		slog.Default().Warn("jobs: error send failed", "job", jobID, "err", err)
	}
	stream.close(1011, "internal")
}

// Cancel transitions a job to canceled at the worker's next polling point,
// sends one last job_progress describing the cancellation, and closes the
// stream with the normal close code (not 1001, which is reserved for server
// shutdown).
func (m *Manager) Cancel(ctx context.Context, jobID string) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	h.job.State = model.JobCanceled
	processed := h.job.Processed
	total := h.job.Total
	stream := h.stream
	h.mu.Unlock()

	_ = m.repo.SetState(ctx, jobID, model.JobCanceled)

	if stream == nil {
		return
	}
	progress := 0.0
	if total > 0 {
		progress = float64(processed) / float64(total)
	}
	if err := stream.send("job_progress", ProgressUpdate{
		Progress:       progress,
		Status:         "canceled",
		ProcessedCount: processed,
	}); err != nil {
		slog.Default().Warn("jobs: cancel progress send failed", "job", jobID, "err", err)
	}
	stream.close(1000, "canceled")
}

// IsCanceled reports the cancel-requested flag; the worker polls this
// between units of work.
func (m *Manager) IsCanceled(jobID string) bool {
	h, ok := m.get(jobID)
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.CancelRequested
}

// Job returns a snapshot of jobID's current state.
func (m *Manager) Job(jobID string) (model.Job, bool) {
	h, ok := m.get(jobID)
	if !ok {
		return model.Job{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job, true
}

// Forget drops jobID's in-memory handle once its stream has closed and its
// terminal state has been persisted; the durable row is left for Repository
// callers (e.g. a reap job) to clean up after staleAfter.
func (m *Manager) Forget(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, jobID)
}
