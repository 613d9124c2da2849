package model

import "time"

// Pipeline identifies which async job kind is running.
type Pipeline string

const (
	PipelineBatchEnrichment Pipeline = "batch_enrichment"
	PipelineCSVImport       Pipeline = "csv_import"
	PipelineAIScan          Pipeline = "ai_scan"
)

// JobState is a Job's position in the state diagram of spec.md §4.7.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobComplete  JobState = "complete"
	JobFailed    JobState = "failed"
	JobCanceled  JobState = "canceled"
)

// Terminal reports whether s is one of the absorbing states (I-4).
func (s JobState) Terminal() bool {
	switch s {
	case JobComplete, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// Job is the durable record of an async pipeline run.
type Job struct {
	ID        string
	Pipeline  Pipeline
	CreatedAt time.Time
	State     JobState

	Total     int
	Processed int

	ClientReady     bool
	CancelRequested bool

	// Token is the bearer token the client presents when opening the
	// stream. It expires 2 hours after issue. It is not consumed on use,
	// and nothing re-issues it; jobs.NeedsRefresh only reports whether it
	// is within 30 minutes of expiry.
	Token          string
	TokenExpiresAt time.Time
}

// Expired reports whether the job should be reaped: 24h since creation with
// no stream activity, determined by the caller via lastActivity.
func (j Job) Expired(lastActivity time.Time, now time.Time) bool {
	return now.Sub(lastActivity) > 24*time.Hour
}
