package main

import (
	"context"
	"errors"
	"time"

	"github.com/shelfscan/shelfd/internal/aggregator"
	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/enrich"
	"github.com/shelfscan/shelfd/internal/jobs"
	"github.com/shelfscan/shelfd/internal/model"
)

// workerTimeout bounds a single background pipeline run so a stuck provider
// can't wedge a job in "running" forever.
const workerTimeout = 5 * time.Minute

// batchEnrichmentItem is one workId's resolution outcome.
type batchEnrichmentItem struct {
	WorkID string     `json:"workId"`
	Work   *model.Work `json:"work,omitempty"`
	Status string     `json:"status"`
	Error  string      `json:"error,omitempty"`
}

func (b batchEnrichmentItem) WithEnrichmentError(err error) any {
	b.Status = "error"
	b.Error = err.Error()
	return b
}

type csvImportItem struct {
	Input  csvRow     `json:"input"`
	Work   *model.Work `json:"work,omitempty"`
	Status string     `json:"status"`
	Error  string      `json:"error,omitempty"`
}

func (c csvImportItem) WithEnrichmentError(err error) any {
	c.Status = "error"
	c.Error = err.Error()
	return c
}

type scanSummary struct {
	TotalDetected int `json:"totalDetected"`
	Approved      int `json:"approved"`
	NeedsReview   int `json:"needsReview"`
}

type batchSummary struct {
	BooksCount int `json:"booksCount"`
}

// runBatchEnrichment resolves each workId (treated as an ISBN, the only
// stable identifier the data model carries) through the Aggregation
// Engine, reporting progress and writing the full per-item results to the
// Results Store on completion.
func (e *env) runBatchEnrichment(jobID string, workIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
	defer cancel()

	items := make([]batchEnrichmentItem, len(workIDs))
	for i, id := range workIDs {
		items[i] = batchEnrichmentItem{WorkID: id, Status: "pending"}
	}

	results := enrich.EnrichAll(ctx, items,
		func(ctx context.Context, item batchEnrichmentItem) (batchEnrichmentItem, error) {
			if e.jobs.IsCanceled(jobID) {
				return item, errors.New("canceled")
			}
			work, _, err := e.engine.ResolveOne(ctx, aggregator.Query{ISBN: item.WorkID})
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					item.Status = "not_found"
					return item, nil
				}
				return item, err
			}
			item.Work = &work
			item.Status = "success"
			return item, nil
		},
		func(completed, total int, currentTitle string, isError bool) {
			e.jobs.UpdateProgress(ctx, jobID, jobs.ProgressUpdate{
				Progress:       float64(completed) / float64(total),
				Status:         "enriching",
				ProcessedCount: completed,
				CurrentItem:    currentTitle,
			})
		},
		func(item batchEnrichmentItem) string { return item.WorkID },
		enrichConcurrency,
		func() bool { return e.jobs.IsCanceled(jobID) },
	)

	if e.jobs.IsCanceled(jobID) {
		e.jobs.Cancel(ctx, jobID)
		e.jobMx.RecordTerminal(string(model.PipelineBatchEnrichment), "canceled")
		return
	}

	e.finishJob(ctx, jobID, model.PipelineBatchEnrichment, results, batchSummary{BooksCount: len(results)})
}

// runBookshelfScan detects books in a photo, resolves each against the
// Aggregation Engine, and marks each detection approved or needs-review
// against the configured confidence threshold.
func (e *env) runBookshelfScan(jobID string, image []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
	defer cancel()

	detections, err := e.vision.DetectBooksInImage(ctx, image)
	if err != nil {
		e.jobs.SendError(ctx, jobID, jobs.ErrorPayload{
			Code:      "ENRICHMENT_FAILED",
			Message:   err.Error(),
			Retryable: apperr.Retryable(err),
		})
		e.jobMx.RecordTerminal(string(model.PipelineAIScan), "failed")
		return
	}

	results := enrich.EnrichAll(ctx, detections,
		func(ctx context.Context, item model.DetectedBook) (model.DetectedBook, error) {
			if e.jobs.IsCanceled(jobID) {
				return item, errors.New("canceled")
			}
			work, _, err := e.engine.ResolveOne(ctx, aggregator.Query{
				Title:  item.TitleGuess,
				Author: item.AuthorGuess,
				ISBN:   item.ISBNGuess,
			})
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					item.EnrichmentStatus = "not_found"
					return item, nil
				}
				return item, err
			}
			item.Enrichment = &work
			item.EnrichmentStatus = "success"
			item.Approved = item.Confidence >= e.scanConfidence
			return item, nil
		},
		func(completed, total int, currentTitle string, isError bool) {
			e.jobs.UpdateProgress(ctx, jobID, jobs.ProgressUpdate{
				Progress:       float64(completed) / float64(total),
				Status:         "enriching",
				ProcessedCount: completed,
				CurrentItem:    currentTitle,
			})
		},
		func(item model.DetectedBook) string { return item.TitleGuess },
		enrichConcurrency,
		func() bool { return e.jobs.IsCanceled(jobID) },
	)

	if e.jobs.IsCanceled(jobID) {
		e.jobs.Cancel(ctx, jobID)
		e.jobMx.RecordTerminal(string(model.PipelineAIScan), "canceled")
		return
	}

	summary := scanSummary{TotalDetected: len(results)}
	for _, d := range results {
		if d.Approved {
			summary.Approved++
		} else {
			summary.NeedsReview++
		}
	}

	e.finishJob(ctx, jobID, model.PipelineAIScan, results, summary)
}

// runCSVImport resolves each parsed CSV row through the Aggregation Engine.
func (e *env) runCSVImport(jobID string, rows []csvRow) {
	ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
	defer cancel()

	items := make([]csvImportItem, len(rows))
	for i, row := range rows {
		items[i] = csvImportItem{Input: row, Status: "pending"}
	}

	results := enrich.EnrichAll(ctx, items,
		func(ctx context.Context, item csvImportItem) (csvImportItem, error) {
			if e.jobs.IsCanceled(jobID) {
				return item, errors.New("canceled")
			}
			work, _, err := e.engine.ResolveOne(ctx, aggregator.Query{
				Title:  item.Input.Title,
				Author: item.Input.Author,
				ISBN:   item.Input.ISBN,
			})
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					item.Status = "not_found"
					return item, nil
				}
				return item, err
			}
			item.Work = &work
			item.Status = "success"
			return item, nil
		},
		func(completed, total int, currentTitle string, isError bool) {
			e.jobs.UpdateProgress(ctx, jobID, jobs.ProgressUpdate{
				Progress:       float64(completed) / float64(total),
				Status:         "enriching",
				ProcessedCount: completed,
				CurrentItem:    currentTitle,
			})
		},
		func(item csvImportItem) string { return item.Input.Title },
		enrichConcurrency,
		func() bool { return e.jobs.IsCanceled(jobID) },
	)

	if e.jobs.IsCanceled(jobID) {
		e.jobs.Cancel(ctx, jobID)
		e.jobMx.RecordTerminal(string(model.PipelineCSVImport), "canceled")
		return
	}

	e.finishJob(ctx, jobID, model.PipelineCSVImport, results, batchSummary{BooksCount: len(results)})
}

// finishJob writes the full per-item payload to the Results Store and
// signals completion over the stream with only the small summary, per
// spec.md §4.7's "job_complete payloads are SMALL" contract.
func (e *env) finishJob(ctx context.Context, jobID string, pipeline model.Pipeline, payload any, summary any) {
	if err := e.results.Put(ctx, string(pipeline), jobID, payload); err != nil {
		e.jobs.SendError(ctx, jobID, jobs.ErrorPayload{
			Code:      "PROCESSING_FAILED",
			Message:   "failed to persist results: " + err.Error(),
			Retryable: false,
		})
		e.jobMx.RecordTerminal(string(pipeline), "failed")
		return
	}

	resultsURL := "/v1/" + resultsPathSegment(pipeline) + "/results/" + jobID
	e.jobs.Complete(ctx, jobID, resultsURL, summary)
	e.jobMx.RecordTerminal(string(pipeline), "complete")
}

func resultsPathSegment(pipeline model.Pipeline) string {
	switch pipeline {
	case model.PipelineAIScan:
		return "scan"
	case model.PipelineCSVImport:
		return "csv"
	default:
		return "enrichment"
	}
}
