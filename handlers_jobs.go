package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/envelope"
	"github.com/shelfscan/shelfd/internal/jobs"
	"github.com/shelfscan/shelfd/internal/model"
)

const (
	maxUploadBytes    = 10 << 20 // matches the Results Store's payload ceiling
	readyWaitTimeout  = 5 * time.Second
	enrichConcurrency = 10
)

type batchEnrichmentRequest struct {
	JobID   string   `json:"jobId"`
	WorkIDs []string `json:"workIds"`
}

// handleEnrichmentBatch implements `POST /v1/enrichment/batch`.
func (e *env) handleEnrichmentBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req batchEnrichmentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, start, envelope.CodeInvalidRequest, "malformed JSON body")
		return
	}
	if len(req.WorkIDs) == 0 {
		writeError(w, start, envelope.CodeEmptyBatch, "workIds must not be empty")
		return
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = jobs.NewJobID()
	}

	job, token, err := e.jobs.InitializeJobState(r.Context(), jobID, model.PipelineBatchEnrichment, len(req.WorkIDs))
	if err != nil {
		writeError(w, start, envelope.CodeInternalError, err.Error())
		return
	}

	go e.runBatchEnrichment(job.ID, req.WorkIDs)

	writeAccepted(w, start, job.ID, token)
}

// handleScanBookshelf implements `POST /v1/scan/bookshelf` (multipart
// image upload).
func (e *env) handleScanBookshelf(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, start, envelope.CodeFileTooLarge, "upload exceeds the size limit")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, start, envelope.CodeInvalidRequest, "image field is required")
		return
	}
	defer file.Close()

	switch header.Header.Get("Content-Type") {
	case "image/jpeg", "image/png":
	default:
		writeError(w, start, envelope.CodeInvalidFileType, "image must be JPEG or PNG")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, start, envelope.CodeInvalidContent, "could not read upload")
		return
	}

	jobID := jobs.NewJobID()
	job, token, err := e.jobs.InitializeJobState(r.Context(), jobID, model.PipelineAIScan, 0)
	if err != nil {
		writeError(w, start, envelope.CodeInternalError, err.Error())
		return
	}

	go e.runBookshelfScan(job.ID, image)

	writeAccepted(w, start, job.ID, token)
}

// handleCSVImport implements `POST /v1/csv/import` (CSV text body, columns
// title,author,isbn).
func (e *env) handleCSVImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, start, envelope.CodeFileTooLarge, "upload exceeds the size limit")
		return
	}

	rows, err := parseCSVRows(raw)
	if err != nil {
		writeError(w, start, envelope.CodeInvalidContent, err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, start, envelope.CodeEmptyBatch, "CSV contains no rows")
		return
	}

	jobID := jobs.NewJobID()
	job, token, err := e.jobs.InitializeJobState(r.Context(), jobID, model.PipelineCSVImport, len(rows))
	if err != nil {
		writeError(w, start, envelope.CodeInternalError, err.Error())
		return
	}

	go e.runCSVImport(job.ID, rows)

	writeAccepted(w, start, job.ID, token)
}

// handleScanResults implements `GET /v1/scan/results/{jobId}`.
func (e *env) handleScanResults(w http.ResponseWriter, r *http.Request) {
	e.handleResults(w, r, string(model.PipelineAIScan))
}

// handleCSVResults implements `GET /v1/csv/results/{jobId}`.
func (e *env) handleCSVResults(w http.ResponseWriter, r *http.Request) {
	e.handleResults(w, r, string(model.PipelineCSVImport))
}

func (e *env) handleResults(w http.ResponseWriter, r *http.Request, pipeline string) {
	start := time.Now()
	jobID := chi.URLParam(r, "jobId")

	var dest json.RawMessage
	if err := e.results.Get(r.Context(), pipeline, jobID, &dest); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, start, envelope.CodeNotFound, "results not found or expired")
			return
		}
		writeError(w, start, envelope.CodeInternalError, err.Error())
		return
	}

	setResponseHeaders(w, start, "HIT")
	ms := time.Since(start).Milliseconds()
	envelope.WriteJSON(w, http.StatusOK, envelope.Success(dest, envelope.Metadata{ProcessingTime: &ms}))
}

// handleJobStream upgrades `GET /v1/jobs/{jobId}/stream?token=…` to a
// WebSocket, delegating the connection lifecycle to internal/jobs.
func (e *env) handleJobStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	token := r.URL.Query().Get("token")
	e.jobs.ServeStream(w, r, jobID, token)
}
