package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/api/middleware"
	"github.com/promptdeck/promptdeck-api/internal/api/shared"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// defaultJobListLimit caps GET /jobs when the client does not pass one.
const defaultJobListLimit = 50

// JobHandler serves job status, listing, cancellation and queue statistics.
type JobHandler struct {
	queue  *job.Queue
	logger *slog.Logger
}

// NewJobHandler creates a JobHandler backed by the given queue.
func NewJobHandler(queue *job.Queue, logger *slog.Logger) *JobHandler {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		queue:  queue,
		logger: logger.With("component", "job_handler"),
	}
}

// GetJob handles GET /jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	j, err := h.loadOwnedJob(r, userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(j))
}

// ListJobs handles GET /jobs, returning the caller's jobs newest first.
// The optional limit query parameter caps the page size.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	jobs := h.queue.GetUserJobs(userID, limit)
	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, NewJobResponse(j))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelJob handles DELETE /jobs/{id}. Only pending and retry jobs can be
// cancelled; a job already executing runs to completion.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	j, err := h.loadOwnedJob(r, userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	cancelled, err := h.queue.Cancel(j.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if !cancelled {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"Job can no longer be cancelled; it is "+string(j.Status))
		return
	}

	updated, err := h.queue.GetJob(j.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("job cancelled via API", "job_id", j.ID, "user_id", userID)
	shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{
		Success: true,
		Job:     NewJobResponse(updated),
	})
}

// GetStats handles GET /jobs/stats, reporting per-type queue depth plus the
// caller's own counts.
func (h *JobHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats := h.queue.Stats()

	var totals job.TypeStats
	for _, s := range stats {
		totals.Pending += s.Pending
		totals.Processing += s.Processing
		totals.Retry += s.Retry
		totals.Completed += s.Completed
		totals.Failed += s.Failed
		totals.Cancelled += s.Cancelled
	}

	var user job.TypeStats
	for _, j := range h.queue.GetUserJobs(userID, 0) {
		switch j.Status {
		case domain.JobStatusPending:
			user.Pending++
		case domain.JobStatusProcessing:
			user.Processing++
		case domain.JobStatusRetry:
			user.Retry++
		case domain.JobStatusCompleted:
			user.Completed++
		case domain.JobStatusFailed:
			user.Failed++
		case domain.JobStatusCancelled:
			user.Cancelled++
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		Types:  stats,
		Totals: totals,
		User:   user,
	})
}

// loadOwnedJob parses the id URL parameter and loads the job, enforcing that
// it belongs to the caller.
func (h *JobHandler) loadOwnedJob(r *http.Request, userID uuid.UUID) (*domain.Job, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, ErrInvalidID
	}

	j, err := h.queue.GetJob(id)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrJobNotOwned
	}
	return j, nil
}
