package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/pipeline"
)

// JobResponse is the client-facing view of a job. The payload stays internal;
// clients see type, lifecycle state and result only.
type JobResponse struct {
	ID          uuid.UUID        `json:"id"`
	Type        domain.JobType   `json:"type"`
	Status      domain.JobStatus `json:"status"`
	Priority    string           `json:"priority"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	Progress    int              `json:"progress"`
	Result      json.RawMessage  `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// NewJobResponse converts a domain job into its API representation.
func NewJobResponse(j *domain.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Priority:    j.Priority.String(),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Progress:    j.Progress,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// JobListResponse wraps a page of the caller's jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// StatsResponse reports queue depth by job type, an aggregate row, and the
// caller's own counts.
type StatsResponse struct {
	Types  map[domain.JobType]job.TypeStats `json:"types"`
	Totals job.TypeStats                    `json:"totals"`
	User   job.TypeStats                    `json:"user"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	Success bool        `json:"success"`
	Job     JobResponse `json:"job"`
}

// Process request modes, selected by the mode query parameter.
const (
	ProcessModeSingle     = "single"
	ProcessModeBatch      = "batch"
	ProcessModeCollection = "collection"
)

// ProcessRequest asks the pipeline to process one item, an explicit batch, or
// a whole collection. The mode query parameter selects which; when absent the
// mode is inferred from whichever ID field is set.
type ProcessRequest struct {
	ItemID          *uuid.UUID  `json:"item_id,omitempty"`
	ItemIDs         []uuid.UUID `json:"item_ids,omitempty" validate:"omitempty,max=1000"`
	CollectionID    *uuid.UUID  `json:"collection_id,omitempty"`
	SkipIfOptimized bool        `json:"skip_if_optimized"`
	ForceReprocess  bool        `json:"force_reprocess"`
	TargetModels    []string    `json:"target_models,omitempty"`

	// Async detaches a batch run from the request; the response reports
	// acceptance only. Ignored for single-item requests.
	Async bool `json:"async"`
}

// ProcessResponse reports the jobs scheduled for a single item.
type ProcessResponse struct {
	ItemID uuid.UUID   `json:"item_id"`
	JobIDs []uuid.UUID `json:"job_ids"`
}

// BatchAcceptedResponse acknowledges an async batch run.
type BatchAcceptedResponse struct {
	Status    string `json:"status"`
	Attempted int    `json:"attempted"`
}

// Duplicate request modes.
const (
	DuplicatesModeDetect     = "detect"
	DuplicatesModeSimilarity = "similarity"
)

// DuplicatesRequest triggers duplicate detection over the caller's items, or
// similarity scoring of one source item against explicit targets.
type DuplicatesRequest struct {
	Mode          string      `json:"mode" validate:"omitempty,oneof=detect similarity"`
	CollectionID  *uuid.UUID  `json:"collection_id,omitempty"`
	SourceItemID  *uuid.UUID  `json:"source_item_id,omitempty"`
	TargetItemIDs []uuid.UUID `json:"target_item_ids,omitempty" validate:"omitempty,max=100"`
}

// DuplicatesResponse reports a scheduled detection job, or why nothing was
// scheduled.
type DuplicatesResponse struct {
	Scheduled bool         `json:"scheduled"`
	Reason    string       `json:"reason,omitempty"`
	Job       *JobResponse `json:"job,omitempty"`
}

// SimilarityResponse reports the pairwise similarity jobs scheduled.
type SimilarityResponse struct {
	SourceItemID uuid.UUID   `json:"source_item_id"`
	JobIDs       []uuid.UUID `json:"job_ids"`
}

// ConfigUpdateRequest is a partial update of the pipeline policy. Absent
// fields keep their current values.
type ConfigUpdateRequest struct {
	EnableAutoClassification *bool   `json:"enable_auto_classification,omitempty"`
	EnableAutoOptimization   *bool   `json:"enable_auto_optimization,omitempty"`
	EnableDuplicateDetection *bool   `json:"enable_duplicate_detection,omitempty"`
	EnableQualityAssessment  *bool   `json:"enable_quality_assessment,omitempty"`
	BatchSize                *int    `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
	Priority                 *string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
}

// ConfigResponse is the client-facing pipeline policy.
type ConfigResponse struct {
	EnableAutoClassification bool   `json:"enable_auto_classification"`
	EnableAutoOptimization   bool   `json:"enable_auto_optimization"`
	EnableDuplicateDetection bool   `json:"enable_duplicate_detection"`
	EnableQualityAssessment  bool   `json:"enable_quality_assessment"`
	BatchSize                int    `json:"batch_size"`
	Priority                 string `json:"priority"`
}

// NewConfigResponse converts the pipeline policy into its API representation.
func NewConfigResponse(cfg pipeline.Config) ConfigResponse {
	return ConfigResponse{
		EnableAutoClassification: cfg.EnableAutoClassification,
		EnableAutoOptimization:   cfg.EnableAutoOptimization,
		EnableDuplicateDetection: cfg.EnableDuplicateDetection,
		EnableQualityAssessment:  cfg.EnableQualityAssessment,
		BatchSize:                cfg.BatchSize,
		Priority:                 cfg.Priority.String(),
	}
}
