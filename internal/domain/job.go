package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of background work a job performs.
type JobType string

// Possible job types.
const (
	JobTypeOptimization      JobType = "optimization"
	JobTypeClassification    JobType = "classification"
	JobTypeQualityAssessment JobType = "quality_assessment"
	JobTypeDeduplication     JobType = "deduplication"
	JobTypeSimilarityScoring JobType = "similarity_scoring"
	JobTypeBatchImport       JobType = "batch_import"
	JobTypeEmbedding         JobType = "embedding"
)

// AllJobTypes returns every job type the queue knows how to schedule.
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeOptimization,
		JobTypeClassification,
		JobTypeQualityAssessment,
		JobTypeDeduplication,
		JobTypeSimilarityScoring,
		JobTypeBatchImport,
		JobTypeEmbedding,
	}
}

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetry      JobStatus = "retry"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobPriority orders jobs for dispatch. Higher values dequeue first.
type JobPriority int

// Possible job priorities.
const (
	JobPriorityLow    JobPriority = 0
	JobPriorityNormal JobPriority = 1
	JobPriorityHigh   JobPriority = 2
	JobPriorityUrgent JobPriority = 3
)

// DefaultMaxAttempts bounds how many times a job may be executed before its
// next failure becomes terminal.
const DefaultMaxAttempts = 3

// Common validation errors for Job
var (
	ErrEmptyJobID          = errors.New("job ID cannot be empty")
	ErrEmptyJobUserID      = errors.New("job user ID cannot be empty")
	ErrNilJobPayload       = errors.New("job payload cannot be nil")
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobStatus    = errors.New("invalid job status")
	ErrPayloadTypeMismatch = errors.New("payload type does not match job type")
)

// Job is one unit of asynchronous work. Its lifecycle is owned exclusively
// by the queue: workers and the pipeline never mutate a Job directly.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Type        JobType         `json:"type"`
	Payload     JobPayload      `json:"payload"`
	Priority    JobPriority     `json:"priority"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Progress    int             `json:"progress"`
	UserID      uuid.UUID       `json:"user_id"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a new pending Job for the given payload and owner.
// It generates a new UUID and validates the payload against its job type.
func NewJob(payload JobPayload, userID uuid.UUID, priority JobPriority) (*Job, error) {
	if payload == nil {
		return nil, ErrNilJobPayload
	}

	job := &Job{
		ID:          uuid.New(),
		Type:        payload.JobType(),
		Payload:     payload,
		Priority:    priority,
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		Progress:    0,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}

	if !isValidJobType(j.Type) {
		return ErrInvalidJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Payload == nil {
		return ErrNilJobPayload
	}

	if j.Payload.JobType() != j.Type {
		return ErrPayloadTypeMismatch
	}

	return j.Payload.Validate()
}

// IsTerminal reports whether the job has reached a state that permits no
// further transitions.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the status machine permits moving from s to
// next. The allowed edges are:
//
//	pending    -> processing | cancelled
//	processing -> completed | failed | retry
//	retry      -> pending | cancelled
//
// Terminal states permit no outgoing edges.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusRetry
	case JobStatusRetry:
		return next == JobStatusPending || next == JobStatusCancelled
	default:
		return false
	}
}

// IsCancellable reports whether a cancel request may succeed against this
// status. Jobs already processing run to completion; cancellation is
// cooperative, never preemptive.
func (s JobStatus) IsCancellable() bool {
	return s == JobStatusPending || s == JobStatusRetry
}

func isValidJobType(t JobType) bool {
	switch t {
	case JobTypeOptimization, JobTypeClassification, JobTypeQualityAssessment,
		JobTypeDeduplication, JobTypeSimilarityScoring, JobTypeBatchImport,
		JobTypeEmbedding:
		return true
	default:
		return false
	}
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted,
		JobStatusFailed, JobStatusRetry, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the human-readable name of the priority.
func (p JobPriority) String() string {
	switch p {
	case JobPriorityLow:
		return "low"
	case JobPriorityNormal:
		return "normal"
	case JobPriorityHigh:
		return "high"
	case JobPriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// ParseJobPriority converts a priority name to a JobPriority.
// Unknown names fall back to JobPriorityNormal.
func ParseJobPriority(name string) JobPriority {
	switch name {
	case "low":
		return JobPriorityLow
	case "high":
		return JobPriorityHigh
	case "urgent":
		return JobPriorityUrgent
	default:
		return JobPriorityNormal
	}
}
