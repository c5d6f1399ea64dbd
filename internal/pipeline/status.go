package pipeline

import (
	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// JobSummary is the slim job view Status returns for recent jobs.
type JobSummary struct {
	ID       uuid.UUID        `json:"id"`
	Type     domain.JobType   `json:"type"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Error    string           `json:"error,omitempty"`
}

// Status summarizes a user's recent processing activity: counts partitioned
// by status and by job type, plus the most recent jobs themselves. Jobs
// waiting out a retry backoff count as pending; they will run again without
// caller action.
type Status struct {
	Total      int                    `json:"total"`
	Pending    int                    `json:"pending"`
	Processing int                    `json:"processing"`
	Completed  int                    `json:"completed"`
	Failed     int                    `json:"failed"`
	Cancelled  int                    `json:"cancelled"`
	ByType     map[domain.JobType]int `json:"by_type"`
	RecentJobs []JobSummary           `json:"recent_jobs"`
}

// UserStatus reports the user's processing status over their most recent
// jobs.
func (p *Pipeline) UserStatus(userID uuid.UUID) Status {
	jobs := p.queue.GetUserJobs(userID, recentJobsLimit)

	status := Status{
		Total:  len(jobs),
		ByType: make(map[domain.JobType]int),
	}

	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusPending, domain.JobStatusRetry:
			status.Pending++
		case domain.JobStatusProcessing:
			status.Processing++
		case domain.JobStatusCompleted:
			status.Completed++
		case domain.JobStatusFailed:
			status.Failed++
		case domain.JobStatusCancelled:
			status.Cancelled++
		}
		status.ByType[j.Type]++
	}

	for _, j := range jobs {
		if len(status.RecentJobs) == 10 {
			break
		}
		status.RecentJobs = append(status.RecentJobs, JobSummary{
			ID:       j.ID,
			Type:     j.Type,
			Status:   j.Status,
			Progress: j.Progress,
			Error:    j.Error,
		})
	}

	return status
}
