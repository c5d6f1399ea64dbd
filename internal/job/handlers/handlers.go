package handlers

import (
	"fmt"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// classifyProviderError maps an AI boundary failure onto the worker pool's
// retry contract: non-transient provider errors become permanent failures.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if !ai.IsTransient(err) {
		return fmt.Errorf("%w: %w", job.ErrPermanent, err)
	}
	return err
}

// payloadError reports a payload that does not match the handler's job
// type. This is a bug (enqueue-time validation should prevent it), so the
// job fails permanently rather than burning retries.
func payloadError(j *domain.Job, want domain.JobType) error {
	return fmt.Errorf("%w: job %s carries %T, want %s payload",
		job.ErrPermanent, j.ID, j.Payload, want)
}
