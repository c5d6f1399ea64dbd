package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// BatchError records one item a batch run could not schedule.
type BatchError struct {
	ItemID uuid.UUID `json:"item_id"`
	Error  string    `json:"error"`
}

// BatchResult aggregates one batch run. Per-item failures are collected here
// rather than aborting the run.
type BatchResult struct {
	Attempted int          `json:"attempted"`
	Scheduled int          `json:"scheduled"`
	Skipped   int          `json:"skipped"`
	JobIDs    []uuid.UUID  `json:"job_ids"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// ProcessBatch runs ProcessItem over every ID, chunked by the configured
// batch size, and aggregates the outcome. An item that fails to schedule is
// recorded in the result and the run continues with the next item.
func (p *Pipeline) ProcessBatch(ctx context.Context, itemIDs []uuid.UUID, userID uuid.UUID, opts ProcessOptions) *BatchResult {
	result := &BatchResult{Attempted: len(itemIDs)}
	batchSize := p.Config().BatchSize

	for start := 0; start < len(itemIDs); start += batchSize {
		end := start + batchSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}

		for _, itemID := range itemIDs[start:end] {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, BatchError{ItemID: itemID, Error: ctx.Err().Error()})
				continue
			}

			jobIDs, err := p.ProcessItem(ctx, itemID, userID, opts)
			switch {
			case err != nil:
				result.Errors = append(result.Errors, BatchError{ItemID: itemID, Error: err.Error()})
			case len(jobIDs) == 0:
				result.Skipped++
			default:
				result.Scheduled++
				result.JobIDs = append(result.JobIDs, jobIDs...)
			}
		}

		p.logger.Debug("batch chunk processed",
			"user_id", userID,
			"done", end,
			"total", len(itemIDs))
	}

	p.recordAudit(ctx, userID, "pipeline.process_batch", map[string]any{
		"attempted": result.Attempted,
		"scheduled": result.Scheduled,
		"skipped":   result.Skipped,
		"errors":    len(result.Errors),
	})

	return result
}

// ProcessCollection runs a batch over every item in one of the user's
// collections.
func (p *Pipeline) ProcessCollection(ctx context.Context, collectionID, userID uuid.UUID, opts ProcessOptions) (*BatchResult, error) {
	items, err := p.items.ListByCollection(ctx, userID, collectionID, 0)
	if err != nil {
		return nil, fmt.Errorf("list collection %s items: %w", collectionID, err)
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return p.ProcessBatch(ctx, ids, userID, opts), nil
}

// BatchHandle tracks one background batch run.
type BatchHandle struct {
	done   chan struct{}
	result *BatchResult
}

// Wait blocks until the run finishes or the context is done.
func (h *BatchHandle) Wait(ctx context.Context) (*BatchResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, nil
	}
}

// StartBatch runs ProcessBatch in the background and returns a handle the
// caller can wait on. The run is detached from the caller's request context
// so an early client disconnect does not abandon it.
func (p *Pipeline) StartBatch(itemIDs []uuid.UUID, userID uuid.UUID, opts ProcessOptions) *BatchHandle {
	handle := &BatchHandle{done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		handle.result = p.ProcessBatch(context.Background(), itemIDs, userID, opts)

		level := slog.LevelInfo
		if len(handle.result.Errors) > 0 {
			level = slog.LevelWarn
		}
		p.logger.Log(context.Background(), level, "background batch finished",
			"user_id", userID,
			"attempted", handle.result.Attempted,
			"scheduled", handle.result.Scheduled,
			"skipped", handle.result.Skipped,
			"errors", len(handle.result.Errors))
	}()

	return handle
}
