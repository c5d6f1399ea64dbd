package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// ImportFailure records one item that could not be created.
type ImportFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchImportResult is the stored result of a batch import job.
type BatchImportResult struct {
	Created  int             `json:"created"`
	Failed   int             `json:"failed"`
	ItemIDs  []string        `json:"item_ids"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// BatchImportHandler creates items from an import payload. Item creation is
// continue-on-error: every entry is attempted and failures are recorded in
// the result rather than aborting the import.
type BatchImportHandler struct {
	items  store.ItemStore
	logger *slog.Logger
}

// NewBatchImportHandler creates the handler.
func NewBatchImportHandler(items store.ItemStore, logger *slog.Logger) *BatchImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchImportHandler{
		items:  items,
		logger: logger.With("handler", domain.JobTypeBatchImport),
	}
}

// Type returns the job type this handler executes.
func (h *BatchImportHandler) Type() domain.JobType { return domain.JobTypeBatchImport }

// Handle runs one import attempt. The whole attempt fails (transient) only
// when not a single item could be created.
func (h *BatchImportHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.BatchImportPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeBatchImport)
	}

	result := BatchImportResult{}
	for i, entry := range payload.Items {
		item, err := domain.NewItem(payload.UserID, entry.Kind, entry.Title, entry.Content)
		if err == nil {
			err = h.items.Create(ctx, item)
		}

		if err != nil {
			h.logger.Warn("import entry failed", "index", i, "error", err)
			result.Failed++
			result.Failures = append(result.Failures, ImportFailure{Index: i, Error: err.Error()})
		} else {
			result.Created++
			result.ItemIDs = append(result.ItemIDs, item.ID.String())
		}

		report((i + 1) * 100 / len(payload.Items))
	}

	if result.Created == 0 {
		return nil, fmt.Errorf("batch import created no items (%d failures)", result.Failed)
	}

	return result, nil
}
