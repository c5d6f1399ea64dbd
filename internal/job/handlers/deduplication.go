package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// DuplicatePair is one candidate pair whose similarity reached the
// threshold.
type DuplicatePair struct {
	ItemA      string  `json:"item_a"`
	ItemB      string  `json:"item_b"`
	Similarity float64 `json:"similarity"`
}

// DeduplicationResult is the stored result of a deduplication job: the
// above-threshold pairs plus the connected groups they form.
type DeduplicationResult struct {
	Candidates int             `json:"candidates"`
	Threshold  float64         `json:"threshold"`
	Pairs      []DuplicatePair `json:"pairs"`
	Groups     [][]string      `json:"groups"`
}

// DeduplicationHandler embeds every candidate and reports the pairs whose
// cosine similarity reaches the payload threshold.
type DeduplicationHandler struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewDeduplicationHandler creates the handler.
func NewDeduplicationHandler(embedder ai.Embedder, logger *slog.Logger) *DeduplicationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeduplicationHandler{
		embedder: embedder,
		logger:   logger.With("handler", domain.JobTypeDeduplication),
	}
}

// Type returns the job type this handler executes.
func (h *DeduplicationHandler) Type() domain.JobType { return domain.JobTypeDeduplication }

// Handle runs one deduplication pass over the payload's candidate set.
func (h *DeduplicationHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.DeduplicationPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeDeduplication)
	}

	n := len(payload.Candidates)
	vectors := make([][]float32, n)

	// Embedding dominates the runtime; scale it to the first 80% of the
	// progress range so pollers see movement per candidate.
	for i, c := range payload.Candidates {
		vec, err := h.embedder.Embed(ctx, c.Content)
		if err != nil {
			return nil, classifyProviderError(fmt.Errorf("embed candidate %s: %w", c.ItemID, err))
		}
		vectors[i] = vec
		report((i + 1) * 80 / n)
	}

	var pairs []DuplicatePair
	parent := make(map[uuid.UUID]uuid.UUID, n)
	for _, c := range payload.Candidates {
		parent[c.ItemID] = c.ItemID
	}

	var find func(uuid.UUID) uuid.UUID
	find = func(id uuid.UUID) uuid.UUID {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	for i := 0; i < n; i++ {
		for k := i + 1; k < n; k++ {
			sim, err := ai.CosineSimilarity(vectors[i], vectors[k])
			if err != nil {
				return nil, fmt.Errorf("%w: compare candidates: %w", job.ErrPermanent, err)
			}
			if sim >= payload.Threshold {
				a, b := payload.Candidates[i].ItemID, payload.Candidates[k].ItemID
				pairs = append(pairs, DuplicatePair{
					ItemA:      a.String(),
					ItemB:      b.String(),
					Similarity: sim,
				})
				parent[find(a)] = find(b)
			}
		}
	}

	report(95)

	// Collect connected groups of size >= 2, preserving candidate order.
	members := make(map[uuid.UUID][]string)
	for _, c := range payload.Candidates {
		root := find(c.ItemID)
		members[root] = append(members[root], c.ItemID.String())
	}
	var groups [][]string
	for _, c := range payload.Candidates {
		root := find(c.ItemID)
		if group, ok := members[root]; ok && len(group) >= 2 {
			groups = append(groups, group)
			delete(members, root)
		}
	}

	h.logger.Debug("deduplication finished",
		"candidates", n,
		"duplicate_pairs", len(pairs),
		"groups", len(groups))

	return DeduplicationResult{
		Candidates: n,
		Threshold:  payload.Threshold,
		Pairs:      pairs,
		Groups:     groups,
	}, nil
}
