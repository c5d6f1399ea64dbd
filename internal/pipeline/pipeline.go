// Package pipeline orchestrates item processing: it decides, under a mutable
// policy, which jobs to enqueue for an item or a set of items, and surfaces
// per-user processing status. It never executes jobs itself; execution belongs
// to the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

const (
	// DuplicateThreshold is the cosine similarity above which two items are
	// flagged as duplicates.
	DuplicateThreshold = 0.8

	// maxDedupCandidates bounds one duplicate detection pass. Pairwise
	// comparison is quadratic; beyond this the pass should be split by
	// collection.
	maxDedupCandidates = 1000

	// recentJobsLimit caps the per-user job window Status reports over.
	recentJobsLimit = 100
)

// ProcessOptions customize one processItem call.
type ProcessOptions struct {
	// SkipIfOptimized suppresses scheduling when the item already has at
	// least one optimization.
	SkipIfOptimized bool `json:"skip_if_optimized"`

	// ForceReprocess overrides SkipIfOptimized.
	ForceReprocess bool `json:"force_reprocess"`

	// TargetModels narrows which models optimization jobs are created for.
	// Empty means all supported models.
	TargetModels []domain.TargetModel `json:"target_models,omitempty"`
}

// Pipeline schedules processing jobs according to its current Config.
type Pipeline struct {
	queue  *job.Queue
	items  store.ItemStore
	audit  store.AuditLogStore
	logger *slog.Logger

	mu  sync.RWMutex
	cfg Config
}

// New creates a pipeline over the given queue and stores. A zero BatchSize in
// cfg falls back to the default.
func New(queue *job.Queue, items store.ItemStore, audit store.AuditLogStore, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		queue:  queue,
		items:  items,
		audit:  audit,
		cfg:    cfg,
		logger: logger.With("component", "pipeline"),
	}
}

// Config returns a snapshot of the current policy.
func (p *Pipeline) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// UpdateConfig merges a partial update into the policy and returns the
// resulting config. Concurrent readers always observe either the old or the
// new policy, never a mix.
func (p *Pipeline) UpdateConfig(u ConfigUpdate) Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = u.apply(p.cfg)
	p.logger.Info("pipeline config updated",
		"auto_classification", p.cfg.EnableAutoClassification,
		"auto_optimization", p.cfg.EnableAutoOptimization,
		"duplicate_detection", p.cfg.EnableDuplicateDetection,
		"quality_assessment", p.cfg.EnableQualityAssessment,
		"batch_size", p.cfg.BatchSize,
		"priority", p.cfg.Priority.String())
	return p.cfg
}

// ProcessItem loads the item and enqueues the jobs the current policy calls
// for: quality assessment, classification, and one optimization per target
// model. When the item already has optimizations and opts.SkipIfOptimized is
// set (and ForceReprocess is not), nothing is scheduled. Returns the IDs of
// the created jobs.
func (p *Pipeline) ProcessItem(ctx context.Context, itemID, userID uuid.UUID, opts ProcessOptions) ([]uuid.UUID, error) {
	item, err := p.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", itemID, err)
	}

	if opts.SkipIfOptimized && !opts.ForceReprocess && item.HasOptimizations() {
		p.logger.Debug("item skipped, already optimized",
			"item_id", itemID,
			"optimization_count", item.OptimizationCount)
		return nil, nil
	}

	cfg := p.Config()

	var payloads []domain.JobPayload
	if cfg.EnableQualityAssessment {
		payloads = append(payloads, domain.QualityAssessmentPayload{
			ItemID:  item.ID,
			Content: item.Content,
		})
	}
	if cfg.EnableAutoClassification {
		payloads = append(payloads, domain.ClassificationPayload{
			ItemID:  item.ID,
			Content: item.Content,
		})
	}
	if cfg.EnableAutoOptimization {
		targets := opts.TargetModels
		if len(targets) == 0 {
			targets = domain.DefaultTargetModels()
		}
		for _, model := range targets {
			payloads = append(payloads, domain.OptimizationPayload{
				ItemID:      item.ID,
				Content:     item.Content,
				TargetModel: model,
			})
		}
	}

	jobIDs := make([]uuid.UUID, 0, len(payloads))
	for _, payload := range payloads {
		j, err := p.queue.AddJob(payload, userID, job.EnqueueOptions{Priority: cfg.Priority})
		if err != nil {
			return jobIDs, fmt.Errorf("enqueue %s job for item %s: %w", payload.JobType(), itemID, err)
		}
		jobIDs = append(jobIDs, j.ID)
	}

	p.recordAudit(ctx, userID, "pipeline.process_item", map[string]any{
		"item_id":      itemID,
		"jobs_created": len(jobIDs),
		"forced":       opts.ForceReprocess,
	})

	return jobIDs, nil
}

// AutoProcessNewItem schedules the standard processing set for a freshly
// created item. New items cannot have optimizations yet, so no skip policy
// applies.
func (p *Pipeline) AutoProcessNewItem(ctx context.Context, itemID, userID uuid.UUID) ([]uuid.UUID, error) {
	return p.ProcessItem(ctx, itemID, userID, ProcessOptions{})
}

// RunDuplicateDetection gathers the user's items (optionally narrowed to one
// collection) and enqueues a single deduplication job over them. Returns nil
// without scheduling when detection is disabled or fewer than two candidates
// exist.
func (p *Pipeline) RunDuplicateDetection(ctx context.Context, userID uuid.UUID, collectionID *uuid.UUID) (*domain.Job, error) {
	cfg := p.Config()
	if !cfg.EnableDuplicateDetection {
		p.logger.Debug("duplicate detection disabled, skipping", "user_id", userID)
		return nil, nil
	}

	var (
		items []*domain.Item
		err   error
	)
	if collectionID != nil {
		items, err = p.items.ListByCollection(ctx, userID, *collectionID, maxDedupCandidates)
	} else {
		items, err = p.items.ListByUser(ctx, userID, maxDedupCandidates)
	}
	if err != nil {
		return nil, fmt.Errorf("list dedup candidates: %w", err)
	}

	if len(items) < 2 {
		p.logger.Debug("not enough items for duplicate detection",
			"user_id", userID,
			"count", len(items))
		return nil, nil
	}

	candidates := make([]domain.DedupCandidate, len(items))
	for i, item := range items {
		candidates[i] = domain.DedupCandidate{ItemID: item.ID, Content: item.Content}
	}

	j, err := p.queue.AddJob(domain.DeduplicationPayload{
		UserID:     userID,
		Candidates: candidates,
		Threshold:  DuplicateThreshold,
	}, userID, job.EnqueueOptions{Priority: cfg.Priority})
	if err != nil {
		return nil, fmt.Errorf("enqueue deduplication job: %w", err)
	}

	p.recordAudit(ctx, userID, "pipeline.duplicate_detection", map[string]any{
		"job_id":     j.ID,
		"candidates": len(candidates),
	})

	return j, nil
}

// RunSimilarityScoring enqueues one similarity job per (source, target) pair.
// All items are loaded up front so a missing ID fails the whole call before
// anything is scheduled.
func (p *Pipeline) RunSimilarityScoring(ctx context.Context, sourceID uuid.UUID, targetIDs []uuid.UUID, userID uuid.UUID) ([]uuid.UUID, error) {
	source, err := p.items.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source item %s: %w", sourceID, err)
	}

	targets := make([]*domain.Item, 0, len(targetIDs))
	for _, id := range targetIDs {
		target, err := p.items.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load target item %s: %w", id, err)
		}
		targets = append(targets, target)
	}

	cfg := p.Config()
	jobIDs := make([]uuid.UUID, 0, len(targets))
	for _, target := range targets {
		j, err := p.queue.AddJob(domain.SimilarityScoringPayload{
			SourceItemID:  source.ID,
			TargetItemID:  target.ID,
			SourceContent: source.Content,
			TargetContent: target.Content,
		}, userID, job.EnqueueOptions{Priority: cfg.Priority})
		if err != nil {
			return jobIDs, fmt.Errorf("enqueue similarity job: %w", err)
		}
		jobIDs = append(jobIDs, j.ID)
	}

	p.recordAudit(ctx, userID, "pipeline.similarity_scoring", map[string]any{
		"source_item_id": sourceID,
		"pairs":          len(jobIDs),
	})

	return jobIDs, nil
}

// recordAudit appends an audit entry. Audit failures are logged, never
// propagated; the scheduling work has already happened.
func (p *Pipeline) recordAudit(ctx context.Context, userID uuid.UUID, action string, details map[string]any) {
	if p.audit == nil {
		return
	}
	entry, err := store.NewAuditEntry(userID, action, details)
	if err == nil {
		err = p.audit.Append(ctx, entry)
	}
	if err != nil {
		p.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
