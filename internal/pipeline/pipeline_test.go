package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// memItemStore is an in-memory ItemStore fixture.
type memItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Item
}

func newMemItemStore() *memItemStore {
	return &memItemStore{items: make(map[uuid.UUID]*domain.Item)}
}

func (s *memItemStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *memItemStore) Create(_ context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *memItemStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Item
	for _, item := range s.items {
		if item.UserID == userID {
			copied := *item
			out = append(out, &copied)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memItemStore) ListByCollection(_ context.Context, userID, collectionID uuid.UUID, limit int) ([]*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Item
	for _, item := range s.items {
		if item.UserID == userID && item.CollectionID != nil && *item.CollectionID == collectionID {
			copied := *item
			out = append(out, &copied)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memAuditStore records appended entries.
type memAuditStore struct {
	mu      sync.Mutex
	entries []store.AuditEntry
}

func (s *memAuditStore) Append(_ context.Context, entry store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAuditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	pipeline *Pipeline
	queue    *job.Queue
	items    *memItemStore
	audit    *memAuditStore
	userID   uuid.UUID
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := job.NewQueue(job.QueueConfig{}, logger)
	t.Cleanup(q.Close)

	items := newMemItemStore()
	audit := &memAuditStore{}

	return &fixture{
		pipeline: New(q, items, audit, cfg, logger),
		queue:    q,
		items:    items,
		audit:    audit,
		userID:   uuid.New(),
	}
}

func (f *fixture) addItem(t *testing.T, optimizations int) *domain.Item {
	t.Helper()
	item, err := domain.NewItem(f.userID, domain.ItemKindPrompt, "title", "some prompt content")
	require.NoError(t, err)
	item.OptimizationCount = optimizations
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func jobTypes(t *testing.T, q *job.Queue, ids []uuid.UUID) []domain.JobType {
	t.Helper()
	out := make([]domain.JobType, 0, len(ids))
	for _, id := range ids {
		j, err := q.GetJob(id)
		require.NoError(t, err)
		out = append(out, j.Type)
	}
	return out
}

func TestProcessItemSchedulesPolicyJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	item := f.addItem(t, 0)

	jobIDs, err := f.pipeline.ProcessItem(context.Background(), item.ID, f.userID, ProcessOptions{})
	require.NoError(t, err)

	// Quality assessment, classification, one optimization per model.
	types := jobTypes(t, f.queue, jobIDs)
	assert.ElementsMatch(t, []domain.JobType{
		domain.JobTypeQualityAssessment,
		domain.JobTypeClassification,
		domain.JobTypeOptimization,
		domain.JobTypeOptimization,
		domain.JobTypeOptimization,
	}, types)

	assert.Contains(t, f.audit.actions(), "pipeline.process_item")
}

func TestProcessItemHonorsDisabledPolicy(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnableAutoClassification = false
	cfg.EnableQualityAssessment = false

	f := newFixture(t, cfg)
	item := f.addItem(t, 0)

	jobIDs, err := f.pipeline.ProcessItem(context.Background(), item.ID, f.userID, ProcessOptions{})
	require.NoError(t, err)

	for _, jt := range jobTypes(t, f.queue, jobIDs) {
		assert.Equal(t, domain.JobTypeOptimization, jt)
	}
	assert.Len(t, jobIDs, len(domain.DefaultTargetModels()))
}

func TestProcessItemNarrowsTargetModels(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnableAutoClassification = false
	cfg.EnableQualityAssessment = false

	f := newFixture(t, cfg)
	item := f.addItem(t, 0)

	jobIDs, err := f.pipeline.ProcessItem(context.Background(), item.ID, f.userID, ProcessOptions{
		TargetModels: []domain.TargetModel{domain.TargetModelGemini},
	})
	require.NoError(t, err)
	require.Len(t, jobIDs, 1)

	j, err := f.queue.GetJob(jobIDs[0])
	require.NoError(t, err)
	payload, ok := j.Payload.(domain.OptimizationPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TargetModelGemini, payload.TargetModel)
}

func TestProcessItemSkipPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	optimized := f.addItem(t, 2)

	t.Run("skips optimized items when asked", func(t *testing.T) {
		jobIDs, err := f.pipeline.ProcessItem(context.Background(), optimized.ID, f.userID, ProcessOptions{
			SkipIfOptimized: true,
		})
		require.NoError(t, err)
		assert.Empty(t, jobIDs)
	})

	t.Run("force overrides the skip", func(t *testing.T) {
		jobIDs, err := f.pipeline.ProcessItem(context.Background(), optimized.ID, f.userID, ProcessOptions{
			SkipIfOptimized: true,
			ForceReprocess:  true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, jobIDs)
	})
}

func TestAutoProcessNewItemSchedulesDefaultSet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	item := f.addItem(t, 0)

	jobIDs, err := f.pipeline.AutoProcessNewItem(context.Background(), item.ID, f.userID)
	require.NoError(t, err)

	types := jobTypes(t, f.queue, jobIDs)
	assert.ElementsMatch(t, []domain.JobType{
		domain.JobTypeQualityAssessment,
		domain.JobTypeClassification,
		domain.JobTypeOptimization,
		domain.JobTypeOptimization,
		domain.JobTypeOptimization,
	}, types)
}

func TestProcessItemUnknownItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	_, err := f.pipeline.ProcessItem(context.Background(), uuid.New(), f.userID, ProcessOptions{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateConfigMergesPartially(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())

	disabled := false
	size := 25
	got := f.pipeline.UpdateConfig(ConfigUpdate{
		EnableAutoOptimization: &disabled,
		BatchSize:              &size,
	})

	assert.False(t, got.EnableAutoOptimization)
	assert.Equal(t, 25, got.BatchSize)
	// Untouched fields keep their prior values.
	assert.True(t, got.EnableAutoClassification)
	assert.Equal(t, domain.JobPriorityNormal, got.Priority)

	assert.Equal(t, got, f.pipeline.Config())
}

func TestProcessBatchContinuesOnError(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnableAutoClassification = false
	cfg.EnableQualityAssessment = false

	f := newFixture(t, cfg)

	itemIDs := make([]uuid.UUID, 0, 25)
	for i := 0; i < 25; i++ {
		if i == 12 {
			// Unknown item in the middle of the batch.
			itemIDs = append(itemIDs, uuid.New())
			continue
		}
		itemIDs = append(itemIDs, f.addItem(t, 0).ID)
	}

	result := f.pipeline.ProcessBatch(context.Background(), itemIDs, f.userID, ProcessOptions{})

	assert.Equal(t, 25, result.Attempted)
	assert.Equal(t, 24, result.Scheduled)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, itemIDs[12], result.Errors[0].ItemID)
	assert.Len(t, result.JobIDs, 24*len(domain.DefaultTargetModels()))
}

func TestProcessBatchCountsSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	fresh := f.addItem(t, 0)
	optimized := f.addItem(t, 1)

	result := f.pipeline.ProcessBatch(context.Background(),
		[]uuid.UUID{fresh.ID, optimized.ID}, f.userID,
		ProcessOptions{SkipIfOptimized: true})

	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Scheduled)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestProcessCollection(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnableAutoClassification = false
	cfg.EnableQualityAssessment = false

	f := newFixture(t, cfg)
	collectionID := uuid.New()
	for i := 0; i < 3; i++ {
		item := f.addItem(t, 0)
		item.CollectionID = &collectionID
	}
	f.addItem(t, 0) // outside the collection

	result, err := f.pipeline.ProcessCollection(context.Background(), collectionID, f.userID, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Scheduled)
	assert.Empty(t, result.Errors)
}

func TestStartBatchRunsInBackground(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	itemIDs := []uuid.UUID{f.addItem(t, 0).ID, f.addItem(t, 0).ID}

	handle := f.pipeline.StartBatch(itemIDs, f.userID, ProcessOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scheduled)
}

func TestRunDuplicateDetection(t *testing.T) {
	t.Parallel()

	t.Run("schedules one job over all candidates", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, DefaultConfig())
		for i := 0; i < 3; i++ {
			f.addItem(t, 0)
		}

		j, err := f.pipeline.RunDuplicateDetection(context.Background(), f.userID, nil)
		require.NoError(t, err)
		require.NotNil(t, j)

		payload, ok := j.Payload.(domain.DeduplicationPayload)
		require.True(t, ok)
		assert.Len(t, payload.Candidates, 3)
		assert.InDelta(t, DuplicateThreshold, payload.Threshold, 1e-9)
	})

	t.Run("needs at least two candidates", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, DefaultConfig())
		f.addItem(t, 0)

		j, err := f.pipeline.RunDuplicateDetection(context.Background(), f.userID, nil)
		require.NoError(t, err)
		assert.Nil(t, j)
	})

	t.Run("respects the policy flag", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.EnableDuplicateDetection = false
		f := newFixture(t, cfg)
		for i := 0; i < 3; i++ {
			f.addItem(t, 0)
		}

		j, err := f.pipeline.RunDuplicateDetection(context.Background(), f.userID, nil)
		require.NoError(t, err)
		assert.Nil(t, j)
	})

	t.Run("narrows to a collection", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, DefaultConfig())
		collectionID := uuid.New()
		for i := 0; i < 2; i++ {
			item := f.addItem(t, 0)
			item.CollectionID = &collectionID
		}
		f.addItem(t, 0) // outside the collection

		j, err := f.pipeline.RunDuplicateDetection(context.Background(), f.userID, &collectionID)
		require.NoError(t, err)
		require.NotNil(t, j)

		payload, ok := j.Payload.(domain.DeduplicationPayload)
		require.True(t, ok)
		assert.Len(t, payload.Candidates, 2)
	})
}

func TestRunSimilarityScoring(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	source := f.addItem(t, 0)
	targetA := f.addItem(t, 0)
	targetB := f.addItem(t, 0)

	jobIDs, err := f.pipeline.RunSimilarityScoring(context.Background(),
		source.ID, []uuid.UUID{targetA.ID, targetB.ID}, f.userID)
	require.NoError(t, err)
	require.Len(t, jobIDs, 2, "one job per (source, target) pair")

	for _, id := range jobIDs {
		j, err := f.queue.GetJob(id)
		require.NoError(t, err)
		payload, ok := j.Payload.(domain.SimilarityScoringPayload)
		require.True(t, ok)
		assert.Equal(t, source.ID, payload.SourceItemID)
		assert.Equal(t, source.Content, payload.SourceContent)
	}
}

func TestRunSimilarityScoringMissingTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	source := f.addItem(t, 0)

	_, err := f.pipeline.RunSimilarityScoring(context.Background(),
		source.ID, []uuid.UUID{uuid.New()}, f.userID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Nothing was scheduled.
	assert.Empty(t, f.queue.GetUserJobs(f.userID, 0))
}

func TestUserStatus(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnableAutoClassification = false
	cfg.EnableQualityAssessment = false

	f := newFixture(t, cfg)
	item := f.addItem(t, 0)

	jobIDs, err := f.pipeline.ProcessItem(context.Background(), item.ID, f.userID, ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, jobIDs, 3)

	// One job claimed, one cancelled, one left pending.
	claimed, ok := f.queue.Claim(domain.JobTypeOptimization)
	require.True(t, ok)
	require.NoError(t, f.queue.Complete(claimed.ID, nil))

	var cancelled bool
	for _, id := range jobIDs {
		if id == claimed.ID {
			continue
		}
		cancelled, err = f.queue.Cancel(id)
		require.NoError(t, err)
		require.True(t, cancelled)
		break
	}

	status := f.pipeline.UserStatus(f.userID)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Cancelled)
	assert.Equal(t, 0, status.Processing)
	assert.Equal(t, 3, status.ByType[domain.JobTypeOptimization])
	assert.Len(t, status.RecentJobs, 3)

	sum := status.Pending + status.Processing + status.Completed + status.Failed + status.Cancelled
	assert.Equal(t, status.Total, sum)
}
