package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// Fakes over the ai boundary. Each returns a canned answer or error.

type fakeOptimizer struct {
	result *ai.OptimizationResult
	err    error
}

func (f *fakeOptimizer) Optimize(context.Context, string) (*ai.OptimizationResult, error) {
	return f.result, f.err
}

type fakeClassifier struct {
	result *ai.ClassificationResult
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string) (*ai.ClassificationResult, error) {
	return f.result, f.err
}

type fakeAssessor struct {
	result *ai.QualityResult
	err    error
}

func (f *fakeAssessor) Assess(context.Context, string) (*ai.QualityResult, error) {
	return f.result, f.err
}

// fakeEmbedder maps content strings to fixed vectors so similarity outcomes
// are deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no fixture vector for %q", text)
	}
	return vec, nil
}

// Fakes over the store boundary.

type fakeOptimizationStore struct {
	created []*domain.Optimization
	err     error
}

func (f *fakeOptimizationStore) Create(_ context.Context, opt *domain.Optimization) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, opt)
	return nil
}

func (f *fakeOptimizationStore) CountByItem(context.Context, uuid.UUID) (int, error) {
	return len(f.created), nil
}

type fakeEmbeddingStore struct {
	saved map[uuid.UUID][]float32
	err   error
}

func (f *fakeEmbeddingStore) Save(_ context.Context, itemID uuid.UUID, vector []float32) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[uuid.UUID][]float32)
	}
	f.saved[itemID] = vector
	return nil
}

type fakeItemStore struct {
	created []*domain.Item
	failOn  map[int]error // index into created calls
	calls   int
}

func (f *fakeItemStore) GetByID(context.Context, uuid.UUID) (*domain.Item, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeItemStore) Create(_ context.Context, item *domain.Item) error {
	defer func() { f.calls++ }()
	if err, ok := f.failOn[f.calls]; ok {
		return err
	}
	f.created = append(f.created, item)
	return nil
}

func (f *fakeItemStore) ListByUser(context.Context, uuid.UUID, int) ([]*domain.Item, error) {
	return f.created, nil
}

func (f *fakeItemStore) ListByCollection(context.Context, uuid.UUID, uuid.UUID, int) ([]*domain.Item, error) {
	return f.created, nil
}

func newJob(t *testing.T, payload domain.JobPayload) *domain.Job {
	t.Helper()
	j, err := domain.NewJob(payload, uuid.New(), domain.JobPriorityNormal)
	require.NoError(t, err)
	return j
}

func noProgress(int) {}

func TestOptimizationHandler(t *testing.T) {
	t.Parallel()

	payload := domain.OptimizationPayload{
		ItemID:      uuid.New(),
		Content:     "write me a summary",
		TargetModel: domain.TargetModelOpenAI,
	}

	t.Run("success persists and returns the optimization", func(t *testing.T) {
		t.Parallel()

		optStore := &fakeOptimizationStore{}
		h := NewOptimizationHandler(map[domain.TargetModel]ai.Optimizer{
			domain.TargetModelOpenAI: &fakeOptimizer{result: &ai.OptimizationResult{
				Content:    "optimized",
				Model:      "gpt-4o",
				Confidence: 0.9,
				TokensUsed: 42,
			}},
		}, optStore, nil)

		result, err := h.Handle(context.Background(), newJob(t, payload), noProgress)
		require.NoError(t, err)

		res, ok := result.(OptimizationResult)
		require.True(t, ok)
		assert.Equal(t, payload.ItemID.String(), res.ItemID)
		assert.Equal(t, "optimized", res.Content)
		assert.Equal(t, 42, res.TokensUsed)

		require.Len(t, optStore.created, 1)
		assert.Equal(t, payload.ItemID, optStore.created[0].ItemID)
		assert.Equal(t, domain.TargetModelOpenAI, optStore.created[0].TargetModel)
	})

	t.Run("unregistered model fails permanently", func(t *testing.T) {
		t.Parallel()

		h := NewOptimizationHandler(map[domain.TargetModel]ai.Optimizer{}, &fakeOptimizationStore{}, nil)
		_, err := h.Handle(context.Background(), newJob(t, payload), noProgress)
		assert.ErrorIs(t, err, job.ErrPermanent)
	})

	t.Run("blocked content fails permanently", func(t *testing.T) {
		t.Parallel()

		h := NewOptimizationHandler(map[domain.TargetModel]ai.Optimizer{
			domain.TargetModelOpenAI: &fakeOptimizer{err: ai.ErrContentBlocked},
		}, &fakeOptimizationStore{}, nil)
		_, err := h.Handle(context.Background(), newJob(t, payload), noProgress)
		assert.ErrorIs(t, err, job.ErrPermanent)
		assert.ErrorIs(t, err, ai.ErrContentBlocked)
	})

	t.Run("rate limit stays transient", func(t *testing.T) {
		t.Parallel()

		h := NewOptimizationHandler(map[domain.TargetModel]ai.Optimizer{
			domain.TargetModelOpenAI: &fakeOptimizer{err: ai.ErrRateLimited},
		}, &fakeOptimizationStore{}, nil)
		_, err := h.Handle(context.Background(), newJob(t, payload), noProgress)
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrPermanent)
	})

	t.Run("store failure stays transient", func(t *testing.T) {
		t.Parallel()

		h := NewOptimizationHandler(map[domain.TargetModel]ai.Optimizer{
			domain.TargetModelOpenAI: &fakeOptimizer{result: &ai.OptimizationResult{Content: "x", Confidence: 0.5}},
		}, &fakeOptimizationStore{err: errors.New("connection refused")}, nil)
		_, err := h.Handle(context.Background(), newJob(t, payload), noProgress)
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrPermanent)
	})

	t.Run("mismatched payload fails permanently", func(t *testing.T) {
		t.Parallel()

		h := NewOptimizationHandler(nil, &fakeOptimizationStore{}, nil)
		j := newJob(t, domain.EmbeddingPayload{ItemID: uuid.New(), Content: "x"})
		_, err := h.Handle(context.Background(), j, noProgress)
		assert.ErrorIs(t, err, job.ErrPermanent)
	})
}

func TestClassificationHandler(t *testing.T) {
	t.Parallel()

	h := NewClassificationHandler(&fakeClassifier{result: &ai.ClassificationResult{
		Category:   "coding",
		Tags:       []string{"go", "testing"},
		Confidence: 0.87,
	}}, nil)

	j := newJob(t, domain.ClassificationPayload{ItemID: uuid.New(), Content: "review this diff"})
	result, err := h.Handle(context.Background(), j, noProgress)
	require.NoError(t, err)

	res, ok := result.(ClassificationResult)
	require.True(t, ok)
	assert.Equal(t, "coding", res.Category)
	assert.Equal(t, []string{"go", "testing"}, res.Tags)
}

func TestQualityHandler(t *testing.T) {
	t.Parallel()

	h := NewQualityHandler(&fakeAssessor{result: &ai.QualityResult{
		Overall:     0.72,
		Clarity:     0.8,
		Specificity: 0.6,
		Feedback:    "be more specific about the output format",
	}}, nil)

	j := newJob(t, domain.QualityAssessmentPayload{ItemID: uuid.New(), Content: "do the thing"})
	result, err := h.Handle(context.Background(), j, noProgress)
	require.NoError(t, err)

	res, ok := result.(QualityResult)
	require.True(t, ok)
	assert.InDelta(t, 0.72, res.Overall, 1e-9)
	assert.NotEmpty(t, res.Feedback)
}

func TestDeduplicationHandler(t *testing.T) {
	t.Parallel()

	dupA, dupB, loner := uuid.New(), uuid.New(), uuid.New()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"first":  {1, 0},
		"second": {1, 0},
		"third":  {0, 1},
	}}
	h := NewDeduplicationHandler(embedder, nil)

	j := newJob(t, domain.DeduplicationPayload{
		UserID: uuid.New(),
		Candidates: []domain.DedupCandidate{
			{ItemID: dupA, Content: "first"},
			{ItemID: dupB, Content: "second"},
			{ItemID: loner, Content: "third"},
		},
		Threshold: 0.8,
	})

	result, err := h.Handle(context.Background(), j, noProgress)
	require.NoError(t, err)

	res, ok := result.(DeduplicationResult)
	require.True(t, ok)
	assert.Equal(t, 3, res.Candidates)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, dupA.String(), res.Pairs[0].ItemA)
	assert.Equal(t, dupB.String(), res.Pairs[0].ItemB)
	assert.InDelta(t, 1.0, res.Pairs[0].Similarity, 1e-6)

	require.Len(t, res.Groups, 1)
	assert.ElementsMatch(t, []string{dupA.String(), dupB.String()}, res.Groups[0])
}

func TestDeduplicationHandlerEmbedderFailureIsTransient(t *testing.T) {
	t.Parallel()

	h := NewDeduplicationHandler(&fakeEmbedder{err: ai.ErrUnavailable}, nil)
	j := newJob(t, domain.DeduplicationPayload{
		UserID: uuid.New(),
		Candidates: []domain.DedupCandidate{
			{ItemID: uuid.New(), Content: "a"},
			{ItemID: uuid.New(), Content: "b"},
		},
		Threshold: 0.8,
	})

	_, err := h.Handle(context.Background(), j, noProgress)
	require.Error(t, err)
	assert.NotErrorIs(t, err, job.ErrPermanent)
}

func TestSimilarityHandler(t *testing.T) {
	t.Parallel()

	source, target := uuid.New(), uuid.New()
	h := NewSimilarityHandler(&fakeEmbedder{vectors: map[string][]float32{
		"src": {1, 0},
		"dst": {0, 1},
	}}, nil)

	j := newJob(t, domain.SimilarityScoringPayload{
		SourceItemID:  source,
		TargetItemID:  target,
		SourceContent: "src",
		TargetContent: "dst",
	})

	result, err := h.Handle(context.Background(), j, noProgress)
	require.NoError(t, err)

	res, ok := result.(SimilarityResult)
	require.True(t, ok)
	assert.Equal(t, source.String(), res.SourceItemID)
	assert.Equal(t, target.String(), res.TargetItemID)
	assert.InDelta(t, 0.0, res.Score, 1e-6)
}

func TestEmbeddingHandler(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	embStore := &fakeEmbeddingStore{}
	h := NewEmbeddingHandler(&fakeEmbedder{vectors: map[string][]float32{
		"content": {0.1, 0.2, 0.3},
	}}, embStore, nil)

	j := newJob(t, domain.EmbeddingPayload{ItemID: itemID, Content: "content"})
	result, err := h.Handle(context.Background(), j, noProgress)
	require.NoError(t, err)

	res, ok := result.(EmbeddingResult)
	require.True(t, ok)
	assert.Equal(t, itemID.String(), res.ItemID)
	assert.Equal(t, 3, res.Dimensions)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embStore.saved[itemID])
}

func TestBatchImportHandler(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("continues past failing entries", func(t *testing.T) {
		t.Parallel()

		items := &fakeItemStore{failOn: map[int]error{1: errors.New("duplicate title")}}
		h := NewBatchImportHandler(items, nil)

		j := newJob(t, domain.BatchImportPayload{
			UserID: userID,
			Items: []domain.ImportItem{
				{Kind: domain.ItemKindPrompt, Title: "one", Content: "c1"},
				{Kind: domain.ItemKindPrompt, Title: "two", Content: "c2"},
				{Kind: domain.ItemKindRule, Title: "three", Content: "c3"},
			},
		})

		result, err := h.Handle(context.Background(), j, noProgress)
		require.NoError(t, err)

		res, ok := result.(BatchImportResult)
		require.True(t, ok)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Failed)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, 1, res.Failures[0].Index)
		assert.Len(t, res.ItemIDs, 2)
	})

	t.Run("fails when nothing was created", func(t *testing.T) {
		t.Parallel()

		items := &fakeItemStore{failOn: map[int]error{0: errors.New("db down")}}
		h := NewBatchImportHandler(items, nil)

		j := newJob(t, domain.BatchImportPayload{
			UserID: userID,
			Items:  []domain.ImportItem{{Kind: domain.ItemKindPrompt, Title: "one", Content: "c1"}},
		})

		_, err := h.Handle(context.Background(), j, noProgress)
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrPermanent)
	})
}
