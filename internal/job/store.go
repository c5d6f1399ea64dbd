package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// Store holds every job the queue has seen, keyed by ID. It is the only
// shared mutable resource of the processing core; all access goes through
// its mutex so that two workers never act on the same pending job.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

// insert adds a new job record. The caller relinquishes ownership of j.
func (s *Store) insert(j *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// get returns a copy of the job with the given ID.
func (s *Store) get(id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(j), nil
}

// mutate runs fn against the live job record under the store lock.
// fn observes and modifies the record atomically with respect to every
// other store operation, which is what makes claim and cancel races safe.
func (s *Store) mutate(id uuid.UUID, fn func(*domain.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	return fn(j)
}

// claimNext atomically hands the best eligible pending job of the given type
// to the caller, transitioning it to processing. Eligibility order is
// highest priority first, then oldest CreatedAt (FIFO within a priority).
// Returns false when no pending job of the type exists.
func (s *Store) claimNext(t domain.JobType, now time.Time) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *domain.Job
	for _, j := range s.jobs {
		if j.Type != t || j.Status != domain.JobStatusPending {
			continue
		}
		if best == nil || j.Priority > best.Priority ||
			(j.Priority == best.Priority && j.CreatedAt.Before(best.CreatedAt)) {
			best = j
		}
	}

	if best == nil {
		return nil, false
	}

	best.Status = domain.JobStatusProcessing
	started := now
	best.StartedAt = &started
	return copyJob(best), true
}

// listByUser returns copies of the user's jobs, most recent first, capped at
// limit when limit > 0.
func (s *Store) listByUser(userID uuid.UUID, limit int) []*domain.Job {
	s.mu.RLock()
	out := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, copyJob(j))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// countByTypeAndStatus aggregates job counts per type and status.
func (s *Store) countByTypeAndStatus() map[domain.JobType]map[domain.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.JobType]map[domain.JobStatus]int)
	for _, j := range s.jobs {
		byStatus, ok := counts[j.Type]
		if !ok {
			byStatus = make(map[domain.JobStatus]int)
			counts[j.Type] = byStatus
		}
		byStatus[j.Status]++
	}
	return counts
}

// copyJob returns a defensive copy so callers never hold a reference into
// the live record. Payload variants are value types and safe to share.
func copyJob(j *domain.Job) *domain.Job {
	c := *j
	if j.StartedAt != nil {
		started := *j.StartedAt
		c.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		c.CompletedAt = &completed
	}
	if j.Result != nil {
		c.Result = append([]byte(nil), j.Result...)
	}
	return &c
}
