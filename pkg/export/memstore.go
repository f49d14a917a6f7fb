package export

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process JobStore. It backs tests and single-node
// deployments without Postgres, and enforces the same one-shot terminal
// transition rules as the SQL store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) GetForUser(ctx context.Context, userID, id string) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Job, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Job
	for _, job := range s.jobs {
		if job.UserID == userID {
			cp := *job
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) CountActive(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if job.UserID == userID && (job.Status == StatusQueued || job.Status == StatusRunning) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusQueued {
		return ErrJobNotFound
	}
	job.Status = StatusRunning
	job.StartedAt = &at
	return nil
}

func (s *MemoryStore) MarkDone(ctx context.Context, id string, dr DoneResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusRunning {
		return ErrJobNotFound
	}
	job.Status = StatusDone
	job.RowCount = dr.RowCount
	job.FilePath = dr.FilePath
	job.FileHash = dr.FileHash
	report := dr.Report
	job.ValidationReport = &report
	job.CompletedAt = &at
	return nil
}

func (s *MemoryStore) MarkError(ctx context.Context, id string, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return ErrJobNotFound
	}
	job.Status = StatusError
	job.ErrorMessage = message
	job.CompletedAt = &at
	return nil
}
