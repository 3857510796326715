package job

import (
	"context"
	"slices"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map. Jobs go in and come out as clones,
// so a caller holding a *Job never races the worker that saves it.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*Job)}
}

func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	c := job.Clone()
	r.mu.Lock()
	r.jobs[c.ID] = c
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, statuses ...Status) ([]*Job, error) {
	r.mu.RLock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if len(statuses) > 0 && !slices.Contains(statuses, j.Status) {
			continue
		}
		out = append(out, j.Clone())
	}
	r.mu.RUnlock()

	sortOldestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time) ([]*Job, error) {
	r.mu.Lock()
	var removed []*Job
	for id, j := range r.jobs {
		if !j.IsTerminal() || j.CompletedAt.IsZero() || !j.CompletedAt.Before(cutoff) {
			continue
		}
		removed = append(removed, j)
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	sortOldestFirst(removed)
	return removed, nil
}

// sortOldestFirst orders by creation time, then ID. IDs are UUIDv7 so the
// tie-break keeps creation order within one clock tick.
func sortOldestFirst(jobs []*Job) {
	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
