package job

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New()
	j.SetSizes([]Size{{Width: 64, Height: 48}})
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = j.Start()
	j.UpdateProgress(50)
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Status != StatusRunning || saved.Progress != 50 {
		t.Errorf("expected RUNNING at 50%%, got %s at %d%%", saved.Status, saved.Progress)
	}
	if len(saved.Renditions) != 1 || saved.Renditions[0].Width != 64 {
		t.Errorf("renditions not stored: %+v", saved.Renditions)
	}

	if _, err := repo.FindByID(ctx, "thumb-missing"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_Isolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := New()
	j.SetSizes([]Size{{Width: 10, Height: 10}})
	_ = repo.Save(ctx, j)

	// Mutating the saved original must not leak into the store.
	j.UpdateRendition(0, Rendition{Index: 0, Width: 10, Height: 10, Status: RenditionFailed})

	found, _ := repo.FindByID(ctx, j.ID)
	if found.Renditions[0].Status != RenditionPending {
		t.Errorf("store shares renditions with caller: %s", found.Renditions[0].Status)
	}

	// Nor may mutating a returned copy.
	found.Progress = 99
	_ = found.Start()
	listed, _ := repo.List(ctx)
	listed[0].Progress = 42

	again, _ := repo.FindByID(ctx, j.ID)
	if again.Progress != 0 || again.Status != StatusInQueue {
		t.Errorf("expected untouched job, got %s at %d%%", again.Status, again.Progress)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected empty list, got %d", len(jobs))
	}

	base := time.Now()
	queued := NewWithID("thumb-c")
	queued.CreatedAt = base.Add(2 * time.Second)
	running := NewWithID("thumb-a")
	running.CreatedAt = base
	_ = running.Start()
	done := NewWithID("thumb-b")
	done.CreatedAt = base.Add(time.Second)
	_ = done.Start()
	_ = done.Complete()
	for _, j := range []*Job{queued, running, done} {
		_ = repo.Save(ctx, j)
	}

	tests := []struct {
		name     string
		statuses []Status
		want     []string
	}{
		{"all oldest first", nil, []string{"thumb-a", "thumb-b", "thumb-c"}},
		{"single status", []Status{StatusCompleted}, []string{"thumb-b"}},
		{"several statuses", []Status{StatusInQueue, StatusRunning}, []string{"thumb-a", "thumb-c"}},
		{"no match", []Status{StatusFailed}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.statuses...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids := jobIDs(got)
			if len(ids) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, ids)
					break
				}
			}
		})
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New()
	_ = repo.Save(ctx, j)

	if err := repo.Delete(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, j.ID); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, j.ID); err != ErrJobNotFound {
		t.Errorf("second delete: expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_DeleteFinishedBefore(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	finished := func(id string, age time.Duration, end func(*Job) error) *Job {
		j := NewWithID(id)
		_ = j.Start()
		_ = end(j)
		j.CompletedAt = now.Add(-age)
		_ = repo.Save(ctx, j)
		return j
	}
	finished("thumb-old-ok", 3*time.Hour, (*Job).Complete)
	finished("thumb-old-failed", 2*time.Hour, func(j *Job) error { return j.Fail("boom") })
	finished("thumb-old-timeout", 2*time.Hour, (*Job).Timeout)
	finished("thumb-recent", time.Minute, (*Job).Complete)

	running := NewWithID("thumb-running")
	running.CreatedAt = now.Add(-5 * time.Hour)
	_ = running.Start()
	_ = repo.Save(ctx, running)
	_ = repo.Save(ctx, NewWithID("thumb-queued"))

	removed, err := repo.DeleteFinishedBefore(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("expected 3 removed jobs, got %v", jobIDs(removed))
	}
	for _, j := range removed {
		if !j.IsTerminal() {
			t.Errorf("removed non-terminal job %s", j.ID)
		}
		if _, err := repo.FindByID(ctx, j.ID); err != ErrJobNotFound {
			t.Errorf("job %s still stored", j.ID)
		}
	}

	left, _ := repo.List(ctx)
	if len(left) != 3 {
		t.Errorf("expected recent, running and queued jobs to remain, got %v", jobIDs(left))
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				j := New()
				_ = repo.Save(ctx, j)
				_, _ = repo.FindByID(ctx, j.ID)
				_, _ = repo.List(ctx, StatusInQueue)
				_, _ = repo.DeleteFinishedBefore(ctx, time.Now())
			}
		}()
	}
	wg.Wait()

	jobs, _ := repo.List(ctx)
	if len(jobs) != 200 {
		t.Errorf("expected 200 jobs, got %d", len(jobs))
	}
}
