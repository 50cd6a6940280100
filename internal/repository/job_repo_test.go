package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

func createTestJob(t *testing.T, repos *Repositories, id string, createdAt time.Time) *models.AnalysisJob {
	t.Helper()
	newTestAnalysis(t, repos, "analysis-"+id, "user_1", models.AnalysisStatusPending, createdAt)
	job := &models.AnalysisJob{
		ID:          id,
		AnalysisID:  "analysis-" + id,
		UserID:      "user_1",
		Status:      models.JobStatusPending,
		RequestJSON: `{"company":{"name":"Acme"}}`,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := repos.Job.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job
}

func TestJobRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	job := createTestJob(t, repos, "j1", time.Now())

	got, err := repos.Job.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil || got.AnalysisID != "analysis-j1" || got.Status != models.JobStatusPending {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.RequestJSON != job.RequestJSON {
		t.Errorf("RequestJSON = %q, want %q", got.RequestJSON, job.RequestJSON)
	}

	byAnalysis, err := repos.Job.GetByAnalysisID(ctx, "analysis-j1")
	if err != nil || byAnalysis == nil || byAnalysis.ID != "j1" {
		t.Errorf("GetByAnalysisID() = %+v, %v", byAnalysis, err)
	}

	missing, err := repos.Job.GetByID(ctx, "nonexistent")
	if err != nil || missing != nil {
		t.Errorf("GetByID(nonexistent) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestJobRepository_ClaimPending(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	createTestJob(t, repos, "second", base.Add(time.Minute))
	createTestJob(t, repos, "first", base)

	job, err := repos.Job.ClaimPending(ctx, "worker-a")
	if err != nil {
		t.Fatalf("ClaimPending() error = %v", err)
	}
	if job == nil || job.ID != "first" {
		t.Fatalf("ClaimPending() = %+v, want oldest job", job)
	}
	if job.Status != models.JobStatusRunning || job.WorkerID != "worker-a" || job.Attempts != 1 || job.ClaimedAt == nil {
		t.Errorf("claimed job = %+v", job)
	}

	job, _ = repos.Job.ClaimPending(ctx, "worker-b")
	if job == nil || job.ID != "second" {
		t.Fatalf("second ClaimPending() = %+v", job)
	}

	job, err = repos.Job.ClaimPending(ctx, "worker-a")
	if err != nil {
		t.Fatalf("ClaimPending() on empty queue error = %v", err)
	}
	if job != nil {
		t.Errorf("ClaimPending() on empty queue = %+v, want nil", job)
	}
}

func TestJobRepository_ClaimPendingConcurrent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		createTestJob(t, repos, id, time.Now())
	}

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := repos.Job.ClaimPending(ctx, "w")
				if err != nil {
					t.Errorf("ClaimPending() error = %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 4 {
		t.Errorf("claimed %d distinct jobs, want 4", len(claimed))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("job %s claimed %d times", id, n)
		}
	}
}

func TestJobRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	job := createTestJob(t, repos, "j1", time.Now())

	done := time.Now().UTC().Truncate(time.Second)
	job.Status = models.JobStatusFailed
	job.ErrorMessage = "gateway unavailable"
	job.CompletedAt = &done
	if err := repos.Job.Update(ctx, job); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repos.Job.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusFailed || got.ErrorMessage != "gateway unavailable" {
		t.Errorf("Update() stored %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
	}
}

func TestJobRepository_MarkStaleRunningJobsFailed(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	stale := createTestJob(t, repos, "stale", time.Now())
	fresh := createTestJob(t, repos, "fresh", time.Now())

	claimedLongAgo := time.Now().Add(-2 * time.Hour)
	stale.Status = models.JobStatusRunning
	stale.ClaimedAt = &claimedLongAgo
	_ = repos.Job.Update(ctx, stale)

	justNow := time.Now()
	fresh.Status = models.JobStatusRunning
	fresh.ClaimedAt = &justNow
	_ = repos.Job.Update(ctx, fresh)

	n, err := repos.Job.MarkStaleRunningJobsFailed(ctx, time.Hour)
	if err != nil {
		t.Fatalf("MarkStaleRunningJobsFailed() error = %v", err)
	}
	if n != 1 {
		t.Errorf("MarkStaleRunningJobsFailed() = %d, want 1", n)
	}
	got, _ := repos.Job.GetByID(ctx, "stale")
	if got.Status != models.JobStatusFailed || got.ErrorMessage == "" {
		t.Errorf("stale job = %+v", got)
	}
	got, _ = repos.Job.GetByID(ctx, "fresh")
	if got.Status != models.JobStatusRunning {
		t.Errorf("fresh job status = %s, want running", got.Status)
	}
}
