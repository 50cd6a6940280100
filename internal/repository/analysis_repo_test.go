package repository

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

func TestAnalysisRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := &models.Analysis{
		ID:           ulid.Make().String(),
		UserID:       "user_123",
		CompanyName:  "Acme",
		URL:          "https://acme.com",
		Status:       models.AnalysisStatusPending,
		UseWebSearch: true,
	}
	if err := repos.Analysis.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.Analysis.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.UserID != "user_123" || got.CompanyName != "Acme" || !got.UseWebSearch {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Result != nil || got.CompletedAt != nil {
		t.Errorf("fresh analysis has result/completed_at: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	repos := setupTestRepos(t)

	got, err := repos.Analysis.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent analysis")
	}
}

func TestAnalysisRepository_UpdateWithResult(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	a := newTestAnalysis(t, repos, ulid.Make().String(), "user_1", models.AnalysisStatusRunning, time.Now())

	now := time.Now().UTC().Truncate(time.Second)
	a.Status = models.AnalysisStatusCompleted
	a.Progress = 100
	a.Stage = models.StageFinalizing
	a.StorageKey = "analyses/" + a.ID + ".json"
	a.CompletedAt = &now
	a.Result = &models.AnalysisResult{
		Company: models.Company{Name: "Acme"},
		Scores:  models.BrandScores{VisibilityScore: 66.7, OverallScore: 58},
		Competitors: []models.CompetitorRanking{
			{Name: "Acme", IsOwn: true, Mentions: 2},
		},
	}
	if err := repos.Analysis.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repos.Analysis.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != models.AnalysisStatusCompleted || got.Progress != 100 || got.Stage != models.StageFinalizing {
		t.Errorf("status/progress/stage = %s/%d/%s", got.Status, got.Progress, got.Stage)
	}
	if got.Result == nil || got.Result.Scores.VisibilityScore != 66.7 || len(got.Result.Competitors) != 1 {
		t.Errorf("Result = %+v", got.Result)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, now)
	}
	if got.StorageKey != a.StorageKey {
		t.Errorf("StorageKey = %q, want %q", got.StorageKey, a.StorageKey)
	}
}

func TestAnalysisRepository_UpdateProgress(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	a := newTestAnalysis(t, repos, "a1", "user_1", models.AnalysisStatusRunning, time.Now())

	if err := repos.Analysis.UpdateProgress(ctx, a.ID, 40, models.StageAnalyzingPrompts); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	// An empty stage keeps the previous one.
	if err := repos.Analysis.UpdateProgress(ctx, a.ID, 55, ""); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	got, _ := repos.Analysis.GetByID(ctx, a.ID)
	if got.Progress != 55 || got.Stage != models.StageAnalyzingPrompts {
		t.Errorf("progress/stage = %d/%s, want 55/%s", got.Progress, got.Stage, models.StageAnalyzingPrompts)
	}
}

func TestAnalysisRepository_GetByUserID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		newTestAnalysis(t, repos, ulid.Make().String(), "user_1", models.AnalysisStatusCompleted, base.Add(time.Duration(i)*time.Minute))
	}
	newTestAnalysis(t, repos, ulid.Make().String(), "user_2", models.AnalysisStatusCompleted, base)

	got, err := repos.Analysis.GetByUserID(ctx, "user_1", 10, 0)
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[0].CreatedAt.After(got[2].CreatedAt) {
		t.Error("analyses are not newest first")
	}

	page, _ := repos.Analysis.GetByUserID(ctx, "user_1", 2, 2)
	if len(page) != 1 {
		t.Errorf("page len = %d, want 1", len(page))
	}
}

func TestAnalysisRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	a := newTestAnalysis(t, repos, "a1", "user_1", models.AnalysisStatusCompleted, time.Now())

	deleted, err := repos.Analysis.Delete(ctx, a.ID, "someone_else")
	if err != nil || deleted {
		t.Errorf("Delete() by other user = %v, %v; want false, nil", deleted, err)
	}
	deleted, err = repos.Analysis.Delete(ctx, a.ID, "user_1")
	if err != nil || !deleted {
		t.Errorf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	if got, _ := repos.Analysis.GetByID(ctx, a.ID); got != nil {
		t.Error("analysis still present after Delete()")
	}
}

func TestAnalysisRepository_DeleteOlderThan(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)

	newTestAnalysis(t, repos, "old-done", "u", models.AnalysisStatusCompleted, old)
	newTestAnalysis(t, repos, "old-failed", "u", models.AnalysisStatusFailed, old)
	newTestAnalysis(t, repos, "old-running", "u", models.AnalysisStatusRunning, old)
	newTestAnalysis(t, repos, "new-done", "u", models.AnalysisStatusCompleted, time.Now())

	job := &models.AnalysisJob{ID: "j1", AnalysisID: "old-done", UserID: "u", Status: models.JobStatusCompleted, RequestJSON: "{}"}
	if err := repos.Job.Create(ctx, job); err != nil {
		t.Fatalf("Job.Create() error = %v", err)
	}

	ids, err := repos.Analysis.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("DeleteOlderThan() = %v, want old-done and old-failed", ids)
	}
	for _, id := range []string{"old-running", "new-done"} {
		if got, _ := repos.Analysis.GetByID(ctx, id); got == nil {
			t.Errorf("%s was deleted", id)
		}
	}
	if got, _ := repos.Job.GetByID(ctx, "j1"); got != nil {
		t.Error("job of purged analysis was not cascaded")
	}

	ids, err = repos.Analysis.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil || len(ids) != 0 {
		t.Errorf("second DeleteOlderThan() = %v, %v", ids, err)
	}
}
