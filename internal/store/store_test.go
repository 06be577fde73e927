package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/knowpipe/knowpipe/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func makeProject(t *testing.T, s *Store, id string) model.Project {
	t.Helper()
	p := model.NewProject(id, "Project "+id, "")
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func makeSource(t *testing.T, s *Store, id, projectID, origin string) model.Source {
	t.Helper()
	src := model.NewSource(id, projectID, model.CategoryWeb, origin, "Title "+id)
	if err := s.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	return src
}

func TestCreateAndGetSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	got, err := s.GetSource(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.ID != "s1" || got.ProjectID != "p1" {
		t.Errorf("got %q in project %q", got.ID, got.ProjectID)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Body != nil {
		t.Errorf("Body = %v, want nil before extraction", *got.Body)
	}
}

func TestGetSourceNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSource(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateSourceContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	if err := s.UpdateSourceContent(ctx, "s1", "Real Title", "the text", model.StatusCompleted, nil); err != nil {
		t.Fatalf("UpdateSourceContent: %v", err)
	}

	got, err := s.GetSource(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.Title != "Real Title" || got.Status != model.StatusCompleted {
		t.Errorf("title/status = %q/%q", got.Title, got.Status)
	}
	if got.Body == nil || *got.Body != "the text" {
		t.Errorf("Body = %v, want the extracted text", got.Body)
	}
	if got.LastError != nil {
		t.Errorf("LastError = %v, want nil on success", *got.LastError)
	}
}

func TestUpdateSourceStatusWithError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	errInfo := model.ErrorInfo{FailedStrategy: "static-fetch", Message: "HTTP 500"}.ToJSON()
	if err := s.UpdateSourceStatus(ctx, "s1", model.StatusFailed, &errInfo); err != nil {
		t.Fatalf("UpdateSourceStatus: %v", err)
	}

	got, _ := s.GetSource(ctx, "s1")
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.LastError == nil || *got.LastError != errInfo {
		t.Errorf("LastError = %v, want the error JSON", got.LastError)
	}
}

func TestUpdateSourceSummaryClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	summary := "a short summary"
	if err := s.UpdateSourceSummary(ctx, "s1", &summary); err != nil {
		t.Fatalf("set summary: %v", err)
	}
	got, _ := s.GetSource(ctx, "s1")
	if got.Summary == nil || *got.Summary != summary {
		t.Fatalf("Summary = %v, want set", got.Summary)
	}

	if err := s.UpdateSourceSummary(ctx, "s1", nil); err != nil {
		t.Fatalf("clear summary: %v", err)
	}
	got, _ = s.GetSource(ctx, "s1")
	if got.Summary != nil {
		t.Errorf("Summary = %q, want cleared", *got.Summary)
	}
}

func TestFindSourceByOrigin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeProject(t, s, "p2")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	got, err := s.FindSourceByOrigin(ctx, "p1", "https://example.com/a")
	if err != nil {
		t.Fatalf("FindSourceByOrigin: %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("ID = %q, want s1", got.ID)
	}

	// Same URL in a different project is not a duplicate.
	if _, err := s.FindSourceByOrigin(ctx, "p2", "https://example.com/a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound in another project", err)
	}
}

func TestListSourcesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")
	makeSource(t, s, "s2", "p1", "https://example.com/b")
	if err := s.UpdateSourceStatus(ctx, "s2", model.StatusCompleted, nil); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListSources(ctx, model.SourceFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	done, err := s.ListSources(ctx, model.SourceFilter{ProjectID: "p1", Status: []string{model.StatusCompleted}})
	if err != nil {
		t.Fatalf("ListSources filtered: %v", err)
	}
	if len(done) != 1 || done[0].ID != "s2" {
		t.Errorf("filtered = %+v, want only s2", done)
	}
}

func TestResetStaleProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")
	makeSource(t, s, "s2", "p1", "https://example.com/b")
	if err := s.UpdateSourceStatus(ctx, "s1", model.StatusProcessing, nil); err != nil {
		t.Fatal(err)
	}

	n, err := s.ResetStaleProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStaleProcessing: %v", err)
	}
	if n != 1 {
		t.Errorf("reset %d rows, want 1", n)
	}

	got, _ := s.GetSource(ctx, "s1")
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending after reset", got.Status)
	}
}

func TestLatestArtifactPerKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")

	for _, a := range []model.Artifact{
		model.NewArtifact("a1", "s1", "p1", model.ArtifactQuiz, "Quiz v1", `{"questions":[]}`),
		model.NewArtifact("a2", "s1", "p1", model.ArtifactQuiz, "Quiz v2", `{"questions":[]}`),
		model.NewArtifact("a3", "s1", "p1", model.ArtifactSummary, "Summary", `{"text":"x"}`),
	} {
		if err := s.InsertArtifact(ctx, a); err != nil {
			t.Fatalf("InsertArtifact %s: %v", a.ID, err)
		}
	}

	got, err := s.LatestArtifact(ctx, "s1", model.ArtifactQuiz)
	if err != nil {
		t.Fatalf("LatestArtifact: %v", err)
	}
	if got.ID != "a2" {
		t.Errorf("latest quiz = %q, want a2", got.ID)
	}

	if _, err := s.LatestArtifact(ctx, "s1", model.ArtifactDiagram); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for absent kind", err)
	}

	n, err := s.CountArtifacts(ctx, "s1", model.ArtifactQuiz)
	if err != nil {
		t.Fatalf("CountArtifacts: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestDeleteSourceCascadesArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")
	if err := s.InsertArtifact(ctx, model.NewArtifact("a1", "s1", "p1", model.ArtifactQuiz, "Quiz", "{}")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSource(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if _, err := s.GetSource(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("source still readable after delete: %v", err)
	}
	arts, err := s.ListArtifacts(ctx, "s1")
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(arts) != 0 {
		t.Errorf("artifacts = %d, want 0 after cascade", len(arts))
	}
}

func TestEnsureDefaultProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureDefaultProject(ctx, "gen-1")
	if err != nil {
		t.Fatalf("EnsureDefaultProject: %v", err)
	}
	if first.Title != model.DefaultProjectTitle {
		t.Errorf("Title = %q, want %q", first.Title, model.DefaultProjectTitle)
	}

	// Second call reuses the existing project, ignoring the candidate id.
	second, err := s.EnsureDefaultProject(ctx, "gen-2")
	if err != nil {
		t.Fatalf("EnsureDefaultProject again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second id = %q, want %q", second.ID, first.ID)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeSource(t, s, "s1", "p1", "https://example.com/a")
	if err := s.InsertArtifact(ctx, model.NewArtifact("a1", "s1", "p1", model.ArtifactQuiz, "Quiz", "{}")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := s.GetProject(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("project still readable after delete: %v", err)
	}
	if _, err := s.GetSource(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("source survived project delete: %v", err)
	}
}

func TestListProjectsWithCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	makeProject(t, s, "p1")
	makeProject(t, s, "p2")
	makeSource(t, s, "s1", "p1", "https://example.com/a")
	makeSource(t, s, "s2", "p1", "https://example.com/b")

	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	counts := map[string]int{}
	for _, p := range projects {
		counts[p.ID] = p.SourceCount
	}
	if counts["p1"] != 2 || counts["p2"] != 0 {
		t.Errorf("counts = %v, want p1:2 p2:0", counts)
	}
}
