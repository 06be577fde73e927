package generate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/knowpipe/knowpipe/internal/model"
	"github.com/knowpipe/knowpipe/internal/store"
)

type fakeRepo struct {
	latest    map[string]*model.Artifact
	inserted  []*model.Artifact
	summaries map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{latest: map[string]*model.Artifact{}, summaries: map[string]string{}}
}

func (f *fakeRepo) InsertArtifact(_ context.Context, a model.Artifact) error {
	f.inserted = append(f.inserted, &a)
	f.latest[a.SourceID+"/"+a.Kind] = &a
	return nil
}

func (f *fakeRepo) LatestArtifact(_ context.Context, sourceID, kind string) (*model.Artifact, error) {
	if a, ok := f.latest[sourceID+"/"+kind]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpdateSourceSummary(_ context.Context, id string, summary *string) error {
	if summary == nil {
		delete(f.summaries, id)
	} else {
		f.summaries[id] = *summary
	}
	return nil
}

type fakeModel struct {
	response string
	calls    int
}

func (f *fakeModel) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.response, nil
}

func testSource() *model.Source {
	body := "Extracted text about a topic, long enough to prompt from."
	s := model.NewSource("src-1", "proj-1", model.CategoryWeb, "https://example.com/a", "Example Page")
	s.Body = &body
	return &s
}

func TestGetOrGenerateReturnsCached(t *testing.T) {
	repo := newFakeRepo()
	cached := model.NewArtifact("a-1", "src-1", "proj-1", model.ArtifactQuiz, "Quiz: Example Page", `{"questions":[]}`)
	repo.latest["src-1/quiz"] = &cached
	mc := &fakeModel{}
	c := NewCache(repo, mc)

	got, err := c.GetOrGenerate(context.Background(), testSource(), model.ArtifactQuiz, "", false)
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if got.ID != "a-1" {
		t.Errorf("got artifact %s, want cached a-1", got.ID)
	}
	if mc.calls != 0 {
		t.Errorf("model calls = %d, want 0 for a cache hit", mc.calls)
	}
}

func TestGetOrGenerateForceCreatesNewRow(t *testing.T) {
	repo := newFakeRepo()
	prior := model.NewArtifact("a-1", "src-1", "proj-1", model.ArtifactQuiz, "Quiz: Example Page", `{"questions":[]}`)
	repo.latest["src-1/quiz"] = &prior
	mc := &fakeModel{response: `{"questions":[{"question":"Q?","options":["a","b","c","d"],"correct_answer_index":2,"explanation":"because"}]}`}
	c := NewCache(repo, mc)

	got, err := c.GetOrGenerate(context.Background(), testSource(), model.ArtifactQuiz, "", true)
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if got.ID == "a-1" {
		t.Error("force should generate a new artifact, not return the cached one")
	}
	if mc.calls != 1 {
		t.Errorf("model calls = %d, want 1", mc.calls)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d rows, want 1", len(repo.inserted))
	}
	var p QuizPayload
	if err := json.Unmarshal([]byte(got.Payload), &p); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if len(p.Questions) != 1 || p.Questions[0].CorrectAnswerIndex != 2 {
		t.Errorf("payload = %+v, want the generated question", p)
	}
}

func TestGetOrGenerateMalformedQuiz(t *testing.T) {
	repo := newFakeRepo()
	mc := &fakeModel{response: "Sure! Here are some questions for you."}
	c := NewCache(repo, mc)

	_, err := c.GetOrGenerate(context.Background(), testSource(), model.ArtifactQuiz, "", false)
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedError", err)
	}
	if len(repo.inserted) != 0 {
		t.Error("malformed response must not be persisted")
	}
}

func TestGetOrGenerateSummaryUpdatesSource(t *testing.T) {
	repo := newFakeRepo()
	mc := &fakeModel{response: "A clear three-point summary."}
	c := NewCache(repo, mc)

	got, err := c.GetOrGenerate(context.Background(), testSource(), model.ArtifactSummary, "concise", false)
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if repo.summaries["src-1"] != "A clear three-point summary." {
		t.Errorf("source summary = %q, want the generated text", repo.summaries["src-1"])
	}
	var p SummaryPayload
	if err := json.Unmarshal([]byte(got.Payload), &p); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if p.Style != "concise" {
		t.Errorf("payload style = %q, want concise", p.Style)
	}
}

func TestGetOrGenerateNoBody(t *testing.T) {
	repo := newFakeRepo()
	c := NewCache(repo, &fakeModel{})
	src := model.NewSource("src-2", "proj-1", model.CategoryWeb, "https://example.com/b", "Empty")

	if _, err := c.GetOrGenerate(context.Background(), &src, model.ArtifactQuiz, "", false); err == nil {
		t.Fatal("expected error for a source without extracted text")
	}
}

func TestGetOrGenerateUnknownKind(t *testing.T) {
	c := NewCache(newFakeRepo(), &fakeModel{})
	if _, err := c.GetOrGenerate(context.Background(), testSource(), "poem", "", false); err == nil {
		t.Fatal("expected error for unknown artifact kind")
	}
}

func TestParseFlashcardsBareArray(t *testing.T) {
	p, err := parseFlashcards(`[{"front":"F","back":"B"}]`)
	if err != nil {
		t.Fatalf("parseFlashcards: %v", err)
	}
	if len(p.Flashcards) != 1 || p.Flashcards[0].Front != "F" {
		t.Errorf("parsed = %+v, want the single card", p)
	}
}

func TestStripCodeFence(t *testing.T) {
	got := stripCodeFence("```mermaid\ngraph TD\n  A --> B\n```")
	if got != "graph TD\n  A --> B" {
		t.Errorf("stripCodeFence = %q", got)
	}
	if stripCodeFence("plain") != "plain" {
		t.Error("unfenced text must pass through unchanged")
	}
}
