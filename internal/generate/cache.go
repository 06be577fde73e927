package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/knowpipe/knowpipe/internal/model"
	"github.com/knowpipe/knowpipe/internal/store"
)

// Repository is the slice of storage the cache needs.
type Repository interface {
	InsertArtifact(ctx context.Context, a model.Artifact) error
	LatestArtifact(ctx context.Context, sourceID, kind string) (*model.Artifact, error)
	UpdateSourceSummary(ctx context.Context, id string, summary *string) error
}

var _ Repository = (*store.Store)(nil)

// Cache sits in front of the model client and reuses stored artifacts.
// A request without force returns the latest existing artifact of that kind;
// force always generates a new row, keeping the old ones as history.
type Cache struct {
	repo  Repository
	model ModelClient
}

// NewCache creates an artifact cache.
func NewCache(repo Repository, mc ModelClient) *Cache {
	return &Cache{repo: repo, model: mc}
}

// GetOrGenerate returns an artifact of the given kind for the source,
// generating one only when none exists or force is set. style modulates the
// prompt for summary, social and diagram kinds.
//
// Concurrent calls for the same source and kind may each generate; the rows
// are independent and the latest one wins on the next read.
func (c *Cache) GetOrGenerate(ctx context.Context, src *model.Source, kind, style string, force bool) (*model.Artifact, error) {
	if !model.ValidArtifactKind(kind) {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}

	if !force {
		existing, err := c.repo.LatestArtifact(ctx, src.ID, kind)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup artifact: %w", err)
		}
	}

	if !src.HasBody() {
		return nil, fmt.Errorf("source %s has no extracted text", src.ID)
	}
	text := *src.Body

	slog.Info("generating artifact", "source_id", src.ID, "kind", kind, "style", style, "force", force)

	title, payload, err := c.generate(ctx, src, kind, style, text)
	if err != nil {
		return nil, err
	}

	artifact := model.NewArtifact(uuid.NewString(), src.ID, src.ProjectID, kind, title, payload)
	if err := c.repo.InsertArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	if kind == model.ArtifactSummary {
		var sp SummaryPayload
		if json.Unmarshal([]byte(payload), &sp) == nil && sp.Text != "" {
			if err := c.repo.UpdateSourceSummary(ctx, src.ID, &sp.Text); err != nil {
				slog.Warn("persist summary on source failed", "source_id", src.ID, "error", err)
			}
		}
	}
	return &artifact, nil
}

// generate runs the model and shapes the response into an artifact title and
// JSON payload.
func (c *Cache) generate(ctx context.Context, src *model.Source, kind, style, text string) (string, string, error) {
	switch kind {
	case model.ArtifactSummary:
		out, err := c.model.Complete(ctx, summaryPrompt(text, style))
		if err != nil {
			return "", "", fmt.Errorf("generate summary: %w", err)
		}
		if strings.TrimSpace(out) == "" {
			return "", "", &MalformedError{Kind: "summary", Reason: "empty response"}
		}
		return "Summary: " + src.Title, mustJSON(SummaryPayload{Text: out, Style: style}), nil

	case model.ArtifactQuiz:
		out, err := c.model.Complete(ctx, quizPrompt(text))
		if err != nil {
			return "", "", fmt.Errorf("generate quiz: %w", err)
		}
		p, err := parseQuiz(out)
		if err != nil {
			return "", "", err
		}
		return "Quiz: " + src.Title, mustJSON(p), nil

	case model.ArtifactFlashcard:
		out, err := c.model.Complete(ctx, flashcardPrompt(text))
		if err != nil {
			return "", "", fmt.Errorf("generate flashcards: %w", err)
		}
		p, err := parseFlashcards(out)
		if err != nil {
			return "", "", err
		}
		return "Flashcards: " + src.Title, mustJSON(p), nil

	case model.ArtifactArticle:
		out, err := c.model.Complete(ctx, articlePrompt(text))
		if err != nil {
			return "", "", fmt.Errorf("generate article: %w", err)
		}
		p, err := buildArticle(out)
		if err != nil {
			return "", "", err
		}
		return p.Title, mustJSON(p), nil

	case model.ArtifactSocialMedia:
		out, err := c.model.Complete(ctx, socialPrompt(text, style))
		if err != nil {
			return "", "", fmt.Errorf("generate social post: %w", err)
		}
		if strings.TrimSpace(out) == "" {
			return "", "", &MalformedError{Kind: "social_media", Reason: "empty response"}
		}
		return "Post: " + src.Title, mustJSON(SocialPayload{
			Text:     out,
			Platform: socialPlatform(style),
			Style:    style,
		}), nil

	case model.ArtifactDiagram:
		out, err := c.model.Complete(ctx, diagramPrompt(text, style))
		if err != nil {
			return "", "", fmt.Errorf("generate diagram: %w", err)
		}
		mermaid := stripCodeFence(out)
		if mermaid == "" {
			return "", "", &MalformedError{Kind: "diagram", Reason: "empty response"}
		}
		diagramType := style
		if diagramType == "" {
			diagramType = "flowchart"
		}
		return "Diagram: " + src.Title, mustJSON(DiagramPayload{
			Mermaid:     mermaid,
			DiagramType: diagramType,
		}), nil

	default:
		return "", "", fmt.Errorf("unknown artifact kind %q", kind)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
