package model

import "time"

// Artifact kind constants
const (
	ArtifactSummary     = "summary"
	ArtifactQuiz        = "quiz"
	ArtifactFlashcard   = "flashcard"
	ArtifactArticle     = "article"
	ArtifactSocialMedia = "social_media"
	ArtifactDiagram     = "diagram"
)

// ValidArtifactKind reports whether kind names a known artifact kind.
func ValidArtifactKind(kind string) bool {
	switch kind {
	case ArtifactSummary, ArtifactQuiz, ArtifactFlashcard,
		ArtifactArticle, ArtifactSocialMedia, ArtifactDiagram:
		return true
	}
	return false
}

// Artifact represents one generated enrichment derived from a Source.
// Artifacts are append-only: regeneration inserts a new row and the most
// recently created row of a kind is the "current" one.
type Artifact struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Payload   string `json:"payload"` // JSON string, kind-specific shape
	CreatedAt string `json:"created_at"`
}

// NewArtifact creates a new Artifact stamped with the current time.
func NewArtifact(id, sourceID, projectID, kind, title, payload string) Artifact {
	return Artifact{
		ID:        id,
		SourceID:  sourceID,
		ProjectID: projectID,
		Kind:      kind,
		Title:     title,
		Payload:   payload,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
