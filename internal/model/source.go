package model

import "time"

// Source status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Source category constants
const (
	CategoryVideo    = "video"
	CategoryWeb      = "web"
	CategorySocial   = "social"
	CategoryDocument = "document"
	CategoryAudio    = "audio"
	CategoryText     = "text"
)

// Source represents one ingested unit of content (a URL or an uploaded
// file) tracked through extraction.
type Source struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Category  string  `json:"category"`
	Origin    string  `json:"origin"` // URL or uploaded filename
	Title     string  `json:"title"`
	Body      *string `json:"body,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	Status    string  `json:"status"`
	LastError *string `json:"last_error,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// SourceWithArtifacts is a Source together with its artifact history.
type SourceWithArtifacts struct {
	Source
	Artifacts []Artifact `json:"artifacts"`
}

// SourceFilter holds query parameters for listing sources.
type SourceFilter struct {
	ProjectID string
	Status    []string
	Category  []string
}

// NewSource creates a new Source in pending status.
func NewSource(id, projectID, category, origin, title string) Source {
	now := time.Now().UTC().Format(time.RFC3339)
	return Source{
		ID:        id,
		ProjectID: projectID,
		Category:  category,
		Origin:    origin,
		Title:     title,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasBody reports whether the source has non-empty extracted text.
func (s *Source) HasBody() bool {
	return s.Body != nil && *s.Body != ""
}

// Terminal reports whether the source is in a terminal processing state.
func (s *Source) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
