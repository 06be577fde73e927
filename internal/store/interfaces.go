package store

import (
	"context"
	"errors"

	"github.com/knowpipe/knowpipe/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// SourceReader provides read access to sources.
type SourceReader interface {
	GetSource(ctx context.Context, id string) (*model.SourceWithArtifacts, error)
	ListSources(ctx context.Context, f model.SourceFilter) ([]model.Source, error)
	FindSourceByOrigin(ctx context.Context, projectID, origin string) (*model.Source, error)
}

// SourceWriter provides write access to sources.
type SourceWriter interface {
	CreateSource(ctx context.Context, s model.Source) error
	UpdateSourceStatus(ctx context.Context, id, status string, lastError *string) error
	UpdateSourceContent(ctx context.Context, id, title, body, status string, lastError *string) error
	UpdateSourceSummary(ctx context.Context, id string, summary *string) error
	DeleteSource(ctx context.Context, id string) error
	ResetStaleProcessing(ctx context.Context) (int64, error)
}

// ArtifactStore provides append-only artifact persistence.
type ArtifactStore interface {
	InsertArtifact(ctx context.Context, a model.Artifact) error
	LatestArtifact(ctx context.Context, sourceID, kind string) (*model.Artifact, error)
	ListArtifacts(ctx context.Context, sourceID string) ([]model.Artifact, error)
	CountArtifacts(ctx context.Context, sourceID, kind string) (int, error)
}

// ProjectStore provides access to project records.
type ProjectStore interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.ProjectSummary, error)
	EnsureDefaultProject(ctx context.Context, id string) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Repository combines all persistence operations for the service layers.
type Repository interface {
	SourceReader
	SourceWriter
	ArtifactStore
	ProjectStore
}
