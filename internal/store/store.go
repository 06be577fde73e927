package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knowpipe/knowpipe/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ SourceReader  = (*Store)(nil)
	_ SourceWriter  = (*Store)(nil)
	_ ArtifactStore = (*Store)(nil)
	_ ProjectStore  = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
		s.migrateV2, // v1 → v2: index for latest-artifact-per-kind lookups
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sources (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		category   TEXT NOT NULL,
		origin     TEXT NOT NULL,
		title      TEXT,
		body       TEXT,
		summary    TEXT,
		status     TEXT NOT NULL,
		last_error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_project ON sources(project_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status, updated_at);

	CREATE TABLE IF NOT EXISTS artifacts (
		id         TEXT PRIMARY KEY,
		source_id  TEXT NOT NULL REFERENCES sources(id),
		project_id TEXT NOT NULL REFERENCES projects(id),
		kind       TEXT NOT NULL,
		title      TEXT,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_source ON artifacts(source_id, created_at ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the index backing LatestArtifact (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(source_id, kind, created_at DESC)`)
	return err
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM projects WHERE id = ?`, id)
	var p model.Project
	var desc sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

// ListProjects returns all projects with their source counts, most recently
// updated first.
func (s *Store) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.description, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM sources s WHERE s.project_id = p.id)
		FROM projects p ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProjectSummary
	for rows.Next() {
		var p model.ProjectSummary
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &desc, &p.CreatedAt, &p.UpdatedAt, &p.SourceCount); err != nil {
			return nil, err
		}
		p.Description = desc.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnsureDefaultProject returns the default catch-all project, creating it
// with the given id if it does not exist yet.
func (s *Store) EnsureDefaultProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM projects WHERE title = ? LIMIT 1`,
		model.DefaultProjectTitle)
	var p model.Project
	var desc sql.NullString
	err := row.Scan(&p.ID, &p.Title, &desc, &p.CreatedAt, &p.UpdatedAt)
	if err == nil {
		p.Description = desc.String
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p = model.NewProject(id, model.DefaultProjectTitle, "Default project for all content")
	if err := s.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project and all sources and artifacts it owns.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete sources: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

const sourceColumns = `id, project_id, category, origin, title, body, summary, status, last_error, created_at, updated_at`

// CreateSource inserts a new source.
func (s *Store) CreateSource(ctx context.Context, src model.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, project_id, category, origin, title, body, summary, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.ProjectID, src.Category, src.Origin, src.Title,
		src.Body, src.Summary, src.Status, src.LastError,
		src.CreatedAt, src.UpdatedAt,
	)
	return err
}

// GetSource returns a source together with its artifact history.
func (s *Store) GetSource(ctx context.Context, id string) (*model.SourceWithArtifacts, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.ListArtifacts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.SourceWithArtifacts{Source: *src, Artifacts: artifacts}, nil
}

// ListSources returns sources matching the given filter, newest first.
func (s *Store) ListSources(ctx context.Context, f model.SourceFilter) ([]model.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources`
	var conditions []string
	var args []interface{}

	if f.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(f.Category) > 0 {
		placeholders := make([]string, len(f.Category))
		for i, c := range f.Category {
			placeholders[i] = "?"
			args = append(args, c)
		}
		conditions = append(conditions, "category IN ("+strings.Join(placeholders, ",")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// FindSourceByOrigin returns the most recent source in a project with the
// given origin locator, or ErrNotFound.
func (s *Store) FindSourceByOrigin(ctx context.Context, projectID, origin string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE project_id = ? AND origin = ? ORDER BY created_at DESC LIMIT 1`,
		projectID, origin)
	return scanSource(row)
}

// UpdateSourceStatus changes the status of a source.
func (s *Store) UpdateSourceStatus(ctx context.Context, id, status string, lastError *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, lastError, now, id)
	return err
}

// UpdateSourceContent commits an extraction outcome: title, body, status and
// error in a single row update.
func (s *Store) UpdateSourceContent(ctx context.Context, id, title, body, status string, lastError *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET title = ?, body = ?, status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		title, body, status, lastError, now, id)
	return err
}

// UpdateSourceSummary sets (or clears, with nil) the derived summary.
func (s *Store) UpdateSourceSummary(ctx context.Context, id string, summary *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET summary = ?, updated_at = ? WHERE id = ?`,
		summary, now, id)
	return err
}

// ResetStaleProcessing resets any processing sources back to pending
// (for server restart).
func (s *Store) ResetStaleProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, updated_at = ? WHERE status = ?`,
		model.StatusPending, now, model.StatusProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSource removes a source and its artifacts.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

// InsertArtifact appends a new artifact row. Artifacts are never updated;
// regeneration inserts a new row and older rows remain as history.
func (s *Store) InsertArtifact(ctx context.Context, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, source_id, project_id, kind, title, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SourceID, a.ProjectID, a.Kind, a.Title, a.Payload, a.CreatedAt,
	)
	return err
}

// LatestArtifact returns the most recently created artifact of the given
// kind for a source, or ErrNotFound.
func (s *Store) LatestArtifact(ctx context.Context, sourceID, kind string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, project_id, kind, title, payload, created_at
		FROM artifacts WHERE source_id = ? AND kind = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sourceID, kind)
	var a model.Artifact
	var title sql.NullString
	err := row.Scan(&a.ID, &a.SourceID, &a.ProjectID, &a.Kind, &title, &a.Payload, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Title = title.String
	return &a, nil
}

// ListArtifacts returns all artifacts for a source, oldest first.
func (s *Store) ListArtifacts(ctx context.Context, sourceID string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, project_id, kind, title, payload, created_at
		FROM artifacts WHERE source_id = ? ORDER BY created_at ASC, rowid ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		var a model.Artifact
		var title sql.NullString
		if err := rows.Scan(&a.ID, &a.SourceID, &a.ProjectID, &a.Kind, &title, &a.Payload, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Title = title.String
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// CountArtifacts returns the number of artifacts of a kind for a source.
func (s *Store) CountArtifacts(ctx context.Context, sourceID, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE source_id = ? AND kind = ?`,
		sourceID, kind).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row scanner) (*model.Source, error) {
	var src model.Source
	var title sql.NullString
	err := row.Scan(&src.ID, &src.ProjectID, &src.Category, &src.Origin, &title,
		&src.Body, &src.Summary, &src.Status, &src.LastError,
		&src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	src.Title = title.String
	return &src, nil
}
