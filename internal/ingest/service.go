// Package ingest coordinates the full source lifecycle: classify, extract,
// persist, and kick off background enrichment.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowpipe/knowpipe/internal/classify"
	"github.com/knowpipe/knowpipe/internal/extract"
	"github.com/knowpipe/knowpipe/internal/generate"
	"github.com/knowpipe/knowpipe/internal/model"
	"github.com/knowpipe/knowpipe/internal/orchestrator"
	"github.com/knowpipe/knowpipe/internal/store"
)

// enrichmentKinds are generated automatically after a successful extraction,
// in order.
var enrichmentKinds = []string{
	model.ArtifactSummary,
	model.ArtifactQuiz,
	model.ArtifactFlashcard,
}

// Service owns the ingestion pipeline. Extraction chains are selected by
// category; categories without a dedicated chain fall back to the web chain.
type Service struct {
	repo   store.Repository
	chains map[string]*extract.Chain
	files  *extract.FileExtractor
	orch   *orchestrator.Orchestrator
	cache  *generate.Cache
}

// NewService wires the ingestion service.
func NewService(repo store.Repository, chains map[string]*extract.Chain, files *extract.FileExtractor, orch *orchestrator.Orchestrator, cache *generate.Cache) *Service {
	return &Service{repo: repo, chains: chains, files: files, orch: orch, cache: cache}
}

// resolveProject returns the project to file the source under, creating the
// default project on first use when none is given.
func (s *Service) resolveProject(ctx context.Context, projectID string) (string, error) {
	if projectID != "" {
		if _, err := s.repo.GetProject(ctx, projectID); err != nil {
			return "", fmt.Errorf("project %s: %w", projectID, err)
		}
		return projectID, nil
	}
	p, err := s.repo.EnsureDefaultProject(ctx, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("default project: %w", err)
	}
	return p.ID, nil
}

// IngestURL registers a URL for processing and starts extraction in the
// background. If the same URL already exists in the project, the existing
// source is returned with duplicate=true and nothing new is created.
func (s *Service) IngestURL(ctx context.Context, rawURL, projectID string) (*model.Source, bool, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, false, fmt.Errorf("url is required")
	}

	projectID, err := s.resolveProject(ctx, projectID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindSourceByOrigin(ctx, projectID, rawURL)
	if err == nil {
		slog.Info("duplicate url, returning existing source", "source_id", existing.ID, "url", rawURL)
		return existing, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("duplicate check: %w", err)
	}

	category := classify.URL(rawURL)
	src := model.NewSource(uuid.NewString(), projectID, category, rawURL, rawURL)
	if err := s.repo.CreateSource(ctx, src); err != nil {
		return nil, false, fmt.Errorf("create source: %w", err)
	}

	slog.Info("source registered", "source_id", src.ID, "category", category, "url", rawURL)

	s.dispatch(ctx, src.ID, func(runCtx context.Context, h *orchestrator.Handle) error {
		return s.processURL(runCtx, h, src.ID)
	})
	return &src, false, nil
}

// IngestFile registers an uploaded document. Extraction runs in the
// background like URL ingestion; path must stay readable until the job
// finishes, so the caller's temp file cleanup is hooked into the run.
func (s *Service) IngestFile(ctx context.Context, path, filename, projectID string, forceOCR bool, cleanup func()) (*model.Source, error) {
	projectID, err := s.resolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	src := model.NewSource(uuid.NewString(), projectID, classify.File(filename), "file://"+filename, filename)
	if err := s.repo.CreateSource(ctx, src); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	slog.Info("file registered", "source_id", src.ID, "filename", filename, "force_ocr", forceOCR)

	s.dispatch(ctx, src.ID, func(runCtx context.Context, h *orchestrator.Handle) error {
		if cleanup != nil {
			defer cleanup()
		}
		return s.processFile(runCtx, h, src.ID, path, filename, forceOCR)
	})
	return &src, nil
}

// dispatch hands a run to the orchestrator on a context detached from the
// request, so extraction survives the client disconnecting.
func (s *Service) dispatch(ctx context.Context, sourceID string, run orchestrator.RunFunc) {
	s.orch.Dispatch(context.WithoutCancel(ctx), sourceID, run)
}

// Job returns the live handle snapshot for a job id, if any.
func (s *Service) Job(jobID string) (orchestrator.Snapshot, bool) {
	return s.orch.Get(jobID)
}

// Jobs lists all live job handles.
func (s *Service) Jobs() []orchestrator.Snapshot {
	return s.orch.List()
}

// ClearCompletedJobs drops terminal handles.
func (s *Service) ClearCompletedJobs() int {
	return s.orch.ClearCompleted()
}

// processURL runs the extraction chain for the source's category and then
// enrichment. The source row carries the outcome either way.
func (s *Service) processURL(ctx context.Context, h *orchestrator.Handle, sourceID string) error {
	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	if err := s.repo.UpdateSourceStatus(ctx, src.ID, model.StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	h.Log("system", "Extracting content...")

	chain := s.chainFor(src.Category)
	result, err := chain.Run(ctx, extract.Input{URL: src.Origin, Category: src.Category})
	if err != nil {
		s.commitFailure(ctx, h, &src.Source, err)
		return fmt.Errorf("extraction failed: %w", err)
	}

	s.commitSuccess(ctx, h, &src.Source, result)
	return s.runEnrichment(ctx, h, sourceID)
}

// processFile extracts an uploaded document and then runs enrichment.
func (s *Service) processFile(ctx context.Context, h *orchestrator.Handle, sourceID, path, filename string, forceOCR bool) error {
	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	if err := s.repo.UpdateSourceStatus(ctx, src.ID, model.StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	h.Log("system", "Extracting document text...")

	result, err := s.files.Extract(ctx, path, filename, forceOCR)
	if err != nil {
		body := extract.FileFailurePlaceholder(filename, err.Error())
		info := model.ErrorInfo{
			FailedStrategy: "file-extract",
			Message:        err.Error(),
			FailedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		errJSON := info.ToJSON()
		if uerr := s.repo.UpdateSourceContent(ctx, src.ID, src.Title, body, model.StatusFailed, &errJSON); uerr != nil {
			return fmt.Errorf("record failure: %w", uerr)
		}
		h.Log("error", "Extraction failed: "+err.Error())
		return fmt.Errorf("extraction failed: %w", err)
	}

	s.commitSuccess(ctx, h, &src.Source, result)
	return s.runEnrichment(ctx, h, sourceID)
}

func (s *Service) chainFor(category string) *extract.Chain {
	if c, ok := s.chains[category]; ok {
		return c
	}
	return s.chains[model.CategoryWeb]
}

func (s *Service) commitSuccess(ctx context.Context, h *orchestrator.Handle, src *model.Source, result *extract.Result) {
	title := result.Title
	if title == "" {
		title = src.Title
	}
	if err := s.repo.UpdateSourceContent(ctx, src.ID, title, result.Body, model.StatusCompleted, nil); err != nil {
		slog.Error("persist extraction failed", "source_id", src.ID, "error", err)
		h.Log("error", "Failed to save extracted content.")
		return
	}
	h.Log("system", fmt.Sprintf("Extracted %d characters via %s.", len(result.Body), result.Method))
}

// commitFailure stores a readable placeholder body plus structured error
// info, so the source stays inspectable in the UI.
func (s *Service) commitFailure(ctx context.Context, h *orchestrator.Handle, src *model.Source, cause error) {
	failedStrategy := "unknown"
	var ex *extract.ExhaustedError
	if errors.As(cause, &ex) && len(ex.Attempts) > 0 {
		failedStrategy = ex.Attempts[len(ex.Attempts)-1].Strategy
	}

	body := extract.FailurePlaceholder(src.Category, src.Origin, cause.Error())
	info := model.ErrorInfo{
		FailedStrategy: failedStrategy,
		Message:        cause.Error(),
		FailedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	errJSON := info.ToJSON()
	if err := s.repo.UpdateSourceContent(ctx, src.ID, src.Title, body, model.StatusFailed, &errJSON); err != nil {
		slog.Error("record failure failed", "source_id", src.ID, "error", err)
	}
	h.Log("error", "Extraction failed: "+cause.Error())
}

// runEnrichment generates the standard artifact set for a completed source.
// Failed sources are skipped: there is no real text to work from, only the
// placeholder.
func (s *Service) runEnrichment(ctx context.Context, h *orchestrator.Handle, sourceID string) error {
	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("reload source: %w", err)
	}
	if src.Status != model.StatusCompleted || !src.HasBody() {
		h.Log("system", "Skipping artifact generation: no extracted content.")
		return nil
	}

	var failed []string
	for _, kind := range enrichmentKinds {
		h.Log("system", fmt.Sprintf("Generating %s...", kind))
		if _, err := s.cache.GetOrGenerate(ctx, &src.Source, kind, defaultStyle(kind), false); err != nil {
			slog.Warn("enrichment artifact failed", "source_id", src.ID, "kind", kind, "error", err)
			h.Log("error", fmt.Sprintf("Failed to generate %s: %v", kind, err))
			failed = append(failed, kind)
			continue
		}
		h.Log("system", fmt.Sprintf("Saved %s.", kind))
	}
	if len(failed) == len(enrichmentKinds) {
		return fmt.Errorf("all artifact generation failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func defaultStyle(kind string) string {
	if kind == model.ArtifactSummary {
		return "concise"
	}
	return ""
}

// Refresh re-runs extraction for an existing source. Its summary is cleared
// because it describes the old text; other artifacts are kept as history.
func (s *Service) Refresh(ctx context.Context, sourceID string) (*model.Source, error) {
	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(src.Origin, "http") {
		return nil, fmt.Errorf("source %s is not refreshable", sourceID)
	}
	// Refreshing mid-flight would dispatch a second run for the same source.
	if !src.Terminal() {
		return nil, fmt.Errorf("source %s is still %s", sourceID, src.Status)
	}

	if err := s.repo.UpdateSourceSummary(ctx, src.ID, nil); err != nil {
		return nil, fmt.Errorf("clear summary: %w", err)
	}
	if err := s.repo.UpdateSourceStatus(ctx, src.ID, model.StatusPending, nil); err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}

	slog.Info("refreshing source", "source_id", src.ID, "url", src.Origin)
	s.dispatch(ctx, src.ID, func(runCtx context.Context, h *orchestrator.Handle) error {
		return s.processURL(runCtx, h, src.ID)
	})

	updated, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return &updated.Source, nil
}

// OverrideTranscript replaces a source's body with user-provided text, the
// manual escape hatch when every strategy failed. The source becomes
// completed, and its stored error and stale summary are cleared.
func (s *Service) OverrideTranscript(ctx context.Context, sourceID, text string) (*model.Source, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("transcript text is required")
	}

	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	// A source that never extracted keeps its raw locator as title; give it
	// a readable one now that it has real content.
	title := src.Title
	if title == "" || title == src.Origin {
		title = "Manual Transcript"
	}
	if err := s.repo.UpdateSourceContent(ctx, src.ID, title, text, model.StatusCompleted, nil); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	if err := s.repo.UpdateSourceSummary(ctx, src.ID, nil); err != nil {
		return nil, fmt.Errorf("clear summary: %w", err)
	}

	slog.Info("transcript overridden", "source_id", src.ID, "chars", len(text))
	updated, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return &updated.Source, nil
}

// GenerateArtifact produces (or returns) an artifact of the given kind for a
// source, honoring force regeneration.
func (s *Service) GenerateArtifact(ctx context.Context, sourceID, kind, style string, force bool) (*model.Artifact, error) {
	src, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return s.cache.GetOrGenerate(ctx, &src.Source, kind, style, force)
}
