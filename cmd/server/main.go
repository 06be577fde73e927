package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/knowpipe/knowpipe/internal/api"
	"github.com/knowpipe/knowpipe/internal/config"
	"github.com/knowpipe/knowpipe/internal/extract"
	"github.com/knowpipe/knowpipe/internal/generate"
	"github.com/knowpipe/knowpipe/internal/ingest"
	"github.com/knowpipe/knowpipe/internal/model"
	"github.com/knowpipe/knowpipe/internal/orchestrator"
	"github.com/knowpipe/knowpipe/internal/store"
	"github.com/knowpipe/knowpipe/internal/transcribe"
)

func main() {
	root := &cobra.Command{
		Use:          "knowpipe",
		Short:        "Content ingestion and study-artifact server",
		SilenceUsage: true,
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := store.New(db)
	if err != nil {
		return err
	}

	// Reset sources stuck in processing from a previous run.
	if n, err := repo.ResetStaleProcessing(context.Background()); err != nil {
		slog.Warn("reset stale processing failed", "error", err)
	} else if n > 0 {
		slog.Info("reset stale processing sources", "count", n)
	}

	var modelClient generate.ModelClient
	var stt transcribe.SpeechToText
	if cfg.UseStubs() {
		slog.Info("OPENAI_API_KEY not set, using stub clients")
		modelClient = &generate.StubModelClient{}
		stt = &transcribe.StubSpeechToText{}
	} else {
		modelClient = generate.NewOpenAIClient(cfg.OpenAIKey, generate.WithModel(cfg.OpenAIModel))
		stt = transcribe.NewWhisperClient(cfg.OpenAIKey, transcribe.WithWhisperModel(cfg.WhisperModel))
	}

	chunker := transcribe.NewChunker(stt, cfg.TranscribeLimit, cfg.FFmpegBinary, cfg.FFprobeBinary)
	renderer := extract.NewChromiumRenderer(cfg.ChromiumBinary, cfg.RenderTimeout.Std())

	webChain := extract.NewChain(
		extract.NewStaticFetch(cfg.ScrapeTimeout.Std(), renderer, cfg.MaxBodyChars),
	)

	videoStrategies := []extract.Strategy{
		extract.NewCaptionAPI(cfg.ScrapeTimeout.Std()),
		extract.NewSubtitleTrack(cfg.YtDlpBinary, cfg.SubtitleTimeout.Std()),
	}
	if cfg.RemoteWorkerURL != "" {
		videoStrategies = append(videoStrategies,
			extract.NewRemoteWorker(cfg.RemoteWorkerURL, cfg.RemoteWorkerTimeout.Std()))
	}
	videoStrategies = append(videoStrategies,
		extract.NewAudioTranscribe(cfg.YtDlpBinary, cfg.DownloadTimeout.Std(), chunker))
	videoChain := extract.NewChain(videoStrategies...)

	chains := map[string]*extract.Chain{
		model.CategoryWeb:    webChain,
		model.CategorySocial: webChain,
		model.CategoryVideo:  videoChain,
	}

	files := extract.NewFileExtractor(
		extract.NewPDFExtractor(cfg.PdftoppmBinary, cfg.TesseractBinary, cfg.DownloadTimeout.Std()),
		chunker,
		cfg.MaxBodyChars,
	)

	orch := orchestrator.New(orchestrator.NewMemoryHandleStore())
	cache := generate.NewCache(repo, modelClient)
	svc := ingest.NewService(repo, chains, files, orch, cache)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.New(repo, svc, cfg.CORSOrigin).Handler(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("knowpipe server listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	// Let in-flight extraction and enrichment finish before exiting.
	orch.Wait()
	return nil
}
