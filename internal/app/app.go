package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/infrastructure/arxiv"
	"ArxivDigest/internal/infrastructure/discord"
	"ArxivDigest/internal/infrastructure/listing"
	"ArxivDigest/internal/infrastructure/storage"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/render"
	"ArxivDigest/internal/scanner"
	"ArxivDigest/internal/usecase"
)

// Application wires configs to the run pipeline.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("no topics configured")
	}
	if cfg.Discord.WebhookURL == "" {
		return nil, fmt.Errorf("discord webhook url is required (set DISCORD_WEBHOOK_URL)")
	}

	registry := scanner.NewRegistry()
	registry.Register(arxiv.NewClient(cfg.Arxiv, nil, baseLogger.With("component", "source.api")))
	registry.Register(listing.NewScanner(nil, cfg.Arxiv.UserAgent, baseLogger.With("component", "source.listing")))

	store, err := newStateStore(ctx, cfg.State, baseLogger)
	if err != nil {
		return nil, err
	}

	notifier := discord.NewWebhook(cfg.Discord, nil, baseLogger.With("component", "notifier"))
	renderer := render.New(cfg.Discord, cfg.Digest.Location())

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Registry:        registry,
		Store:           store,
		Notifier:        notifier,
		Renderer:        renderer,
		Topics:          cfg.Topics,
		MaxResults:      cfg.Arxiv.MaxResultsPerTopic,
		InterQueryDelay: time.Duration(cfg.Arxiv.InterQueryDelaySeconds * float64(time.Second)),
		Lookback:        time.Duration(cfg.Digest.LookbackHours) * time.Hour,
		MaxLatest:       cfg.Digest.MaxLatestPerTopic,
		MaxEducational:  cfg.Digest.MaxEducationalPerTopic,
		Logger:          baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline}, nil
}

func newStateStore(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (ports.StateStore, error) {
	switch cfg.Backend {
	case "postgres":
		db, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("state backend postgres: %w", err)
		}
		return storage.NewPostgresStore(db), nil
	case "", "file":
		return storage.NewFileStore(cfg.Path, logger.With("component", "state")), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// Run performs a single digest execution; scheduling is the caller's job.
func (a *Application) Run(ctx context.Context) error {
	return a.pipeline.Run(ctx)
}
