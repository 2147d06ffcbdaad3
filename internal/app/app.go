// Package app assembles the clearance services from the process config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/vehicle-clearance/internal/clearance"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/export"
	"github.com/joseph-ayodele/vehicle-clearance/internal/extract"
	"github.com/joseph-ayodele/vehicle-clearance/internal/fraud"
	"github.com/joseph-ayodele/vehicle-clearance/internal/ocr"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
	"github.com/joseph-ayodele/vehicle-clearance/internal/verification"
)

// App holds the wired services. Close releases the store.
type App struct {
	Store        *repository.SQLStore
	Repos        repository.Repositories
	Registries   registry.Registries
	Reader       *extract.DocumentReader
	Verifier     *verification.Service
	Orchestrator *clearance.Orchestrator
	Exporter     *export.Service
}

// New opens the store and builds every service on top of it.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	regs, err := Registries(cfg.Registry, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	repos := store.Repositories()
	reader := NewReader(cfg.OCR, logger)
	engine := verification.NewEngine(verification.Config{
		Enabled:  cfg.Verification.Enabled,
		MinScore: cfg.Verification.MinScore,
	})
	verifier := verification.NewService(reader, regs, fraud.NewAnalyzer(), engine, repos.Vehicles, repos.Verifications, logger)

	return &App{
		Store:        store,
		Repos:        repos,
		Registries:   regs,
		Reader:       reader,
		Verifier:     verifier,
		Orchestrator: clearance.NewOrchestrator(repos, reader, regs, verifier, engine, clearance.ConfigFrom(cfg.Orchestrator), logger),
		Exporter:     export.NewService(repos, logger),
	}, nil
}

func (a *App) Close() {
	a.Store.Close()
}

// OpenStore opens the configured database.
func OpenStore(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.SQLStore, error) {
	return repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
}

// NewReader builds the OCR + parse chain used for every document.
func NewReader(cfg common.OCRConfig, logger *slog.Logger) *extract.DocumentReader {
	return extract.NewDocumentReader(NewExtractor(cfg, logger), parse.New(logger), logger)
}

func NewExtractor(cfg common.OCRConfig, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Magick:        cfg.Preprocessor,
		TesseractLang: cfg.Language,
		TessdataDir:   cfg.TessdataDir,
		MaxPages:      cfg.MaxPages,
		RasterTimeout: cfg.RasterTimeout,
		TempDir:       cfg.TempDir,
	}, logger)
}

// Registries builds the three matchers over the configured record source.
func Registries(cfg common.RegistryConfig, store *repository.SQLStore, logger *slog.Logger) (registry.Registries, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := []registry.Name{registry.Insurance, registry.Emission, registry.HPG}
	sources := map[registry.Name]registry.RecordSource{}

	switch cfg.Source {
	case "", "fixture":
		if cfg.FixturePath == "" {
			logger.Warn("registry.fixture.empty", "hint", "set registry.fixture_path; every lookup is NOT_FOUND")
			break
		}
		fx, err := registry.LoadFixture(cfg.FixturePath)
		if err != nil {
			return registry.Registries{}, err
		}
		sources = fx.Sources()
	case "http":
		for _, n := range names {
			sources[n] = registry.NewHTTPSource(n, registry.HTTPConfig{
				BaseURL:     cfg.BaseURL,
				APIKey:      cfg.APIKey,
				Timeout:     cfg.Timeout,
				RatePerSec:  cfg.RatePerSec,
				Burst:       cfg.Burst,
				MaxAttempts: cfg.MaxAttempts,
			}, logger)
		}
	case "postgres":
		if store == nil || store.Pool() == nil {
			return registry.Registries{}, common.NewAppError("CONFIG_ERROR", "registry.source postgres needs a postgres database", common.ErrInvalidInput)
		}
		for _, n := range names {
			sources[n] = registry.NewPostgresSource(n, store.Pool(), logger)
		}
	default:
		return registry.Registries{}, fmt.Errorf("unsupported registry source %q: %w", cfg.Source, common.ErrInvalidInput)
	}
	return registry.NewRegistries(sources, logger, registry.WithLookupTimeout(cfg.Timeout)), nil
}
