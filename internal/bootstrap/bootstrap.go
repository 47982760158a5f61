// Package bootstrap connects the database and wires the pipeline and search
// components shared by the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/repository"
	"github.com/fadilmartias/jobmatch/internal/search"
	"github.com/fadilmartias/jobmatch/internal/service"
	"github.com/fadilmartias/jobmatch/internal/usecase"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App holds the wired components.
type App struct {
	DB       *gorm.DB
	Offers   *repository.OfferRepository
	Runs     *repository.PipelineRunRepository
	Registry *nlp.Registry
	Pipeline *usecase.PipelineUsecase
	Search   *search.Engine
}

// ConnectDB opens Postgres, sizes the pool for the environment and migrates
// the schema.
func ConnectDB(dbConfig *config.DBConfig, appConfig *config.AppConfig) (*gorm.DB, error) {
	level := gormlogger.Warn
	if appConfig.Env == "production" {
		level = gormlogger.Error
	}
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database instance: %w", err)
	}
	if appConfig.Env != "production" {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(100)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := model.Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// NewNamer builds the cluster naming backend selected by the provider name,
// wrapped in a circuit breaker. "none" and unconfigured providers fall back
// to a namer that leaves clusters unnamed.
func NewNamer(ctx context.Context, cfg *config.NLPConfig) (service.ClusterNamer, error) {
	log := logging.Component("bootstrap")
	var next service.ClusterNamer
	switch provider := strings.ToLower(cfg.NamerProvider); provider {
	case "gemini":
		if config.LoadGeminiConfig().APIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY not set, clusters stay unnamed")
			return service.NoopNamer{}, nil
		}
		gemini, err := service.NewGeminiService(ctx)
		if err != nil {
			return nil, err
		}
		next = gemini
	case "openrouter":
		if config.LoadOpenRouterConfig().APIKey == "" {
			log.Warn().Msg("OPENROUTER_API_KEY not set, clusters stay unnamed")
			return service.NoopNamer{}, nil
		}
		next = service.NewOpenRouterService()
	case "none", "":
		return service.NoopNamer{}, nil
	default:
		return nil, fmt.Errorf("unknown namer provider %q", provider)
	}
	return service.NewBreakerNamer(next, cfg.NamerTimeout), nil
}

// New loads the fitted models from disk and wires the repository, the
// pipeline and the search engine over db.
func New(ctx context.Context, db *gorm.DB) (*App, error) {
	nlpConfig := config.LoadNLPConfig()

	tok, err := nlp.NewFrenchTokenizer()
	if err != nil {
		return nil, fmt.Errorf("build tokenizer: %w", err)
	}
	registry := nlp.NewRegistry(nlpConfig.ModelDir, tok)
	if err := registry.Load(); err != nil {
		return nil, fmt.Errorf("load models from %s: %w", nlpConfig.ModelDir, err)
	}

	namer, err := NewNamer(ctx, nlpConfig)
	if err != nil {
		return nil, err
	}

	offers := repository.NewOfferRepository(db)
	runs := repository.NewPipelineRunRepository(db)
	app := &App{
		DB:       db,
		Offers:   offers,
		Runs:     runs,
		Registry: registry,
		Pipeline: usecase.NewPipelineUsecase(offers, runs, registry, namer, nlpConfig),
		Search:   search.NewEngine(registry, offers, config.LoadSearchConfig()),
	}
	for _, info := range registry.Info() {
		logging.Info().Str("artifact", info.Name).Int64("epoch", info.Stamp.Epoch).Msg("model loaded")
	}
	return app, nil
}

// Close waits for background runs and closes the pool.
func (a *App) Close() error {
	a.Pipeline.Wait()
	pgDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return pgDB.Close()
}
