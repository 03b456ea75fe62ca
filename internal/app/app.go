package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/etindell/bireme-research/internal/classify"
	"github.com/etindell/bireme-research/internal/config"
	"github.com/etindell/bireme-research/internal/infrastructure/edgar"
	"github.com/etindell/bireme-research/internal/infrastructure/googlenews"
	"github.com/etindell/bireme-research/internal/infrastructure/llm"
	"github.com/etindell/bireme-research/internal/infrastructure/storage"
	"github.com/etindell/bireme-research/internal/infrastructure/tavily"
	"github.com/etindell/bireme-research/internal/logging"
	"github.com/etindell/bireme-research/internal/ports"
	"github.com/etindell/bireme-research/internal/source"
	"github.com/etindell/bireme-research/internal/usecase"
)

// Application wires config to the ingestion pipeline and its adapters.
type Application struct {
	cfg      config.Config
	db       *sql.DB
	repo     *storage.PostgresRepository
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := storage.NewPostgresRepository(db)

	sources := []source.Source{
		googlenews.New(&http.Client{Timeout: 15 * time.Second}, baseLogger.With("component", "source.google_news")),
		tavily.New(cfg.Tavily.APIKey, baseLogger.With("component", "source.tavily")),
		edgar.New(cfg.Edgar.UserAgent, &http.Client{Timeout: 30 * time.Second}, baseLogger.With("component", "source.sec_edgar")),
	}

	var completer ports.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(cfg.LLM)
	}
	classifier := classify.New(completer, baseLogger.With("component", "classifier"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:    sources,
		Repository: repo,
		Blacklist:  repo,
		Classifier: classifier,
		Logger:     baseLogger.With("component", "pipeline"),

		DaysBack:       cfg.News.DaysBack,
		FilingDaysBack: cfg.News.FilingDaysBack,
	})

	return &Application{cfg: cfg, db: db, repo: repo, pipeline: pipeline}, nil
}

// Pipeline exposes the ingestion workflow to the CLI.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Directory exposes the company directory reads.
func (a *Application) Directory() ports.CompanyDirectory {
	return a.repo
}

// Config returns the effective configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Close releases the database pool.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
