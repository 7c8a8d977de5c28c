package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	r "labfolio/data/repos"
	st "labfolio/data/storage"
	av "labfolio/service/api/alpha_vantage"
	"labfolio/service/config"
	"labfolio/service/core"
	"labfolio/service/logger"
	"labfolio/service/metrics"
)

// app holds the connections a command opened, nil when the command did not need them
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Registry
	db      *r.Postgres
	feed    *av.AlphaVantageClient
}

type requirements struct {
	database bool
	feed     bool
}

func newApp(ctx context.Context, envFile string, needs requirements) (*app, error) {
	cfg, err := config.Load(envFiles(envFile)...)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}),
		metrics: metrics.New(),
	}
	logger.SetGlobalLogger(a.log)

	needs.database = needs.database || cfg.UsesSource(core.SourceInternal)
	needs.feed = needs.feed || cfg.UsesSource(core.SourceExternal)

	if needs.database {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
		if a.db, err = r.GetPostgresConnection(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	if needs.feed {
		if err := cfg.RequireAlphaVantage(); err != nil {
			a.close()
			return nil, err
		}
	}
	if cfg.AlphaVantageAPIKey != "" {
		a.feed = av.GetClient(cfg.AlphaVantageAPIKey, cfg.AlphaVantageRequestsPerMinute, cfg.AlphaVantageSeries)
	}

	return a, nil
}

func envFiles(envFile string) []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// sourceDeps only sets the collaborators that exist, a nil pointer in an interface is not nil
func (a *app) sourceDeps() core.SourceDeps {
	deps := core.SourceDeps{Logger: a.log}
	if a.db != nil {
		deps.Store = a.db
	}
	if a.feed != nil {
		deps.Feed = a.feed
	}
	return deps
}

func (a *app) analyzer() (*core.Analyzer, error) {
	factors, err := core.NewReturnSource(a.cfg.FactorSource, a.sourceDeps())
	if err != nil {
		return nil, fmt.Errorf("factor source: %w", err)
	}
	assets, err := core.NewReturnSource(a.cfg.AssetSource, a.sourceDeps())
	if err != nil {
		return nil, fmt.Errorf("asset source: %w", err)
	}

	settings := core.AnalyzerSettings{LookbackDays: a.cfg.LookbackDays, NullThreshold: a.cfg.NullThreshold}
	return core.NewAnalyzer(factors, assets, settings, a.log, a.metrics), nil
}

func (a *app) refresher() *core.Refresher {
	settings := core.RefreshSettings{LookbackYears: a.cfg.RefreshLookbackYears, Workers: a.cfg.RefreshWorkers}
	return core.NewRefresher(a.db, a.db, a.feed, settings, a.log, a.metrics)
}

func (a *app) serviceContext(ctx context.Context) (*core.ServiceContext, error) {
	analyzer, err := a.analyzer()
	if err != nil {
		return nil, err
	}

	s3Client, err := st.NewS3Client(ctx, st.S3Settings{
		Region:    a.cfg.S3Region,
		AccessKey: a.cfg.S3Key,
		SecretKey: a.cfg.S3Secret,
		Endpoint:  a.cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating s3 client: %w", err)
	}

	return &core.ServiceContext{
		Database:   a.db,
		Catalog:    a.db,
		Portfolios: a.db,
		Holdings:   st.NewHoldingsReader(s3Client, a.cfg.S3Bucket),
		Analyzer:   analyzer,
		Log:        a.log,
	}, nil
}
