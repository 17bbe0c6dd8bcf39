package commands

import (
	"fmt"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/marketdata"
	"github.com/wonny/vantage/backend/internal/position"
	"github.com/wonny/vantage/backend/internal/regime"
	"github.com/wonny/vantage/backend/internal/scan"
	"github.com/wonny/vantage/backend/internal/store"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/internal/universe"
	"github.com/wonny/vantage/backend/pkg/config"
	"github.com/wonny/vantage/backend/pkg/httputil"
	"github.com/wonny/vantage/backend/pkg/logger"
	"github.com/wonny/vantage/backend/pkg/redis"
)

// app bundles the wired service graph shared by the CLI commands.
// The database is optional: without DATABASE_URL the service runs
// in-memory with persistence disabled.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	rdb      *redis.Client
	db       *store.DB
	scanRepo contracts.ScanResultRepository
	jobs     *scan.JobManager
	monitor  *position.Monitor
}

// newApp loads config and wires the full pipeline
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	var db *store.DB
	var scanRepo contracts.ScanResultRepository
	var posRepo contracts.PositionRepository
	if cfg.Database.URL != "" {
		db, err = store.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		scanRepo = store.NewScanRepository(db.Pool)
		posRepo = store.NewPositionRepo(db.Pool)
		log.Info("Connected to database")
	} else {
		log.Warn("DATABASE_URL not set, persistence disabled")
	}

	// Market data and universe providers
	mdClient := marketdata.NewClient(cfg, rdb, log)
	fetcher := marketdata.NewBatchFetcher(mdClient, cfg.Scan.FetchWorkers, log)

	httpClient := httputil.New(log)
	if rdb.Enabled() {
		// Shared sliding window so concurrent scans and the scheduler
		// respect the screener quota together.
		httpClient = httpClient.WithRateLimiter(
			redis.NewRateLimiter(rdb, "vantage"),
			redis.RateLimitConfig{Key: "screener", Limit: 30, Window: time.Minute},
		)
	}
	universeChain := universe.NewFallbackChain(log,
		universe.NewScreenerAPI(cfg.Universe.ScreenerURL, httpClient, log),
		universe.NewHTMLScraper(cfg.Universe.ScrapeURL, httpClient, log),
	)

	regimeAssessor := regime.NewAssessor(mdClient, cfg.MarketData.BenchmarkIndex, log)

	// Strategy configs, falling back to compiled defaults
	sepaCfg, err := strategyconfig.LoadOrDefault(cfg.Scan.StrategyDir, contracts.StrategySEPA)
	if err != nil {
		return nil, fmt.Errorf("load SEPA config: %w", err)
	}
	qmCfg, err := strategyconfig.LoadOrDefault(cfg.Scan.StrategyDir, contracts.StrategyQM)
	if err != nil {
		return nil, fmt.Errorf("load QM config: %w", err)
	}

	orch := scan.NewOrchestrator(
		regimeAssessor,
		scan.NewStage1(universeChain, log),
		fetcher,
		scan.NewGateRunner(cfg.Scan.GateWorkers, log),
		sepaCfg,
		qmCfg,
		scanRepo,
		scan.Options{
			LookbackDays: cfg.Scan.LookbackDays,
			TopN:         cfg.Scan.TopN,
			StageTimeout: cfg.Scan.StageTimeout,
			ScoreWorkers: cfg.Scan.GateWorkers,
		},
		log,
	)
	jobs := scan.NewJobManager(orch, cfg.Scan.MaxConcurrent, log)

	machine := position.NewMachine(sepaCfg.Risk, log)
	monitor := position.NewMonitor(machine, mdClient, posRepo,
		cfg.Monitor.CheckInterval, cfg.Scan.LookbackDays, log)
	if cfg.Monitor.AutoNotify {
		if rdb.Enabled() {
			monitor.SetNotifier(position.NewRedisNotifier(rdb, ""))
		} else {
			monitor.SetNotifier(position.NewLogNotifier(log))
		}
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		rdb:      rdb,
		db:       db,
		scanRepo: scanRepo,
		jobs:     jobs,
		monitor:  monitor,
	}, nil
}

// close releases held connections
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
