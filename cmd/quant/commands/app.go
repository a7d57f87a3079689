package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/execution"
	"github.com/wonny/longshort/internal/portfolio"
	"github.com/wonny/longshort/internal/s0_data"
	"github.com/wonny/longshort/internal/scheduler"
	"github.com/wonny/longshort/internal/scheduler/jobs"
	"github.com/wonny/longshort/internal/selection"
	"github.com/wonny/longshort/internal/strategyconfig"
	"github.com/wonny/longshort/pkg/config"
	"github.com/wonny/longshort/pkg/database"
	"github.com/wonny/longshort/pkg/logger"
	"github.com/wonny/longshort/pkg/redis"
)

// app holds every wired component of one CLI invocation
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config
	location *time.Location

	db    *database.DB
	redis *redis.Client

	data         contracts.DataProvider
	broker       execution.Broker
	recorder     audit.Recorder
	portfolios   *portfolio.Repository // nil without a database
	selections   *selection.Repository // nil without a database
	state        *brain.StateGuard
	orchestrator *brain.Orchestrator
}

// loadStrategy loads env config, the logger and the strategy file
func loadStrategy() (*config.Config, *logger.Logger, *strategyconfig.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if strategyPath != "" {
		cfg.StrategyPath = strategyPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	strategy, _, err := strategyconfig.Load(cfg.StrategyPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load strategy: %w", err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	return cfg, log, strategy, nil
}

// newApp wires providers, stores and the orchestrator from the environment.
// mutate, when set, adjusts the strategy before anything is built.
func newApp(ctx context.Context, mutate func(*strategyconfig.Config)) (*app, error) {
	cfg, log, strategy, err := loadStrategy()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(strategy)
	}

	loc, err := strategy.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, strategy: strategy, location: loc}

	// 1. Connections
	if cfg.NeedsDatabase() {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")
	}

	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(a.redis, cfg.Redis.Prefix)

	// 2. Data provider
	switch cfg.DataSource {
	case "postgres":
		a.data = s0_data.NewPostgresProvider(a.db.Pool)
	default:
		csv, err := s0_data.NewCSVProvider(cfg.DataDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open csv data: %w", err)
		}
		a.data = csv
	}
	if a.redis.Enabled() {
		log.WithField("addr", a.redis.Addr()).Info("Connected to redis")
		a.data = s0_data.NewCachedProvider(a.data, cache, cfg.Redis.CacheTTL, log)
	}

	// 3. Stores
	deps := brain.Deps{Data: a.data}
	if a.db != nil {
		a.portfolios = portfolio.NewRepository(a.db.Pool)
		deps.Portfolios = a.portfolios
		a.selections = selection.NewRepository(a.db.Pool)
		deps.Selections = a.selections
		a.recorder = audit.NewRepository(a.db.Pool)
	} else {
		a.recorder = audit.NewMemoryRecorder()
	}
	deps.Recorder = a.recorder

	var store brain.StateStore
	switch cfg.StateBackend {
	case "redis":
		store = brain.NewRedisStateStore(cache, strategy.Meta.StrategyID)
	case "postgres":
		store = brain.NewPostgresStateStore(a.portfolios, strategy.Meta.StrategyID)
	default:
		store = brain.NewMemoryStateStore()
	}
	// 스케줄러 작업과 API가 같은 가드를 공유
	a.state = brain.NewStateGuard(store)

	// 4. Execution collaborator
	a.broker = execution.NewLogBroker(log)
	deps.Broker = a.broker

	// 5. Orchestrator
	a.orchestrator, err = brain.NewOrchestrator(strategy, deps, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"strategy":      strategy.Meta.StrategyID,
		"config_hash":   a.orchestrator.ConfigHash(),
		"data_source":   cfg.DataSource,
		"state_backend": cfg.StateBackend,
		"redis":         a.redis.Enabled(),
	}).Info("Engine initialized")

	return a, nil
}

// newScheduler registers the rebalance and record jobs on the strategy clock
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	rebalanceSpec, err := a.strategy.Schedule.RebalanceCron()
	if err != nil {
		return nil, err
	}
	recordSpec, err := a.strategy.Schedule.RecordCron()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log, scheduler.WithLocation(a.location))

	if err := sched.AddJob(jobs.NewRebalanceJob(a.orchestrator, a.state, rebalanceSpec, a.location, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewRecordJob(a.orchestrator, a.state, recordSpec, a.location, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

// today is midnight of the current day on the strategy clock
func (a *app) today() time.Time {
	now := time.Now().In(a.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.location)
}

// parseDate reads a YYYY-MM-DD flag value, today when empty
func (a *app) parseDate(value string) (time.Time, error) {
	if value == "" {
		return a.today(), nil
	}
	date, err := time.ParseInLocation("2006-01-02", value, a.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (YYYY-MM-DD): %w", value, err)
	}
	return date, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
