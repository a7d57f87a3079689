package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/execution"
	"github.com/wonny/longshort/internal/portfolio"
	"github.com/wonny/longshort/internal/s0_data/quality"
	"github.com/wonny/longshort/internal/s1_universe"
	"github.com/wonny/longshort/internal/s2_signals"
	"github.com/wonny/longshort/internal/selection"
	"github.com/wonny/longshort/internal/strategyconfig"
	"github.com/wonny/longshort/pkg/logger"
)

// Rebalance run statuses
const (
	StatusCompleted  = "completed"
	StatusSkipped    = "skipped"
	StatusInfeasible = "infeasible"
	StatusFailed     = "failed"
)

// SelectionStore persists the candidates of a run (optional)
type SelectionStore interface {
	SaveSelection(ctx context.Context, sel *contracts.Selection) error
}

// PortfolioStore persists targets and run logs (optional)
type PortfolioStore interface {
	SaveTargetPortfolio(ctx context.Context, target *contracts.TargetPortfolio, runID string) error
	SaveRebalanceLog(ctx context.Context, log *portfolio.RebalanceLog) error
}

// Deps are the collaborators of an orchestrator.
// Data and Recorder are required; the stores are optional.
type Deps struct {
	Data       contracts.DataProvider
	Broker     execution.Broker
	Recorder   audit.Recorder
	Selections SelectionStore
	Portfolios PortfolioStore
	Solver     portfolio.Solver // nil → embedded simplex
}

// Orchestrator coordinates one rebalance or one daily record
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	config     *strategyconfig.Config
	configHash string

	// Stage components
	universeBuilder *s1_universe.Builder
	factorEngine    *s2_signals.Engine
	qualityGate     *quality.QualityGate
	ranker          *selection.Ranker
	constructor     *portfolio.Constructor
	planner         *execution.Planner

	deps   Deps
	logger *logger.Logger
}

// RunResult holds the results of one rebalance
type RunResult struct {
	RunID           string
	Date            time.Time
	ConfigHash      string
	Status          string
	Skipped         bool
	SkipReason      string
	CompletedStages []string
	Universe        *contracts.Universe
	Quality         *quality.Report
	Scores          []contracts.CombinedScore
	Selection       *contracts.Selection
	TargetPortfolio *contracts.TargetPortfolio
	Trades          []execution.Trade
	Turnover        float64
	Submitted       bool
	Duration        time.Duration
}

// NewOrchestrator wires every stage from the strategy config
func NewOrchestrator(cfg *strategyconfig.Config, deps Deps, log *logger.Logger) (*Orchestrator, error) {
	if deps.Data == nil {
		return nil, fmt.Errorf("orchestrator: data provider is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("orchestrator: recorder is required")
	}
	if deps.Broker == nil && !cfg.Execution.DryRun {
		return nil, fmt.Errorf("orchestrator: broker is required unless dry_run is set")
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := s2_signals.NewEngineFromConfig(cfg.Factors, log)
	if err != nil {
		return nil, err
	}

	constructor, err := portfolio.NewConstructor(portfolio.ConstraintsFromConfig(cfg), deps.Solver, log)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:          cfg,
		configHash:      hash,
		universeBuilder: s1_universe.NewBuilder(deps.Data, s1_universe.Config{MinSize: cfg.Universe.MinSize}),
		factorEngine:    engine,
		qualityGate:     quality.NewQualityGate(quality.DefaultConfig()),
		ranker:          selection.NewRanker(cfg.Portfolio.TotalPositions, log),
		constructor:     constructor,
		planner:         execution.NewPlanner(log),
		deps:            deps,
		logger:          log.WithComponent("orchestrator"),
	}, nil
}

// ConfigHash returns the hash of the strategy config every run is pinned to
func (o *Orchestrator) ConfigHash() string {
	return o.configHash
}

// Rebalance computes a new target for date from the prior state.
//
// universe → factors → combine → select → risk loadings → construct → save → submit.
// Nothing after a successful submit can fail, so the broker never holds a
// target the returned State does not.
// A too-small universe skips the run: prior state is returned with a nil error.
// On any error the prior state is returned unchanged.
func (o *Orchestrator) Rebalance(ctx context.Context, date time.Time, prior State) (State, *RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID:           uuid.NewString(),
		Date:            date,
		ConfigHash:      o.configHash,
		Status:          StatusFailed,
		CompletedStages: make([]string, 0, 6),
	}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"date":   date.Format("2006-01-02"),
	})

	log.WithFields(map[string]interface{}{
		"config_hash": o.configHash,
		"dry_run":     o.config.Execution.DryRun,
	}).Info("Starting rebalance")

	target, err := o.rebalance(ctx, date, prior, result, log)
	result.Duration = time.Since(startTime)

	switch {
	case err != nil && errors.Is(err, contracts.ErrInfeasible):
		result.Status = StatusInfeasible
	case err != nil:
		result.Status = StatusFailed
	case result.Skipped:
		result.Status = StatusSkipped
	default:
		result.Status = StatusCompleted
	}
	o.saveRunLog(ctx, result, err, log)

	if err != nil {
		log.WithError(err).WithField("status", result.Status).Error("Rebalance failed")
		return prior, result, err
	}
	if result.Skipped {
		return prior, result, nil
	}

	next := prior
	next.Target = target
	next.LastRebalance = date
	next.RunID = result.RunID

	log.WithFields(map[string]interface{}{
		"positions":   target.Count(),
		"gross":       target.GrossExposure(),
		"net":         target.NetExposure(),
		"turnover":    result.Turnover,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Rebalance completed")

	return next, result, nil
}

func (o *Orchestrator) rebalance(ctx context.Context, date time.Time, prior State, result *RunResult, log *logger.Logger) (*contracts.TargetPortfolio, error) {
	// S1: Universe
	universe, err := o.universeBuilder.Build(ctx, date)
	if errors.Is(err, contracts.ErrInsufficientUniverse) {
		result.Skipped = true
		result.SkipReason = err.Error()
		result.Universe = universe
		log.WithError(err).Warn("Universe too small, skipping rebalance")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	result.Universe = universe
	result.CompletedStages = append(result.CompletedStages, "S1:Universe")

	// S2: Factors
	factors, err := o.factorEngine.Build(ctx, universe, date, o.deps.Data)
	if err != nil {
		return nil, err
	}
	result.Quality = o.qualityGate.Check(universe, factors)
	if !result.Quality.Passed() {
		log.WithFields(map[string]interface{}{
			"low_coverage": result.Quality.LowCover,
			"score":        result.Quality.Score,
		}).Warn("Factor coverage below threshold")
	}
	result.Scores = o.factorEngine.Combine(universe, factors)
	result.CompletedStages = append(result.CompletedStages, "S2:Factors")

	// S3: Selection
	sel := o.ranker.Select(ctx, date, result.Scores)
	result.Selection = sel
	if o.deps.Selections != nil {
		if err := o.deps.Selections.SaveSelection(ctx, sel); err != nil {
			return nil, fmt.Errorf("save selection: %w", err)
		}
	}
	result.CompletedStages = append(result.CompletedStages, "S3:Selection")

	// S4: Risk loadings
	var loadings *contracts.RiskLoadings
	if o.constructor.RiskEnabled() && sel.Count() > 0 {
		symbols := make([]string, 0, sel.Count())
		for _, c := range sel.Candidates() {
			symbols = append(symbols, c.Symbol)
		}
		loadings, err = o.deps.Data.RiskLoadings(ctx, o.constructor.RiskModelVersion(), date, symbols)
		if err != nil {
			return nil, fmt.Errorf("risk loadings: %w", wrapDataUnavailable(err))
		}
		result.CompletedStages = append(result.CompletedStages, "S4:RiskLoadings")
	}

	// S5: Portfolio
	target, err := o.constructor.Construct(ctx, sel, loadings)
	if err != nil {
		return nil, err
	}
	result.TargetPortfolio = target
	result.CompletedStages = append(result.CompletedStages, "S5:Portfolio")

	// 목표 저장은 브로커 제출보다 먼저
	if o.deps.Portfolios != nil {
		if err := o.deps.Portfolios.SaveTargetPortfolio(ctx, target, result.RunID); err != nil {
			return nil, fmt.Errorf("save target portfolio: %w", err)
		}
	}

	// S6: Execution (the last step that can fail)
	result.Trades = o.planner.Plan(prior.Target, target)
	result.Turnover = execution.Turnover(result.Trades)
	if !o.config.Execution.DryRun {
		if err := o.deps.Broker.SubmitTarget(ctx, target); err != nil {
			return nil, fmt.Errorf("submit target: %w", err)
		}
		result.Submitted = true
	}
	result.CompletedStages = append(result.CompletedStages, "S6:Execution")

	return target, nil
}

// Record books the held target's position count and exposures for date
func (o *Orchestrator) Record(ctx context.Context, date time.Time, state State) (State, *audit.DailyRecord, error) {
	rec := audit.NewDailyRecord(date, state.RunID, state.Target)

	if err := o.deps.Recorder.SaveRecord(ctx, rec); err != nil {
		return state, rec, fmt.Errorf("save daily record: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"date":          date.Format("2006-01-02"),
		"num_positions": rec.NumPositions,
		"longs":         rec.NumLongs,
		"shorts":        rec.NumShorts,
		"gross":         rec.GrossExposure,
		"net":           rec.NetExposure,
	}).Info("Daily record saved")

	next := state
	next.LastRecord = date
	return next, rec, nil
}

// saveRunLog writes the run log; failures here never fail the run
func (o *Orchestrator) saveRunLog(ctx context.Context, result *RunResult, runErr error, log *logger.Logger) {
	if o.deps.Portfolios == nil {
		return
	}

	entry := &portfolio.RebalanceLog{
		RunID:      result.RunID,
		Date:       result.Date,
		Status:     result.Status,
		ConfigHash: result.ConfigHash,
		DurationMs: result.Duration.Milliseconds(),
		Metadata: map[string]interface{}{
			"stages":   result.CompletedStages,
			"turnover": result.Turnover,
		},
	}
	if snap, err := strategyconfig.NewDecisionSnapshot(o.config, result.RunID); err == nil {
		entry.Metadata["snapshot"] = snap
	}
	if t := result.TargetPortfolio; t != nil {
		entry.Positions = t.Count()
		entry.Gross = t.GrossExposure()
		entry.Net = t.NetExposure()
		entry.Objective = t.Objective
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	} else if result.Skipped {
		entry.Error = result.SkipReason
	}

	if err := o.deps.Portfolios.SaveRebalanceLog(ctx, entry); err != nil {
		log.WithError(err).Warn("Failed to save rebalance log")
	}
}

func wrapDataUnavailable(err error) error {
	if errors.Is(err, contracts.ErrDataUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", contracts.ErrDataUnavailable, err)
}
