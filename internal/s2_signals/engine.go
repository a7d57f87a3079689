package s2_signals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/strategyconfig"
	"github.com/wonny/longshort/pkg/logger"
)

// Engine evaluates the factor steps and combines them into one score per security
// ⭐ SSOT: 팩터 결합 (winsorize → z-score → sum)은 여기서만
type Engine struct {
	steps    []Step
	bounds   strategyconfig.WinsorizeBounds
	policy   string
	minValid int
	logger   *logger.Logger
}

// NewEngine creates a factor engine over an ordered step list
func NewEngine(steps []Step, cfg strategyconfig.Factors, log *logger.Logger) *Engine {
	policy := cfg.MissingPolicy
	if policy == "" {
		policy = strategyconfig.MissingZeroFill
	}
	minValid := cfg.MinValidFactors
	if minValid < 1 {
		minValid = 1
	}

	return &Engine{
		steps:    steps,
		bounds:   cfg.Winsorize,
		policy:   policy,
		minValid: minValid,
		logger:   log.WithComponent("factor_engine"),
	}
}

// NewEngineFromConfig builds the steps from config and wraps them in an engine
func NewEngineFromConfig(cfg strategyconfig.Factors, log *logger.Logger) (*Engine, error) {
	steps, err := BuildSteps(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(steps, cfg, log), nil
}

// Build evaluates each step in order, winsorizes the flagged ones and
// standardizes every series across the universe.
func (e *Engine) Build(ctx context.Context, universe *contracts.Universe, date time.Time, data contracts.FactorDataProvider) ([]contracts.FactorSeries, error) {
	e.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"universe": universe.Count(),
		"factors":  len(e.steps),
	}).Info("Starting factor computation")

	standardized := make([]contracts.FactorSeries, 0, len(e.steps))
	for _, step := range e.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := step.Compute(ctx, universe, date, data)
		if err != nil {
			return nil, fmt.Errorf("factor %s: %w", step.Name, dataUnavailable(err))
		}
		raw.Name = step.Name

		if step.Winsorize {
			raw = Winsorize(raw, e.bounds.MinPercentile, e.bounds.MaxPercentile)
		}

		valid := len(raw.Valid())
		e.logger.WithFields(map[string]interface{}{
			"factor":  step.Name,
			"valid":   valid,
			"missing": universe.Count() - valid,
		}).Debug("Computed factor")

		standardized = append(standardized, ZScore(raw))
	}

	return standardized, nil
}

// Score runs Build and sums the standardized factors, sorted by descending score
func (e *Engine) Score(ctx context.Context, universe *contracts.Universe, date time.Time, data contracts.FactorDataProvider) ([]contracts.CombinedScore, error) {
	factors, err := e.Build(ctx, universe, date, data)
	if err != nil {
		return nil, err
	}

	return e.Combine(universe, factors), nil
}

// Combine applies the engine's missing-data policy to already standardized factors
func (e *Engine) Combine(universe *contracts.Universe, factors []contracts.FactorSeries) []contracts.CombinedScore {
	scores := Combine(universe.Securities, factors, e.policy, e.minValid)

	e.logger.WithFields(map[string]interface{}{
		"scored":   len(scores),
		"unscored": universe.Count() - len(scores),
		"policy":   e.policy,
	}).Info("Factor combination completed")

	return scores
}

// Combine sums per-factor z-scores for each symbol.
//
// zero_fill: a missing factor adds 0. exclude: any missing factor drops the
// symbol. Either way a symbol needs at least minValid non-missing factors.
func Combine(symbols []string, factors []contracts.FactorSeries, policy string, minValid int) []contracts.CombinedScore {
	scores := make([]contracts.CombinedScore, 0, len(symbols))

	for _, symbol := range symbols {
		cs := contracts.CombinedScore{
			Symbol:  symbol,
			Factors: make(map[string]float64, len(factors)),
		}
		for _, f := range factors {
			z, ok := f.Get(symbol)
			if !ok {
				continue
			}
			cs.Factors[f.Name] = z
			cs.Score += z
			cs.ValidFactors++
		}

		if cs.ValidFactors < minValid {
			continue
		}
		if policy == strategyconfig.MissingExclude && cs.ValidFactors < len(factors) {
			continue
		}
		scores = append(scores, cs)
	}

	SortScores(scores)
	return scores
}

// SortScores orders by descending score, ties by symbol ascending
func SortScores(scores []contracts.CombinedScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Symbol < scores[j].Symbol
	})
}

func dataUnavailable(err error) error {
	if errors.Is(err, contracts.ErrDataUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", contracts.ErrDataUnavailable, err)
}
