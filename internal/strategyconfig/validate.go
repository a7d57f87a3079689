package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	_ "time/tzdata"

	"github.com/wonny/longshort/internal/riskmodel"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil || cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", "must be a valid IANA timezone"}
	}

	// === Universe ===
	if cfg.Universe.MinSize < 1 {
		return ValidationError{"universe.min_size", "must be >= 1"}
	}

	// === Factors ===
	if err := validateFactors(&cfg.Factors); err != nil {
		return err
	}

	// === Portfolio ===
	p := cfg.Portfolio
	if p.TotalPositions < 2 {
		return ValidationError{"portfolio.total_positions", "must be >= 2"}
	}
	if p.MaxGrossLeverage <= 0 {
		return ValidationError{"portfolio.max_gross_leverage", "must be > 0"}
	}
	if p.MinGrossLeverage < 0 || p.MinGrossLeverage > p.MaxGrossLeverage {
		return ValidationError{"portfolio.min_gross_leverage", "must be in [0, max_gross_leverage]"}
	}
	if p.MaxLongPositionSize != nil && *p.MaxLongPositionSize < 0 {
		return ValidationError{"portfolio.max_long_position_size", "must be >= 0"}
	}
	if p.MaxShortPositionSize != nil && *p.MaxShortPositionSize < 0 {
		return ValidationError{"portfolio.max_short_position_size", "must be >= 0"}
	}

	// === Risk ===
	if _, err := riskmodel.Lookup(cfg.Risk.ModelVersion); err != nil {
		return ValidationError{"risk.model_version", err.Error()}
	}
	if cfg.Risk.SectorExposureMax < 0 {
		return ValidationError{"risk.sector_exposure_max", "must be >= 0"}
	}
	if cfg.Risk.StyleExposureMax < 0 {
		return ValidationError{"risk.style_exposure_max", "must be >= 0"}
	}

	// === Schedule ===
	return validateSchedule(&cfg.Schedule)
}

func validateFactors(f *Factors) error {
	w := f.Winsorize
	if w.MinPercentile < 0 || w.MaxPercentile > 1 || w.MinPercentile >= w.MaxPercentile {
		return ValidationError{"factors.winsorize", "must satisfy 0 <= min_percentile < max_percentile <= 1"}
	}

	if f.MissingPolicy != MissingZeroFill && f.MissingPolicy != MissingExclude {
		return ValidationError{"factors.missing_policy", fmt.Sprintf("must be %s or %s", MissingZeroFill, MissingExclude)}
	}

	if len(f.Steps) == 0 {
		return ValidationError{"factors.steps", "required"}
	}
	if f.MinValidFactors < 1 || f.MinValidFactors > len(f.Steps) {
		return ValidationError{"factors.min_valid_factors", fmt.Sprintf("must be in [1, %d]", len(f.Steps))}
	}

	seen := make(map[string]bool)
	for i, step := range f.Steps {
		field := fmt.Sprintf("factors.steps[%d]", i)
		if step.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[step.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate factor %q", step.Name)}
		}
		seen[step.Name] = true

		switch step.Kind {
		case KindLatest:
			if len(step.Fields) != 1 {
				return ValidationError{field + ".fields", "latest takes exactly one field"}
			}
		case KindRatio:
			if len(step.Fields) != 2 {
				return ValidationError{field + ".fields", "ratio takes [numerator, denominator]"}
			}
		case KindSMA:
			if len(step.Fields) != 1 {
				return ValidationError{field + ".fields", "sma takes exactly one field"}
			}
			if step.Window < 1 {
				return ValidationError{field + ".window", "must be >= 1"}
			}
		case KindReturn:
			if len(step.Fields) != 1 {
				return ValidationError{field + ".fields", "return takes exactly one field"}
			}
			if step.Window < 2 {
				return ValidationError{field + ".window", "must be >= 2"}
			}
		default:
			return ValidationError{field + ".kind", fmt.Sprintf("unknown kind %q", step.Kind)}
		}
	}

	return nil
}

func validateSchedule(s *Schedule) error {
	open, err := parseHHMM(s.MarketOpen)
	if err != nil {
		return ValidationError{"schedule.market_open", err.Error()}
	}
	close, err := parseHHMM(s.MarketClose)
	if err != nil {
		return ValidationError{"schedule.market_close", err.Error()}
	}
	if open >= close {
		return ValidationError{"schedule", "market_open must be before market_close"}
	}

	if s.Rebalance.DaysOffset < 0 || s.Rebalance.DaysOffset > 4 {
		return ValidationError{"schedule.rebalance.days_offset", "must be in [0, 4]"}
	}
	if s.Rebalance.MinutesAfterOpen < 0 || open+s.Rebalance.MinutesAfterOpen >= close {
		return ValidationError{"schedule.rebalance.minutes_after_open", "must land inside market hours"}
	}
	if s.Record.MinutesBeforeClose < 0 || close-s.Record.MinutesBeforeClose <= open {
		return ValidationError{"schedule.record.minutes_before_close", "must land inside market hours"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning
	p := cfg.Portfolio

	if p.TotalPositions%2 == 1 {
		warnings = append(warnings, Warning{
			Code:    "ODD_TOTAL_POSITIONS",
			Message: fmt.Sprintf("total_positions=%d: only %d longs and %d shorts are selected", p.TotalPositions, p.PerSide(), p.PerSide()),
		})
	}

	maxLong, maxShort := p.PositionBounds()
	reachable := float64(p.PerSide()) * (maxLong + maxShort)
	if p.MinGrossLeverage > reachable {
		warnings = append(warnings, Warning{
			Code:    "UNREACHABLE_GROSS",
			Message: fmt.Sprintf("min_gross_leverage=%.4f exceeds the %.4f the position bounds allow; every rebalance will be infeasible", p.MinGrossLeverage, reachable),
		})
	}

	if cfg.Risk.Enabled && (cfg.Risk.SectorExposureMax == 0 || cfg.Risk.StyleExposureMax == 0) && p.PerSide() < 5 {
		warnings = append(warnings, Warning{
			Code:    "EXACT_NEUTRALITY",
			Message: "exact risk neutralization with few positions is usually infeasible; consider exposure bounds",
		})
	}

	return warnings
}

// === Helper Functions ===

// parseHHMM returns minutes since midnight
func parseHHMM(s string) (int, error) {
	if !hhmm.MatchString(s) {
		return 0, errors.New("must be HH:MM format")
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
