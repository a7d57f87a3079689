package portfolio

import (
	"fmt"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/strategyconfig"
)

// Constraints defines portfolio construction constraints
// ⭐ SSOT: 포트폴리오 제약조건은 여기서만
type Constraints struct {
	MaxGrossLeverage     float64 // Σ|w| 상한
	MinGrossLeverage     float64 // Σ|w| 하한 (0 = 없음)
	MaxLongPositionSize  float64 // 롱 종목당 최대 비중
	MaxShortPositionSize float64 // 숏 종목당 최대 비중 (절대값)
	Risk                 RiskNeutralization
}

// RiskNeutralization bounds aggregate exposure to each risk factor.
// A bound of 0 means exact neutralization.
type RiskNeutralization struct {
	Enabled           bool
	ModelVersion      int
	SectorExposureMax float64
	StyleExposureMax  float64
}

// ConstraintsFromConfig maps the strategy portfolio and risk sections
func ConstraintsFromConfig(cfg *strategyconfig.Config) Constraints {
	maxLong, maxShort := cfg.Portfolio.PositionBounds()
	return Constraints{
		MaxGrossLeverage:     cfg.Portfolio.MaxGrossLeverage,
		MinGrossLeverage:     cfg.Portfolio.MinGrossLeverage,
		MaxLongPositionSize:  maxLong,
		MaxShortPositionSize: maxShort,
		Risk: RiskNeutralization{
			Enabled:           cfg.Risk.Enabled,
			ModelVersion:      cfg.Risk.ModelVersion,
			SectorExposureMax: cfg.Risk.SectorExposureMax,
			StyleExposureMax:  cfg.Risk.StyleExposureMax,
		},
	}
}

// DefaultConstraints returns the defaults for totalPositions slots
func DefaultConstraints(totalPositions int) Constraints {
	bound := 2.0 / float64(totalPositions)
	return Constraints{
		MaxGrossLeverage:     1.0,
		MaxLongPositionSize:  bound,
		MaxShortPositionSize: bound,
	}
}

// Check rejects constraint sets that contradict each other before any solve
func (c Constraints) Check() error {
	switch {
	case c.MaxGrossLeverage <= 0:
		return fmt.Errorf("%w: max gross leverage %.4f leaves only the empty portfolio", contracts.ErrInfeasible, c.MaxGrossLeverage)
	case c.MinGrossLeverage > c.MaxGrossLeverage:
		return fmt.Errorf("%w: min gross leverage %.4f > max gross leverage %.4f", contracts.ErrInfeasible, c.MinGrossLeverage, c.MaxGrossLeverage)
	case c.MaxLongPositionSize < 0 || c.MaxShortPositionSize < 0:
		return fmt.Errorf("%w: negative position bound", contracts.ErrInfeasible)
	case c.Risk.SectorExposureMax < 0 || c.Risk.StyleExposureMax < 0:
		return fmt.Errorf("%w: negative risk exposure bound", contracts.ErrInfeasible)
	}
	return nil
}

// positionCap returns the absolute weight bound for a side
func (c Constraints) positionCap(side contracts.Side) float64 {
	if side == contracts.SideShort {
		return c.MaxShortPositionSize
	}
	return c.MaxLongPositionSize
}
