package s2_signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/strategyconfig"
)

// ComputeFunc produces one raw factor series for the universe on date.
// It must not depend on any other step's output.
type ComputeFunc func(ctx context.Context, universe *contracts.Universe, date time.Time, data contracts.FactorDataProvider) (contracts.FactorSeries, error)

// Step is one entry of the ordered factor list
type Step struct {
	Name      string
	Winsorize bool
	Compute   ComputeFunc
}

// BuildSteps turns the configured factor list into computable steps, preserving order
func BuildSteps(cfg strategyconfig.Factors) ([]Step, error) {
	steps := make([]Step, 0, len(cfg.Steps))
	for _, s := range cfg.Steps {
		var step Step
		switch s.Kind {
		case strategyconfig.KindLatest:
			step = Latest(s.Name, s.Fields[0])
		case strategyconfig.KindRatio:
			step = Ratio(s.Name, s.Fields[0], s.Fields[1])
		case strategyconfig.KindSMA:
			step = SMA(s.Name, s.Fields[0], s.Window)
		case strategyconfig.KindReturn:
			step = Return(s.Name, s.Fields[0], s.Window)
		default:
			return nil, fmt.Errorf("factor %s: unknown kind %q", s.Name, s.Kind)
		}
		step.Winsorize = s.Winsorize
		steps = append(steps, step)
	}
	return steps, nil
}

// Latest uses the most recent value of field as-is
func Latest(name, field string) Step {
	return Step{
		Name: name,
		Compute: func(ctx context.Context, u *contracts.Universe, date time.Time, data contracts.FactorDataProvider) (contracts.FactorSeries, error) {
			values, err := data.Latest(ctx, field, date, u.Securities)
			if err != nil {
				return contracts.FactorSeries{}, err
			}

			series := contracts.NewFactorSeries(name)
			for _, symbol := range u.Securities {
				series.Values[symbol] = lookup(values, symbol)
			}
			return series, nil
		},
	}
}

// Ratio divides numerator by denominator (e.g. ebit / enterprise value).
// A non-positive or missing denominator makes the value missing.
func Ratio(name, numerator, denominator string) Step {
	return Step{
		Name: name,
		Compute: func(ctx context.Context, u *contracts.Universe, date time.Time, data contracts.FactorDataProvider) (contracts.FactorSeries, error) {
			num, err := data.Latest(ctx, numerator, date, u.Securities)
			if err != nil {
				return contracts.FactorSeries{}, err
			}
			den, err := data.Latest(ctx, denominator, date, u.Securities)
			if err != nil {
				return contracts.FactorSeries{}, err
			}

			series := contracts.NewFactorSeries(name)
			for _, symbol := range u.Securities {
				n, d := lookup(num, symbol), lookup(den, symbol)
				if contracts.IsMissing(n) || contracts.IsMissing(d) || d <= 0 {
					series.Values[symbol] = math.NaN()
					continue
				}
				series.Values[symbol] = n / d
			}
			return series, nil
		},
	}
}

// SMA averages the trailing window observations of field, skipping missing ones
func SMA(name, field string, window int) Step {
	return Step{
		Name: name,
		Compute: func(ctx context.Context, u *contracts.Universe, date time.Time, data contracts.FactorDataProvider) (contracts.FactorSeries, error) {
			windows, err := data.Window(ctx, field, date, u.Securities, window)
			if err != nil {
				return contracts.FactorSeries{}, err
			}

			series := contracts.NewFactorSeries(name)
			for _, symbol := range u.Securities {
				series.Values[symbol] = nanMean(windows[symbol])
			}
			return series, nil
		},
	}
}

func lookup(values map[string]float64, symbol string) float64 {
	v, ok := values[symbol]
	if !ok {
		return math.NaN()
	}
	return v
}

// nanMean returns the mean of the finite values, NaN if there are none
func nanMean(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !contracts.IsMissing(v) {
			finite = append(finite, v)
		}
	}

	mean, err := stats.Mean(finite)
	if err != nil {
		return math.NaN()
	}
	return mean
}
