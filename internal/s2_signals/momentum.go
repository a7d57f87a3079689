package s2_signals

import (
	"context"
	"math"
	"time"

	"github.com/wonny/longshort/internal/contracts"
)

// Return is the trailing change of field over window observations:
// (last - first) / |first|. Prices, revenue or any level series work.
// A missing endpoint or a zero base makes the value missing.
// ⭐ SSOT: 모멘텀(기간 수익률) 계산은 여기서만
func Return(name, field string, window int) Step {
	return Step{
		Name: name,
		Compute: func(ctx context.Context, u *contracts.Universe, date time.Time, data contracts.FactorDataProvider) (contracts.FactorSeries, error) {
			windows, err := data.Window(ctx, field, date, u.Securities, window)
			if err != nil {
				return contracts.FactorSeries{}, err
			}

			series := contracts.NewFactorSeries(name)
			for _, symbol := range u.Securities {
				series.Values[symbol] = trailingReturn(windows[symbol], window)
			}
			return series, nil
		},
	}
}

// trailingReturn needs a full window, oldest first
func trailingReturn(values []float64, window int) float64 {
	if len(values) < window || window < 2 {
		return math.NaN()
	}
	values = values[len(values)-window:]

	past, current := values[0], values[len(values)-1]
	if contracts.IsMissing(past) || contracts.IsMissing(current) || past == 0 {
		return math.NaN()
	}

	return (current - past) / math.Abs(past)
}
