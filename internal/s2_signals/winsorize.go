package s2_signals

import (
	"math"
	"sort"

	"github.com/wonny/longshort/internal/contracts"
)

const pctEpsilon = 1e-9

// Winsorize clamps a series to its [minPct, maxPct] percentile range.
//
// With n valid values sorted ascending, values ranked below floor(minPct·n)
// take the value at that rank and values ranked at or above ceil(maxPct·n)
// take the value at rank ceil(maxPct·n)-1. Missing values stay missing and
// do not count toward n. Applying it twice gives the same series.
func Winsorize(series contracts.FactorSeries, minPct, maxPct float64) contracts.FactorSeries {
	out := contracts.NewFactorSeries(series.Name)
	for symbol, v := range series.Values {
		out.Values[symbol] = v
	}

	valid := series.Valid()
	n := len(valid)
	if n == 0 {
		return out
	}

	sorted := make([]float64, 0, n)
	for _, v := range valid {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)

	lower := int(math.Floor(minPct*float64(n) + pctEpsilon))
	upper := int(math.Ceil(maxPct*float64(n) - pctEpsilon))
	lower = clampIndex(lower, 0, n-1)
	upper = clampIndex(upper, lower+1, n)

	lo, hi := sorted[lower], sorted[upper-1]
	for symbol, v := range valid {
		switch {
		case v < lo:
			out.Values[symbol] = lo
		case v > hi:
			out.Values[symbol] = hi
		}
	}
	return out
}

func clampIndex(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}
