package s2_signals

import (
	"github.com/montanaflynn/stats"

	"github.com/wonny/longshort/internal/contracts"
)

// ZScore standardizes the valid values of a series to zero mean and unit
// (population) variance. With fewer than two valid values or zero spread
// every valid value scores 0. Missing values stay missing.
func ZScore(series contracts.FactorSeries) contracts.FactorSeries {
	out := contracts.NewFactorSeries(series.Name)
	for symbol, v := range series.Values {
		out.Values[symbol] = v
	}

	valid := series.Valid()
	data := make(stats.Float64Data, 0, len(valid))
	for _, v := range valid {
		data = append(data, v)
	}

	mean, errMean := stats.Mean(data)
	sd, errSD := stats.StandardDeviationPopulation(data)
	flat := len(data) < 2 || errMean != nil || errSD != nil || sd == 0

	for symbol, v := range valid {
		if flat {
			out.Values[symbol] = 0
			continue
		}
		out.Values[symbol] = (v - mean) / sd
	}
	return out
}
