package contracts

import (
	"math"
	"sort"
)

// FactorSeries holds one named factor across the universe for a single date.
// A security is missing when it has no entry or its value is NaN.
type FactorSeries struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

// NewFactorSeries creates an empty series
func NewFactorSeries(name string) FactorSeries {
	return FactorSeries{Name: name, Values: make(map[string]float64)}
}

// Get returns the value for symbol and whether it is present and finite
func (f FactorSeries) Get(symbol string) (float64, bool) {
	v, ok := f.Values[symbol]
	if !ok || IsMissing(v) {
		return 0, false
	}
	return v, true
}

// Valid returns the non-missing entries
func (f FactorSeries) Valid() map[string]float64 {
	valid := make(map[string]float64, len(f.Values))
	for symbol, v := range f.Values {
		if !IsMissing(v) {
			valid[symbol] = v
		}
	}
	return valid
}

// Symbols returns every symbol with an entry, sorted
func (f FactorSeries) Symbols() []string {
	symbols := make([]string, 0, len(f.Values))
	for symbol := range f.Values {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// IsMissing reports whether v should be treated as a missing observation
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// RiskLoadings are per-security sensitivities to systematic risk factors.
// Loadings[symbol][k] is the exposure of symbol to Factors[k].
type RiskLoadings struct {
	Version  int                  `json:"version"`
	Factors  []string             `json:"factors"`
	Loadings map[string][]float64 `json:"loadings"`
}

// Exposure returns the loading of symbol on factor index k.
// Absent securities and missing values load zero.
func (r *RiskLoadings) Exposure(symbol string, k int) (float64, bool) {
	row, ok := r.Loadings[symbol]
	if !ok || k >= len(row) || IsMissing(row[k]) {
		return 0, false
	}
	return row[k], true
}
