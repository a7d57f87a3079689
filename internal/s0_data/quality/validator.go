package quality

import (
	"sort"
	"time"

	"github.com/wonny/longshort/internal/contracts"
)

// Config holds quality gate thresholds
type Config struct {
	MinCoverage float64 // 팩터별 최소 커버리지 (0.0 ~ 1.0)
}

// DefaultConfig returns the default gate
func DefaultConfig() Config {
	return Config{MinCoverage: 0.5}
}

// Report is the per-factor coverage of one rebalance
type Report struct {
	Date     time.Time          `json:"date"`
	Universe int                `json:"universe"`
	Coverage map[string]float64 `json:"coverage"` // factor → non-missing fraction
	Score    float64            `json:"score"`    // mean coverage
	LowCover []string           `json:"low_coverage,omitempty"`
}

// Passed reports whether every factor met the threshold
func (r *Report) Passed() bool {
	return len(r.LowCover) == 0
}

// QualityGate measures how much of the universe each raw factor covers.
// It only reports; missing values are handled by the factor engine's policy.
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check computes coverage of each factor over the universe
func (g *QualityGate) Check(universe *contracts.Universe, factors []contracts.FactorSeries) *Report {
	report := &Report{
		Date:     universe.Date,
		Universe: universe.Count(),
		Coverage: make(map[string]float64, len(factors)),
	}
	if universe.Count() == 0 || len(factors) == 0 {
		return report
	}

	total := 0.0
	for _, f := range factors {
		covered := 0
		for _, symbol := range universe.Securities {
			if _, ok := f.Get(symbol); ok {
				covered++
			}
		}
		cov := float64(covered) / float64(universe.Count())
		report.Coverage[f.Name] = cov
		total += cov

		if cov < g.config.MinCoverage {
			report.LowCover = append(report.LowCover, f.Name)
		}
	}
	sort.Strings(report.LowCover)
	report.Score = total / float64(len(factors))

	return report
}
