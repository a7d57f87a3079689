package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/longshort/internal/contracts"
)

func TestQualityGate_Check(t *testing.T) {
	u := &contracts.Universe{Securities: []string{"A", "B", "C", "D"}}

	full := contracts.NewFactorSeries("quality")
	sparse := contracts.NewFactorSeries("sentiment")
	for _, s := range u.Securities {
		full.Values[s] = 1
	}
	sparse.Values["A"] = 1
	sparse.Values["B"] = math.NaN()

	report := NewQualityGate(DefaultConfig()).Check(u, []contracts.FactorSeries{full, sparse})

	assert.Equal(t, 4, report.Universe)
	assert.Equal(t, 1.0, report.Coverage["quality"])
	assert.Equal(t, 0.25, report.Coverage["sentiment"])
	assert.InDelta(t, 0.625, report.Score, 1e-12)
	assert.Equal(t, []string{"sentiment"}, report.LowCover)
	assert.False(t, report.Passed())
}

func TestQualityGate_Empty(t *testing.T) {
	report := NewQualityGate(DefaultConfig()).Check(&contracts.Universe{}, nil)
	assert.True(t, report.Passed())
	assert.Equal(t, 0.0, report.Score)
}
