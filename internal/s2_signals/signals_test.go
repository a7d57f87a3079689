package s2_signals

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/strategyconfig"
	"github.com/wonny/longshort/pkg/logger"
)

// memData is an in-memory FactorDataProvider
type memData struct {
	latest  map[string]map[string]float64
	windows map[string]map[string][]float64
	err     error
}

func (m *memData) Latest(_ context.Context, field string, _ time.Time, _ []string) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.latest[field], nil
}

func (m *memData) Window(_ context.Context, field string, _ time.Time, _ []string, length int) (map[string][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string][]float64)
	for symbol, values := range m.windows[field] {
		if len(values) > length {
			values = values[len(values)-length:]
		}
		out[symbol] = values
	}
	return out, nil
}

func series(name string, values map[string]float64) contracts.FactorSeries {
	s := contracts.NewFactorSeries(name)
	for k, v := range values {
		s.Values[k] = v
	}
	return s
}

var day = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func TestWinsorize(t *testing.T) {
	values := make(map[string]float64)
	for i := 1; i <= 20; i++ {
		values[string(rune('a'+i-1))] = float64(i)
	}
	values["nan"] = math.NaN()
	s := series("f", values)

	w := Winsorize(s, 0.05, 0.95)

	assert.Equal(t, 2.0, w.Values["a"], "lowest clamped up to rank 1")
	assert.Equal(t, 2.0, w.Values["b"])
	assert.Equal(t, 19.0, w.Values["t"], "highest clamped down to rank 18")
	assert.Equal(t, 10.0, w.Values["j"])
	assert.True(t, math.IsNaN(w.Values["nan"]), "missing stays missing")
	assert.Equal(t, 1.0, s.Values["a"], "input untouched")
}

func TestWinsorize_Idempotent(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]float64
		min, max float64
	}{
		{"skewed", map[string]float64{"A": -100, "B": 1, "C": 2, "D": 3, "E": 4, "F": 5, "G": 6, "H": 7, "I": 8, "J": 500}, 0.05, 0.95},
		{"wide bounds", map[string]float64{"A": 1, "B": 2, "C": 3, "D": 50}, 0.25, 0.75},
		{"ties", map[string]float64{"A": 1, "B": 1, "C": 1, "D": 9}, 0.1, 0.6},
		{"single", map[string]float64{"A": 3}, 0.05, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Winsorize(series("f", tt.values), tt.min, tt.max)
			twice := Winsorize(once, tt.min, tt.max)
			assert.Equal(t, once.Values, twice.Values)
		})
	}
}

func TestWinsorize_SmallUniverseUnchanged(t *testing.T) {
	s := series("f", map[string]float64{"A": 2, "B": 1, "C": -0.5, "D": -2})
	w := Winsorize(s, 0.05, 0.95)
	assert.Equal(t, s.Values, w.Values)
}

func TestZScore(t *testing.T) {
	z := ZScore(series("f", map[string]float64{"A": 1, "B": 2, "C": 3, "X": math.NaN()}))

	sd := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, -1/sd, z.Values["A"], 1e-12)
	assert.InDelta(t, 0, z.Values["B"], 1e-12)
	assert.InDelta(t, 1/sd, z.Values["C"], 1e-12)
	assert.True(t, math.IsNaN(z.Values["X"]))
}

func TestZScore_Degenerate(t *testing.T) {
	flat := ZScore(series("f", map[string]float64{"A": 5, "B": 5}))
	assert.Equal(t, 0.0, flat.Values["A"])
	assert.Equal(t, 0.0, flat.Values["B"])

	single := ZScore(series("f", map[string]float64{"A": 7, "B": math.NaN()}))
	assert.Equal(t, 0.0, single.Values["A"])
	assert.True(t, math.IsNaN(single.Values["B"]))
}

func TestCombine_MissingPolicy(t *testing.T) {
	// X is missing f1 only
	f1 := series("f1", map[string]float64{"A": 1, "B": -1, "X": math.NaN()})
	f2 := series("f2", map[string]float64{"A": 0.5, "B": -0.5, "X": 2})
	symbols := []string{"A", "B", "X"}

	t.Run("zero_fill", func(t *testing.T) {
		scores := Combine(symbols, []contracts.FactorSeries{f1, f2}, strategyconfig.MissingZeroFill, 1)
		require.Len(t, scores, 3)

		assert.Equal(t, "X", scores[0].Symbol)
		assert.Equal(t, 2.0, scores[0].Score)
		assert.Equal(t, 1, scores[0].ValidFactors)
		assert.NotContains(t, scores[0].Factors, "f1")
		assert.Equal(t, "A", scores[1].Symbol)
		assert.Equal(t, 1.5, scores[1].Score)
	})

	t.Run("exclude", func(t *testing.T) {
		scores := Combine(symbols, []contracts.FactorSeries{f1, f2}, strategyconfig.MissingExclude, 1)
		require.Len(t, scores, 2)
		assert.Equal(t, "A", scores[0].Symbol)
		assert.Equal(t, "B", scores[1].Symbol)
	})

	t.Run("min valid factors", func(t *testing.T) {
		scores := Combine(symbols, []contracts.FactorSeries{f1, f2}, strategyconfig.MissingZeroFill, 2)
		assert.Len(t, scores, 2)
	})
}

func TestCombine_TieBreak(t *testing.T) {
	f := series("f", map[string]float64{"B": 1, "A": 1, "C": 0})
	scores := Combine([]string{"B", "A", "C"}, []contracts.FactorSeries{f}, strategyconfig.MissingZeroFill, 1)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{scores[0].Symbol, scores[1].Symbol, scores[2].Symbol})
}

func TestSteps(t *testing.T) {
	u := &contracts.Universe{Date: day, Securities: []string{"A", "B", "C", "D"}}
	data := &memData{
		latest: map[string]map[string]float64{
			"ebit":             {"A": 10, "B": 5, "C": 3, "D": 4},
			"enterprise_value": {"A": 100, "B": 0, "C": 30},
			"roe":              {"A": 0.2, "B": math.NaN(), "C": 0.1, "D": 0.3},
		},
		windows: map[string]map[string][]float64{
			"bull_minus_bear": {"A": {9, 1, 2, 3}, "B": {math.NaN(), 4, math.NaN()}, "C": {math.NaN()}},
		},
	}
	ctx := context.Background()

	ratio, err := Ratio("value", "ebit", "enterprise_value").Compute(ctx, u, day, data)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, ratio.Values["A"], 1e-12)
	assert.True(t, math.IsNaN(ratio.Values["B"]), "zero denominator")
	assert.True(t, math.IsNaN(ratio.Values["D"]), "missing denominator")

	latest, err := Latest("quality", "roe").Compute(ctx, u, day, data)
	require.NoError(t, err)
	assert.Equal(t, 0.3, latest.Values["D"])
	assert.True(t, math.IsNaN(latest.Values["B"]))

	sma, err := SMA("sentiment", "bull_minus_bear", 3).Compute(ctx, u, day, data)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sma.Values["A"], 1e-12)
	assert.InDelta(t, 4.0, sma.Values["B"], 1e-12)
	assert.True(t, math.IsNaN(sma.Values["C"]))
	assert.True(t, math.IsNaN(sma.Values["D"]))
}

func TestBuildSteps_DefaultOrder(t *testing.T) {
	steps, err := BuildSteps(strategyconfig.Default().Factors)
	require.NoError(t, err)
	require.Len(t, steps, 7)
	assert.Equal(t, "value", steps[0].Name)
	assert.Equal(t, "total_revenue", steps[6].Name)
	for _, s := range steps {
		assert.True(t, s.Winsorize, s.Name)
	}
}

func TestEngine_Score(t *testing.T) {
	cfg := strategyconfig.Factors{
		Winsorize:       strategyconfig.WinsorizeBounds{MinPercentile: 0.05, MaxPercentile: 0.95},
		MissingPolicy:   strategyconfig.MissingZeroFill,
		MinValidFactors: 1,
		Steps: []strategyconfig.FactorStep{
			{Name: "quality", Kind: strategyconfig.KindLatest, Fields: []string{"roe"}, Winsorize: true},
			{Name: "growth", Kind: strategyconfig.KindLatest, Fields: []string{"growth"}, Winsorize: true},
		},
	}
	engine, err := NewEngineFromConfig(cfg, logger.Nop())
	require.NoError(t, err)

	u := &contracts.Universe{Date: day, Securities: []string{"A", "B", "X"}}
	data := &memData{latest: map[string]map[string]float64{
		"roe":    {"A": 1, "B": 3},
		"growth": {"A": 1, "B": 2, "X": 3},
	}}

	factors, err := engine.Build(context.Background(), u, day, data)
	require.NoError(t, err)
	require.Len(t, factors, 2)

	// X is left out of quality's statistics
	assert.InDelta(t, -1, factors[0].Values["A"], 1e-12)
	assert.InDelta(t, 1, factors[0].Values["B"], 1e-12)
	assert.True(t, math.IsNaN(factors[0].Values["X"]))

	scores, err := engine.Score(context.Background(), u, day, data)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	byName := make(map[string]contracts.CombinedScore)
	for _, s := range scores {
		byName[s.Symbol] = s
	}
	sd := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, 1/sd, byName["X"].Score, 1e-12)
	assert.Equal(t, 1, byName["X"].ValidFactors)
	assert.InDelta(t, 1, byName["B"].Score, 1e-12)
}

func TestEngine_DataUnavailable(t *testing.T) {
	engine, err := NewEngineFromConfig(strategyconfig.Default().Factors, logger.Nop())
	require.NoError(t, err)

	u := &contracts.Universe{Securities: []string{"A", "B"}}
	_, err = engine.Score(context.Background(), u, day, &memData{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestReturnStep(t *testing.T) {
	u := &contracts.Universe{Securities: []string{"A", "B", "C", "D", "E"}}
	data := &memData{windows: map[string]map[string][]float64{
		"close": {
			"A": {90, 100, 110, 120},
			"B": {100, 90, 80},
			"C": {0, 5, 10},
			"D": {100, math.NaN(), 150},
			"E": {100},
		},
	}}

	s, err := Return("momentum", "close", 3).Compute(context.Background(), u, day, data)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, s.Values["A"], 1e-12, "last 3 of 4 observations")
	assert.InDelta(t, -0.2, s.Values["B"], 1e-12)
	assert.True(t, math.IsNaN(s.Values["C"]), "zero base")
	assert.InDelta(t, 0.5, s.Values["D"], 1e-12, "only endpoints matter")
	assert.True(t, math.IsNaN(s.Values["E"]), "short history")
}

func TestBuildSteps_Return(t *testing.T) {
	steps, err := BuildSteps(strategyconfig.Factors{Steps: []strategyconfig.FactorStep{
		{Name: "momentum", Kind: strategyconfig.KindReturn, Fields: []string{"close"}, Window: 21},
	}})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "momentum", steps[0].Name)
}
