package strategyconfig

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := "../../config/strategy/long_short_equity.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "long_short_equity", cfg.Meta.StrategyID)
	assert.Equal(t, 3, cfg.Portfolio.TotalPositions)
	assert.Equal(t, 1.0, cfg.Portfolio.MaxGrossLeverage)
	assert.Len(t, cfg.Factors.Steps, 7)
	assert.True(t, cfg.Risk.Enabled)

	record, err := cfg.Schedule.RecordCron()
	require.NoError(t, err)
	assert.Equal(t, "0 59 15 * * MON-FRI", record, "record one minute before the close")

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 1, cfg.Portfolio.PerSide())

	maxLong, maxShort := cfg.Portfolio.PositionBounds()
	assert.InDelta(t, 2.0/3.0, maxLong, 1e-12)
	assert.InDelta(t, 2.0/3.0, maxShort, 1e-12)
}

func TestPositionBoundsExplicitZero(t *testing.T) {
	p := Portfolio{TotalPositions: 4, MaxLongPositionSize: floatPtr(0)}
	maxLong, maxShort := p.PositionBounds()
	assert.Equal(t, 0.0, maxLong)
	assert.Equal(t, 0.5, maxShort)
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("meta:\n  strategy_id: x\n  timezone: UTC\nportfolo:\n  total_positions: 4\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"bad timezone", func(c *Config) { c.Meta.Timezone = "Mars/Olympus" }, "meta.timezone"},
		{"min size", func(c *Config) { c.Universe.MinSize = 0 }, "universe.min_size"},
		{"inverted percentiles", func(c *Config) { c.Factors.Winsorize.MinPercentile = 0.9; c.Factors.Winsorize.MaxPercentile = 0.1 }, "factors.winsorize"},
		{"unknown policy", func(c *Config) { c.Factors.MissingPolicy = "impute" }, "factors.missing_policy"},
		{"min valid too high", func(c *Config) { c.Factors.MinValidFactors = 8 }, "factors.min_valid_factors"},
		{"no steps", func(c *Config) { c.Factors.Steps = nil }, "factors.steps"},
		{"duplicate step", func(c *Config) { c.Factors.Steps[1].Name = "value" }, "factors.steps[1].name"},
		{"ratio arity", func(c *Config) { c.Factors.Steps[0].Fields = []string{"ebit"} }, "factors.steps[0].fields"},
		{"sma window", func(c *Config) { c.Factors.Steps[2].Window = 0 }, "factors.steps[2].window"},
		{"unknown kind", func(c *Config) { c.Factors.Steps[1].Kind = "ewma" }, "factors.steps[1].kind"},
		{"return window", func(c *Config) { c.Factors.Steps[1].Kind = KindReturn }, "factors.steps[1].window"},
		{"too few positions", func(c *Config) { c.Portfolio.TotalPositions = 1 }, "portfolio.total_positions"},
		{"zero gross", func(c *Config) { c.Portfolio.MaxGrossLeverage = 0 }, "portfolio.max_gross_leverage"},
		{"min gross above max", func(c *Config) { c.Portfolio.MinGrossLeverage = 1.5 }, "portfolio.min_gross_leverage"},
		{"negative long bound", func(c *Config) { c.Portfolio.MaxLongPositionSize = floatPtr(-0.1) }, "portfolio.max_long_position_size"},
		{"unknown risk model", func(c *Config) { c.Risk.ModelVersion = 7 }, "risk.model_version"},
		{"negative sector bound", func(c *Config) { c.Risk.SectorExposureMax = -1 }, "risk.sector_exposure_max"},
		{"bad open", func(c *Config) { c.Schedule.MarketOpen = "9:30" }, "schedule.market_open"},
		{"open after close", func(c *Config) { c.Schedule.MarketOpen = "17:00" }, "schedule"},
		{"days offset", func(c *Config) { c.Schedule.Rebalance.DaysOffset = 5 }, "schedule.rebalance.days_offset"},
		{"rebalance after close", func(c *Config) { c.Schedule.Rebalance.MinutesAfterOpen = 400 }, "schedule.rebalance.minutes_after_open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	codes := warningCodes(Warn(cfg))
	assert.Contains(t, codes, "ODD_TOTAL_POSITIONS")

	cfg.Portfolio.TotalPositions = 2
	cfg.Portfolio.MinGrossLeverage = 0.5
	cfg.Portfolio.MaxLongPositionSize = floatPtr(0)
	cfg.Portfolio.MaxShortPositionSize = floatPtr(0)
	assert.Contains(t, warningCodes(Warn(cfg)), "UNREACHABLE_GROSS")

	cfg = Default()
	cfg.Risk.Enabled = true
	assert.Contains(t, warningCodes(Warn(cfg)), "EXACT_NEUTRALITY")
}

func warningCodes(ws []Warning) []string {
	codes := make([]string, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

func TestCronSpecs(t *testing.T) {
	tests := []struct {
		name      string
		schedule  Schedule
		rebalance string
		record    string
	}{
		{
			name:      "default",
			schedule:  Default().Schedule,
			rebalance: "0 0 10 * * MON",
			record:    "0 59 15 * * MON-FRI",
		},
		{
			name: "offset",
			schedule: Schedule{
				MarketOpen:  "09:30",
				MarketClose: "16:00",
				Rebalance:   Rebalance{DaysOffset: 2, MinutesAfterOpen: 45},
				Record:      Record{MinutesBeforeClose: 5},
			},
			rebalance: "0 15 10 * * WED",
			record:    "0 55 15 * * MON-FRI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rebalance, err := tt.schedule.RebalanceCron()
			require.NoError(t, err)
			assert.Equal(t, tt.rebalance, rebalance)

			record, err := tt.schedule.RecordCron()
			require.NoError(t, err)
			assert.Equal(t, tt.record, record)
		})
	}
}

func TestLocation(t *testing.T) {
	loc, err := Default().Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestDecisionSnapshot(t *testing.T) {
	snap, err := NewDecisionSnapshot(Default(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "long_short_equity", snap.StrategyID)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Len(t, snap.ConfigHash, 64)
}
