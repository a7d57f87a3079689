package strategyconfig

import "time"

// Config is the full long-short strategy definition
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Universe  Universe  `yaml:"universe" json:"universe"`
	Factors   Factors   `yaml:"factors" json:"factors"`
	Portfolio Portfolio `yaml:"portfolio" json:"portfolio"`
	Risk      Risk      `yaml:"risk" json:"risk"`
	Schedule  Schedule  `yaml:"schedule" json:"schedule"`
	Execution Execution `yaml:"execution" json:"execution"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Universe eligibility guard
type Universe struct {
	MinSize int `yaml:"min_size" json:"min_size"` // 미만이면 리밸런스 건너뜀
}

// Factors Factor Engine 설정
type Factors struct {
	Winsorize       WinsorizeBounds `yaml:"winsorize" json:"winsorize"`
	MissingPolicy   string          `yaml:"missing_policy" json:"missing_policy"` // zero_fill | exclude
	MinValidFactors int             `yaml:"min_valid_factors" json:"min_valid_factors"`
	Steps           []FactorStep    `yaml:"steps" json:"steps"`
}

// WinsorizeBounds percentile clipping range, fractions in [0, 1]
type WinsorizeBounds struct {
	MinPercentile float64 `yaml:"min_percentile" json:"min_percentile"`
	MaxPercentile float64 `yaml:"max_percentile" json:"max_percentile"`
}

// FactorStep one entry in the ordered factor list
type FactorStep struct {
	Name      string   `yaml:"name" json:"name"`
	Kind      string   `yaml:"kind" json:"kind"` // latest | ratio | sma | return
	Fields    []string `yaml:"fields" json:"fields"`
	Window    int      `yaml:"window,omitempty" json:"window,omitempty"`
	Winsorize bool     `yaml:"winsorize" json:"winsorize"`
}

// Missing-data policies
const (
	MissingZeroFill = "zero_fill"
	MissingExclude  = "exclude"
)

// Factor step kinds
const (
	KindLatest = "latest"
	KindRatio  = "ratio"
	KindSMA    = "sma"
	KindReturn = "return"
)

// Portfolio 포트폴리오 제약조건
type Portfolio struct {
	TotalPositions       int      `yaml:"total_positions" json:"total_positions"`
	MaxGrossLeverage     float64  `yaml:"max_gross_leverage" json:"max_gross_leverage"`
	MinGrossLeverage     float64  `yaml:"min_gross_leverage" json:"min_gross_leverage"`
	MaxLongPositionSize  *float64 `yaml:"max_long_position_size,omitempty" json:"max_long_position_size,omitempty"`   // nil → 2/total_positions
	MaxShortPositionSize *float64 `yaml:"max_short_position_size,omitempty" json:"max_short_position_size,omitempty"` // nil → 2/total_positions
}

// PerSide returns K, the number of long (and short) candidates
func (p Portfolio) PerSide() int {
	return p.TotalPositions / 2
}

// PositionBounds returns the max long and max short position sizes
func (p Portfolio) PositionBounds() (maxLong, maxShort float64) {
	def := 0.0
	if p.TotalPositions > 0 {
		def = 2.0 / float64(p.TotalPositions)
	}
	maxLong, maxShort = def, def
	if p.MaxLongPositionSize != nil {
		maxLong = *p.MaxLongPositionSize
	}
	if p.MaxShortPositionSize != nil {
		maxShort = *p.MaxShortPositionSize
	}
	return maxLong, maxShort
}

// Risk 리스크 팩터 중립화
type Risk struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	ModelVersion      int     `yaml:"model_version" json:"model_version"`
	SectorExposureMax float64 `yaml:"sector_exposure_max" json:"sector_exposure_max"` // 0 = 완전 중립
	StyleExposureMax  float64 `yaml:"style_exposure_max" json:"style_exposure_max"`
}

// Schedule 스케줄 (파라미터는 그대로 전달)
type Schedule struct {
	MarketOpen  string    `yaml:"market_open" json:"market_open"`   // HH:MM
	MarketClose string    `yaml:"market_close" json:"market_close"` // HH:MM
	Rebalance   Rebalance `yaml:"rebalance" json:"rebalance"`
	Record      Record    `yaml:"record" json:"record"`
}

type Rebalance struct {
	DaysOffset       int `yaml:"days_offset" json:"days_offset"` // 0 = 주 첫 거래일
	MinutesAfterOpen int `yaml:"minutes_after_open" json:"minutes_after_open"`
}

type Record struct {
	MinutesBeforeClose int `yaml:"minutes_before_close" json:"minutes_before_close"`
}

// Execution 주문 협력자 설정
type Execution struct {
	DryRun bool `yaml:"dry_run" json:"dry_run"`
}

// DecisionSnapshot pins the config used for a rebalance (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	StrategyID string    `json:"strategy_id"`
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func floatPtr(v float64) *float64 { return &v }

// Default returns the long-short equity template:
// seven winsorized fundamental/sentiment factors, 3 positions, gross 1.0.
func Default() *Config {
	winsorized := func(name, kind string, window int, fields ...string) FactorStep {
		return FactorStep{Name: name, Kind: kind, Fields: fields, Window: window, Winsorize: true}
	}

	return &Config{
		Meta: Meta{
			StrategyID: "long_short_equity",
			Version:    "1",
			Timezone:   "America/New_York",
		},
		Universe: Universe{MinSize: 2},
		Factors: Factors{
			Winsorize:       WinsorizeBounds{MinPercentile: 0.05, MaxPercentile: 0.95},
			MissingPolicy:   MissingZeroFill,
			MinValidFactors: 1,
			Steps: []FactorStep{
				winsorized("value", KindRatio, 0, "ebit", "enterprise_value"),
				winsorized("quality", KindLatest, 0, "roe"),
				winsorized("sentiment", KindSMA, 3, "bull_minus_bear"),
				winsorized("sustainable_growth_rate", KindLatest, 0, "sustainable_growth_rate"),
				winsorized("working_capital_per_share", KindLatest, 0, "working_capital_per_share"),
				winsorized("growth_score", KindLatest, 0, "growth_score"),
				winsorized("total_revenue", KindLatest, 0, "total_revenue"),
			},
		},
		Portfolio: Portfolio{
			TotalPositions:   3,
			MaxGrossLeverage: 1.0,
		},
		Risk: Risk{
			Enabled:      false,
			ModelVersion: 0,
		},
		Schedule: Schedule{
			MarketOpen:  "09:30",
			MarketClose: "16:00",
			Rebalance:   Rebalance{DaysOffset: 0, MinutesAfterOpen: 30},
			Record:      Record{MinutesBeforeClose: 1},
		},
	}
}
