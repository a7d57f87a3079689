package contracts

import "time"

// CombinedScore is the sum of standardized factor values for one security
// ⭐ SSOT: Factor Engine → Selection 전달
type CombinedScore struct {
	Symbol       string             `json:"symbol"`
	Score        float64            `json:"score"`
	ValidFactors int                `json:"valid_factors"`
	Factors      map[string]float64 `json:"factors"` // per-factor z-score, missing factors omitted
}

// Side is the direction of a candidate position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for longs and -1 for shorts
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// RankedSecurity is a long or short candidate
type RankedSecurity struct {
	Symbol string  `json:"symbol"`
	Rank   int     `json:"rank"` // 1-based, by descending score
	Score  float64 `json:"score"`
	Side   Side    `json:"side"`
}

// Selection holds the long and short candidate sets for one date
// ⭐ SSOT: Selection → Portfolio Constructor 전달
type Selection struct {
	Date   time.Time        `json:"date"`
	Longs  []RankedSecurity `json:"longs"`
	Shorts []RankedSecurity `json:"shorts"`
	Scores []CombinedScore  `json:"scores"` // every scored security, descending
}

// Candidates returns longs followed by shorts
func (s *Selection) Candidates() []RankedSecurity {
	out := make([]RankedSecurity, 0, len(s.Longs)+len(s.Shorts))
	out = append(out, s.Longs...)
	return append(out, s.Shorts...)
}

// Count returns the number of candidates
func (s *Selection) Count() int {
	return len(s.Longs) + len(s.Shorts)
}
