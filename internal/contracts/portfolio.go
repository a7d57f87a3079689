package contracts

import (
	"math"
	"sort"
	"time"
)

// TargetPortfolio is the signed weight per security handed to the execution collaborator
// ⭐ SSOT: Portfolio Constructor → Execution 전달
type TargetPortfolio struct {
	Date      time.Time        `json:"date"`
	Positions []TargetPosition `json:"positions"`
	Objective float64          `json:"objective"` // Σ weight·score at the optimum
}

// TargetPosition is one signed weight; positive is long, negative is short
type TargetPosition struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// Side returns the position direction
func (tp TargetPosition) Side() Side {
	if tp.Weight < 0 {
		return SideShort
	}
	return SideLong
}

// GrossExposure returns Σ|weight|
func (tp *TargetPortfolio) GrossExposure() float64 {
	total := 0.0
	for _, pos := range tp.Positions {
		total += math.Abs(pos.Weight)
	}
	return total
}

// NetExposure returns Σweight
func (tp *TargetPortfolio) NetExposure() float64 {
	total := 0.0
	for _, pos := range tp.Positions {
		total += pos.Weight
	}
	return total
}

// Count returns the number of positions
func (tp *TargetPortfolio) Count() int {
	return len(tp.Positions)
}

// Longs returns positions with positive weight
func (tp *TargetPortfolio) Longs() []TargetPosition {
	out := make([]TargetPosition, 0)
	for _, pos := range tp.Positions {
		if pos.Weight > 0 {
			out = append(out, pos)
		}
	}
	return out
}

// Shorts returns positions with negative weight
func (tp *TargetPortfolio) Shorts() []TargetPosition {
	out := make([]TargetPosition, 0)
	for _, pos := range tp.Positions {
		if pos.Weight < 0 {
			out = append(out, pos)
		}
	}
	return out
}

// Weight returns the weight for symbol (0 when not held)
func (tp *TargetPortfolio) Weight(symbol string) float64 {
	if tp == nil {
		return 0
	}
	for _, pos := range tp.Positions {
		if pos.Symbol == symbol {
			return pos.Weight
		}
	}
	return 0
}

// Weights returns the portfolio as a symbol → weight map
func (tp *TargetPortfolio) Weights() map[string]float64 {
	out := make(map[string]float64)
	if tp == nil {
		return out
	}
	for _, pos := range tp.Positions {
		out[pos.Symbol] = pos.Weight
	}
	return out
}

// SortPositions orders positions by descending weight, then symbol
func (tp *TargetPortfolio) SortPositions() {
	sort.Slice(tp.Positions, func(i, j int) bool {
		if tp.Positions[i].Weight != tp.Positions[j].Weight {
			return tp.Positions[i].Weight > tp.Positions[j].Weight
		}
		return tp.Positions[i].Symbol < tp.Positions[j].Symbol
	})
}
