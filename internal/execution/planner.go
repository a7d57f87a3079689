package execution

import (
	"math"
	"sort"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/pkg/logger"
)

// Action is the kind of weight change for one symbol
type Action string

const (
	ActionOpen     Action = "OPEN"
	ActionClose    Action = "CLOSE"
	ActionIncrease Action = "INCREASE" // |weight| grows
	ActionDecrease Action = "DECREASE" // |weight| shrinks
	ActionFlip     Action = "FLIP"     // long ↔ short
)

// weightEpsilon treats smaller changes as no trade
const weightEpsilon = 1e-9

// Trade is the weight delta for one symbol
type Trade struct {
	Symbol string  `json:"symbol"`
	Action Action  `json:"action"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Delta  float64 `json:"delta"`
}

// Planner computes the trade list between two portfolios
// ⭐ SSOT: 리밸런싱 주문 계획은 여기서만
type Planner struct {
	logger *logger.Logger
}

// NewPlanner creates a new execution planner
func NewPlanner(log *logger.Logger) *Planner {
	return &Planner{logger: log.WithComponent("planner")}
}

// Plan returns trades moving prev to next. A nil prev means an empty book.
// Closes come first, then decreases, flips, increases and opens; symbols ascending within each group.
func (p *Planner) Plan(prev, next *contracts.TargetPortfolio) []Trade {
	return p.PlanFromHoldings(prev.Weights(), next)
}

// PlanFromHoldings is Plan with the current book given as weights
func (p *Planner) PlanFromHoldings(holdings map[string]float64, next *contracts.TargetPortfolio) []Trade {
	target := next.Weights()

	symbols := make(map[string]bool, len(holdings)+len(target))
	for s := range holdings {
		symbols[s] = true
	}
	for s := range target {
		symbols[s] = true
	}

	trades := make([]Trade, 0, len(symbols))
	for symbol := range symbols {
		from, to := holdings[symbol], target[symbol]
		delta := to - from
		if math.Abs(delta) <= weightEpsilon {
			continue
		}
		trades = append(trades, Trade{
			Symbol: symbol,
			Action: classify(from, to),
			From:   from,
			To:     to,
			Delta:  delta,
		})
	}

	sort.Slice(trades, func(i, j int) bool {
		oi, oj := actionOrder[trades[i].Action], actionOrder[trades[j].Action]
		if oi != oj {
			return oi < oj
		}
		return trades[i].Symbol < trades[j].Symbol
	})

	p.logger.WithFields(map[string]interface{}{
		"trades":   len(trades),
		"turnover": Turnover(trades),
	}).Info("Execution plan created")

	return trades
}

var actionOrder = map[Action]int{
	ActionClose:    0,
	ActionDecrease: 1,
	ActionFlip:     2,
	ActionIncrease: 3,
	ActionOpen:     4,
}

func classify(from, to float64) Action {
	switch {
	case math.Abs(from) <= weightEpsilon:
		return ActionOpen
	case math.Abs(to) <= weightEpsilon:
		return ActionClose
	case (from > 0) != (to > 0):
		return ActionFlip
	case math.Abs(to) > math.Abs(from):
		return ActionIncrease
	default:
		return ActionDecrease
	}
}

// Turnover returns Σ|delta|
func Turnover(trades []Trade) float64 {
	total := 0.0
	for _, t := range trades {
		total += math.Abs(t.Delta)
	}
	return total
}
