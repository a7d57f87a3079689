package execution

import (
	"context"
	"sync"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/pkg/logger"
)

// Broker is the execution collaborator that realizes a target portfolio
// ⭐ SSOT: 주문 협력자 인터페이스는 여기서만 정의
type Broker interface {
	// SubmitTarget hands over the new target; the broker owns turning it into trades
	SubmitTarget(ctx context.Context, target *contracts.TargetPortfolio) error

	// Holdings returns the current signed weights held by the broker
	Holdings(ctx context.Context) (map[string]float64, error)
}

// LogBroker is an in-memory broker: it holds the last submitted target and
// logs the trades that would move the book there.
type LogBroker struct {
	mu       sync.RWMutex
	holdings map[string]float64
	planner  *Planner
	logger   *logger.Logger
}

// NewLogBroker creates an empty in-memory broker
func NewLogBroker(log *logger.Logger) *LogBroker {
	return &LogBroker{
		holdings: make(map[string]float64),
		planner:  NewPlanner(log),
		logger:   log.WithComponent("log_broker"),
	}
}

// SubmitTarget replaces the holdings with the target weights
func (b *LogBroker) SubmitTarget(ctx context.Context, target *contracts.TargetPortfolio) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	trades := b.planner.PlanFromHoldings(b.holdings, target)
	for _, t := range trades {
		b.logger.WithFields(map[string]interface{}{
			"symbol": t.Symbol,
			"action": t.Action,
			"from":   t.From,
			"to":     t.To,
			"delta":  t.Delta,
		}).Info("Trade")
	}

	b.holdings = target.Weights()
	return nil
}

// Holdings returns a copy of the current weights
func (b *LogBroker) Holdings(ctx context.Context) (map[string]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]float64, len(b.holdings))
	for symbol, w := range b.holdings {
		out[symbol] = w
	}
	return out, nil
}
