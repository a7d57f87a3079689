package selection

import (
	"context"
	"time"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/s2_signals"
	"github.com/wonny/longshort/pkg/logger"
)

// Ranker picks the long and short candidate sets from combined scores
// ⭐ SSOT: 롱/숏 후보 선정은 여기서만
type Ranker struct {
	totalPositions int
	logger         *logger.Logger
}

// NewRanker creates a ranker for TotalPositions slots (K = TotalPositions/2 per side)
func NewRanker(totalPositions int, log *logger.Logger) *Ranker {
	return &Ranker{
		totalPositions: totalPositions,
		logger:         log.WithComponent("ranker"),
	}
}

// PerSide returns K
func (r *Ranker) PerSide() int {
	return r.totalPositions / 2
}

// Select returns the top-K scores as longs and the bottom-K of the rest as shorts.
// Fewer scores than slots yield fewer candidates; nothing is padded.
func (r *Ranker) Select(ctx context.Context, date time.Time, scores []contracts.CombinedScore) *contracts.Selection {
	ranked := make([]contracts.CombinedScore, len(scores))
	copy(ranked, scores)
	s2_signals.SortScores(ranked)

	k := r.PerSide()
	sel := &contracts.Selection{
		Date:   date,
		Longs:  make([]contracts.RankedSecurity, 0, k),
		Shorts: make([]contracts.RankedSecurity, 0, k),
		Scores: ranked,
	}

	nLong := min(k, len(ranked))
	for i := 0; i < nLong; i++ {
		sel.Longs = append(sel.Longs, rankedSecurity(ranked[i], i, contracts.SideLong))
	}

	// 롱으로 뽑힌 종목은 숏 후보에서 제외
	for i := len(ranked) - 1; i >= nLong && len(sel.Shorts) < k; i-- {
		sel.Shorts = append(sel.Shorts, rankedSecurity(ranked[i], i, contracts.SideShort))
	}

	fields := map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"scored": len(ranked),
		"k":      k,
		"longs":  len(sel.Longs),
		"shorts": len(sel.Shorts),
	}
	if len(ranked) > 0 {
		fields["top_symbol"] = ranked[0].Symbol
		fields["top_score"] = ranked[0].Score
	}
	r.logger.WithFields(fields).Info("Selection completed")

	return sel
}

func rankedSecurity(cs contracts.CombinedScore, idx int, side contracts.Side) contracts.RankedSecurity {
	return contracts.RankedSecurity{
		Symbol: cs.Symbol,
		Rank:   idx + 1,
		Score:  cs.Score,
		Side:   side,
	}
}
