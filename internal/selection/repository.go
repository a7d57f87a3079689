package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/longshort/internal/contracts"
)

// Repository handles selection data persistence
// ⭐ SSOT: Selection 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSelection replaces the scores and candidate sides stored for the selection date
func (r *Repository) SaveSelection(ctx context.Context, sel *contracts.Selection) error {
	sides := make(map[string]contracts.Side, sel.Count())
	for _, c := range sel.Candidates() {
		sides[c.Symbol] = c.Side
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM selection.combined_scores WHERE score_date = $1", sel.Date)
	if err != nil {
		return fmt.Errorf("failed to delete old scores: %w", err)
	}

	query := `
		INSERT INTO selection.combined_scores (
			symbol, score_date, rank, score, valid_factors, factors, side
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, cs := range sel.Scores {
		factorsJSON, err := json.Marshal(cs.Factors)
		if err != nil {
			return fmt.Errorf("failed to marshal factors: %w", err)
		}

		var side *string
		if s, ok := sides[cs.Symbol]; ok {
			v := string(s)
			side = &v
		}

		_, err = tx.Exec(ctx, query, cs.Symbol, sel.Date, i+1, cs.Score, cs.ValidFactors, factorsJSON, side)
		if err != nil {
			return fmt.Errorf("failed to insert combined score: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSelection rebuilds the selection stored for a date
func (r *Repository) GetSelection(ctx context.Context, date time.Time) (*contracts.Selection, error) {
	query := `
		SELECT symbol, rank, score, valid_factors, factors, side
		FROM selection.combined_scores
		WHERE score_date = $1
		ORDER BY rank ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query combined scores: %w", err)
	}
	defer rows.Close()

	sel := &contracts.Selection{Date: date}

	for rows.Next() {
		var (
			cs          contracts.CombinedScore
			rank        int
			factorsJSON []byte
			side        *string
		)
		if err := rows.Scan(&cs.Symbol, &rank, &cs.Score, &cs.ValidFactors, &factorsJSON, &side); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(factorsJSON, &cs.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
		sel.Scores = append(sel.Scores, cs)

		if side == nil {
			continue
		}
		rs := contracts.RankedSecurity{Symbol: cs.Symbol, Rank: rank, Score: cs.Score, Side: contracts.Side(*side)}
		if rs.Side == contracts.SideLong {
			sel.Longs = append(sel.Longs, rs)
		} else {
			sel.Shorts = append(sel.Shorts, rs)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// 숏은 최하위부터
	for i, j := 0, len(sel.Shorts)-1; i < j; i, j = i+1, j-1 {
		sel.Shorts[i], sel.Shorts[j] = sel.Shorts[j], sel.Shorts[i]
	}

	return sel, nil
}
