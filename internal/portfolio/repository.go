package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/longshort/internal/contracts"
)

// ErrNotFound is returned when no stored target matches
var ErrNotFound = errors.New("target portfolio not found")

// Repository handles portfolio data persistence
// ⭐ SSOT: Portfolio 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveTargetPortfolio replaces the target stored for target.Date
func (r *Repository) SaveTargetPortfolio(ctx context.Context, target *contracts.TargetPortfolio, runID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM portfolio.target_positions WHERE target_date = $1", target.Date)
	if err != nil {
		return fmt.Errorf("failed to delete old positions: %w", err)
	}

	query := `
		INSERT INTO portfolio.target_positions (
			target_date, symbol, weight, score
		) VALUES ($1, $2, $3, $4)
	`

	for _, pos := range target.Positions {
		if _, err := tx.Exec(ctx, query, target.Date, pos.Symbol, pos.Weight, pos.Score); err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
	}

	summaryQuery := `
		INSERT INTO portfolio.portfolio_snapshots (
			snapshot_date, run_id, total_positions, gross_exposure, net_exposure, objective, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			total_positions = EXCLUDED.total_positions,
			gross_exposure = EXCLUDED.gross_exposure,
			net_exposure = EXCLUDED.net_exposure,
			objective = EXCLUDED.objective,
			created_at = NOW()
	`

	_, err = tx.Exec(ctx, summaryQuery,
		target.Date, runID, target.Count(), target.GrossExposure(), target.NetExposure(), target.Objective,
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTargetPortfolio retrieves the target for a date
func (r *Repository) GetTargetPortfolio(ctx context.Context, date time.Time) (*contracts.TargetPortfolio, error) {
	var objective float64
	err := r.pool.QueryRow(ctx,
		"SELECT objective FROM portfolio.portfolio_snapshots WHERE snapshot_date = $1",
		date,
	).Scan(&objective)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio snapshot: %w", err)
	}

	query := `
		SELECT symbol, weight, score
		FROM portfolio.target_positions
		WHERE target_date = $1
		ORDER BY weight DESC, symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query target positions: %w", err)
	}
	defer rows.Close()

	target := &contracts.TargetPortfolio{
		Date:      date,
		Positions: make([]contracts.TargetPosition, 0),
		Objective: objective,
	}

	for rows.Next() {
		var pos contracts.TargetPosition
		if err := rows.Scan(&pos.Symbol, &pos.Weight, &pos.Score); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		target.Positions = append(target.Positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return target, nil
}

// GetLatestTargetPortfolio retrieves the most recent stored target
func (r *Repository) GetLatestTargetPortfolio(ctx context.Context) (*contracts.TargetPortfolio, error) {
	var date time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT snapshot_date FROM portfolio.portfolio_snapshots ORDER BY snapshot_date DESC LIMIT 1",
	).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return r.GetTargetPortfolio(ctx, date)
}

// RebalanceLog represents one rebalance run (success, skip or failure)
type RebalanceLog struct {
	RunID      string
	Date       time.Time
	Status     string // completed, skipped, infeasible, failed
	Positions  int
	Gross      float64
	Net        float64
	Objective  float64
	ConfigHash string
	DurationMs int64
	Error      string
	Metadata   map[string]interface{}
}

// SaveRebalanceLog saves a rebalance run log
func (r *Repository) SaveRebalanceLog(ctx context.Context, log *RebalanceLog) error {
	metadataJSON, err := json.Marshal(log.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO portfolio.rebalance_logs (
			run_id, rebalance_date, status, positions, gross_exposure, net_exposure,
			objective, config_hash, duration_ms, error, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		log.RunID, log.Date, log.Status, log.Positions, log.Gross, log.Net,
		log.Objective, log.ConfigHash, log.DurationMs, log.Error, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save rebalance log: %w", err)
	}

	return nil
}

// GetRebalanceLogs returns the latest logs, newest first
func (r *Repository) GetRebalanceLogs(ctx context.Context, limit int) ([]RebalanceLog, error) {
	query := `
		SELECT run_id, rebalance_date, status, positions, gross_exposure, net_exposure,
			objective, config_hash, duration_ms, error, metadata
		FROM portfolio.rebalance_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance logs: %w", err)
	}
	defer rows.Close()

	logs := make([]RebalanceLog, 0)
	for rows.Next() {
		var (
			l            RebalanceLog
			metadataJSON []byte
		)
		err := rows.Scan(&l.RunID, &l.Date, &l.Status, &l.Positions, &l.Gross, &l.Net,
			&l.Objective, &l.ConfigHash, &l.DurationMs, &l.Error, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rebalance log: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return logs, nil
}

// StrategyState points at the target currently held by a strategy
type StrategyState struct {
	StrategyID    string
	RunID         string
	TargetDate    *time.Time
	LastRebalance *time.Time
	LastRecord    *time.Time
}

// SaveStrategyState upserts the state row of st.StrategyID
func (r *Repository) SaveStrategyState(ctx context.Context, st *StrategyState) error {
	query := `
		INSERT INTO portfolio.strategy_state (
			strategy_id, run_id, target_date, last_rebalance, last_record, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (strategy_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			target_date = EXCLUDED.target_date,
			last_rebalance = EXCLUDED.last_rebalance,
			last_record = EXCLUDED.last_record,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, st.StrategyID, st.RunID, st.TargetDate, st.LastRebalance, st.LastRecord)
	if err != nil {
		return fmt.Errorf("failed to save strategy state: %w", err)
	}

	return nil
}

// GetStrategyState loads the state row, ErrNotFound when the strategy never ran
func (r *Repository) GetStrategyState(ctx context.Context, strategyID string) (*StrategyState, error) {
	st := &StrategyState{StrategyID: strategyID}
	err := r.pool.QueryRow(ctx, `
		SELECT run_id, target_date, last_rebalance, last_record
		FROM portfolio.strategy_state
		WHERE strategy_id = $1
	`, strategyID).Scan(&st.RunID, &st.TargetDate, &st.LastRebalance, &st.LastRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: state of %s", ErrNotFound, strategyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy state: %w", err)
	}

	return st, nil
}
