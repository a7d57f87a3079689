package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles audit data persistence
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRecord upserts the record of rec.Date
func (r *Repository) SaveRecord(ctx context.Context, rec *DailyRecord) error {
	query := `
		INSERT INTO audit.daily_records (
			record_date, run_id, num_positions, num_longs, num_shorts,
			gross_exposure, net_exposure, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (record_date) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			num_positions = EXCLUDED.num_positions,
			num_longs = EXCLUDED.num_longs,
			num_shorts = EXCLUDED.num_shorts,
			gross_exposure = EXCLUDED.gross_exposure,
			net_exposure = EXCLUDED.net_exposure,
			created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Date, rec.RunID, rec.NumPositions, rec.NumLongs, rec.NumShorts,
		rec.GrossExposure, rec.NetExposure,
	)
	if err != nil {
		return fmt.Errorf("failed to save daily record: %w", err)
	}

	return nil
}

// GetRecords returns records dated in [from, to], oldest first
func (r *Repository) GetRecords(ctx context.Context, from, to time.Time) ([]DailyRecord, error) {
	query := `
		SELECT record_date, run_id, num_positions, num_longs, num_shorts, gross_exposure, net_exposure
		FROM audit.daily_records
		WHERE record_date BETWEEN $1 AND $2
		ORDER BY record_date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily records: %w", err)
	}
	defer rows.Close()

	records := make([]DailyRecord, 0)
	for rows.Next() {
		var rec DailyRecord
		err := rows.Scan(&rec.Date, &rec.RunID, &rec.NumPositions, &rec.NumLongs, &rec.NumShorts,
			&rec.GrossExposure, &rec.NetExposure)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
