package s0_data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/riskmodel"
)

// PostgresProvider reads universe, factor and loading data from the market schema
// ⭐ SSOT: DB 기반 데이터 제공자
type PostgresProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresProvider creates a new provider over pool
func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// Universe returns the latest universe snapshot on or before date
func (p *PostgresProvider) Universe(ctx context.Context, date time.Time) (*contracts.Universe, error) {
	query := `
		SELECT symbol, eligible, COALESCE(reason, '')
		FROM market.universe
		WHERE trade_date = (
			SELECT MAX(trade_date) FROM market.universe WHERE trade_date <= $1
		)
		ORDER BY symbol
	`

	rows, err := p.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("%w: query universe: %v", contracts.ErrDataUnavailable, err)
	}
	defer rows.Close()

	u := &contracts.Universe{
		Date:     date,
		Excluded: make(map[string]string),
	}
	for rows.Next() {
		var (
			symbol, reason string
			eligible       bool
		)
		if err := rows.Scan(&symbol, &eligible, &reason); err != nil {
			return nil, fmt.Errorf("%w: scan universe: %v", contracts.ErrDataUnavailable, err)
		}
		if !eligible {
			u.Excluded[symbol] = reason
			continue
		}
		u.Securities = append(u.Securities, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate universe: %v", contracts.ErrDataUnavailable, err)
	}

	if len(u.Securities) == 0 && len(u.Excluded) == 0 {
		return nil, fmt.Errorf("%w: no universe on or before %s", contracts.ErrInsufficientUniverse, date.Format(time.DateOnly))
	}

	return u, nil
}

// Latest returns the most recent value of field per symbol on or before date
func (p *PostgresProvider) Latest(ctx context.Context, field string, date time.Time, symbols []string) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (symbol) symbol, value
		FROM market.factor_values
		WHERE field = $1 AND as_of <= $2 AND symbol = ANY($3)
		ORDER BY symbol, as_of DESC
	`

	rows, err := p.pool.Query(ctx, query, field, date, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", contracts.ErrDataUnavailable, field, err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(symbols))
	for rows.Next() {
		var (
			symbol string
			value  *float64
		)
		if err := rows.Scan(&symbol, &value); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", contracts.ErrDataUnavailable, field, err)
		}
		out[symbol] = nullable(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", contracts.ErrDataUnavailable, field, err)
	}

	return out, nil
}

// Window returns up to length trailing observations per symbol, oldest first
func (p *PostgresProvider) Window(ctx context.Context, field string, date time.Time, symbols []string, length int) (map[string][]float64, error) {
	query := `
		SELECT symbol, value
		FROM (
			SELECT symbol, value, as_of,
				ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY as_of DESC) AS rn
			FROM market.factor_values
			WHERE field = $1 AND as_of <= $2 AND symbol = ANY($3)
		) w
		WHERE rn <= $4
		ORDER BY symbol, as_of ASC
	`

	rows, err := p.pool.Query(ctx, query, field, date, symbols, length)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s window: %v", contracts.ErrDataUnavailable, field, err)
	}
	defer rows.Close()

	out := make(map[string][]float64, len(symbols))
	for rows.Next() {
		var (
			symbol string
			value  *float64
		)
		if err := rows.Scan(&symbol, &value); err != nil {
			return nil, fmt.Errorf("%w: scan %s window: %v", contracts.ErrDataUnavailable, field, err)
		}
		out[symbol] = append(out[symbol], nullable(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s window: %v", contracts.ErrDataUnavailable, field, err)
	}

	return out, nil
}

// RiskLoadings returns the latest loadings per symbol in schema order
func (p *PostgresProvider) RiskLoadings(ctx context.Context, version int, date time.Time, symbols []string) (*contracts.RiskLoadings, error) {
	schema, err := riskmodel.Lookup(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDataUnavailable, err)
	}

	query := `
		SELECT DISTINCT ON (symbol, factor) symbol, factor, loading
		FROM market.risk_loadings
		WHERE model_version = $1 AND as_of <= $2 AND symbol = ANY($3)
		ORDER BY symbol, factor, as_of DESC
	`

	rows, err := p.pool.Query(ctx, query, version, date, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: query risk loadings: %v", contracts.ErrDataUnavailable, err)
	}
	defer rows.Close()

	result := &contracts.RiskLoadings{
		Version:  version,
		Factors:  schema.Names(),
		Loadings: make(map[string][]float64),
	}

	for rows.Next() {
		var (
			symbol, factor string
			loading        *float64
		)
		if err := rows.Scan(&symbol, &factor, &loading); err != nil {
			return nil, fmt.Errorf("%w: scan risk loadings: %v", contracts.ErrDataUnavailable, err)
		}

		k := schema.Index(factor)
		if k < 0 {
			continue
		}
		row, ok := result.Loadings[symbol]
		if !ok {
			row = make([]float64, len(schema.Factors))
			for i := range row {
				row[i] = math.NaN()
			}
			result.Loadings[symbol] = row
		}
		row[k] = nullable(loading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate risk loadings: %v", contracts.ErrDataUnavailable, err)
	}

	return result, nil
}

func nullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
