package contracts

import (
	"context"
	"time"
)

// UniverseProvider supplies the eligible securities per date (external)
// ⭐ SSOT: 외부 협력자 인터페이스는 여기서만 정의
type UniverseProvider interface {
	Universe(ctx context.Context, date time.Time) (*Universe, error)
}

// FactorDataProvider supplies raw point-in-time per-security scalars (external).
// Missing observations are absent keys or NaN.
type FactorDataProvider interface {
	// Latest returns the most recent value of field known on date
	Latest(ctx context.Context, field string, date time.Time, symbols []string) (map[string]float64, error)

	// Window returns the trailing length observations of field ending on date, oldest first
	Window(ctx context.Context, field string, date time.Time, symbols []string, length int) (map[string][]float64, error)
}

// RiskLoadingProvider supplies risk-factor loadings for a risk model version (external)
type RiskLoadingProvider interface {
	RiskLoadings(ctx context.Context, version int, date time.Time, symbols []string) (*RiskLoadings, error)
}

// DataProvider is the full set of market data collaborators
type DataProvider interface {
	UniverseProvider
	FactorDataProvider
	RiskLoadingProvider
}
