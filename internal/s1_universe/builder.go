package s1_universe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/longshort/internal/contracts"
)

// Config holds universe guard criteria
type Config struct {
	MinSize int `yaml:"min_size"` // 미만이면 리밸런스 건너뜀
}

// Builder fetches the eligible universe for a date and normalizes it
type Builder struct {
	provider contracts.UniverseProvider
	config   Config
}

// NewBuilder creates a new Universe Builder
func NewBuilder(provider contracts.UniverseProvider, config Config) *Builder {
	return &Builder{
		provider: provider,
		config:   config,
	}
}

// Build returns the tradable universe for date.
// ⭐ SSOT: 유니버스 → Factor Engine 전달
//
// Symbols are trimmed, de-duplicated and sorted; anything the provider also
// lists as excluded is dropped. Fewer than MinSize securities yields
// contracts.ErrInsufficientUniverse. Other provider failures are wrapped
// with contracts.ErrDataUnavailable.
func (b *Builder) Build(ctx context.Context, date time.Time) (*contracts.Universe, error) {
	raw, err := b.provider.Universe(ctx, date)
	if err != nil {
		if errors.Is(err, contracts.ErrInsufficientUniverse) || errors.Is(err, contracts.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: universe: %w", contracts.ErrDataUnavailable, err)
	}

	universe := &contracts.Universe{
		Date:       date,
		Securities: make([]string, 0, len(raw.Securities)),
		Excluded:   make(map[string]string, len(raw.Excluded)),
	}
	for symbol, reason := range raw.Excluded {
		universe.Excluded[symbol] = reason
	}

	seen := make(map[string]bool, len(raw.Securities))
	for _, symbol := range raw.Securities {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		if _, excluded := universe.Excluded[symbol]; excluded {
			continue
		}
		universe.Securities = append(universe.Securities, symbol)
	}
	sort.Strings(universe.Securities)

	if universe.Count() < b.config.MinSize {
		return universe, fmt.Errorf("%w: %d securities on %s, need %d",
			contracts.ErrInsufficientUniverse, universe.Count(), date.Format("2006-01-02"), b.config.MinSize)
	}

	return universe, nil
}
