package s0_data

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/pkg/logger"
	"github.com/wonny/longshort/pkg/redis"
)

// CachedProvider puts a Redis cache in front of another DataProvider.
// Cache failures are logged and fall through to the underlying provider.
type CachedProvider struct {
	next   contracts.DataProvider
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedProvider wraps next; a disabled cache makes this a pass-through
func NewCachedProvider(next contracts.DataProvider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedProvider{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithComponent("data_cache"),
	}
}

// Universe returns the cached universe or loads it
func (p *CachedProvider) Universe(ctx context.Context, date time.Time) (*contracts.Universe, error) {
	key := redis.UniverseKey(date.Format(time.DateOnly))

	var cached contracts.Universe
	if p.get(ctx, key, &cached) {
		return &cached, nil
	}

	u, err := p.next.Universe(ctx, date)
	if err != nil {
		return nil, err
	}
	p.set(ctx, key, u)
	return u, nil
}

// Latest returns cached values or loads them. Missing values are not cached as keys.
func (p *CachedProvider) Latest(ctx context.Context, field string, date time.Time, symbols []string) (map[string]float64, error) {
	key := redis.FactorKey(field, date.Format(time.DateOnly)) + ":" + digest(symbols)

	var cached map[string]float64
	if p.get(ctx, key, &cached) {
		return cached, nil
	}

	values, err := p.next.Latest(ctx, field, date, symbols)
	if err != nil {
		return nil, err
	}

	finite := make(map[string]float64, len(values))
	for symbol, v := range values {
		if !contracts.IsMissing(v) {
			finite[symbol] = v
		}
	}
	p.set(ctx, key, finite)
	return values, nil
}

// Window returns cached windows or loads them
func (p *CachedProvider) Window(ctx context.Context, field string, date time.Time, symbols []string, length int) (map[string][]float64, error) {
	key := redis.WindowKey(field, date.Format(time.DateOnly), length) + ":" + digest(symbols)

	var cached map[string][]*float64
	if p.get(ctx, key, &cached) {
		out := make(map[string][]float64, len(cached))
		for symbol, values := range cached {
			out[symbol] = fromNullable(values)
		}
		return out, nil
	}

	windows, err := p.next.Window(ctx, field, date, symbols, length)
	if err != nil {
		return nil, err
	}

	encoded := make(map[string][]*float64, len(windows))
	for symbol, values := range windows {
		encoded[symbol] = toNullable(values)
	}
	p.set(ctx, key, encoded)
	return windows, nil
}

// cachedLoadings is RiskLoadings with JSON-safe missing values
type cachedLoadings struct {
	Version  int                   `json:"version"`
	Factors  []string              `json:"factors"`
	Loadings map[string][]*float64 `json:"loadings"`
}

// RiskLoadings returns cached loadings or loads them
func (p *CachedProvider) RiskLoadings(ctx context.Context, version int, date time.Time, symbols []string) (*contracts.RiskLoadings, error) {
	key := redis.LoadingsKey(version, date.Format(time.DateOnly)) + ":" + digest(symbols)

	var cached cachedLoadings
	if p.get(ctx, key, &cached) {
		out := &contracts.RiskLoadings{
			Version:  cached.Version,
			Factors:  cached.Factors,
			Loadings: make(map[string][]float64, len(cached.Loadings)),
		}
		for symbol, row := range cached.Loadings {
			out.Loadings[symbol] = fromNullable(row)
		}
		return out, nil
	}

	loadings, err := p.next.RiskLoadings(ctx, version, date, symbols)
	if err != nil {
		return nil, err
	}

	encoded := cachedLoadings{
		Version:  loadings.Version,
		Factors:  loadings.Factors,
		Loadings: make(map[string][]*float64, len(loadings.Loadings)),
	}
	for symbol, row := range loadings.Loadings {
		encoded.Loadings[symbol] = toNullable(row)
	}
	p.set(ctx, key, encoded)
	return loadings, nil
}

func (p *CachedProvider) get(ctx context.Context, key string, dest interface{}) bool {
	hit, err := p.cache.Get(ctx, key, dest)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return hit
}

func (p *CachedProvider) set(ctx context.Context, key string, value interface{}) {
	if err := p.cache.Set(ctx, key, value, p.ttl); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// digest identifies a symbol list in cache keys
func digest(symbols []string) string {
	sum := sha1.Sum([]byte(strings.Join(symbols, ",")))
	return hex.EncodeToString(sum[:8])
}

func toNullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if contracts.IsMissing(v) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}

func fromNullable(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
