package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/portfolio"
	"github.com/wonny/longshort/pkg/redis"
)

// State is everything a rebalance or record carries to the next invocation.
// The caller owns it; the orchestrator never keeps it between calls.
type State struct {
	Target        *contracts.TargetPortfolio `json:"target,omitempty"`
	LastRebalance time.Time                  `json:"last_rebalance"`
	LastRecord    time.Time                  `json:"last_record"`
	RunID         string                     `json:"run_id"`
}

// StateStore loads and saves State between invocations.
// Load on a strategy that never ran returns the zero State.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// MemoryStateStore keeps state in process
type MemoryStateStore struct {
	mu    sync.RWMutex
	state State
}

// NewMemoryStateStore creates an empty store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (m *MemoryStateStore) Load(ctx context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *MemoryStateStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// StateGuard serializes load → change → save cycles on one store.
// Every writer in a process (scheduler jobs, API) must go through the same guard.
// ⭐ SSOT: State 갱신은 이 가드를 통해서만
type StateGuard struct {
	mu    sync.Mutex
	store StateStore
}

// NewStateGuard wraps store
func NewStateGuard(store StateStore) *StateGuard {
	return &StateGuard{store: store}
}

// Load reads the current state without taking the update lock
func (g *StateGuard) Load(ctx context.Context) (State, error) {
	return g.store.Load(ctx)
}

// Update loads the state, applies fn and saves what fn returns when save is true.
// An error from fn is returned as-is and nothing is saved.
func (g *StateGuard) Update(ctx context.Context, fn func(prior State) (next State, save bool, err error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	prior, err := g.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	next, save, err := fn(prior)
	if err != nil {
		return err
	}
	if !save {
		return nil
	}

	if err := g.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// RedisStateStore keeps state as JSON under the strategy's state key, no expiry
type RedisStateStore struct {
	cache      *redis.Cache
	strategyID string
}

// NewRedisStateStore creates a store over cache
func NewRedisStateStore(cache *redis.Cache, strategyID string) *RedisStateStore {
	return &RedisStateStore{cache: cache, strategyID: strategyID}
}

func (s *RedisStateStore) Load(ctx context.Context) (State, error) {
	var state State
	if !s.cache.Enabled() {
		return state, fmt.Errorf("redis state store: redis is disabled")
	}

	if _, err := s.cache.Get(ctx, redis.StateKey(s.strategyID), &state); err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state State) error {
	if !s.cache.Enabled() {
		return fmt.Errorf("redis state store: redis is disabled")
	}

	if err := s.cache.Set(ctx, redis.StateKey(s.strategyID), state, 0); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// PostgresStateStore keeps a pointer row in portfolio.strategy_state and
// reads the held target back from the stored target positions.
type PostgresStateStore struct {
	repo       *portfolio.Repository
	strategyID string
}

// NewPostgresStateStore creates a store over the portfolio repository
func NewPostgresStateStore(repo *portfolio.Repository, strategyID string) *PostgresStateStore {
	return &PostgresStateStore{repo: repo, strategyID: strategyID}
}

func (s *PostgresStateStore) Load(ctx context.Context) (State, error) {
	row, err := s.repo.GetStrategyState(ctx, s.strategyID)
	if errors.Is(err, portfolio.ErrNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}

	state := State{RunID: row.RunID}
	if row.LastRebalance != nil {
		state.LastRebalance = *row.LastRebalance
	}
	if row.LastRecord != nil {
		state.LastRecord = *row.LastRecord
	}
	if row.TargetDate != nil {
		target, err := s.repo.GetTargetPortfolio(ctx, *row.TargetDate)
		if err != nil {
			return State{}, fmt.Errorf("load held target: %w", err)
		}
		state.Target = target
	}

	return state, nil
}

// Save stores the pointer row; the target itself is written by the rebalance
func (s *PostgresStateStore) Save(ctx context.Context, state State) error {
	row := &portfolio.StrategyState{
		StrategyID:    s.strategyID,
		RunID:         state.RunID,
		TargetDate:    timePtr(targetDate(state.Target)),
		LastRebalance: timePtr(state.LastRebalance),
		LastRecord:    timePtr(state.LastRecord),
	}
	return s.repo.SaveStrategyState(ctx, row)
}

func targetDate(t *contracts.TargetPortfolio) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Date
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
