package brain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/execution"
	"github.com/wonny/longshort/internal/portfolio"
	"github.com/wonny/longshort/internal/strategyconfig"
	"github.com/wonny/longshort/pkg/config"
	"github.com/wonny/longshort/pkg/logger"
	"github.com/wonny/longshort/pkg/redis"
)

// fakeData is an in-memory DataProvider
type fakeData struct {
	securities  []string
	universeErr error
	latest      map[string]map[string]float64
	latestErr   error
	loadings    *contracts.RiskLoadings
	loadingsErr error
}

func (f *fakeData) Universe(_ context.Context, date time.Time) (*contracts.Universe, error) {
	if f.universeErr != nil {
		return nil, f.universeErr
	}
	return &contracts.Universe{Date: date, Securities: f.securities}, nil
}

func (f *fakeData) Latest(_ context.Context, field string, _ time.Time, _ []string) (map[string]float64, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest[field], nil
}

func (f *fakeData) Window(_ context.Context, _ string, _ time.Time, _ []string, _ int) (map[string][]float64, error) {
	return map[string][]float64{}, nil
}

func (f *fakeData) RiskLoadings(_ context.Context, _ int, _ time.Time, _ []string) (*contracts.RiskLoadings, error) {
	return f.loadings, f.loadingsErr
}

// fakePortfolios records what the orchestrator persists
type fakePortfolios struct {
	targets []*contracts.TargetPortfolio
	logs    []*portfolio.RebalanceLog
	saveErr error
}

func (f *fakePortfolios) SaveTargetPortfolio(_ context.Context, target *contracts.TargetPortfolio, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.targets = append(f.targets, target)
	return nil
}

func (f *fakePortfolios) SaveRebalanceLog(_ context.Context, log *portfolio.RebalanceLog) error {
	f.logs = append(f.logs, log)
	return nil
}

var day = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func testConfig() *strategyconfig.Config {
	cfg := strategyconfig.Default()
	cfg.Factors.Steps = []strategyconfig.FactorStep{
		{Name: "alpha", Kind: strategyconfig.KindLatest, Fields: []string{"alpha"}},
	}
	cfg.Portfolio.TotalPositions = 2
	cfg.Universe.MinSize = 2
	cfg.Execution.DryRun = true
	return cfg
}

func testData() *fakeData {
	return &fakeData{
		securities: []string{"A", "B", "C", "D"},
		latest: map[string]map[string]float64{
			"alpha": {"A": 4, "B": 3, "C": 2, "D": 1},
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *strategyconfig.Config, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Recorder == nil {
		deps.Recorder = audit.NewMemoryRecorder()
	}
	o, err := NewOrchestrator(cfg, deps, logger.Nop())
	require.NoError(t, err)
	return o
}

func TestRebalance_LongTopShortBottom(t *testing.T) {
	store := &fakePortfolios{}
	o := newTestOrchestrator(t, testConfig(), Deps{Data: testData(), Portfolios: store})

	next, result, err := o.Rebalance(context.Background(), day, State{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.False(t, result.Skipped)
	assert.False(t, result.Submitted, "dry run")
	require.NotNil(t, next.Target)
	assert.InDelta(t, 0.5, next.Target.Weight("A"), 1e-9)
	assert.InDelta(t, -0.5, next.Target.Weight("D"), 1e-9)
	assert.Equal(t, 2, next.Target.Count())
	assert.Equal(t, day, next.LastRebalance)
	assert.Equal(t, result.RunID, next.RunID)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, o.ConfigHash(), result.ConfigHash)
	assert.Len(t, result.Trades, 2)
	assert.InDelta(t, 1.0, result.Turnover, 1e-9)

	require.Len(t, store.targets, 1)
	require.Len(t, store.logs, 1)
	assert.Equal(t, StatusCompleted, store.logs[0].Status)
	assert.Equal(t, o.ConfigHash(), store.logs[0].ConfigHash)

	snap, ok := store.logs[0].Metadata["snapshot"].(*strategyconfig.DecisionSnapshot)
	require.True(t, ok)
	assert.Equal(t, result.RunID, snap.RunID)
	assert.Equal(t, o.ConfigHash(), snap.ConfigHash)
}

func TestRebalance_SubmitsToBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.DryRun = false
	broker := execution.NewLogBroker(logger.Nop())
	o := newTestOrchestrator(t, cfg, Deps{Data: testData(), Broker: broker})

	_, result, err := o.Rebalance(context.Background(), day, State{})
	require.NoError(t, err)
	assert.True(t, result.Submitted)

	holdings, err := broker.Holdings(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, holdings["A"], 1e-9)
	assert.InDelta(t, -0.5, holdings["D"], 1e-9)
}

func TestRebalance_SaveFailureNeverReachesBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.DryRun = false
	broker := execution.NewLogBroker(logger.Nop())
	store := &fakePortfolios{saveErr: errors.New("db down")}
	o := newTestOrchestrator(t, cfg, Deps{Data: testData(), Broker: broker, Portfolios: store})

	prior := State{RunID: "prior"}
	next, result, err := o.Rebalance(context.Background(), day, prior)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, prior, next)
	assert.False(t, result.Submitted)
	assert.Equal(t, StatusFailed, result.Status)

	holdings, err := broker.Holdings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holdings, "broker keeps the prior (empty) book")
}

func TestNewOrchestrator_RequiresBrokerUnlessDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.DryRun = false
	_, err := NewOrchestrator(cfg, Deps{Data: testData(), Recorder: audit.NewMemoryRecorder()}, logger.Nop())
	assert.Error(t, err)
}

func TestRebalance_SecondRunPlansAgainstPrior(t *testing.T) {
	data := testData()
	o := newTestOrchestrator(t, testConfig(), Deps{Data: data})

	first, _, err := o.Rebalance(context.Background(), day, State{})
	require.NoError(t, err)

	data.latest["alpha"] = map[string]float64{"A": 1, "B": 4, "C": 2, "D": 3}
	second, result, err := o.Rebalance(context.Background(), day.AddDate(0, 0, 7), first)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, second.Target.Weight("B"), 1e-9)
	assert.InDelta(t, -0.5, second.Target.Weight("A"), 1e-9)

	actions := make(map[string]execution.Action)
	for _, tr := range result.Trades {
		actions[tr.Symbol] = tr.Action
	}
	assert.Equal(t, execution.ActionFlip, actions["A"])
	assert.Equal(t, execution.ActionClose, actions["D"])
	assert.Equal(t, execution.ActionOpen, actions["B"])
}

func TestRebalance_SkipsSmallUniverse(t *testing.T) {
	data := testData()
	data.securities = []string{"A"}
	store := &fakePortfolios{}
	o := newTestOrchestrator(t, testConfig(), Deps{Data: data, Portfolios: store})

	prior := State{
		Target: &contracts.TargetPortfolio{Positions: []contracts.TargetPosition{{Symbol: "Z", Weight: 0.5}}},
		RunID:  "prior-run",
	}
	next, result, err := o.Rebalance(context.Background(), day, prior)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, StatusSkipped, result.Status)
	assert.NotEmpty(t, result.SkipReason)
	assert.Equal(t, prior, next)
	require.Len(t, store.logs, 1)
	assert.Equal(t, StatusSkipped, store.logs[0].Status)
	assert.Empty(t, store.targets)
}

func TestRebalance_ProviderInsufficientUniverse(t *testing.T) {
	data := testData()
	data.universeErr = contracts.ErrInsufficientUniverse
	o := newTestOrchestrator(t, testConfig(), Deps{Data: data})

	next, result, err := o.Rebalance(context.Background(), day, State{RunID: "prior"})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "prior", next.RunID)
}

func TestRebalance_Errors(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		mutate  func(cfg *strategyconfig.Config, data *fakeData)
		wantErr error
		status  string
	}{
		{
			name:    "universe provider failure",
			mutate:  func(_ *strategyconfig.Config, d *fakeData) { d.universeErr = boom },
			wantErr: contracts.ErrDataUnavailable,
			status:  StatusFailed,
		},
		{
			name:    "factor provider failure",
			mutate:  func(_ *strategyconfig.Config, d *fakeData) { d.latestErr = boom },
			wantErr: contracts.ErrDataUnavailable,
			status:  StatusFailed,
		},
		{
			name: "risk loadings failure",
			mutate: func(c *strategyconfig.Config, d *fakeData) {
				c.Risk.Enabled = true
				d.loadingsErr = boom
			},
			wantErr: contracts.ErrDataUnavailable,
			status:  StatusFailed,
		},
		{
			name:    "no factor data scores nothing",
			mutate:  func(_ *strategyconfig.Config, d *fakeData) { d.latest = map[string]map[string]float64{} },
			wantErr: contracts.ErrInfeasible,
			status:  StatusInfeasible,
		},
		{
			name:    "min gross above reach",
			mutate:  func(c *strategyconfig.Config, _ *fakeData) { c.Portfolio.MinGrossLeverage = 5 },
			wantErr: contracts.ErrInfeasible,
			status:  StatusInfeasible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			data := testData()
			tt.mutate(cfg, data)
			store := &fakePortfolios{}
			o := newTestOrchestrator(t, cfg, Deps{Data: data, Portfolios: store})

			prior := State{RunID: "prior"}
			next, result, err := o.Rebalance(context.Background(), day, prior)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, prior, next, "prior state kept")
			assert.Equal(t, tt.status, result.Status)
			require.Len(t, store.logs, 1)
			assert.NotEmpty(t, store.logs[0].Error)
		})
	}
}

func TestRecord(t *testing.T) {
	recorder := audit.NewMemoryRecorder()
	o := newTestOrchestrator(t, testConfig(), Deps{Data: testData(), Recorder: recorder})
	ctx := context.Background()

	state, _, err := o.Rebalance(ctx, day, State{})
	require.NoError(t, err)

	recordDay := day.Add(16 * time.Hour)
	next, rec, err := o.Record(ctx, recordDay, state)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.NumPositions)
	assert.Equal(t, 1, rec.NumLongs)
	assert.Equal(t, 1, rec.NumShorts)
	assert.InDelta(t, 1.0, rec.GrossExposure, 1e-9)
	assert.InDelta(t, 0.0, rec.NetExposure, 1e-9)
	assert.Equal(t, state.RunID, rec.RunID)
	assert.Equal(t, recordDay, next.LastRecord)
	assert.Equal(t, state.Target, next.Target)

	stored, err := recorder.GetRecords(ctx, day, recordDay)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRecord_EmptyBook(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), Deps{Data: testData()})

	_, rec, err := o.Record(context.Background(), day, State{})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.NumPositions)
}

func TestMemoryStateStore(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Target)

	want := State{RunID: "r1", LastRebalance: day}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStateGuard_SerializesUpdates(t *testing.T) {
	guard := NewStateGuard(NewMemoryStateStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard.Update(ctx, func(prior State) (State, bool, error) {
				time.Sleep(time.Millisecond)
				prior.RunID += "x"
				return prior, true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := guard.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, state.RunID, 10, "no update lost")
}

func TestStateGuard_NoSaveOnErrorOrSkip(t *testing.T) {
	store := NewMemoryStateStore()
	require.NoError(t, store.Save(context.Background(), State{RunID: "held"}))
	guard := NewStateGuard(store)
	boom := errors.New("boom")

	err := guard.Update(context.Background(), func(prior State) (State, bool, error) {
		return State{RunID: "lost"}, true, boom
	})
	assert.ErrorIs(t, err, boom)

	err = guard.Update(context.Background(), func(prior State) (State, bool, error) {
		return State{RunID: "skipped"}, false, nil
	})
	require.NoError(t, err)

	state, _ := store.Load(context.Background())
	assert.Equal(t, "held", state.RunID)
}

func TestRedisStateStore_Disabled(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	store := NewRedisStateStore(redis.NewCache(client, "test"), "long_short_equity")

	_, err = store.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), State{}))
}
