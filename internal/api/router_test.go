package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/longshort/internal/api/handlers"
	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/scheduler"
	"github.com/wonny/longshort/pkg/logger"
)

type fakeRebalancer struct {
	err   error
	dates []time.Time
}

func (f *fakeRebalancer) Rebalance(_ context.Context, date time.Time, prior brain.State) (brain.State, *brain.RunResult, error) {
	f.dates = append(f.dates, date)
	if f.err != nil {
		return prior, &brain.RunResult{Status: brain.StatusFailed}, f.err
	}
	next := prior
	next.RunID = "run-1"
	next.LastRebalance = date
	next.Target = &contracts.TargetPortfolio{Date: date, Positions: []contracts.TargetPosition{
		{Symbol: "A", Weight: 0.5, Score: 2},
		{Symbol: "D", Weight: -0.5, Score: -2},
	}, Objective: 2}
	return next, &brain.RunResult{RunID: "run-1", Status: brain.StatusCompleted}, nil
}

type fakeRunner struct {
	triggered []string
}

func (f *fakeRunner) GetJobStats() map[string]scheduler.JobStats {
	return map[string]scheduler.JobStats{
		"record":    {JobName: "record", Schedule: "0 0 16 * * MON-FRI"},
		"rebalance": {JobName: "rebalance", Schedule: "0 0 10 * * MON"},
	}
}

func (f *fakeRunner) RunJob(name string) error {
	if name != "rebalance" && name != "record" {
		return fmt.Errorf("job %s not found", name)
	}
	f.triggered = append(f.triggered, name)
	return nil
}

type fakeSelections struct {
	byDate map[string]*contracts.Selection
}

func (f *fakeSelections) GetSelection(_ context.Context, date time.Time) (*contracts.Selection, error) {
	if sel, ok := f.byDate[date.Format("2006-01-02")]; ok {
		return sel, nil
	}
	return &contracts.Selection{Date: date}, nil
}

type fixture struct {
	router     http.Handler
	rebalancer *fakeRebalancer
	store      *brain.MemoryStateStore
	recorder   *audit.MemoryRecorder
	selections *fakeSelections
	runner     *fakeRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rebalancer: &fakeRebalancer{},
		store:      brain.NewMemoryStateStore(),
		recorder:   audit.NewMemoryRecorder(),
		selections: &fakeSelections{byDate: map[string]*contracts.Selection{}},
		runner:     &fakeRunner{},
	}
	log := logger.Nop()
	f.router = NewRouter(
		handlers.NewPortfolioHandler(f.rebalancer, brain.NewStateGuard(f.store), f.recorder, time.UTC, log),
		handlers.NewSelectionHandler(f.selections, time.UTC, log),
		handlers.NewSchedulerHandler(f.runner, log),
		log,
	)
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestTarget_NotFoundBeforeRebalance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/portfolio/target")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRebalance_ThenTarget(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/rebalance?date=2024-01-08")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-1", body["runId"])
	assert.Equal(t, "2024-01-08", body["date"])
	require.Len(t, f.rebalancer.dates, 1)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), f.rebalancer.dates[0])

	rec = f.do(http.MethodGet, "/api/portfolio/target")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "2024-01-08", body["date"])
	assert.InDelta(t, 1.0, body["grossExposure"], 1e-12)
	assert.InDelta(t, 0.0, body["netExposure"], 1e-12)
	assert.Len(t, body["positions"], 2)
}

func TestRebalance_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"bad date", "/api/rebalance?date=08-01-2024", nil, http.StatusBadRequest},
		{"infeasible", "/api/rebalance", contracts.ErrInfeasible, http.StatusUnprocessableEntity},
		{"data unavailable", "/api/rebalance", fmt.Errorf("%w: timeout", contracts.ErrDataUnavailable), http.StatusServiceUnavailable},
		{"solver", "/api/rebalance", contracts.ErrSolver, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.rebalancer.err = tt.err

			rec := f.do(http.MethodPost, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])

			state, _ := f.store.Load(context.Background())
			assert.Nil(t, state.Target, "state untouched")
		})
	}
}

func TestRecords(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.recorder.SaveRecord(context.Background(), &audit.DailyRecord{Date: day, NumPositions: 2}))

	rec := f.do(http.MethodGet, "/api/portfolio/records?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = f.do(http.MethodGet, "/api/portfolio/records?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulerEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/scheduler/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	jobs := body["jobs"].([]interface{})
	assert.Equal(t, "rebalance", jobs[0].(map[string]interface{})["job_name"])

	rec = f.do(http.MethodPost, "/api/scheduler/jobs/record/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"record"}, f.runner.triggered)

	rec = f.do(http.MethodPost, "/api/scheduler/jobs/unknown/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionalEndpoints_AbsentWithoutHandlers(t *testing.T) {
	log := logger.Nop()
	router := NewRouter(
		handlers.NewPortfolioHandler(&fakeRebalancer{}, brain.NewStateGuard(brain.NewMemoryStateStore()), audit.NewMemoryRecorder(), time.UTC, log),
		nil,
		nil,
		log,
	)

	for _, path := range []string{"/api/scheduler/jobs", "/api/selection"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSelection(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	f.selections.byDate["2024-01-08"] = &contracts.Selection{
		Date:   day,
		Longs:  []contracts.RankedSecurity{{Symbol: "A", Rank: 1, Score: 2, Side: contracts.SideLong}},
		Shorts: []contracts.RankedSecurity{{Symbol: "D", Rank: 4, Score: -2, Side: contracts.SideShort}},
		Scores: []contracts.CombinedScore{
			{Symbol: "A", Score: 2}, {Symbol: "B", Score: 1}, {Symbol: "C", Score: -1}, {Symbol: "D", Score: -2},
		},
	}

	rec := f.do(http.MethodGet, "/api/selection?date=2024-01-08")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "2024-01-08", body["date"])
	assert.EqualValues(t, 4, body["count"])
	longs := body["longs"].([]interface{})
	require.Len(t, longs, 1)
	assert.Equal(t, "A", longs[0].(map[string]interface{})["symbol"])

	rec = f.do(http.MethodGet, "/api/selection?date=2024-01-09")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/selection?date=monday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
