package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/execution"
	"github.com/wonny/longshort/pkg/logger"
)

// Rebalancer runs one rebalance over an explicit state
type Rebalancer interface {
	Rebalance(ctx context.Context, date time.Time, prior brain.State) (brain.State, *brain.RunResult, error)
}

// PortfolioHandler handles target portfolio and rebalance endpoints
// ⭐ SSOT: 포트폴리오 API 핸들러는 여기서만
type PortfolioHandler struct {
	rebalancer Rebalancer
	state      *brain.StateGuard // shared with the scheduler jobs
	recorder   audit.Recorder
	location   *time.Location
	now        func() time.Time
	logger     *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(r Rebalancer, state *brain.StateGuard, recorder audit.Recorder, loc *time.Location, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		rebalancer: r,
		state:      state,
		recorder:   recorder,
		location:   loc,
		now:        time.Now,
		logger:     log,
	}
}

// TargetResponse is the held target with its exposures
type TargetResponse struct {
	Date          string                     `json:"date"`
	RunID         string                     `json:"runId"`
	LastRebalance time.Time                  `json:"lastRebalance"`
	GrossExposure float64                    `json:"grossExposure"`
	NetExposure   float64                    `json:"netExposure"`
	Objective     float64                    `json:"objective"`
	Positions     []contracts.TargetPosition `json:"positions"`
}

// RebalanceResponse summarizes a manual rebalance
type RebalanceResponse struct {
	RunID      string            `json:"runId"`
	Date       string            `json:"date"`
	Status     string            `json:"status"`
	SkipReason string            `json:"skipReason,omitempty"`
	Stages     []string          `json:"stages"`
	Target     *TargetResponse   `json:"target,omitempty"`
	Trades     []execution.Trade `json:"trades,omitempty"`
	Turnover   float64           `json:"turnover"`
	DurationMs int64             `json:"durationMs"`
}

func targetResponse(state brain.State) *TargetResponse {
	t := state.Target
	return &TargetResponse{
		Date:          t.Date.Format("2006-01-02"),
		RunID:         state.RunID,
		LastRebalance: state.LastRebalance,
		GrossExposure: t.GrossExposure(),
		NetExposure:   t.NetExposure(),
		Objective:     t.Objective,
		Positions:     t.Positions,
	}
}

// GetTarget returns the held target portfolio
// GET /api/portfolio/target
func (h *PortfolioHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load state")
		respondError(w, http.StatusInternalServerError, "Failed to load strategy state")
		return
	}
	if state.Target == nil {
		respondError(w, http.StatusNotFound, "No target portfolio yet")
		return
	}

	respondJSON(w, http.StatusOK, targetResponse(state))
}

// GetRecords returns daily records in a date range (default: last 30 days)
// GET /api/portfolio/records?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *PortfolioHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.location)
	to, err := parseDate(r, "to", now, h.location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to date (YYYY-MM-DD)")
		return
	}
	from, err := parseDate(r, "from", to.AddDate(0, 0, -30), h.location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from date (YYYY-MM-DD)")
		return
	}

	records, err := h.recorder.GetRecords(r.Context(), from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get daily records")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve daily records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Rebalance runs a rebalance now and stores the new state.
// It waits for any scheduled rebalance or record holding the state.
// POST /api/rebalance?date=YYYY-MM-DD
func (h *PortfolioHandler) Rebalance(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)
	date, err := parseDate(r, "date", today, h.location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date (YYYY-MM-DD)")
		return
	}

	var (
		next      brain.State
		result    *brain.RunResult
		runFailed bool
	)
	err = h.state.Update(r.Context(), func(prior brain.State) (brain.State, bool, error) {
		var err error
		next, result, err = h.rebalancer.Rebalance(r.Context(), date, prior)
		if err != nil {
			runFailed = true
			return prior, false, err
		}
		return next, !result.Skipped, nil
	})
	if err != nil && runFailed {
		h.logger.WithError(err).Warn("Manual rebalance failed")
		respondError(w, statusFor(err), err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load or save state")
		respondError(w, http.StatusInternalServerError, "Failed to update strategy state")
		return
	}

	resp := RebalanceResponse{
		RunID:      result.RunID,
		Date:       date.Format("2006-01-02"),
		Status:     result.Status,
		SkipReason: result.SkipReason,
		Stages:     result.CompletedStages,
		Trades:     result.Trades,
		Turnover:   result.Turnover,
		DurationMs: result.Duration.Milliseconds(),
	}

	if !result.Skipped {
		resp.Target = targetResponse(next)
	}

	respondJSON(w, http.StatusOK, resp)
}
