package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/pkg/logger"
)

// SelectionReader reads the stored candidates of a rebalance date
type SelectionReader interface {
	GetSelection(ctx context.Context, date time.Time) (*contracts.Selection, error)
}

// SelectionHandler handles selection endpoints
type SelectionHandler struct {
	reader   SelectionReader
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(reader SelectionReader, loc *time.Location, log *logger.Logger) *SelectionHandler {
	return &SelectionHandler{
		reader:   reader,
		location: loc,
		now:      time.Now,
		logger:   log,
	}
}

// SelectionResponse is one date's combined scores and long/short picks
type SelectionResponse struct {
	Date   string                     `json:"date"`
	Longs  []contracts.RankedSecurity `json:"longs"`
	Shorts []contracts.RankedSecurity `json:"shorts"`
	Scores []contracts.CombinedScore  `json:"scores"`
	Count  int                        `json:"count"`
}

// GetSelection returns the scores and candidates stored for a date (default: today)
// GET /api/selection?date=YYYY-MM-DD
func (h *SelectionHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)
	date, err := parseDate(r, "date", today, h.location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date (YYYY-MM-DD)")
		return
	}

	sel, err := h.reader.GetSelection(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get selection")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve selection")
		return
	}
	if sel == nil || len(sel.Scores) == 0 {
		respondError(w, http.StatusNotFound, "No selection for "+date.Format("2006-01-02"))
		return
	}

	respondJSON(w, http.StatusOK, SelectionResponse{
		Date:   date.Format("2006-01-02"),
		Longs:  sel.Longs,
		Shorts: sel.Shorts,
		Scores: sel.Scores,
		Count:  len(sel.Scores),
	})
}
