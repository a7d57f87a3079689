package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/longshort/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contracts.ErrDataUnavailable), errors.Is(err, contracts.ErrInsufficientUniverse):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseDate reads a YYYY-MM-DD query parameter, def when absent
func parseDate(r *http.Request, key string, def time.Time, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return time.ParseInLocation("2006-01-02", raw, loc)
}
