package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/longshort/internal/contracts"
)

// DailyRecord is the end-of-day bookkeeping for the held target
type DailyRecord struct {
	Date          time.Time `json:"date"`
	RunID         string    `json:"run_id"`
	NumPositions  int       `json:"num_positions"`
	NumLongs      int       `json:"num_longs"`
	NumShorts     int       `json:"num_shorts"`
	GrossExposure float64   `json:"gross_exposure"`
	NetExposure   float64   `json:"net_exposure"`
}

// NewDailyRecord summarizes target as of date; a nil target records an empty book
func NewDailyRecord(date time.Time, runID string, target *contracts.TargetPortfolio) *DailyRecord {
	rec := &DailyRecord{Date: date, RunID: runID}
	if target == nil {
		return rec
	}

	rec.NumPositions = target.Count()
	rec.NumLongs = len(target.Longs())
	rec.NumShorts = len(target.Shorts())
	rec.GrossExposure = target.GrossExposure()
	rec.NetExposure = target.NetExposure()
	return rec
}

// Recorder persists daily records
// ⭐ SSOT: 일별 기록 저장 인터페이스
type Recorder interface {
	SaveRecord(ctx context.Context, rec *DailyRecord) error
	GetRecords(ctx context.Context, from, to time.Time) ([]DailyRecord, error)
}

// MemoryRecorder keeps records in process, one per date
type MemoryRecorder struct {
	mu      sync.RWMutex
	records map[string]DailyRecord
}

// NewMemoryRecorder creates an empty recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: make(map[string]DailyRecord)}
}

// SaveRecord stores rec, replacing any record of the same date
func (m *MemoryRecorder) SaveRecord(ctx context.Context, rec *DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.Date.Format("2006-01-02")] = *rec
	return nil
}

// GetRecords returns records dated in [from, to], oldest first
func (m *MemoryRecorder) GetRecords(ctx context.Context, from, to time.Time) ([]DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DailyRecord, 0)
	for _, rec := range m.records {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
