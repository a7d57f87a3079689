package jobs

import (
	"context"
	"time"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
)

// Rebalancer runs one rebalance over an explicit state
type Rebalancer interface {
	Rebalance(ctx context.Context, date time.Time, prior brain.State) (brain.State, *brain.RunResult, error)
}

// DailyRecorder books the held target once a day
type DailyRecorder interface {
	Record(ctx context.Context, date time.Time, state brain.State) (brain.State, *audit.DailyRecord, error)
}

// tradingDate is midnight of now's calendar day in loc
func tradingDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
