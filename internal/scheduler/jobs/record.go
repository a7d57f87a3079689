package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/pkg/logger"
)

// RecordJob records the held position count and exposures every trading day
type RecordJob struct {
	recorder DailyRecorder
	state    *brain.StateGuard
	schedule string
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewRecordJob creates a new daily record job
func NewRecordJob(r DailyRecorder, state *brain.StateGuard, schedule string, loc *time.Location, log *logger.Logger) *RecordJob {
	return &RecordJob{
		recorder: r,
		state:    state,
		schedule: schedule,
		location: loc,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *RecordJob) Name() string {
	return "record"
}

// Schedule returns the cron schedule
func (j *RecordJob) Schedule() string {
	return j.schedule
}

// Run books today's record for the held state
func (j *RecordJob) Run(ctx context.Context) error {
	date := tradingDate(j.now(), j.location)

	var rec *audit.DailyRecord
	err := j.state.Update(ctx, func(state brain.State) (brain.State, bool, error) {
		next, r, err := j.recorder.Record(ctx, date, state)
		if err != nil {
			return state, false, fmt.Errorf("record: %w", err)
		}
		rec = r
		return next, true, nil
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"date":          date.Format("2006-01-02"),
		"num_positions": rec.NumPositions,
	}).Info("Daily record completed")

	return nil
}
