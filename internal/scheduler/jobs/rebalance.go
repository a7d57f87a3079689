package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/pkg/logger"
)

// RebalanceJob computes and submits a new target once a week
// ⭐ SSOT: 리밸런스 스케줄은 이 Job에서만
type RebalanceJob struct {
	rebalancer Rebalancer
	state      *brain.StateGuard
	schedule   string
	location   *time.Location
	now        func() time.Time
	logger     *logger.Logger
}

// NewRebalanceJob creates a new rebalance job; schedule comes from the strategy config
func NewRebalanceJob(r Rebalancer, state *brain.StateGuard, schedule string, loc *time.Location, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		rebalancer: r,
		state:      state,
		schedule:   schedule,
		location:   loc,
		now:        time.Now,
		logger:     log,
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Schedule returns the cron schedule
func (j *RebalanceJob) Schedule() string {
	return j.schedule
}

// Run loads the held state, rebalances for today and saves the new state.
// A failed or skipped rebalance leaves the stored state untouched.
func (j *RebalanceJob) Run(ctx context.Context) error {
	date := tradingDate(j.now(), j.location)

	j.logger.WithField("date", date.Format("2006-01-02")).Info("Starting scheduled rebalance")

	var (
		next   brain.State
		result *brain.RunResult
	)
	err := j.state.Update(ctx, func(prior brain.State) (brain.State, bool, error) {
		var err error
		next, result, err = j.rebalancer.Rebalance(ctx, date, prior)
		if err != nil {
			return prior, false, fmt.Errorf("rebalance: %w", err)
		}
		return next, !result.Skipped, nil
	})
	if err != nil {
		return err
	}
	if result.Skipped {
		j.logger.WithField("reason", result.SkipReason).Warn("Rebalance skipped")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"positions": next.Target.Count(),
		"turnover":  result.Turnover,
	}).Info("Scheduled rebalance completed")

	return nil
}
