package strategyconfig

import (
	"fmt"
	"time"
)

var weekdays = []string{"MON", "TUE", "WED", "THU", "FRI"}

// Location returns the strategy timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Meta.Timezone)
}

// RebalanceCron returns the weekly rebalance spec (cron with seconds):
// weekday = first weekday + days_offset, time = market_open + minutes_after_open.
func (s Schedule) RebalanceCron() (string, error) {
	open, err := parseHHMM(s.MarketOpen)
	if err != nil {
		return "", fmt.Errorf("market_open: %w", err)
	}
	if s.Rebalance.DaysOffset < 0 || s.Rebalance.DaysOffset >= len(weekdays) {
		return "", fmt.Errorf("days_offset %d out of range", s.Rebalance.DaysOffset)
	}

	at := open + s.Rebalance.MinutesAfterOpen
	return fmt.Sprintf("0 %d %d * * %s", at%60, at/60, weekdays[s.Rebalance.DaysOffset]), nil
}

// RecordCron returns the daily record spec: every weekday at market_close - minutes_before_close
func (s Schedule) RecordCron() (string, error) {
	close, err := parseHHMM(s.MarketClose)
	if err != nil {
		return "", fmt.Errorf("market_close: %w", err)
	}

	at := close - s.Record.MinutesBeforeClose
	return fmt.Sprintf("0 %d %d * * MON-FRI", at%60, at/60), nil
}
