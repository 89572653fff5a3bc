package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is an immutable parsed check schedule: either a fixed interval
// ("30s", "5m", "1h", "2d") or a five-field cron expression.
type Schedule struct {
	raw      string
	interval time.Duration
	cron     cron.Schedule
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses an interval or cron schedule expression.
// Interval form is a positive integer with an s/m/h/d suffix.
func ParseSchedule(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule expression is empty")
	}

	if interval, ok := parseInterval(expr); ok {
		if interval <= 0 {
			return nil, fmt.Errorf("schedule interval must be positive: %q", expr)
		}
		return &Schedule{raw: expr, interval: interval}, nil
	}

	if len(strings.Fields(expr)) == 5 {
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		return &Schedule{raw: expr, cron: sched}, nil
	}

	return nil, fmt.Errorf("invalid schedule %q: expected interval (e.g. \"5m\") or five-field cron expression", expr)
}

// ValidateSchedule checks that a schedule expression parses
func ValidateSchedule(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// parseInterval parses the s/m/h/d suffix form; returns false if the
// expression does not look like an interval at all.
func parseInterval(expr string) (time.Duration, bool) {
	if len(expr) < 2 {
		return 0, false
	}

	suffix := expr[len(expr)-1]
	value, err := strconv.Atoi(expr[:len(expr)-1])
	if err != nil {
		return 0, false
	}

	switch suffix {
	case 's':
		return time.Duration(value) * time.Second, true
	case 'm':
		return time.Duration(value) * time.Minute, true
	case 'h':
		return time.Duration(value) * time.Hour, true
	case 'd':
		return time.Duration(value) * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// IsInterval reports whether the schedule is a fixed interval
func (s *Schedule) IsInterval() bool {
	return s.cron == nil
}

// Interval returns the fixed interval, or zero for cron schedules
func (s *Schedule) Interval() time.Duration {
	return s.interval
}

// Next computes the next fire time strictly after now.
// Pure function of (now, schedule); no shared mutable state.
func (s *Schedule) Next(now time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(now)
	}
	return now.Add(s.interval)
}

// String returns the original schedule expression
func (s *Schedule) String() string {
	return s.raw
}
