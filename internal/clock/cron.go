package clock

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule wraps a parsed five-field cron expression and adds the
// backward-scan operations the cron source needs to find missed runs
// since its last checkpoint, on top of robfig/cron's forward-only
// Schedule.Next.
type CronSchedule struct {
	expr     string
	schedule cron.Schedule
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCron parses a standard five-field cron expression: minute hour
// day-of-month month day-of-week, with "*", lists ("a,b,c"), ranges
// ("a-b") and steps ("*/n", "a-b/n").
func ParseCron(expr string) (*CronSchedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("clock: invalid cron expression %q: %w", expr, err)
	}
	return &CronSchedule{expr: expr, schedule: sched}, nil
}

// Next returns the earliest time strictly after t that matches.
func (c *CronSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// Matches reports whether t (truncated to the minute) is itself a
// scheduled tick.
func (c *CronSchedule) Matches(t time.Time) bool {
	t = t.Truncate(time.Minute)
	next := c.schedule.Next(t.Add(-time.Minute))
	return next.Equal(t)
}

// Prev scans backward minute-by-minute from t (exclusive) to find the
// most recent matching tick, stopping at bound (inclusive). It returns
// the zero time if no match is found by bound. This backward scan is
// what lets the cron source catch up on ticks missed while the process
// was down, bounded by how far back the caller is willing to look.
func (c *CronSchedule) Prev(t, bound time.Time) time.Time {
	cur := t.Truncate(time.Minute).Add(-time.Minute)
	for !cur.Before(bound) {
		if c.Matches(cur) {
			return cur
		}
		cur = cur.Add(-time.Minute)
	}
	return time.Time{}
}

// Since returns every matching tick in (since, upTo], oldest first,
// used by the cron source to replay missed ticks after a restart.
func (c *CronSchedule) Since(since, upTo time.Time) []time.Time {
	var out []time.Time
	cur := since
	for {
		next := c.schedule.Next(cur)
		if next.After(upTo) {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}
