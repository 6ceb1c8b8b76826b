package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"edashboard/internal/config"
)

// Night decides when the panel shows the sleeping frame and for how long the
// loop is suspended afterwards.
type Night struct {
	mode  string
	start config.ClockTime
	end   config.ClockTime
	sleep time.Duration

	// wake fires daily at end (window mode only).
	wake cron.Schedule
}

// NewNight builds the night predicate from config.
func NewNight(cfg config.NightConfig) (*Night, error) {
	start, err := config.ParseClock(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("scheduler: night start: %w", err)
	}
	end, err := config.ParseClock(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("scheduler: night end: %w", err)
	}

	n := &Night{
		mode:  cfg.Mode,
		start: start,
		end:   end,
		sleep: cfg.Sleep,
	}
	if n.mode == "" {
		n.mode = config.NightModeLegacy
	}
	if n.sleep <= 0 {
		n.sleep = 7*time.Hour + 30*time.Minute
	}

	if n.mode == config.NightModeWindow {
		expr := fmt.Sprintf("%d %d * * *", end.Minute, end.Hour)
		n.wake, err = cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("scheduler: wake schedule %q: %w", expr, err)
		}
	}
	return n, nil
}

// Active reports whether now falls in the night window.
//
// Legacy mode compares hour and minute independently, so with a 23:30 start
// only 23:31 through 23:59 match. Window mode matches [start, end), wrapping
// past midnight when end is earlier than start.
func (n *Night) Active(now time.Time) bool {
	if n.mode != config.NightModeWindow {
		return now.Hour() >= n.start.Hour && now.Minute() > n.start.Minute
	}

	m := now.Hour()*60 + now.Minute()
	s := n.start.Hour*60 + n.start.Minute
	e := n.end.Hour*60 + n.end.Minute
	switch {
	case s < e:
		return m >= s && m < e
	case s > e:
		return m >= s || m < e
	default:
		return false
	}
}

// SleepFor is how long to suspend after drawing the night frame at now.
func (n *Night) SleepFor(now time.Time) time.Duration {
	if n.wake == nil {
		return n.sleep
	}
	return n.wake.Next(now).Sub(now)
}

// UntilNextMinute returns the time left until the next minute boundary,
// counted in whole seconds: a full minute when now.Second() is 0.
func UntilNextMinute(now time.Time) time.Duration {
	return time.Duration(60-now.Second()) * time.Second
}
