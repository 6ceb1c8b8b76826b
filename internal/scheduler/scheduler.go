// Package scheduler runs the refresh loop: once a minute during the day it
// redraws the status frame, and inside the night window it draws the
// sleeping frame and suspends until morning.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"edashboard/internal/battery"
	"edashboard/internal/epd"
	appLog "edashboard/internal/log"
	"edashboard/internal/metrics"
	"edashboard/internal/render"
	"edashboard/internal/weather"
)

// IconResolver maps a weather icon code to a local PNG path.
type IconResolver interface {
	Resolve(ctx context.Context, code string) (string, bool)
}

// EventCounter reports how many calendar events are coming up.
type EventCounter interface {
	Upcoming(ctx context.Context, now time.Time) (int, error)
}

// Options wires the loop. Calendar, Battery and Metrics are optional.
type Options struct {
	Clock    clockwork.Clock
	Device   epd.Device
	Composer *render.Composer
	Weather  weather.Refresher
	Icons    IconResolver
	Night    *Night
	Location *time.Location

	Calendar      EventCounter
	Battery       battery.Reader
	BatteryLowPct int
	Metrics       *metrics.Metrics
	MetricsFile   string

	// Once runs a single iteration and returns without waiting.
	Once bool
}

// Scheduler owns the weather state and the panel's power state between
// ticks. It is not safe for concurrent use.
type Scheduler struct {
	opts Options

	state weather.State
	awake bool
}

// New validates opts and returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Device == nil:
		return nil, errors.New("scheduler: no display device")
	case opts.Composer == nil:
		return nil, errors.New("scheduler: no frame composer")
	case opts.Weather == nil:
		return nil, errors.New("scheduler: no weather refresher")
	case opts.Night == nil:
		return nil, errors.New("scheduler: no night window")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{opts: opts}, nil
}

// Weather returns the current weather state.
func (s *Scheduler) Weather() weather.State {
	return s.state
}

// Run loops until ctx is cancelled (returning nil) or a render or display
// step fails (returning its error).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		if s.opts.Once {
			return nil
		}

		appLog.Debug("waiting for next tick", "wait", wait.String())
		select {
		case <-ctx.Done():
			appLog.Info("scheduler stopped")
			return nil
		case <-s.opts.Clock.After(wait):
		}
	}
}

// Tick draws one frame for the current time and returns how long to wait
// before the next one. The wait is measured from when the frame reached the
// panel, so a slow refresh does not push later ticks off the minute.
func (s *Scheduler) Tick(ctx context.Context) (time.Duration, error) {
	now := s.now()

	var (
		wait time.Duration
		err  error
	)
	if s.opts.Night.Active(now) {
		wait, err = s.night(ctx, now)
	} else {
		wait, err = s.status(ctx, now)
	}
	if err != nil {
		return 0, err
	}

	if s.opts.Metrics != nil {
		if err := s.opts.Metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
			appLog.Error("metrics textfile not written", err, "path", s.opts.MetricsFile)
		}
	}
	return wait, nil
}

func (s *Scheduler) night(ctx context.Context, now time.Time) (time.Duration, error) {
	if err := s.wake(ctx); err != nil {
		return 0, err
	}
	if err := s.push(s.opts.Composer.Night()); err != nil {
		return 0, err
	}
	if err := s.opts.Device.Sleep(); err != nil {
		return 0, fmt.Errorf("scheduler: panel sleep: %w", err)
	}
	s.awake = false
	if s.opts.Metrics != nil {
		s.opts.Metrics.Rendered("night", now)
	}

	done := s.now()
	wait := s.opts.Night.SleepFor(done)
	appLog.Info("night frame shown, panel asleep", "until", done.Add(wait).Format(time.RFC3339))
	return wait, nil
}

func (s *Scheduler) status(ctx context.Context, now time.Time) (time.Duration, error) {
	s.refreshWeather(ctx, now)

	var iconPath string
	if r := s.state.Reading; r != nil && s.opts.Icons != nil {
		result := "missing"
		if path, ok := s.opts.Icons.Resolve(ctx, r.IconCode); ok {
			iconPath = path
			result = "ok"
		}
		s.count(func(m *metrics.Metrics) { m.IconResolves.WithLabelValues(result).Inc() })
	}

	frame := s.opts.Composer.Status(now, s.state.Reading, iconPath, s.indicators(ctx, now))
	if err := s.wake(ctx); err != nil {
		return 0, err
	}
	if err := s.push(frame); err != nil {
		return 0, err
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.Rendered("status", now)
		if !s.state.LastFetch.IsZero() {
			s.opts.Metrics.WeatherAge.Set(now.Sub(s.state.LastFetch).Seconds())
		}
	}
	return UntilNextMinute(s.now()), nil
}

func (s *Scheduler) refreshWeather(ctx context.Context, now time.Time) {
	prev := s.state.LastFetch
	st, err := s.opts.Weather.Refresh(ctx, now, s.state)
	s.state = st
	if err != nil {
		appLog.Error("weather refresh failed, keeping previous reading", err, "kind", weather.Kind(err))
		s.count(func(m *metrics.Metrics) { m.WeatherFetches.WithLabelValues(weather.Kind(err)).Inc() })
		return
	}
	if !st.LastFetch.Equal(prev) && !weather.IsOffline(s.opts.Weather) {
		appLog.Debug("weather refreshed", "icon", st.Reading.IconCode, "temp", st.Reading.Temperature)
		s.count(func(m *metrics.Metrics) { m.WeatherFetches.WithLabelValues("ok").Inc() })
	}
}

func (s *Scheduler) indicators(ctx context.Context, now time.Time) render.Indicators {
	var ind render.Indicators

	if s.opts.Calendar != nil {
		n, err := s.opts.Calendar.Upcoming(ctx, now)
		if err != nil {
			appLog.Error("calendar refresh failed", err)
			s.count(func(m *metrics.Metrics) { m.CalendarFetch.WithLabelValues("error").Inc() })
		} else {
			s.count(func(m *metrics.Metrics) { m.CalendarFetch.WithLabelValues("ok").Inc() })
		}
		ind.CalendarCount = n
	}

	if s.opts.Battery != nil {
		st, err := s.opts.Battery.Read(ctx)
		if err != nil {
			if !errors.Is(err, battery.ErrUnavailable) {
				appLog.Error("battery read failed", err)
			}
		} else {
			ind.BatteryLow = st.Low(s.opts.BatteryLowPct)
			ind.BatteryPercent = st.Percent
			s.count(func(m *metrics.Metrics) { m.BatteryPercent.Set(float64(st.Percent)) })
		}
	}
	return ind
}

// wake runs the panel init sequence if the panel has not been initialized
// yet or was put to sleep by the night branch.
func (s *Scheduler) wake(ctx context.Context) error {
	if s.awake {
		return nil
	}
	if err := s.opts.Device.Init(ctx); err != nil {
		return fmt.Errorf("scheduler: panel init: %w", err)
	}
	s.awake = true
	return nil
}

// Standby puts the panel into deep sleep unless the night branch already
// did.
func (s *Scheduler) Standby() error {
	if !s.awake {
		return nil
	}
	s.awake = false
	if err := s.opts.Device.Sleep(); err != nil {
		return fmt.Errorf("scheduler: panel sleep: %w", err)
	}
	return nil
}

func (s *Scheduler) push(f render.Frame) error {
	black, red, err := f.Planes(s.opts.Device.Width(), s.opts.Device.Height())
	if err != nil {
		return fmt.Errorf("scheduler: pack frame: %w", err)
	}
	if err := s.opts.Device.Display(black, red); err != nil {
		return fmt.Errorf("scheduler: display: %w", err)
	}
	return nil
}

func (s *Scheduler) now() time.Time {
	return s.opts.Clock.Now().In(s.opts.Location)
}

func (s *Scheduler) count(fn func(*metrics.Metrics)) {
	if s.opts.Metrics != nil {
		fn(s.opts.Metrics)
	}
}
