package weather

import (
	"context"
	"time"

	"edashboard/internal/model"
)

// DefaultInterval is how long a reading is considered fresh.
const DefaultInterval = 15 * time.Minute

// State is the cached weather value threaded through the loop. A zero
// LastFetch means nothing has been fetched yet.
type State struct {
	Reading   *model.WeatherReading
	LastFetch time.Time
}

// Stale reports whether a refresh should be attempted at now: either nothing
// was fetched yet, or strictly more than interval has elapsed.
func (s State) Stale(now time.Time, interval time.Duration) bool {
	if s.LastFetch.IsZero() {
		return true
	}
	return now.Sub(s.LastFetch) > interval
}

// Refresher turns a State into a possibly newer State.
type Refresher interface {
	Refresh(ctx context.Context, now time.Time, st State) (State, error)
}

type cachedRefresher struct {
	source   Source
	interval time.Duration
}

// NewRefresher returns a Refresher that calls source only when the state is
// stale. A non-positive interval means DefaultInterval.
func NewRefresher(source Source, interval time.Duration) Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &cachedRefresher{source: source, interval: interval}
}

// Refresh returns st untouched when it is fresh. On a failed fetch it also
// returns st untouched, together with the error.
func (r *cachedRefresher) Refresh(ctx context.Context, now time.Time, st State) (State, error) {
	if !st.Stale(now, r.interval) {
		return st, nil
	}

	reading, err := r.source.Current(ctx)
	if err != nil {
		return st, err
	}
	return State{Reading: &reading, LastFetch: now}, nil
}

// MockReading is the canned reading used in offline mode.
func MockReading() model.WeatherReading {
	return model.WeatherReading{
		Humidity:             86,
		WindSpeed:            8,
		Temperature:          6,
		FeelsLikeTemperature: 1.5,
		IconCode:             "r01n",
		Description:          "Light rain",
	}
}

type offlineRefresher struct {
	reading model.WeatherReading
}

// NewOfflineRefresher returns a Refresher that always yields reading and
// never touches the network.
func NewOfflineRefresher(reading model.WeatherReading) Refresher {
	return &offlineRefresher{reading: reading}
}

// IsOffline reports whether r never performs network fetches.
func IsOffline(r Refresher) bool {
	_, ok := r.(*offlineRefresher)
	return ok
}

func (r *offlineRefresher) Refresh(_ context.Context, now time.Time, st State) (State, error) {
	if st.Reading != nil {
		return st, nil
	}
	reading := r.reading
	return State{Reading: &reading, LastFetch: now}, nil
}
