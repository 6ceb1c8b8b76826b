package ics

import (
	"context"
	"errors"
	"time"

	appLog "edashboard/internal/log"
)

// AgendaOptions configures an Agenda.
type AgendaOptions struct {
	Sources   []Source
	CacheDir  string
	Timeout   time.Duration
	Lookahead time.Duration
	Refresh   time.Duration
	Location  *time.Location
	// Offline disables fetching; Upcoming then always reports 0.
	Offline bool
}

// Agenda counts upcoming events across ICS sources, refetching the feeds at
// most once per refresh interval.
type Agenda struct {
	fetcher   *Fetcher
	sources   []Source
	lookahead time.Duration
	refresh   time.Duration
	loc       *time.Location
	offline   bool

	events    []ParsedEvent
	lastFetch time.Time
}

// NewAgenda creates an Agenda. Zero Lookahead means 1h; zero Refresh means
// 15m.
func NewAgenda(opts AgendaOptions) *Agenda {
	if opts.Lookahead <= 0 {
		opts.Lookahead = time.Hour
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 15 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Agenda{
		fetcher:   NewFetcher(opts.CacheDir, opts.Timeout),
		sources:   opts.Sources,
		lookahead: opts.Lookahead,
		refresh:   opts.Refresh,
		loc:       opts.Location,
		offline:   opts.Offline,
	}
}

// Upcoming returns how many occurrences start within [now, now+lookahead).
// A failed refresh keeps the previously parsed events and is reported as
// the error alongside the count.
func (a *Agenda) Upcoming(ctx context.Context, now time.Time) (int, error) {
	if a.offline || len(a.sources) == 0 {
		return 0, nil
	}

	var refreshErr error
	if a.lastFetch.IsZero() || now.Sub(a.lastFetch) >= a.refresh {
		refreshErr = a.reload(ctx)
		a.lastFetch = now
	}

	occ, err := ExpandOccurrences(a.events, ExpandConfig{
		DisplayLocation: a.loc,
		RangeStart:      now,
		RangeEnd:        now.Add(a.lookahead),
	})
	if err != nil {
		return 0, err
	}
	return len(occ), refreshErr
}

func (a *Agenda) reload(ctx context.Context) error {
	results, errs := a.fetcher.FetchAll(ctx, a.sources)
	if len(results) == 0 {
		// Nothing usable; keep what we had.
		return errors.Join(errs...)
	}

	events := make([]ParsedEvent, 0)
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body, a.loc)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		events = append(events, parsed...)
	}
	if len(events) == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.events = events
	return errors.Join(errs...)
}
