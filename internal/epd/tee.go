package epd

import (
	"context"
	"errors"
)

// Tee forwards every call to a panel and mirrors displayed frames into a
// preview device, for -dump on real hardware. Preview failures are returned
// after the panel has been driven.
type Tee struct {
	Panel   Device
	Preview *Preview
}

var _ Device = (*Tee)(nil)

func (t *Tee) Width() int  { return t.Panel.Width() }
func (t *Tee) Height() int { return t.Panel.Height() }

func (t *Tee) Init(ctx context.Context) error {
	if err := t.Panel.Init(ctx); err != nil {
		return err
	}
	return t.Preview.Init(ctx)
}

func (t *Tee) Display(black, red []byte) error {
	if err := t.Panel.Display(black, red); err != nil {
		return err
	}
	return t.Preview.Display(black, red)
}

func (t *Tee) Sleep() error {
	return errors.Join(t.Panel.Sleep(), t.Preview.Sleep())
}

func (t *Tee) Close() error {
	return errors.Join(t.Panel.Close(), t.Preview.Close())
}
