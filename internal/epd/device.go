// Package epd drives the Waveshare 2.13" B/C (black/white/red) e-paper panel
// and provides a preview device that writes frames to disk instead.
package epd

import (
	"context"

	"edashboard/internal/convert"
)

// Native (portrait) geometry of the 2.13" B/C panel.
const (
	Width  = 104
	Height = 212
)

// PlaneSize is the byte length of one packed plane.
var PlaneSize = convert.PlaneSize(Width, Height)

// Device is an output that accepts packed black and red planes.
//
// Planes are 1bpp, MSB-first, 1 = paper and 0 = ink, with row stride
// ceil(Width()/8).
type Device interface {
	// Init wakes the panel (hardware reset plus power-on sequence). It is
	// also required after Sleep before the next Display.
	Init(ctx context.Context) error
	Display(black, red []byte) error
	// Sleep puts the panel into deep sleep.
	Sleep() error
	Close() error
	Width() int
	Height() int
}

// Clear pushes an all-paper frame to d. The panel must be initialized.
func Clear(d Device) error {
	blank := make([]byte, convert.PlaneSize(d.Width(), d.Height()))
	for i := range blank {
		blank[i] = convert.Paper
	}
	return d.Display(blank, blank)
}

var (
	_ Device = (*SPIDevice)(nil)
	_ Device = (*Preview)(nil)
)
