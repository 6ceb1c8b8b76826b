//go:build !linux

package epd

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("epd: SPI driver is only available on linux")

// SPIDevice is unavailable on this platform; OpenSPI always fails.
type SPIDevice struct{}

func OpenSPI(string) (*SPIDevice, error) { return nil, errUnsupported }

func (d *SPIDevice) Width() int { return Width }

func (d *SPIDevice) Height() int { return Height }

func (d *SPIDevice) Init(context.Context) error { return errUnsupported }

func (d *SPIDevice) Display(_, _ []byte) error { return errUnsupported }

func (d *SPIDevice) Sleep() error { return errUnsupported }

func (d *SPIDevice) Close() error { return nil }
