// Package battery reads the power level shown by the low battery indicator.
package battery

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	appLog "edashboard/internal/log"
)

// PiSugar3 registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A

	// DefaultAddr is the PiSugar3 I2C address.
	DefaultAddr = 0x57
)

// Status is a battery reading.
type Status struct {
	// Percent is the battery level in 0-100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

// Low reports whether the level is at or below threshold percent.
func (s Status) Low(threshold int) bool {
	return s.Percent <= threshold
}

// Reader abstracts how battery information is obtained.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// ErrUnavailable is returned when the platform, host driver or bus needed to
// reach the battery is missing.
var ErrUnavailable = errors.New("battery: unavailable")

// staticReader always returns the same status, for development and tests.
type staticReader struct {
	status Status
}

// NewStaticReader returns a Reader that always reports st.
func NewStaticReader(st Status) Reader {
	return &staticReader{status: st}
}

func (r *staticReader) Read(context.Context) (Status, error) {
	return r.status, nil
}

// i2cReader talks to a PiSugar3 over I2C:
//   - 0x22 (high), 0x23 (low): battery voltage in millivolts
//   - 0x2A: battery percentage (0-100)
type i2cReader struct {
	busName string
	addr    uint16

	initOnce sync.Once
	initErr  error
}

// NewI2CReader constructs an I2C-backed Reader. busName "" selects the
// default bus (/dev/i2c-1 on a Raspberry Pi). The bus is opened per Read.
func NewI2CReader(busName string, addr uint16) Reader {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &i2cReader{busName: busName, addr: addr}
}

// Read implements Reader for the I2C-backed reader.
func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, fmt.Errorf("%w: no i2c on %s", ErrUnavailable, runtime.GOOS)
	}
	r.initOnce.Do(func() {
		_, r.initErr = host.Init()
	})
	if r.initErr != nil {
		return Status{}, errors.Join(ErrUnavailable, r.initErr)
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, errors.Join(ErrUnavailable, err)
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Percent:   clampPercent(int(pct)),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// DefaultReader probes the PiSugar3 on busName/addr and logs when it does
// not answer. The I2C reader is returned either way; each failed Read only
// hides the indicator for that tick.
func DefaultReader(ctx context.Context, busName string, addr uint16) Reader {
	r := NewI2CReader(busName, addr)
	if _, err := r.Read(ctx); err != nil {
		appLog.Warn("battery probe failed, will retry every tick", "bus", busName, "reason", err.Error())
	}
	return r
}
