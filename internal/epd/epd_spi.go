//go:build linux

package epd

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	appLog "edashboard/internal/log"
)

// BCM pin numbers of the Waveshare HAT. SPI clock/MOSI are owned by
// /dev/spidev.
const (
	bcmRST  = 17
	bcmDC   = 25
	bcmCS   = 8
	bcmBUSY = 24
)

// Controller commands used by the 2.13" B/C sequences.
const (
	cmdPanelSetting   = 0x00
	cmdPowerOff       = 0x02
	cmdPowerOn        = 0x04
	cmdBoosterSoft    = 0x06
	cmdDeepSleep      = 0x07
	cmdDataBlack      = 0x10
	cmdDisplayRefresh = 0x12
	cmdDataRed        = 0x13
	cmdVCOMInterval   = 0x50
	cmdResolution     = 0x61
)

// busyTimeout bounds each wait on the BUSY line; a full refresh of this
// panel takes about 15s.
const busyTimeout = 40 * time.Second

// SPIDevice is the periph.io driver for the panel.
type SPIDevice struct {
	port spi.PortCloser
	conn spi.Conn

	rst  gpio.PinOut
	dc   gpio.PinOut
	cs   gpio.PinOut
	busy gpio.PinIn

	sleep func(time.Duration)
}

// OpenSPI initializes periph.io, opens the SPI port (empty name = first
// available, /dev/spidev0.0 on a Raspberry Pi) and claims the HAT's GPIOs.
// The panel itself is not touched until Init.
func OpenSPI(portName string) (*SPIDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}

	c, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}

	d := &SPIDevice{port: port, conn: c, sleep: time.Sleep}

	outPin := func(num int, level gpio.Level) (gpio.PinOut, error) {
		name := fmt.Sprintf("GPIO%d", num)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("epd: gpio %s not found", name)
		}
		if err := p.Out(level); err != nil {
			return nil, fmt.Errorf("epd: gpio %s out: %w", name, err)
		}
		return p, nil
	}

	if d.rst, err = outPin(bcmRST, gpio.High); err != nil {
		_ = port.Close()
		return nil, err
	}
	if d.dc, err = outPin(bcmDC, gpio.Low); err != nil {
		_ = port.Close()
		return nil, err
	}
	if d.cs, err = outPin(bcmCS, gpio.High); err != nil {
		_ = port.Close()
		return nil, err
	}

	busy := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcmBUSY))
	if busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio GPIO%d not found", bcmBUSY)
	}
	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: gpio GPIO%d in: %w", bcmBUSY, err)
	}
	d.busy = busy

	return d, nil
}

func (d *SPIDevice) Width() int  { return Width }
func (d *SPIDevice) Height() int { return Height }

// Init runs the reset and power-on sequence.
func (d *SPIDevice) Init(ctx context.Context) error {
	d.reset()

	if err := d.command(cmdBoosterSoft, 0x17, 0x17, 0x17); err != nil {
		return err
	}
	if err := d.command(cmdPowerOn); err != nil {
		return err
	}
	if err := d.waitIdle(ctx); err != nil {
		return err
	}
	// LUT from OTP, black/white/red mode, scan up and shift right.
	if err := d.command(cmdPanelSetting, 0x8F); err != nil {
		return err
	}
	if err := d.command(cmdVCOMInterval, 0xF0); err != nil {
		return err
	}
	if err := d.command(cmdResolution, byte(Width), byte(Height>>8), byte(Height&0xFF)); err != nil {
		return err
	}
	appLog.Debug("epd init done")
	return nil
}

// Display sends both planes and triggers a full refresh.
func (d *SPIDevice) Display(black, red []byte) error {
	if len(black) != PlaneSize || len(red) != PlaneSize {
		return fmt.Errorf("epd: invalid buffer size, expected %d bytes per plane", PlaneSize)
	}

	if err := d.command(cmdDataBlack); err != nil {
		return err
	}
	if err := d.data(black...); err != nil {
		return err
	}
	if err := d.command(cmdDataRed); err != nil {
		return err
	}
	if err := d.data(red...); err != nil {
		return err
	}
	if err := d.command(cmdDisplayRefresh); err != nil {
		return err
	}
	return d.waitIdle(context.Background())
}

// Sleep powers the panel off and enters deep sleep.
func (d *SPIDevice) Sleep() error {
	if err := d.command(cmdPowerOff); err != nil {
		return err
	}
	if err := d.waitIdle(context.Background()); err != nil {
		return err
	}
	return d.command(cmdDeepSleep, 0xA5)
}

// Close releases the SPI port. GPIOs are left as they are.
func (d *SPIDevice) Close() error {
	return d.port.Close()
}

func (d *SPIDevice) reset() {
	_ = d.rst.Out(gpio.High)
	d.sleep(200 * time.Millisecond)
	_ = d.rst.Out(gpio.Low)
	d.sleep(5 * time.Millisecond)
	_ = d.rst.Out(gpio.High)
	d.sleep(200 * time.Millisecond)
}

// command sends cmd with DC low followed by optional data bytes.
func (d *SPIDevice) command(cmd byte, data ...byte) error {
	_ = d.dc.Out(gpio.Low)
	if err := d.write([]byte{cmd}); err != nil {
		return fmt.Errorf("epd: command %#02x: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	return d.data(data...)
}

func (d *SPIDevice) data(b ...byte) error {
	_ = d.dc.Out(gpio.High)
	if err := d.write(b); err != nil {
		return fmt.Errorf("epd: data: %w", err)
	}
	return nil
}

// write sends b in chunks no larger than the port's transfer limit.
func (d *SPIDevice) write(b []byte) error {
	limit := 4096
	if l, ok := d.conn.(conn.Limits); ok && l.MaxTxSize() > 0 {
		limit = l.MaxTxSize()
	}

	_ = d.cs.Out(gpio.Low)
	defer func() { _ = d.cs.Out(gpio.High) }()

	for len(b) > 0 {
		n := len(b)
		if n > limit {
			n = limit
		}
		if err := d.conn.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// waitIdle polls BUSY (low = busy) every 100ms.
func (d *SPIDevice) waitIdle(ctx context.Context) error {
	deadline := time.Now().Add(busyTimeout)
	for d.busy.Read() == gpio.Low {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("epd: busy timeout after %s", busyTimeout)
		}
		d.sleep(100 * time.Millisecond)
	}
	return nil
}
