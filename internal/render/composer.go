// Package render composes the black and red layers shown on the panel.
package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strconv"
	"time"

	xdraw "golang.org/x/image/draw"

	"edashboard/internal/config"
	"edashboard/internal/convert"
	appLog "edashboard/internal/log"
	"edashboard/internal/model"
)

// Frame is one refresh worth of layers. Both layers share the layout's
// size; a pixel value of 0 is ink and 255 is paper.
type Frame struct {
	Black *image.Gray
	Red   *image.Gray
}

// Planes packs both layers for a panel of native size panelW x panelH.
func (f Frame) Planes(panelW, panelH int) (black, red []byte, err error) {
	black, err = convert.PackLayer(f.Black, panelW, panelH)
	if err != nil {
		return nil, nil, fmt.Errorf("render: black layer: %w", err)
	}
	red, err = convert.PackLayer(f.Red, panelW, panelH)
	if err != nil {
		return nil, nil, fmt.Errorf("render: red layer: %w", err)
	}
	return black, red, nil
}

// Indicators are the optional red-layer items.
type Indicators struct {
	// CalendarCount is the number of upcoming events; 0 hides the glyph.
	CalendarCount int
	// BatteryLow shows the battery glyph filled to BatteryPercent.
	BatteryLow     bool
	BatteryPercent int
}

// Options configures a Composer.
type Options struct {
	Layout   config.Layout
	Fonts    config.FontsConfig
	Locale   string // e.g. "ru_RU"
	Location *time.Location
}

// Composer draws status and night frames.
type Composer struct {
	layout config.Layout
	fonts  *fontSet
	date   *dateFormatter
	loc    *time.Location
}

// NewComposer loads fonts and validates the locale. Both failures are
// fatal for the caller.
func NewComposer(opts Options) (*Composer, error) {
	if opts.Layout.Width <= 0 || opts.Layout.Height <= 0 {
		return nil, errors.New("render: layout has no size")
	}
	fs, err := loadFonts(opts.Fonts.Regular, opts.Fonts.Bold)
	if err != nil {
		return nil, err
	}
	df, err := newDateFormatter(opts.Locale)
	if err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Composer{
		layout: opts.Layout,
		fonts:  fs,
		date:   df,
		loc:    loc,
	}, nil
}

// Close releases cached font faces.
func (c *Composer) Close() {
	c.fonts.close()
}

func (c *Composer) blank() Frame {
	return Frame{
		Black: convert.NewLayer(c.layout.Width, c.layout.Height),
		Red:   convert.NewLayer(c.layout.Width, c.layout.Height),
	}
}

// Status draws the clock, date, separator and, when reading is non-nil, the
// weather lines and icon. An empty iconPath or an icon that fails to decode
// draws no icon.
func (c *Composer) Status(now time.Time, reading *model.WeatherReading, iconPath string, ind Indicators) Frame {
	l := c.layout
	f := c.blank()
	now = now.In(c.loc)

	drawText(f.Black, c.fonts.face(Bold, l.Time.Size), l.Time.X, l.Time.Y, now.Format("15:04"))
	drawText(f.Black, c.fonts.face(Bold, l.Date.Size), l.Date.X, l.Date.Y, c.date.format(now))
	hline(f.Black, 0, l.Width-1, l.SeparatorY)

	if reading != nil {
		temp := fmt.Sprintf("%s°(%s°)", number(reading.Temperature), number(reading.FeelsLikeTemperature))
		drawText(f.Black, c.fonts.face(Bold, l.Temperature.Size), l.Temperature.X, l.Temperature.Y, temp)

		wind := fmt.Sprintf("Wind: %sms", number(reading.WindSpeed))
		drawText(f.Black, c.fonts.face(Regular, l.Wind.Size), l.Wind.X, l.Wind.Y, wind)

		if iconPath != "" {
			if err := drawIcon(f.Black, iconPath, l.Icon); err != nil {
				appLog.Error("icon draw failed", err, "path", iconPath)
			}
		}
	}

	if ind.CalendarCount > 0 {
		drawCalendar(f.Red, c.fonts, l.Calendar, ind.CalendarCount)
	}
	if ind.BatteryLow {
		drawBattery(f.Red, l.Battery, ind.BatteryPercent)
	}

	return f
}

// Night draws the sleeping frame: a moon on the black layer, red blank.
func (c *Composer) Night() Frame {
	f := c.blank()
	drawMoon(f.Black, c.layout.Moon)
	return f
}

// drawIcon decodes the image at path, scales it into slot and thresholds it
// onto dst. Red pixels are drawn as black ink.
func drawIcon(dst *image.Gray, path string, slot config.ImageSlot) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	src, _, err := image.Decode(fh)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, slot.Size, slot.Size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	for y := 0; y < slot.Size; y++ {
		for x := 0; x < slot.Size; x++ {
			if convert.Classify(scaled.NRGBAAt(x, y)) != convert.InkWhite {
				setInk(dst, slot.X+x, slot.Y+y)
			}
		}
	}
	return nil
}

// number prints v in its shortest form: 6, 1.5, -0.3.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
