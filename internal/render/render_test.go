package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"edashboard/internal/config"
	"edashboard/internal/convert"
	"edashboard/internal/model"
)

var noon = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(Options{
		Layout:   config.DefaultLayout(),
		Locale:   "en_US",
		Location: time.UTC,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// inkIn counts ink pixels inside r.
func inkIn(img *image.Gray, r image.Rectangle) int {
	n := 0
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y < convert.InkThreshold {
				n++
			}
		}
	}
	return n
}

func writeIcon(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "icon.png")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())
	return path
}

var (
	weatherArea = image.Rect(0, 70, 150, 104)
	iconArea    = image.Rect(160, 0, 212, 42)
)

func TestNewComposer_Errors(t *testing.T) {
	_, err := NewComposer(Options{Layout: config.DefaultLayout(), Locale: "xx_XX"})
	require.Error(t, err)

	_, err = NewComposer(Options{Layout: config.Layout{}, Locale: "en_US"})
	require.Error(t, err)

	_, err = NewComposer(Options{
		Layout: config.DefaultLayout(),
		Locale: "en_US",
		Fonts:  config.FontsConfig{Bold: filepath.Join(t.TempDir(), "missing.ttf")},
	})
	require.Error(t, err)
}

func TestStatus_NoReading(t *testing.T) {
	c := newTestComposer(t)
	f := c.Status(noon, nil, "", Indicators{})

	assert.Equal(t, image.Rect(0, 0, 212, 104), f.Black.Bounds())
	assert.Equal(t, image.Rect(0, 0, 212, 104), f.Red.Bounds())

	// Clock and date are drawn.
	assert.Positive(t, inkIn(f.Black, image.Rect(0, 0, 150, 40)))
	assert.Positive(t, inkIn(f.Black, image.Rect(0, 43, 212, 64)))

	// The separator spans the full width.
	assert.Equal(t, 212, inkIn(f.Black, image.Rect(0, 65, 212, 66)))

	assert.Zero(t, inkIn(f.Black, weatherArea), "no weather text without a reading")
	assert.Zero(t, inkIn(f.Black, iconArea))
	assert.Zero(t, inkIn(f.Red, f.Red.Bounds()))
}

func TestStatus_WithReading(t *testing.T) {
	c := newTestComposer(t)
	reading := model.WeatherReading{Temperature: 6, FeelsLikeTemperature: 1.5, WindSpeed: 8, IconCode: "r01n"}

	f := c.Status(noon, &reading, "", Indicators{})
	assert.Positive(t, inkIn(f.Black, weatherArea))
	assert.Zero(t, inkIn(f.Black, iconArea), "no icon path, no icon")
	assert.Zero(t, inkIn(f.Red, f.Red.Bounds()))
}

func TestStatus_Icon(t *testing.T) {
	c := newTestComposer(t)
	reading := model.WeatherReading{Temperature: 6}

	f := c.Status(noon, &reading, writeIcon(t, color.Black), Indicators{})
	assert.Positive(t, inkIn(f.Black, iconArea))
	assert.Equal(t, 50*45, inkIn(f.Black, image.Rect(160, 0, 210, 45)), "opaque icon fills its visible slot")

	// Transparent pixels stay paper.
	f = c.Status(noon, &reading, writeIcon(t, color.Transparent), Indicators{})
	assert.Zero(t, inkIn(f.Black, iconArea))
}

func TestStatus_BadIconIsSkipped(t *testing.T) {
	c := newTestComposer(t)
	reading := model.WeatherReading{Temperature: 6}

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))

	for _, path := range []string{bad, filepath.Join(t.TempDir(), "missing.png")} {
		f := c.Status(noon, &reading, path, Indicators{})
		assert.Zero(t, inkIn(f.Black, iconArea))
		assert.Positive(t, inkIn(f.Black, weatherArea))
	}
}

func TestStatus_Indicators(t *testing.T) {
	c := newTestComposer(t)
	l := config.DefaultLayout()

	f := c.Status(noon, nil, "", Indicators{CalendarCount: 3})
	cal := image.Rect(l.Calendar.X, l.Calendar.Y, l.Calendar.X+l.Calendar.Size, l.Calendar.Y+l.Calendar.Size)
	assert.Positive(t, inkIn(f.Red, cal))
	assert.Equal(t, inkIn(f.Red, f.Red.Bounds()), inkIn(f.Red, cal), "calendar stays in its slot")

	f = c.Status(noon, nil, "", Indicators{BatteryLow: true, BatteryPercent: 10})
	bat := image.Rect(l.Battery.X, l.Battery.Y, l.Battery.X+l.Battery.Size, l.Battery.Y+l.Battery.Size)
	assert.Positive(t, inkIn(f.Red, bat))
	assert.Equal(t, inkIn(f.Red, f.Red.Bounds()), inkIn(f.Red, bat))

	f = c.Status(noon, nil, "", Indicators{BatteryPercent: 10})
	assert.Zero(t, inkIn(f.Red, f.Red.Bounds()), "battery hidden unless low")
}

func TestNight(t *testing.T) {
	c := newTestComposer(t)
	l := config.DefaultLayout()

	f := c.Night()
	moon := image.Rect(l.Moon.X, l.Moon.Y, l.Moon.X+l.Moon.Size, l.Moon.Y+l.Moon.Size)
	total := inkIn(f.Black, f.Black.Bounds())
	assert.Positive(t, total)
	assert.Equal(t, total, inkIn(f.Black, moon))
	assert.Less(t, total, l.Moon.Size*l.Moon.Size/2, "a crescent, not a full disc")
	assert.Zero(t, inkIn(f.Red, f.Red.Bounds()))
}

func TestFramePlanes(t *testing.T) {
	c := newTestComposer(t)
	f := c.Night()

	black, red, err := f.Planes(104, 212)
	require.NoError(t, err)
	assert.Len(t, black, 2756)
	assert.Len(t, red, 2756)
	for _, b := range red {
		require.Equal(t, byte(0xFF), b)
	}

	_, _, err = f.Planes(128, 296)
	require.Error(t, err)
}

func TestNumber(t *testing.T) {
	tests := map[float64]string{
		6:     "6",
		1.5:   "1.5",
		-0.3:  "-0.3",
		12.25: "12.25",
		0:     "0",
	}
	for in, want := range tests {
		assert.Equal(t, want, number(in))
	}
}

func TestDateFormatter(t *testing.T) {
	df, err := newDateFormatter("en_US")
	require.NoError(t, err)
	s := df.format(noon)
	assert.True(t, strings.HasPrefix(s, "Fri "), s)
	assert.Contains(t, s, "24")

	ru, err := newDateFormatter("ru_RU")
	require.NoError(t, err)
	s = ru.format(noon)
	assert.True(t, strings.HasPrefix(s, "Пт"), s)
}

func TestCapitalize(t *testing.T) {
	tag := language.Russian
	lower, upper := cases.Lower(tag), cases.Upper(tag)
	assert.Equal(t, "Пн 04.03.24", capitalize("пН 04.03.24", lower, upper))
	assert.Equal(t, "Mon", capitalize("MON", lower, upper))
	assert.Equal(t, "", capitalize("", lower, upper))
}
