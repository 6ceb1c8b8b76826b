package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeatherEndpoint, cfg.Weather.Endpoint)
	assert.Equal(t, 15*time.Minute, cfg.Weather.RefreshInterval)
	assert.Equal(t, NightModeLegacy, cfg.Night.Mode)
	assert.Equal(t, 7*time.Hour+30*time.Minute, cfg.Night.Sleep)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Layout, again.Layout)
	assert.Equal(t, cfg.Night, again.Night)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
locale: ru_RU.UTF-8
night:
  mode: bogus
weather:
  refresh_interval: 5m
layout:
  time:
    x: 2
    y: 1
    size: 40
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ru_RU.UTF-8", cfg.Locale)
	assert.Equal(t, NightModeLegacy, cfg.Night.Mode)
	assert.Equal(t, "23:30", cfg.Night.Start)
	assert.Equal(t, 5*time.Minute, cfg.Weather.RefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.Weather.Timeout)
	assert.Equal(t, TextSlot{X: 2, Y: 1, Size: 40}, cfg.Layout.Time)
	assert.Equal(t, 65, cfg.Layout.SeparatorY)
	assert.Equal(t, 212, cfg.Layout.Width)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locale: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnv_DotenvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LAT=55.7\nLON=37.57\nWB_API_KEY=from-dotenv\nLOCALE= ru_RU.UTF-8 \n"), 0o600))

	// Process environment wins over the dotenv file.
	t.Setenv("WB_API_KEY", "from-env")
	for _, k := range []string{"LAT", "LON", "LOCALE"} {
		unsetForTest(t, k)
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envPath))

	assert.InDelta(t, 55.7, cfg.Location.Lat, 1e-9)
	assert.InDelta(t, 37.57, cfg.Location.Lon, 1e-9)
	assert.Equal(t, "from-env", cfg.Weather.APIKey)
	assert.Equal(t, "ru_RU.UTF-8", cfg.Locale)
	assert.Equal(t, "ru", cfg.WeatherLang())
	assert.Equal(t, "ru_RU", cfg.LocaleName())
}

func TestApplyEnv_MissingDotenvIsFine(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestApplyEnv_BadLatitude(t *testing.T) {
	t.Setenv("LAT", "north")
	cfg := DefaultConfig()
	require.Error(t, cfg.ApplyEnv(""))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(false), "API key is required online")
	require.NoError(t, cfg.Validate(true), "offline mode needs no API key")

	cfg.Weather.APIKey = "k"
	cfg.Location.Lat = 91
	require.Error(t, cfg.Validate(false))

	cfg.Location.Lat = 10
	require.NoError(t, cfg.Validate(false))

	cfg.Night.Start = "25:99"
	require.Error(t, cfg.Validate(false))
}

func TestParseClock(t *testing.T) {
	ct, err := ParseClock("23:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 23, Minute: 30}, ct)

	ct, err = ParseClock(" 07:00 ")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 7}, ct)

	_, err = ParseClock("7pm")
	require.Error(t, err)
}

func TestLocaleName(t *testing.T) {
	cases := map[string]string{
		"en_US.UTF-8":     "en_US",
		"de_DE@euro":      "de_DE",
		"fr_FR":           "fr_FR",
		"sr_RS.UTF-8@lat": "sr_RS",
	}
	for in, want := range cases {
		cfg := &Config{Locale: in}
		assert.Equal(t, want, cfg.LocaleName(), in)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

// unsetForTest removes key for the duration of the test and restores it
// afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
