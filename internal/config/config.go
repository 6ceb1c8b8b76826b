package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: Configuration is layered. The YAML file carries everything; a dotenv
// file and the process environment then override the handful of values the
// device owner usually keeps out of the file (coordinates, API key, locale).

const (
	DefaultWeatherEndpoint = "http://api.weatherbit.io/v2.0/current"
	DefaultIconBaseURL     = "https://www.weatherbit.io/static/img/icons"
	DefaultLocale          = "en_US.UTF-8"

	NightModeLegacy = "legacy"
	NightModeWindow = "window"

	DriverWaveshare = "waveshare-2in13bc"
	DriverPreview   = "preview"
)

// LocationConfig holds the coordinates sent to the weather API.
type LocationConfig struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// WeatherConfig describes the weather and icon endpoints.
type WeatherConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	IconBaseURL string `yaml:"icon_base_url" json:"icon_base_url"`
	APIKey      string `yaml:"api_key" json:"-"`

	// RefreshInterval is the minimum age of the cached reading before a new
	// fetch is attempted.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	// Timeout bounds each weather or icon request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PathsConfig lists on-disk locations.
type PathsConfig struct {
	IconCache string `yaml:"icon_cache" json:"icon_cache"`
	ICSCache  string `yaml:"ics_cache" json:"ics_cache"`
	DumpDir   string `yaml:"dump_dir" json:"dump_dir"`
}

// NightConfig controls the overnight sleeping frame.
type NightConfig struct {
	// Mode is "legacy" (default) or "window". Legacy only matches minutes
	// strictly after Start within Start's hour and then sleeps for Sleep.
	// Window matches [Start, End) across midnight and sleeps until End.
	Mode  string        `yaml:"mode" json:"mode"`
	Start string        `yaml:"start" json:"start"`
	End   string        `yaml:"end" json:"end"`
	Sleep time.Duration `yaml:"sleep" json:"sleep"`
}

// DisplayConfig selects the output device.
type DisplayConfig struct {
	// Driver is "waveshare-2in13bc" or "preview".
	Driver  string `yaml:"driver" json:"driver"`
	SPIPort string `yaml:"spi_port" json:"spi_port"`
}

// FontsConfig optionally points at TTF files. Empty means the embedded Go
// Mono faces.
type FontsConfig struct {
	Regular string `yaml:"regular" json:"regular"`
	Bold    string `yaml:"bold" json:"bold"`
}

// TextSlot is the top-left origin and point size of one text line.
type TextSlot struct {
	X    int     `yaml:"x" json:"x"`
	Y    int     `yaml:"y" json:"y"`
	Size float64 `yaml:"size" json:"size"`
}

// ImageSlot is the top-left origin and edge length of a square bitmap.
type ImageSlot struct {
	X    int `yaml:"x" json:"x"`
	Y    int `yaml:"y" json:"y"`
	Size int `yaml:"size" json:"size"`
}

// Layout holds every pixel coordinate used by the frame composer. Defaults
// are tuned for the 2.13" B/C panel drawn in landscape (212x104).
type Layout struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	Time        TextSlot `yaml:"time" json:"time"`
	Date        TextSlot `yaml:"date" json:"date"`
	SeparatorY  int      `yaml:"separator_y" json:"separator_y"`
	Temperature TextSlot `yaml:"temperature" json:"temperature"`
	Wind        TextSlot `yaml:"wind" json:"wind"`

	Icon     ImageSlot `yaml:"icon" json:"icon"`
	Calendar ImageSlot `yaml:"calendar" json:"calendar"`
	Battery  ImageSlot `yaml:"battery" json:"battery"`
	Moon     ImageSlot `yaml:"moon" json:"moon"`
}

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL string `yaml:"url" json:"url"`
	ID  string `yaml:"id" json:"id"`
}

// CalendarConfig drives the red-layer calendar indicator.
type CalendarConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	ICS       []ICSConfig   `yaml:"ics" json:"ics"`
	Lookahead time.Duration `yaml:"lookahead" json:"lookahead"`
	Refresh   time.Duration `yaml:"refresh" json:"refresh"`
}

// BatteryConfig drives the red-layer low battery indicator.
type BatteryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	I2CBus     string `yaml:"i2c_bus" json:"i2c_bus"`
	I2CAddr    uint16 `yaml:"i2c_addr" json:"i2c_addr"`
	LowPercent int    `yaml:"low_percent" json:"low_percent"`
}

type IndicatorsConfig struct {
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Battery  BatteryConfig  `yaml:"battery" json:"battery"`
}

type MetricsConfig struct {
	// Textfile, if set, receives Prometheus text exposition after each tick
	// (node_exporter textfile collector).
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Config is the top-level application configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Locale is a POSIX-style locale string, e.g. "ru_RU.UTF-8". It drives
	// date formatting and, via its first two letters, the weather language.
	Locale string `yaml:"locale" json:"locale"`

	// Timezone is an IANA zone name. Empty means the system local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	Location   LocationConfig   `yaml:"location" json:"location"`
	Weather    WeatherConfig    `yaml:"weather" json:"weather"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Night      NightConfig      `yaml:"night" json:"night"`
	Display    DisplayConfig    `yaml:"display" json:"display"`
	Fonts      FontsConfig      `yaml:"fonts" json:"fonts"`
	Layout     Layout           `yaml:"layout" json:"layout"`
	Indicators IndicatorsConfig `yaml:"indicators" json:"indicators"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// DefaultLayout returns the coordinates used on the 2.13" B/C panel.
func DefaultLayout() Layout {
	return Layout{
		Width:       212,
		Height:      104,
		Time:        TextSlot{X: 0, Y: 0, Size: 45},
		Date:        TextSlot{X: 4, Y: 43, Size: 20},
		SeparatorY:  65,
		Temperature: TextSlot{X: 4, Y: 67, Size: 22},
		Wind:        TextSlot{X: 4, Y: 104 - 18, Size: 18},
		Icon:        ImageSlot{X: 160, Y: -5, Size: 50},
		Calendar:    ImageSlot{X: 168, Y: 65, Size: 36},
		Battery:     ImageSlot{X: 136, Y: 70, Size: 24},
		Moon:        ImageSlot{X: 81, Y: 27, Size: 50},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Locale:   DefaultLocale,
		Weather: WeatherConfig{
			Endpoint:        DefaultWeatherEndpoint,
			IconBaseURL:     DefaultIconBaseURL,
			RefreshInterval: 15 * time.Minute,
			Timeout:         10 * time.Second,
		},
		Paths: PathsConfig{
			IconCache: "/var/lib/edashboard/weather_icons",
			ICSCache:  "/var/lib/edashboard/ics-cache",
			DumpDir:   "/var/lib/edashboard/dump",
		},
		Night: NightConfig{
			Mode:  NightModeLegacy,
			Start: "23:30",
			End:   "07:00",
			Sleep: 7*time.Hour + 30*time.Minute,
		},
		Display: DisplayConfig{
			Driver: DriverWaveshare,
		},
		Layout: DefaultLayout(),
		Indicators: IndicatorsConfig{
			Calendar: CalendarConfig{
				ICS:       []ICSConfig{},
				Lookahead: time.Hour,
				Refresh:   15 * time.Minute,
			},
			Battery: BatteryConfig{
				I2CAddr:    0x57,
				LowPercent: 20,
			},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	c.Locale = strings.TrimSpace(c.Locale)
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	if c.Weather.Endpoint == "" {
		c.Weather.Endpoint = def.Weather.Endpoint
	}
	if c.Weather.IconBaseURL == "" {
		c.Weather.IconBaseURL = def.Weather.IconBaseURL
	}
	c.Weather.IconBaseURL = strings.TrimRight(strings.TrimSpace(c.Weather.IconBaseURL), "/")
	if c.Weather.RefreshInterval <= 0 {
		c.Weather.RefreshInterval = def.Weather.RefreshInterval
	}
	if c.Weather.Timeout <= 0 {
		c.Weather.Timeout = def.Weather.Timeout
	}

	if c.Paths.IconCache == "" {
		c.Paths.IconCache = def.Paths.IconCache
	}
	if c.Paths.ICSCache == "" {
		c.Paths.ICSCache = def.Paths.ICSCache
	}
	if c.Paths.DumpDir == "" {
		c.Paths.DumpDir = def.Paths.DumpDir
	}

	switch c.Night.Mode {
	case NightModeLegacy, NightModeWindow:
	default:
		// Unknown value; keep the historical behavior.
		c.Night.Mode = NightModeLegacy
	}
	if c.Night.Start == "" {
		c.Night.Start = def.Night.Start
	}
	if c.Night.End == "" {
		c.Night.End = def.Night.End
	}
	if c.Night.Sleep <= 0 {
		c.Night.Sleep = def.Night.Sleep
	}

	switch c.Display.Driver {
	case DriverWaveshare, DriverPreview:
	default:
		c.Display.Driver = def.Display.Driver
	}

	if c.Layout.Width <= 0 || c.Layout.Height <= 0 {
		c.Layout = def.Layout
	}

	if c.Indicators.Calendar.ICS == nil {
		c.Indicators.Calendar.ICS = []ICSConfig{}
	}
	if c.Indicators.Calendar.Lookahead <= 0 {
		c.Indicators.Calendar.Lookahead = def.Indicators.Calendar.Lookahead
	}
	if c.Indicators.Calendar.Refresh <= 0 {
		c.Indicators.Calendar.Refresh = def.Indicators.Calendar.Refresh
	}
	if c.Indicators.Battery.I2CAddr == 0 {
		c.Indicators.Battery.I2CAddr = def.Indicators.Battery.I2CAddr
	}
	if c.Indicators.Battery.LowPercent <= 0 {
		c.Indicators.Battery.LowPercent = def.Indicators.Battery.LowPercent
	}
}

// Validate checks values that have no usable default. offline relaxes the
// weather API requirements since no request is ever made.
func (c *Config) Validate(offline bool) error {
	if !offline {
		if c.Weather.APIKey == "" {
			return errors.New("config: weather API key is empty (set WB_API_KEY)")
		}
		if c.Location.Lat < -90 || c.Location.Lat > 90 {
			return fmt.Errorf("config: latitude %v out of range", c.Location.Lat)
		}
		if c.Location.Lon < -180 || c.Location.Lon > 180 {
			return fmt.Errorf("config: longitude %v out of range", c.Location.Lon)
		}
	}
	if len(c.Locale) < 2 {
		return fmt.Errorf("config: locale %q is too short", c.Locale)
	}
	if _, err := ParseClock(c.Night.Start); err != nil {
		return fmt.Errorf("config: night.start: %w", err)
	}
	if _, err := ParseClock(c.Night.End); err != nil {
		return fmt.Errorf("config: night.end: %w", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config: timezone: %w", err)
		}
	}
	return nil
}

// WeatherLang is the language code sent to the weather API: the first two
// characters of the locale string.
func (c *Config) WeatherLang() string {
	if len(c.Locale) < 2 {
		return c.Locale
	}
	return c.Locale[:2]
}

// LocaleName strips the encoding and modifier from the locale string,
// e.g. "ru_RU.UTF-8" -> "ru_RU".
func (c *Config) LocaleName() string {
	name := c.Locale
	if i := strings.IndexAny(name, ".@"); i >= 0 {
		name = name[:i]
	}
	return name
}

// TimeLocation resolves Timezone, falling back to time.Local.
func (c *Config) TimeLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ApplyEnv loads the dotenv file at envPath (a missing file is not an
// error) and then applies LAT, LON, WB_API_KEY, LOCALE and LOG_LEVEL from the
// environment. Variables already present in the environment win over the
// dotenv file.
func (c *Config) ApplyEnv(envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}

	if v, ok := lookupTrimmed("LAT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: LAT: %w", err)
		}
		c.Location.Lat = f
	}
	if v, ok := lookupTrimmed("LON"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: LON: %w", err)
		}
		c.Location.Lon = f
	}
	if v, ok := lookupTrimmed("WB_API_KEY"); ok {
		c.Weather.APIKey = v
	}
	if v, ok := lookupTrimmed("LOCALE"); ok {
		c.Locale = v
	}
	if v, ok := lookupTrimmed("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never observe a partial file. The parent
// directory is created if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
