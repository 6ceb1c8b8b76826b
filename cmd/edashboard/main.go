package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"edashboard/internal/battery"
	"edashboard/internal/config"
	"edashboard/internal/epd"
	"edashboard/internal/icons"
	"edashboard/internal/ics"
	appLog "edashboard/internal/log"
	"edashboard/internal/metrics"
	"edashboard/internal/render"
	"edashboard/internal/scheduler"
	"edashboard/internal/weather"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envPath    string
	mock       bool
	once       bool
	renderOnly bool
	dump       bool
	clear      bool
}

func main() {
	flags := parseFlags()
	appLog.Info("edashboard starting", "version", version)
	defer appLog.Sync()

	if err := run(flags); err != nil {
		appLog.Error("edashboard failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("edashboard exiting")
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.ApplyEnv(flags.envPath); err != nil {
		return err
	}
	conf.Normalize()
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if err := conf.Validate(flags.mock); err != nil {
		return err
	}
	loc := conf.TimeLocation()

	appLog.Info("effective config",
		"locale", conf.Locale,
		"timezone", loc.String(),
		"night_mode", conf.Night.Mode,
		"driver", conf.Display.Driver,
		"calendar", conf.Indicators.Calendar.Enabled,
		"battery", conf.Indicators.Battery.Enabled,
		"mock", flags.mock,
		"once", flags.once,
		"render_only", flags.renderOnly,
		"dump", flags.dump,
		"clear", flags.clear,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	composer, err := render.NewComposer(render.Options{
		Layout:   conf.Layout,
		Fonts:    conf.Fonts,
		Locale:   conf.LocaleName(),
		Location: loc,
	})
	if err != nil {
		return err
	}
	defer composer.Close()

	night, err := scheduler.NewNight(conf.Night)
	if err != nil {
		return err
	}

	dev, err := openDevice(conf, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			appLog.Error("display close failed", err)
		}
	}()

	if flags.clear {
		return clearPanel(ctx, dev)
	}

	var refresher weather.Refresher
	if flags.mock {
		refresher = weather.NewOfflineRefresher(weather.MockReading())
	} else {
		refresher = weather.NewRefresher(weather.NewClient(weather.ClientOptions{
			Endpoint: conf.Weather.Endpoint,
			Lat:      conf.Location.Lat,
			Lon:      conf.Location.Lon,
			Lang:     conf.WeatherLang(),
			APIKey:   conf.Weather.APIKey,
			Timeout:  conf.Weather.Timeout,
		}), conf.Weather.RefreshInterval)
	}

	opts := scheduler.Options{
		Clock:    clockwork.NewRealClock(),
		Device:   dev,
		Composer: composer,
		Weather:  refresher,
		Icons: icons.NewResolver(icons.Options{
			Dir:     conf.Paths.IconCache,
			BaseURL: conf.Weather.IconBaseURL,
			Timeout: conf.Weather.Timeout,
			Offline: flags.mock,
		}),
		Night:    night,
		Location: loc,
		Once:     flags.once,
	}

	if cal := conf.Indicators.Calendar; cal.Enabled && len(cal.ICS) > 0 {
		sources := make([]ics.Source, 0, len(cal.ICS))
		for _, s := range cal.ICS {
			sources = append(sources, ics.Source{ID: s.ID, URL: s.URL})
		}
		opts.Calendar = ics.NewAgenda(ics.AgendaOptions{
			Sources:   sources,
			CacheDir:  conf.Paths.ICSCache,
			Timeout:   conf.Weather.Timeout,
			Lookahead: cal.Lookahead,
			Refresh:   cal.Refresh,
			Location:  loc,
			Offline:   flags.mock,
		})
	}
	if bat := conf.Indicators.Battery; bat.Enabled {
		opts.Battery = battery.DefaultReader(ctx, bat.I2CBus, bat.I2CAddr)
		opts.BatteryLowPct = bat.LowPercent
	}
	if conf.Metrics.Textfile != "" {
		opts.Metrics = metrics.New()
		opts.MetricsFile = conf.Metrics.Textfile
	}

	sched, err := scheduler.New(opts)
	if err != nil {
		return err
	}
	if err := sched.Run(ctx); err != nil {
		return err
	}

	// Leave the panel unpowered on exit; it keeps showing the last frame.
	if err := sched.Standby(); err != nil {
		appLog.Error("display sleep failed", err)
	}
	return nil
}

func clearPanel(ctx context.Context, dev epd.Device) error {
	if err := dev.Init(ctx); err != nil {
		return fmt.Errorf("display init: %w", err)
	}
	if err := epd.Clear(dev); err != nil {
		return fmt.Errorf("display clear: %w", err)
	}
	appLog.Info("panel cleared")
	return dev.Sleep()
}

func openDevice(conf *config.Config, flags flagConfig) (epd.Device, error) {
	if flags.renderOnly || conf.Display.Driver == config.DriverPreview {
		appLog.Info("render-only: writing frames to disk", "dir", conf.Paths.DumpDir)
		return epd.NewPreview(conf.Paths.DumpDir), nil
	}

	panel, err := epd.OpenSPI(conf.Display.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open display: %w", err)
	}
	if flags.dump {
		return &epd.Tee{Panel: panel, Preview: epd.NewPreview(conf.Paths.DumpDir)}, nil
	}
	return panel, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/edashboard/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to dotenv file with LAT, LON, WB_API_KEY, LOCALE")
	flag.BoolVar(&cfg.mock, "mock", false, "Offline mode: canned weather, no network access")
	flag.BoolVar(&cfg.once, "once", false, "Draw one frame and exit")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Render only; do not touch display hardware")
	flag.BoolVar(&cfg.dump, "dump", false, "Dump debug artifacts (black.bin, red.bin, preview.png)")
	flag.BoolVar(&cfg.clear, "clear", false, "Blank the panel, put it to sleep and exit")

	flag.Parse()

	return cfg
}
