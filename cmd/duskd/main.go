package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarjala/duskd/internal/command"
	"github.com/mkarjala/duskd/internal/daemon"
	"github.com/mkarjala/duskd/internal/dbusapi"
	"github.com/mkarjala/duskd/internal/location"
	"github.com/mkarjala/duskd/internal/schedule"
	"github.com/mkarjala/duskd/internal/sink"
	"github.com/mkarjala/duskd/internal/telemetry"
	"github.com/mkarjala/duskd/pkg/config"
	"github.com/mkarjala/duskd/pkg/health"
	"github.com/mkarjala/duskd/pkg/mqtt"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting duskd",
		"service_name", cfg.ServiceName,
		"socket", cfg.SocketPath,
		"sink", cfg.Sink,
		"log_level", cfg.LogLevel)

	scheme, err := buildScheme(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scheme error: %v\n", err)
		os.Exit(1)
	}

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the color sink, trying backends in order
	snk, err := startSink(cfg, logger)
	if err != nil {
		logger.Error("Failed to start color sink", "error", err)
		os.Exit(1)
	}
	defer snk.Close()

	// Command multiplexer: control socket and optionally stdin
	mux, err := command.NewMux(logger, cfg.MaxClients)
	if err != nil {
		logger.Error("Failed to create command multiplexer", "error", err)
		os.Exit(1)
	}
	defer mux.Close()
	if cfg.SocketPath != "" {
		if err := mux.Listen(cfg.SocketPath); err != nil {
			logger.Error("Failed to listen on control socket", "error", err)
			os.Exit(1)
		}
		logger.Info("Control socket ready", "path", cfg.SocketPath)
	}
	if cfg.ReadStdin {
		mux.WatchStdin()
	}

	engine := daemon.NewEngine(logger, scheme, snk, mux)
	engine.SetFadeLength(cfg.FadeLength)

	// Location providers feed the engine asynchronously
	if !scheme.UseTime {
		if _, err := startLocation(ctx, cfg, logger, engine.SetLocation); err != nil {
			logger.Warn("No location source, scheduling disabled until one is forced", "error", err)
		}
	}

	// D-Bus control surface
	var dbusService *dbusapi.Service
	if cfg.EnableDBus {
		dbusService = dbusapi.NewService(engine, cfg.BusName, logger)
		if err := dbusService.Start(); err != nil {
			logger.Warn("D-Bus surface unavailable", "error", err)
			dbusService = nil
		} else {
			engine.AddNotifier(dbusService)
			defer dbusService.Close()
		}
	}

	// Optional MQTT telemetry
	var mqttClient mqtt.Client
	if cfg.EnableMQTT {
		mqttClient = mqtt.NewClient(cfg, logger)
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := mqttClient.Connect(connectCtx); err != nil {
			logger.Warn("MQTT telemetry unavailable", "error", err)
			mqttClient = nil
		} else {
			engine.AddNotifier(telemetry.NewPublisher(mqttClient, logger))
			defer mqttClient.Disconnect()
		}
		connectCancel()
	}

	// Start health check server
	healthChecker := health.NewChecker(mqttClient, snk, logger)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	// Two-stage signal handling: first SIGINT/SIGTERM fades to neutral,
	// the second exits immediately. SIGUSR1 toggles the adjustment.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGUSR1 {
				engine.ToggleDisabled()
				continue
			}
			engine.RequestStop()
		}
	}()

	if err := engine.Run(); err != nil {
		logger.Error("Failed to restore display", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("duskd shutdown complete")
}

// buildScheme assembles the color scheme from configuration and the
// optional scheme file, then validates the result.
func buildScheme(cfg *config.Config) (schedule.Scheme, error) {
	gamma, err := schedule.ParseGamma(cfg.Gamma)
	if err != nil {
		return schedule.Scheme{}, err
	}

	scheme := schedule.DefaultScheme()
	scheme.Day.Temperature = cfg.TempDay
	scheme.Day.Brightness = cfg.BrightnessDay
	scheme.Day.Gamma = gamma
	scheme.Night.Temperature = cfg.TempNight
	scheme.Night.Brightness = cfg.BrightnessNight
	scheme.Night.Gamma = gamma
	scheme.High = cfg.ElevationHigh
	scheme.Low = cfg.ElevationLow
	scheme.UseTime = cfg.UseTimeRanges

	for _, t := range []struct {
		v   string
		dst *int
	}{
		{cfg.DawnStart, &scheme.Dawn.Start},
		{cfg.DawnEnd, &scheme.Dawn.End},
		{cfg.DuskStart, &scheme.Dusk.Start},
		{cfg.DuskEnd, &scheme.Dusk.End},
	} {
		offset, err := schedule.ParseTimeOfDay(t.v)
		if err != nil {
			return schedule.Scheme{}, err
		}
		*t.dst = offset
	}

	if cfg.SchemeFile != "" {
		scheme, err = schedule.LoadSchemeFile(cfg.SchemeFile, scheme)
		if err != nil {
			return schedule.Scheme{}, err
		}
	}

	if err := scheme.Validate(); err != nil {
		return schedule.Scheme{}, err
	}
	return scheme, nil
}

func startSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, error) {
	randr := sink.NewRandrSink(logger)
	if cfg.Display != "" {
		if err := randr.SetOption("display", cfg.Display); err != nil {
			return nil, err
		}
	}
	dummy := sink.NewDummySink(logger)

	switch cfg.Sink {
	case "randr":
		return sink.TryStart(logger, randr)
	case "dummy":
		return sink.TryStart(logger, dummy)
	}
	return sink.TryStart(logger, randr, dummy)
}

func startLocation(ctx context.Context, cfg *config.Config, logger *slog.Logger, update location.UpdateFunc) (location.Provider, error) {
	manual := location.NewManualProvider(cfg.Latitude, cfg.Longitude)
	if cfg.LocationProvider == "manual" {
		return location.TryStart(ctx, logger, update, manual)
	}
	geoclue := location.NewGeoClue2Provider(cfg.ServiceName)
	return location.TryStart(ctx, logger, update, geoclue, manual)
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
