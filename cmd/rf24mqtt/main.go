// RF24MQTT - nRF24L01+ to MQTT gateway
//
// rf24mqtt runs RF24Node as a child process, turns each radio frame into a
// retained MQTT publish on the device's topic, and relays commands received
// on device control topics back to the radio.
//
// Usage:
//
//	rf24mqtt [-config path] start|stop|restart|run
//	rf24mqtt -version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/rf24mqtt/rf24mqtt/migrations"

	"github.com/rf24mqtt/rf24mqtt/internal/api"
	"github.com/rf24mqtt/rf24mqtt/internal/daemon"
	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/gateway"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/database"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/influxdb"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/mqtt"
	"github.com/rf24mqtt/rf24mqtt/internal/radio"
	"github.com/rf24mqtt/rf24mqtt/internal/routing"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "/etc/rf24mqtt/config.yaml"
	configPathEnv     = "RF24MQTT_CONFIG"

	usage     = "usage: rf24mqtt start|stop|restart"
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain parses the command line and dispatches. It returns the exit code.
func realMain(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rf24mqtt", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFlag := flags.String("config", "", "path to the configuration file")
	showVersion := flags.Bool("version", false, "print version information and exit")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "rf24mqtt %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}

	configPath := getConfigPath(*configFlag)

	var err error
	switch cmd := flags.Arg(0); cmd {
	case "run":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		err = run(ctx, configPath)
	case "start", "stop", "restart":
		err = control(cmd, configPath, stdout)
	default:
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return 0
}

// getConfigPath returns the -config flag, then $RF24MQTT_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// processName is the kernel command name of this binary, used to recognise
// a live instance from its pid file.
func processName() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exe)
}

// control implements start, stop and restart.
func control(cmd, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	ctl, err := newController(cfg, configPath, log)
	if err != nil {
		return err
	}

	switch cmd {
	case "start":
		pid, err := ctl.Start()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rf24mqtt started (pid %d)\n", pid)

	case "stop":
		killStrayRadio(cfg, log)
		if err := ctl.Stop(); err != nil {
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(out, "rf24mqtt is not running")
				return nil
			}
			return err
		}
		fmt.Fprintln(out, "rf24mqtt stopped")

	case "restart":
		killStrayRadio(cfg, log)
		pid, err := ctl.Restart()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rf24mqtt restarted (pid %d)\n", pid)
	}
	return nil
}

func newController(cfg *config.Config, configPath string, log *logging.Logger) (*daemon.Controller, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	return &daemon.Controller{
		PIDFile:    daemon.NewPIDFile(cfg.General.PIDFile, filepath.Base(exe), log),
		Executable: exe,
		Args:       []string{"-config", absConfig, "run"},
		Stdout:     cfg.General.Stdout,
		Logger:     log,
	}, nil
}

// killStrayRadio removes RF24Node processes left behind by a crashed gateway.
// The radio hardware only tolerates one owner.
func killStrayRadio(cfg *config.Config, log *logging.Logger) {
	n, err := radio.KillStray(radio.FromConfig(cfg.RF24, false), log)
	if err != nil {
		log.Warn("failed to kill stray radio processes", "error", err)
	}
	if n > 0 {
		log.Info("killed stray radio processes", "count", n)
	}
}

// run is the foreground gateway, separated from main for testability.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting rf24mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	pidFile := daemon.NewPIDFile(cfg.General.PIDFile, processName(), log)
	if err := pidFile.Acquire(os.Getpid()); err != nil {
		return err
	}
	defer func() {
		if removeErr := pidFile.Remove(); removeErr != nil {
			log.Warn("error removing pid file", "error", removeErr)
		}
	}()

	source, closeSource, err := openDeviceSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		established, lost := mqttClient.Sessions()
		log.Info("MQTT session established",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
			"session", established,
			"lost", lost,
		)
	})

	radioCfg := radio.FromConfig(cfg.RF24, log.Level() <= slog.LevelInfo)
	radioManager, err := radio.NewManager(radioCfg, log)
	if err != nil {
		return fmt.Errorf("configuring radio: %w", err)
	}

	var (
		telemetry       gateway.Telemetry
		telemetryStatus api.TelemetryStatus
	)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			// Telemetry is optional; the gateway runs without it.
			log.Warn("InfluxDB unavailable, readings will not be recorded", "error", connErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			telemetry = influxClient
			telemetryStatus = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	registry := routing.NewRegistry()
	filter := routing.NewDuplicateFilter(cfg.DuplicateWindow(), nil)
	translator := routing.NewTranslator(registry, filter, nil, routing.Options{
		PublishUndefined:    cfg.General.PublishUndefinedTopics,
		DefaultTopicPattern: cfg.General.DefaultTopicPattern,
		IPCInTopic:          cfg.MQTT.Topics.IPCIn,
		IPCOutTopic:         cfg.MQTT.Topics.IPCOut,
	}, log)

	gw, err := gateway.New(gateway.Config{
		PollInterval:  cfg.PollInterval(),
		SweepInterval: cfg.SweepEvery(),
		InboxSize:     cfg.General.InboxSize,
		QoS:           byte(cfg.MQTT.QoS),
	}, gateway.Deps{
		Broker:     mqttClient,
		Radio:      radioManager,
		Registry:   registry,
		Translator: translator,
		Filter:     filter,
		Source:     source,
		Telemetry:  telemetry,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Gateway:   gw,
			Radio:     radioManager,
			Telemetry: telemetryStatus,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		gw.SetObserver(srv.Hub())
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnHangup(ctx, hup, gw, log)

	if err := gw.Run(ctx); err != nil {
		return err
	}
	log.Info("rf24mqtt stopped")
	return nil
}

// openDeviceSource returns the configured device list and a cleanup func.
func openDeviceSource(ctx context.Context, cfg *config.Config, log *logging.Logger) (device.Source, func(), error) {
	if cfg.Devices.Source != "sqlite" {
		log.Info("reading devices from file", "path", cfg.Devices.File)
		return device.FileSource{Path: cfg.Devices.File}, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("reading devices from database", "path", cfg.Database.Path)

	return device.NewSQLiteRepository(db.DB), func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}, nil
}

// reloadOnHangup re-reads the device list on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, hup <-chan os.Signal, gw *gateway.Gateway, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("SIGHUP received, reloading devices")
			gw.Reload()
		}
	}
}
