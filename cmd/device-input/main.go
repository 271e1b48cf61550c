// Command device-input polls configured input lines, runs detection on each and
// publishes input events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/device-input/internal/config"
	"github.com/sweeney/device-input/internal/gpio"
	"github.com/sweeney/device-input/internal/logging"
	"github.com/sweeney/device-input/internal/mqtt"
	"github.com/sweeney/device-input/internal/status"
	"github.com/sweeney/device-input/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/device-input/config.toml", "Config file (.toml, .yaml, .yml or .json)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	printState := flag.Bool("print-state", false, "Print current readings and exit")
	watch := flag.Bool("watch", true, "Reload the config file when it changes")

	flag.Parse()

	if err := run(*configPath, *logLevel, *printState, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, printState, watch bool) error {
	loader := config.NewLoader(configPath)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	cfg = withFlags(cfg, logLevel)

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	if printState {
		return printReadings(cfg, logger)
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		BufferSize:  cfg.MQTT.BufferSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Tracker exists before STARTUP so the snapshot is available
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, configPath))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d, err := newDaemon(cfg, logger, publisher, publisher, tracker, gpio.Open, time.Now)
	if err != nil {
		return err
	}
	defer d.close()

	publishSystem(d, "STARTUP", "", true)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, web.Auth{
			Username:     cfg.HTTP.Username,
			PasswordHash: cfg.HTTP.PasswordHash,
		}, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTP.Addr, "auth", cfg.HTTP.Username != "")
	}

	reload := make(chan *config.Config, 1)
	if watch {
		loader.OnChange(func(c *config.Config) {
			c = withFlags(c, logLevel)
			// Keep only the newest pending config.
			select {
			case <-reload:
			default:
			}
			reload <- c
		})
		if err := loader.Watch(); err != nil {
			logger.Warnw("config watch disabled", "error", err)
		} else {
			go func() {
				for err := range loader.Errors() {
					logger.Warnw("config reload rejected", "error", err)
				}
			}()
		}
	}

	logger.Infow("started",
		"inputs", len(cfg.Inputs),
		"poll", cfg.Poll(),
		"group_interval", cfg.GroupInterval(),
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat(),
	)

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, ticker.C, sigCh, reload, ticker.Reset)
}

// withFlags returns cfg with command-line overrides applied. The loader keeps
// its own copy untouched.
func withFlags(cfg *config.Config, logLevel string) *config.Config {
	if logLevel == "" {
		return cfg
	}
	out := cfg.Clone()
	out.LogLevel = logLevel
	return out
}

// printReadings reads every input once without publishing and prints the result.
func printReadings(cfg *config.Config, logger *zap.SugaredLogger) error {
	// Interval throttling would suppress the single poll.
	for i := range cfg.Inputs {
		cfg.Inputs[i].UpdateIntervalMs = 0
	}
	cfg.GroupIntervalMs = 0

	// No publisher: callbacks are disabled before the poll.
	d, err := newDaemon(cfg, logger, nil, nil, nil, gpio.Open, time.Now)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.quiet(); err != nil {
		return err
	}
	if _, err := d.group.UpdateAll(); err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	for _, mi := range d.inputs {
		state := "UNDETECTED"
		if mi.in.Detected() {
			state = "DETECTED"
		}
		fmt.Printf("%s: %d %s\n", mi.cfg.Name, mi.in.Reading(), state)
	}
	return nil
}

func statusConfig(cfg *config.Config, path string) status.Config {
	prefix := cfg.MQTT.TopicPrefix
	if prefix == "" {
		prefix = mqtt.DefaultTopicPrefix
	}
	return status.Config{
		PollMs:      cfg.PollMs,
		HeartbeatMs: cfg.HeartbeatMs,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		WSBroker:    cfg.WSBrokerURL(),
		EventTopic:  mqtt.EventTopic(prefix),
		ConfigPath:  path,
	}
}
