package main

import (
	"os"
	"syscall"
	"time"

	"github.com/sweeney/device-input/internal/config"
	"github.com/sweeney/device-input/internal/mqtt"
	"github.com/sweeney/device-input/internal/status"
)

// runLoop polls on every tick until a signal arrives. Config reloads are
// applied between ticks. setPoll, if non-nil, changes the tick interval.
func runLoop(d *daemon, tick <-chan time.Time, sig <-chan os.Signal, reload <-chan *config.Config, setPoll func(time.Duration)) error {
	hb := status.NewHeartbeat(d.now())

	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			switch s {
			case syscall.SIGINT:
				signalName = "SIGINT"
			case syscall.SIGTERM:
				signalName = "SIGTERM"
			}
			d.logger.Infow("shutting down", "signal", signalName)
			publishSystem(d, "SHUTDOWN", signalName, true)
			return nil

		case cfg := <-reload:
			if err := reloadConfig(d, cfg, setPoll); err != nil {
				d.logger.Errorw("reload failed, keeping previous config", "error", err)
				continue
			}
			publishSystem(d, "RELOAD", "", false)

		case <-tick:
			d.poll()

			if d.tracker == nil || !d.tracker.Snapshot().Ready() {
				// No heartbeat until every input has a reading
				continue
			}
			t := d.now()
			if hbData := hb.Check(t, d.cfg.Heartbeat()); hbData != nil {
				d.logger.Infow("heartbeat", "uptime", hbData.Uptime)
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				publishSystem(d, "HEARTBEAT", "", false)
			}
		}
	}
}

func reloadConfig(d *daemon, cfg *config.Config, setPoll func(time.Duration)) error {
	prev := d.cfg
	if err := d.apply(cfg); err != nil {
		return err
	}
	if prev.MQTT != cfg.MQTT || prev.HTTP != cfg.HTTP {
		d.logger.Warnw("mqtt and http settings take effect after restart")
	}
	if prev.LogLevel != cfg.LogLevel {
		d.logger.Warnw("log level takes effect after restart", "log_level", cfg.LogLevel)
	}
	if setPoll != nil && prev.PollMs != cfg.PollMs {
		setPoll(cfg.Poll())
	}
	if d.tracker != nil {
		sc := d.tracker.Snapshot().Config
		sc.PollMs = cfg.PollMs
		sc.HeartbeatMs = cfg.HeartbeatMs
		d.tracker.SetConfig(sc)
	}
	d.logger.Infow("config reloaded", "inputs", len(cfg.Inputs), "poll", cfg.Poll())
	return nil
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
func publishSystem(d *daemon, event, reason string, retained bool) {
	ev := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.logger.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	d.logger.Debugw("published system event", "event", event)
}
