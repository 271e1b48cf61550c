package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/device-input/internal/callback"
	"github.com/sweeney/device-input/internal/config"
	"github.com/sweeney/device-input/internal/gpio"
	"github.com/sweeney/device-input/internal/group"
	"github.com/sweeney/device-input/internal/input"
	"github.com/sweeney/device-input/internal/mqtt"
	"github.com/sweeney/device-input/internal/status"
)

// openFunc opens the reader behind an input line.
type openFunc func(gpio.LineConfig) (gpio.Reader, error)

// managedInput ties a configured input to its reader and state machine.
type managedInput struct {
	cfg    config.InputConfig
	reader gpio.Reader
	in     *input.Input[int]
}

// daemon owns the inputs and the group that polls them. Every method runs on
// the polling goroutine.
type daemon struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	open       openFunc
	now        func() time.Time
	clock      input.Clock

	group  *group.Group
	inputs []*managedInput

	// changed is set by any input's toggle or untoggle during a poll.
	changed bool
}

func newDaemon(cfg *config.Config, logger *zap.SugaredLogger, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, open openFunc, now func() time.Time) (*daemon, error) {
	start := now()
	d := &daemon{
		cfg:        cfg,
		logger:     logger,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		open:       open,
		now:        now,
		clock:      func() time.Duration { return now().Sub(start) },
	}

	g, err := group.New(group.Config{Interval: cfg.GroupInterval(), Clock: d.clock})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	d.group = g

	if err := d.apply(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// apply builds the inputs for cfg, reusing readers and state machines of
// inputs whose line did not change. New readers are opened before anything
// is replaced; on error the running inputs are left untouched.
func (d *daemon) apply(cfg *config.Config) error {
	old := make(map[string]*managedInput, len(d.inputs))
	for _, mi := range d.inputs {
		old[mi.cfg.Name] = mi
	}

	type update struct {
		mi *managedInput
		ic config.InputConfig
	}
	var (
		next    []*managedInput
		updates []update
		opened  []gpio.Reader
		members []group.Member
	)
	fail := func(err error) error {
		for _, r := range opened {
			r.Close()
		}
		return err
	}

	for _, ic := range cfg.Inputs {
		if mi, ok := old[ic.Name]; ok && mi.cfg.SameLine(ic) {
			if err := ic.Validate(); err != nil {
				return fail(fmt.Errorf("input %s: %w", ic.Name, err))
			}
			updates = append(updates, update{mi, ic})
			next = append(next, mi)
			members = append(members, mi.in)
			continue
		}

		reader, err := d.open(ic.LineConfig())
		if err != nil {
			return fail(fmt.Errorf("open input %s: %w", ic.Name, err))
		}
		opened = append(opened, reader)

		mi := &managedInput{cfg: ic, reader: reader}
		det := ic.Detection()
		det.Clock = d.clock
		det.Callbacks, err = d.registrations(mi, ic)
		if err != nil {
			return fail(fmt.Errorf("input %s: %w", ic.Name, err))
		}
		mi.in, err = input.New(reader.Read, det)
		if err != nil {
			return fail(fmt.Errorf("input %s: %w", ic.Name, err))
		}
		next = append(next, mi)
		members = append(members, mi.in)
	}

	if err := d.group.Set(members...); err != nil {
		return fail(fmt.Errorf("set group members: %w", err))
	}
	if err := d.group.SetInterval(cfg.GroupInterval()); err != nil {
		d.logger.Warnw("group interval not applied", "error", err)
	}

	for _, u := range updates {
		if err := d.reconfigure(u.mi, u.ic); err != nil {
			d.logger.Warnw("input not reconfigured", "input", u.ic.Name, "error", err)
		}
	}
	// Per-input registrations replace toggle callbacks, so the shared hook
	// is installed afterwards on every member.
	for _, kind := range []callback.Kind{callback.Toggle, callback.Untoggle} {
		if res := d.group.ForAll(kind, d.markChanged); !res.OK() {
			d.logger.Warnw("state change hook not installed", "event", kind, "error", res.Err())
		}
	}

	kept := make(map[*managedInput]bool, len(next))
	for _, mi := range next {
		kept[mi] = true
	}
	for _, mi := range d.inputs {
		if !kept[mi] {
			if err := mi.reader.Close(); err != nil {
				d.logger.Warnw("close reader", "input", mi.cfg.Name, "error", err)
			}
		}
	}

	d.inputs = next
	d.cfg = cfg
	if d.tracker != nil {
		d.tracker.SetInputs(d.inputInfos())
	}
	return nil
}

// reconfigure updates detection and callbacks of a kept input in place.
func (d *daemon) reconfigure(mi *managedInput, ic config.InputConfig) error {
	det := ic.Detection()
	rule, err := det.Rule()
	if err != nil {
		return err
	}
	regs, err := d.registrations(mi, ic)
	if err != nil {
		return err
	}
	// Every kind is tracked, so SetAll replaces all of them or none.
	if err := mi.in.Callbacks().SetAll(regs); err != nil {
		return err
	}
	mi.cfg = ic

	if err := mi.in.SetInterval(det.Interval); err != nil {
		return err
	}
	if err := mi.in.SetRule(rule); err != nil {
		return err
	}
	mi.in.SetInvert(det.Invert)
	return nil
}

// registrations returns the callbacks of one input: every kind is tracked,
// the kinds ic lists are published.
func (d *daemon) registrations(mi *managedInput, ic config.InputConfig) ([]callback.Registration, error) {
	publish, err := ic.PublishKinds()
	if err != nil {
		return nil, err
	}
	regs := make([]callback.Registration, 0, len(callback.Kinds)+len(publish))
	for _, kind := range callback.Kinds {
		regs = append(regs, callback.Registration{Kind: kind, Handle: d.trackHandle(mi, kind)})
	}
	for _, kind := range publish {
		regs = append(regs, callback.Registration{Kind: kind, Handle: d.publishHandle(mi, kind)})
	}
	return regs, nil
}

func (d *daemon) markChanged() { d.changed = true }

func (d *daemon) trackHandle(mi *managedInput, kind callback.Kind) callback.Handle {
	return func() {
		name := mi.cfg.Name
		if d.tracker != nil {
			if kind == callback.Detected || kind == callback.Undetected {
				d.tracker.Observe(name, mi.in.Reading(), mi.in.Detected())
			}
			d.tracker.Record(name, kind, d.now())
		}
		switch kind {
		case callback.Toggle, callback.Untoggle:
			d.logger.Infow("input changed", "input", name, "event", kind, "reading", mi.in.Reading())
		default:
			d.logger.Debugw("input event", "input", name, "event", kind, "reading", mi.in.Reading())
		}
	}
}

func (d *daemon) publishHandle(mi *managedInput, kind callback.Kind) callback.Handle {
	return func() {
		ev := mqtt.Event{
			Timestamp: d.now(),
			Input:     mi.cfg.Name,
			Kind:      kind,
			Reading:   mi.in.Reading(),
			Detected:  mi.in.Detected(),
		}
		if err := d.publisher.Publish(ev); err != nil {
			// Don't crash on publish failure
			d.logger.Warnw("publish error", "input", ev.Input, "event", kind, "error", err)
		}
	}
}

// poll runs one group update. Read errors are logged; the other inputs
// still update. A poll that changed any input publishes one retained STATE
// snapshot.
func (d *daemon) poll() {
	d.changed = false
	if _, err := d.group.UpdateAll(); err != nil {
		d.logger.Warnw("input read error", "error", err)
	}
	if d.tracker != nil && d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.changed && d.publisher != nil {
		publishSystem(d, "STATE", "", true)
	}
}

// quiet disables every input's callbacks, e.g. for a one-shot read.
func (d *daemon) quiet() error {
	return d.group.DisableAll().Err()
}

func (d *daemon) inputInfos() []status.InputInfo {
	infos := make([]status.InputInfo, len(d.inputs))
	for i, mi := range d.inputs {
		backend := mi.cfg.Backend
		if backend == "" {
			backend = string(gpio.BackendGPIOCDev)
		}
		infos[i] = status.InputInfo{
			Name:    mi.cfg.Name,
			Backend: backend,
			Rule:    mi.in.Rule().String(),
			Invert:  mi.in.Inverted(),
		}
	}
	return infos
}

// close releases every reader.
func (d *daemon) close() error {
	var errs []error
	for _, mi := range d.inputs {
		if err := mi.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", mi.cfg.Name, err))
		}
	}
	d.inputs = nil
	d.group.Clear()
	return errors.Join(errs...)
}
