// Package dispatch fans effect and stop commands out to registered devices.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"spotlight/lib/effect"
	"spotlight/lib/registry"
	"spotlight/lib/rgb"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultFanout  = 8
)

var ErrUnknownDevice = errors.New("unknown device")

// TargetError is the failure of one target within a fan-out.
type TargetError struct {
	ID  string
	Err error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// Dispatcher resolves targets through the registry and calls each device's
// transport. It reads and updates the registry without locking; callers
// serialize access.
type Dispatcher struct {
	Registry   *registry.Registry
	Transports map[registry.Protocol]Transport
	Timeout    time.Duration
	Fanout     int
	Now        func() time.Time

	master uint8
	tracer trace.Tracer
}

func New(reg *registry.Registry, client *http.Client) *Dispatcher {
	return &Dispatcher{
		Registry: reg,
		Transports: map[registry.Protocol]Transport{
			registry.Native:  NativeTransport{Client: client},
			registry.Segment: SegmentTransport{Client: client},
		},
		Timeout: DefaultTimeout,
		Fanout:  DefaultFanout,
		Now:     time.Now,
		master:  255,
		tracer:  otel.Tracer("spotlight/dispatch"),
	}
}

// Master is the grand-master level applied to every outgoing brightness.
func (d *Dispatcher) Master() uint8 { return d.master }

func (d *Dispatcher) SetMaster(level uint8) { d.master = level }

type call func(ctx context.Context, t Transport, dev registry.Device) error

// Send applies e to every target. The returned error joins one *TargetError
// per failed target; nil means every target accepted the command.
func (d *Dispatcher) Send(ctx context.Context, targets []string, e effect.Effect) error {
	e.Brightness = rgb.Scale8(e.Brightness, d.master)
	return d.fanout(ctx, "dispatch.send", targets, func(ctx context.Context, t Transport, dev registry.Device) error {
		return t.Send(ctx, dev, e)
	}, attribute.String("effect.kind", string(e.Kind())), attribute.String("effect.ring", e.Ring.String()))
}

func (d *Dispatcher) Stop(ctx context.Context, targets []string, side effect.Ring) error {
	return d.fanout(ctx, "dispatch.stop", targets, func(ctx context.Context, t Transport, dev registry.Device) error {
		return t.Stop(ctx, dev, side)
	}, attribute.String("effect.ring", side.String()))
}

// StopAll stops both rings on every registered device.
func (d *Dispatcher) StopAll(ctx context.Context) error {
	return d.Stop(ctx, d.Registry.IDs(), effect.Both)
}

// Probe asks one device for its status. It does not touch the registry.
func (d *Dispatcher) Probe(ctx context.Context, dev registry.Device) error {
	t, err := d.transport(dev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()
	return t.Status(ctx, dev)
}

func (d *Dispatcher) transport(dev registry.Device) (Transport, error) {
	t, ok := d.Transports[dev.Protocol]
	if !ok {
		return nil, fmt.Errorf("no transport for protocol %q", dev.Protocol)
	}
	return t, nil
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

func (d *Dispatcher) fanout(ctx context.Context, name string, targets []string, fn call, attrs ...attribute.KeyValue) error {
	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(
		append(attrs, attribute.StringSlice("targets", targets))...,
	))
	defer span.End()

	errs := make([]error, len(targets))
	devs := make([]registry.Device, len(targets))
	found := make([]bool, len(targets))
	for i, id := range targets {
		devs[i], found[i] = d.Registry.Get(id)
		if !found[i] {
			errs[i] = &TargetError{ID: id, Err: ErrUnknownDevice}
		}
	}

	var g errgroup.Group
	g.SetLimit(max(d.Fanout, 1))
	for i := range targets {
		if !found[i] {
			continue
		}
		g.Go(func() error {
			dev := devs[i]
			t, err := d.transport(dev)
			if err == nil {
				cctx, cancel := context.WithTimeout(ctx, d.timeout())
				err = fn(cctx, t, dev)
				cancel()
			}
			if err != nil {
				errs[i] = &TargetError{ID: dev.ID, Err: err}
			}
			return nil
		})
	}
	g.Wait()

	now := d.Now()
	for i := range targets {
		if !found[i] {
			continue
		}
		if errs[i] != nil {
			d.Registry.MarkOffline(targets[i])
		} else {
			d.Registry.MarkOnline(targets[i], now)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial failure")
	}
	return err
}
