// Package health probes registered devices on a fixed cadence.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"spotlight/lib/registry"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 3 * time.Second
	DefaultFanout   = 8
)

type Prober interface {
	Probe(ctx context.Context, d registry.Device) error
}

// Result is the outcome of probing one device at the address and protocol
// it had when the round started.
type Result struct {
	ID       string
	Address  string
	Protocol registry.Protocol
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

// Matches reports whether d is still the device that was probed.
func (r Result) Matches(d registry.Device) bool {
	return d.ID == r.ID && d.Address == r.Address && d.Protocol == r.Protocol
}

type Monitor struct {
	Interval time.Duration
	Timeout  time.Duration
	Fanout   int
	Prober   Prober

	last time.Time
}

func NewMonitor(p Prober) *Monitor {
	return &Monitor{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Fanout:   DefaultFanout,
		Prober:   p,
	}
}

// Due reports whether a probe round should run at now and, if so, starts
// the next interval.
func (m *Monitor) Due(now time.Time) bool {
	if !m.last.IsZero() && now.Sub(m.last) < m.Interval {
		return false
	}
	m.last = now
	return true
}

// Probe checks every device in parallel, each bounded by Timeout. Results
// are in the order of devices.
func (m *Monitor) Probe(ctx context.Context, devices []registry.Device) []Result {
	results := make([]Result, len(devices))
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var g errgroup.Group
	g.SetLimit(max(m.Fanout, 1))
	for i, d := range devices {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i] = Result{ID: d.ID, Address: d.Address, Protocol: d.Protocol, Err: m.Prober.Probe(ctx, d)}
			return nil
		})
	}
	g.Wait()
	return results
}

// Apply records results in reg: success marks online at now, failure marks
// offline. Devices removed or re-registered at another address since the
// probe are skipped.
func Apply(reg *registry.Registry, results []Result, now time.Time) {
	for _, r := range results {
		if d, ok := reg.Get(r.ID); !ok || !r.Matches(d) {
			continue
		}
		if r.OK() {
			reg.MarkOnline(r.ID, now)
		} else {
			reg.MarkOffline(r.ID)
		}
	}
}
