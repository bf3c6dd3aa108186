// Package controller is the commander: the device registry, dispatcher,
// sequence engine and health monitor behind one lock, plus the loops that
// drive them.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"spotlight/lib/dispatch"
	"spotlight/lib/effect"
	"spotlight/lib/health"
	"spotlight/lib/registry"
	"spotlight/lib/rgb"
	"spotlight/lib/sequence"
)

const (
	DefaultTick        = 10 * time.Millisecond
	DefaultInnerPixels = 8
	DefaultOuterPixels = 24

	healthCheck = time.Second
)

var ErrUnknownDevice = errors.New("unknown spotlight")

// Store persists devices and sequences. A nil Store keeps everything in
// memory.
type Store interface {
	PutDevice(ctx context.Context, d registry.Device) error
	DeleteDevice(ctx context.Context, id string) error
	Devices(ctx context.Context) ([]registry.Device, error)
	PutSequence(ctx context.Context, seq sequence.Sequence) error
	DeleteSequence(ctx context.Context, id string) error
	Sequences(ctx context.Context) ([]sequence.Sequence, error)
}

type Options struct {
	Client          *http.Client
	DispatchTimeout time.Duration
	Fanout          int
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	Store           Store
	Music           sequence.MusicSync
}

type Commander struct {
	// Now is the clock for playback and liveness. Tests replace it.
	Now func() time.Time

	started time.Time
	store   Store
	probes  sync.WaitGroup

	mu         sync.Mutex
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	engine     *sequence.Engine
	monitor    *health.Monitor
}

func New(opts Options) *Commander {
	reg := registry.New()
	d := dispatch.New(reg, opts.Client)
	if opts.DispatchTimeout > 0 {
		d.Timeout = opts.DispatchTimeout
	}
	if opts.Fanout > 0 {
		d.Fanout = opts.Fanout
	}
	mon := health.NewMonitor(d)
	if opts.ProbeInterval > 0 {
		mon.Interval = opts.ProbeInterval
	}
	if opts.ProbeTimeout > 0 {
		mon.Timeout = opts.ProbeTimeout
	}
	if opts.Fanout > 0 {
		mon.Fanout = opts.Fanout
	}

	c := &Commander{
		Now:        time.Now,
		started:    time.Now(),
		store:      opts.Store,
		registry:   reg,
		dispatcher: d,
		engine:     sequence.NewEngine(d, opts.Music),
		monitor:    mon,
	}
	d.Now = func() time.Time { return c.Now() }
	return c
}

// Restore loads persisted devices and sequences.
func (c *Commander) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	devs, err := c.store.Devices(ctx)
	if err != nil {
		return err
	}
	seqs, err := c.store.Sequences(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range devs {
		d.Liveness = registry.Unknown
		c.registry.Restore(d)
	}
	for _, seq := range seqs {
		if err := c.engine.Load(seq); err != nil {
			log.Printf("restore sequence %s: %v", seq.ID, err)
		}
	}
	log.Printf("restored %d devices and %d sequences", len(devs), len(seqs))
	return nil
}

// Wait blocks until probes started by AddDevice have finished.
func (c *Commander) Wait() { c.probes.Wait() }

func (c *Commander) persist(what string, err error) {
	if err != nil {
		log.Printf("store: %s: %v", what, err)
	}
}

// AddDevice registers d, replacing any device with the same id, and probes
// it in the background.
func (c *Commander) AddDevice(ctx context.Context, d registry.Device) error {
	if d.InnerPixels == 0 {
		d.InnerPixels = DefaultInnerPixels
	}
	if d.OuterPixels == 0 {
		d.OuterPixels = DefaultOuterPixels
	}

	c.mu.Lock()
	err := c.registry.Add(d)
	if err == nil {
		d, _ = c.registry.Get(d.ID)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	log.Printf("added spotlight %s (%s) at %s", d.ID, d.Name, d.Address)

	if c.store != nil {
		c.persist("put device", c.store.PutDevice(ctx, d))
	}

	c.probes.Add(1)
	go func() {
		defer c.probes.Done()
		c.probe(context.WithoutCancel(ctx), []registry.Device{d})
	}()
	return nil
}

func (c *Commander) RemoveDevice(ctx context.Context, id string) error {
	c.mu.Lock()
	ok := c.registry.Remove(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	if c.store != nil {
		c.persist("delete device", c.store.DeleteDevice(ctx, id))
	}
	return nil
}

func (c *Commander) Devices() []registry.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.List()
}

func (c *Commander) Device(id string) (registry.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Get(id)
}

func (c *Commander) SendEffect(ctx context.Context, targets []string, e effect.Effect) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatcher.Send(ctx, targets, e)
}

func (c *Commander) StopEffect(ctx context.Context, targets []string, side effect.Ring) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatcher.Stop(ctx, targets, side)
}

// Blackout stops both rings on every device without touching playback.
func (c *Commander) Blackout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatcher.StopAll(ctx)
}

func (c *Commander) SetMaster(level int) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := uint8(rgb.Clamp(level, 0, 255))
	c.dispatcher.SetMaster(l)
	return l
}

func (c *Commander) Master() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatcher.Master()
}

func (c *Commander) LoadSequence(ctx context.Context, seq sequence.Sequence) error {
	c.mu.Lock()
	err := c.engine.Load(seq)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	log.Printf("loaded sequence %s (%d events)", seq.ID, len(seq.Events))
	if c.store != nil {
		c.persist("put sequence", c.store.PutSequence(ctx, seq))
	}
	return nil
}

func (c *Commander) DeleteSequence(ctx context.Context, id string) error {
	c.mu.Lock()
	err := c.engine.Delete(id)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if c.store != nil {
		c.persist("delete sequence", c.store.DeleteSequence(ctx, id))
	}
	return nil
}

func (c *Commander) Sequences() []sequence.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.List()
}

func (c *Commander) Play(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.engine.Play(ctx, id, c.Now()); err != nil {
		return err
	}
	log.Printf("playing sequence %s", id)
	return nil
}

func (c *Commander) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Pause(ctx, c.Now())
}

func (c *Commander) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Resume(ctx, c.Now())
}

func (c *Commander) StopSequence(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Stop(ctx)
}

// Tick advances playback to now.
func (c *Commander) Tick(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Tick(ctx, c.Now())
}

type Status struct {
	Uptime   int64                   `json:"uptime"`
	Master   uint8                   `json:"master"`
	Playback sequence.PlaybackStatus `json:"playback"`
	Devices  []registry.Device       `json:"devices"`
}

func (c *Commander) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Now()
	return Status{
		Uptime:   now.Sub(c.started).Milliseconds(),
		Master:   c.dispatcher.Master(),
		Playback: c.engine.Status(now),
		Devices:  c.registry.List(),
	}
}

// Run ticks playback every tick until ctx is done.
func (c *Commander) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.Tick(ctx)
		}
	}
}

// RunHealth probes every device whenever the monitor's interval has passed,
// until ctx is done. Probes run without the lock.
func (c *Commander) RunHealth(ctx context.Context) error {
	t := time.NewTicker(healthCheck)
	defer t.Stop()
	for {
		c.mu.Lock()
		var devs []registry.Device
		if c.monitor.Due(c.Now()) {
			devs = c.registry.List()
		}
		c.mu.Unlock()

		if len(devs) > 0 {
			c.probe(ctx, devs)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Commander) probe(ctx context.Context, devs []registry.Device) {
	results := c.monitor.Probe(ctx, devs)
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		if prev, ok := c.registry.Get(r.ID); ok && r.Matches(prev) && prev.Online() != r.OK() {
			if r.OK() {
				log.Printf("spotlight %s online", r.ID)
			} else {
				log.Printf("spotlight %s offline: %v", r.ID, r.Err)
			}
		}
	}
	health.Apply(c.registry, results, c.Now())
}
