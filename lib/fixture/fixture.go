// Package fixture is one spotlight: an inner and an outer LED ring, the
// render loop that ticks them and the HTTP surface the commander talks to.
package fixture

import (
	"context"
	"log"
	"sync"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
	"spotlight/lib/ring"
)

const (
	DefaultInnerPixels = 8
	DefaultOuterPixels = 24
	DefaultFrame       = 16 * time.Millisecond

	startupStep = 50 * time.Millisecond
)

type Fixture struct {
	id      string
	started time.Time
	strip   Strip

	// Now is the clock used by the HTTP handlers. Tests replace it.
	Now func() time.Time

	mu    sync.Mutex
	inner *ring.Ring
	outer *ring.Ring
}

func New(id string, innerPixels, outerPixels int, strip Strip) *Fixture {
	if strip == nil {
		strip = NopStrip{}
	}
	return &Fixture{
		id:      id,
		started: time.Now(),
		strip:   strip,
		Now:     time.Now,
		inner:   ring.New(effect.Inner, innerPixels),
		outer:   ring.New(effect.Outer, outerPixels),
	}
}

func (f *Fixture) ID() string { return f.id }

func (f *Fixture) rings(side effect.Ring) []*ring.Ring {
	var rs []*ring.Ring
	if side.Includes(effect.Inner) {
		rs = append(rs, f.inner)
	}
	if side.Includes(effect.Outer) {
		rs = append(rs, f.outer)
	}
	return rs
}

// Apply starts e on every ring it targets. It is visible from the next Tick.
func (f *Fixture) Apply(e effect.Effect, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rings(e.Ring) {
		r.Apply(e, now)
	}
}

// Stop deactivates and blanks the rings named by side.
func (f *Fixture) Stop(side effect.Ring) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rings(side) {
		r.Stop()
		r.Clear()
	}
}

// Tick renders both rings for now and pushes the frame to the strip.
func (f *Fixture) Tick(now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strip.Show(f.inner.Tick(now), f.outer.Tick(now))
}

// Pixels returns a copy of one ring's current buffer.
func (f *Fixture) Pixels(side effect.Ring) []rgb.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	var src []rgb.Color
	switch side {
	case effect.Inner:
		src = f.inner.Pixels()
	case effect.Outer:
		src = f.outer.Pixels()
	default:
		return nil
	}
	return append([]rgb.Color(nil), src...)
}

type RingStatus struct {
	Active bool   `json:"active"`
	Effect string `json:"effect"`
}

type Status struct {
	ID     string     `json:"id"`
	IP     string     `json:"ip"`
	RSSI   int        `json:"rssi"`
	Uptime int64      `json:"uptime"`
	Inner  RingStatus `json:"innerRing"`
	Outer  RingStatus `json:"outerRing"`
}

func ringStatus(r *ring.Ring) RingStatus {
	st := r.State()
	if !st.Active {
		return RingStatus{Effect: "off"}
	}
	return RingStatus{Active: true, Effect: string(st.Effect.Kind())}
}

// Status reports ring activity. ip is filled in by the caller, which knows
// the address the request arrived on.
func (f *Fixture) Status(now time.Time) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		ID:     f.id,
		Uptime: now.Sub(f.started).Milliseconds(),
		Inner:  ringStatus(f.inner),
		Outer:  ringStatus(f.outer),
	}
}

// Startup wipes the inner ring blue one pixel at a time and then blanks
// the strip.
func (f *Fixture) Startup(ctx context.Context) error {
	f.mu.Lock()
	buf := make([]rgb.Color, f.inner.Len())
	blank := make([]rgb.Color, f.outer.Len())
	f.mu.Unlock()

	t := time.NewTicker(startupStep)
	defer t.Stop()

	for i := range buf {
		buf[i] = rgb.Blue
		if err := f.strip.Show(buf, blank); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	rgb.Fill(buf, rgb.Black)
	return f.strip.Show(buf, blank)
}

// Run ticks the fixture every frame until ctx is done.
func (f *Fixture) Run(ctx context.Context, frame time.Duration) error {
	if frame <= 0 {
		frame = DefaultFrame
	}
	t := time.NewTicker(frame)
	defer t.Stop()

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			err := f.Tick(now)
			if err != nil && !failing {
				log.Printf("strip: %v", err)
			}
			failing = err != nil
		}
	}
}
