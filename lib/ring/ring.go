// Package ring renders effects into the pixel buffer of one physical LED ring.
package ring

import (
	"fmt"
	"math"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
)

const defaultPulseCycle = 2 * time.Second

// Ring is the effect state machine for one side of a fixture. It is not safe
// for concurrent use; the fixture serializes Apply, Stop and Tick.
type Ring struct {
	side   effect.Ring
	pixels []rgb.Color

	active   bool
	effect   effect.Effect
	start    time.Time
	lastStep time.Time
	position int
}

type State struct {
	Active   bool
	Effect   effect.Effect
	Position int
}

func New(side effect.Ring, pixels int) *Ring {
	if side == effect.Both {
		panic("ring: a ring has exactly one side")
	}
	return &Ring{side: side, pixels: make([]rgb.Color, max(pixels, 0))}
}

func (r *Ring) Side() effect.Ring   { return r.side }
func (r *Ring) Len() int            { return len(r.pixels) }
func (r *Ring) Pixels() []rgb.Color { return r.pixels }
func (r *Ring) Active() bool        { return r.active }
func (r *Ring) Position() int       { return r.position }

func (r *Ring) State() State {
	return State{Active: r.active, Effect: r.effect, Position: r.position}
}

// Apply replaces whatever was running. The effect's ring is pinned to this
// ring's side.
func (r *Ring) Apply(e effect.Effect, now time.Time) {
	e.Ring = r.side
	e.Params = clampParams(e.Params)
	r.active = true
	r.effect = e
	r.start = now
	r.lastStep = now
	r.position = 0
}

// Stop deactivates the ring. The buffer keeps its last frame until Clear.
func (r *Ring) Stop() {
	r.active = false
}

func (r *Ring) Clear() {
	rgb.Fill(r.pixels, rgb.Black)
}

// Tick renders the frame for now and returns the ring's buffer. An inactive
// ring returns the buffer untouched.
func (r *Ring) Tick(now time.Time) []rgb.Color {
	if !r.active || len(r.pixels) == 0 {
		return r.pixels
	}
	elapsed := max(now.Sub(r.start), 0)
	color := r.effect.Color

	switch p := r.effect.Params.(type) {
	case nil, effect.Static:
		rgb.Fill(r.pixels, color)

	case effect.Fade:
		if p.Duration > 0 && elapsed >= p.Duration {
			rgb.Fill(r.pixels, p.To)
			r.active = false
			return r.pixels
		}
		progress := 0.0
		if p.Duration > 0 {
			progress = rgb.Clamp(float64(elapsed)/float64(p.Duration), 0, 1)
		}
		rgb.Fill(r.pixels, rgb.Blend(color, p.To, 1-progress))

	case effect.Strobe:
		if p.Duration > 0 && elapsed >= p.Duration {
			rgb.Fill(r.pixels, rgb.Black)
			r.active = false
			return r.pixels
		}
		if strobeOn(p.Hz, now) {
			rgb.Fill(r.pixels, color)
		} else {
			rgb.Fill(r.pixels, rgb.Black)
		}

	case effect.Pulse:
		cycle := p.Cycle
		if cycle <= 0 {
			cycle = defaultPulseCycle
		}
		phase := float64(elapsed%cycle) / float64(cycle) * 2 * math.Pi
		level := (math.Sin(phase) + 1) / 2
		rgb.Fill(r.pixels, color.FadeToBlackBy(uint8((1-level)*255)))

	case effect.Rotation:
		if r.due(now, p.Step) {
			if p.Direction == effect.Counterclockwise {
				r.position = (r.position - 1 + len(r.pixels)) % len(r.pixels)
			} else {
				r.position = (r.position + 1) % len(r.pixels)
			}
		}
		RenderRotation(r.pixels, (r.position+p.StartOffset)%len(r.pixels), p.RotationParams, now)

	case effect.Rainbow:
		renderRainbow(r.pixels, now)

	case effect.Chase:
		if r.due(now, p.Step) {
			r.position = (r.position + 1) % len(r.pixels)
		}
		rgb.Fill(r.pixels, rgb.Black)
		r.pixels[r.position] = color

	default:
		panic(fmt.Sprintf("ring: unhandled effect %T", p))
	}

	if b := r.effect.Brightness; b != 255 {
		for i := range r.pixels {
			r.pixels[i] = r.pixels[i].FadeToBlackBy(255 - b)
		}
	}
	return r.pixels
}

// due reports whether a step interval has passed and records the step. A
// zero interval never steps.
func (r *Ring) due(now time.Time, step time.Duration) bool {
	if step <= 0 || now.Sub(r.lastStep) < step {
		return false
	}
	r.lastStep = now
	return true
}

// strobeOn treats hz as a frequency; hz <= 0 holds the strobe on. The phase
// follows wall-clock time so fixtures strobing at one rate flash together.
func strobeOn(hz int, now time.Time) bool {
	if hz <= 0 {
		return true
	}
	interval := max(int64(1000/hz), 1)
	return (now.UnixMilli()/interval)%2 == 0
}

func clampParams(p effect.Params) effect.Params {
	limit := func(d time.Duration) time.Duration {
		return rgb.Clamp(d, 0, effect.MaxMillis*time.Millisecond)
	}
	switch v := p.(type) {
	case effect.Fade:
		v.Duration = limit(v.Duration)
		return v
	case effect.Strobe:
		v.Duration = limit(v.Duration)
		return v
	case effect.Pulse:
		v.Cycle = limit(v.Cycle)
		return v
	}
	return p
}
