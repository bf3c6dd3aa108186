package ring

import (
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
)

const waveLength = 3

// RenderRotation draws p's pattern with its head at pos. rainbowChase has no
// pattern of its own and draws the rainbow sweep.
func RenderRotation(buf []rgb.Color, pos int, p effect.RotationParams, now time.Time) {
	n := len(buf)
	if n == 0 {
		return
	}
	pos = ((pos % n) + n) % n

	switch p.Pattern {
	case effect.PatternTrail:
		for i := range buf {
			d := (pos - i + n) % n
			switch {
			case d == 0:
				buf[i] = p.Active
			case d <= p.TrailLength:
				buf[i] = rgb.Blend(p.Active, p.Inactive, 1-float64(d)/float64(p.TrailLength))
			default:
				buf[i] = p.Inactive
			}
		}

	case effect.PatternOpposite:
		opposite := (pos + n/2) % n
		for i := range buf {
			if i == pos || i == opposite {
				buf[i] = p.Active
			} else {
				buf[i] = p.Inactive
			}
		}

	case effect.PatternWave:
		for i := range buf {
			if (i-pos+n)%n < waveLength {
				buf[i] = p.Active
			} else {
				buf[i] = p.Inactive
			}
		}

	case effect.PatternRainbowChase:
		renderRainbow(buf, now)

	default:
		for i := range buf {
			if i == pos {
				buf[i] = p.Active
			} else {
				buf[i] = p.Inactive
			}
		}
	}
}

// renderRainbow sweeps the hue wheel on wall-clock time, so every ring
// showing a rainbow is in phase regardless of when it started.
func renderRainbow(buf []rgb.Color, now time.Time) {
	hue := uint8((now.UnixMilli() / 10) % 256)
	for i := range buf {
		buf[i] = rgb.Wheel(hue + uint8(i*256/len(buf)))
	}
}
