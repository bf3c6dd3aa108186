package effect

import (
	"math"
	"time"

	"spotlight/lib/rgb"
)

const (
	// MaxMillis bounds every millisecond field on the wire.
	MaxMillis = math.MaxUint16

	defaultStrobeHz = 10
	defaultStepMs   = 100
)

// Settings are the effect fields shared by direct commands and sequence
// event params.
type Settings struct {
	Color      *rgb.Color        `json:"color,omitempty"`
	Color2     *rgb.Color        `json:"color2,omitempty"`
	Brightness *int              `json:"brightness,omitempty"`
	Speed      *int              `json:"speed,omitempty"`
	Duration   *int              `json:"duration,omitempty"`
	Rotation   *RotationSettings `json:"rotation,omitempty"`
}

type RotationSettings struct {
	ActiveColor   *rgb.Color `json:"activeColor,omitempty"`
	InactiveColor *rgb.Color `json:"inactiveColor,omitempty"`
	Speed         *int       `json:"speed,omitempty"`
	Direction     string     `json:"direction,omitempty"`
	Pattern       string     `json:"pattern,omitempty"`
	TrailLength   *int       `json:"trailLength,omitempty"`
	StartOffset   *int       `json:"startOffset,omitempty"`
}

// Command is the effect command accepted by a fixture's POST /effect.
type Command struct {
	Ring   string `json:"ring,omitempty"`
	Effect string `json:"effect,omitempty"`
	Settings
}

// Decode turns the wire command into an Effect, filling defaults for absent
// fields and clamping numbers into range. Unknown ring, kind, direction and
// pattern names fall back to both, static, clockwise and single.
func (c Command) Decode() Effect {
	s := c.Settings
	e := Effect{
		Ring:       ParseRing(c.Ring),
		Color:      colorOr(s.Color, rgb.White),
		Brightness: uint8(rgb.Clamp(intOr(s.Brightness, 255), 0, 255)),
	}
	duration := millis(intOr(s.Duration, 0))

	switch Kind(c.Effect) {
	case KindFade:
		e.Params = Fade{To: colorOr(s.Color2, rgb.Black), Duration: duration}
	case KindStrobe:
		e.Params = Strobe{Hz: clampMillis(intOr(s.Speed, defaultStrobeHz)), Duration: duration}
	case KindPulse:
		e.Params = Pulse{Cycle: duration}
	case KindRotation:
		e.Params = Rotation{decodeRotation(s.Rotation)}
	case KindRainbow:
		e.Params = Rainbow{}
	case KindChase:
		e.Params = Chase{Step: millis(intOr(s.Speed, defaultStepMs))}
	default:
		e.Params = Static{}
	}
	return e
}

func decodeRotation(rs *RotationSettings) RotationParams {
	p := DefaultRotation()
	if rs == nil {
		return p
	}
	p.Active = colorOr(rs.ActiveColor, p.Active)
	p.Inactive = colorOr(rs.InactiveColor, p.Inactive)
	p.Step = millis(intOr(rs.Speed, defaultStepMs))
	if rs.Direction == string(Counterclockwise) {
		p.Direction = Counterclockwise
	}
	if rs.Pattern != "" {
		p.Pattern = parsePattern(rs.Pattern)
	}
	p.TrailLength = rgb.Clamp(intOr(rs.TrailLength, p.TrailLength), 0, 255)
	p.StartOffset = rgb.Clamp(intOr(rs.StartOffset, 0), 0, 255)
	return p
}

// Encode is the inverse of Decode: every field Decode would read for e's kind
// is written explicitly.
func Encode(e Effect) Command {
	brightness := int(e.Brightness)
	color := e.Color
	c := Command{
		Ring:   e.Ring.String(),
		Effect: string(e.Kind()),
		Settings: Settings{
			Color:      &color,
			Brightness: &brightness,
		},
	}
	switch p := e.Params.(type) {
	case Fade:
		to := p.To
		c.Color2 = &to
		c.Duration = ptr(toMillis(p.Duration))
	case Strobe:
		c.Speed = ptr(p.Hz)
		c.Duration = ptr(toMillis(p.Duration))
	case Pulse:
		c.Duration = ptr(toMillis(p.Cycle))
	case Rotation:
		active, inactive := p.Active, p.Inactive
		c.Rotation = &RotationSettings{
			ActiveColor:   &active,
			InactiveColor: &inactive,
			Speed:         ptr(toMillis(p.Step)),
			Direction:     string(p.Direction),
			Pattern:       string(p.Pattern),
			TrailLength:   ptr(p.TrailLength),
			StartOffset:   ptr(p.StartOffset),
		}
	case Chase:
		c.Speed = ptr(toMillis(p.Step))
	}
	return c
}

func colorOr(c *rgb.Color, def rgb.Color) rgb.Color {
	if c == nil {
		return def
	}
	return *c
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func ptr[T any](v T) *T { return &v }

func clampMillis(ms int) int {
	return rgb.Clamp(ms, 0, MaxMillis)
}

func millis(ms int) time.Duration {
	return time.Duration(clampMillis(ms)) * time.Millisecond
}

func toMillis(d time.Duration) int {
	return clampMillis(int(d / time.Millisecond))
}
