// Package effect describes what a ring should render. An Effect pairs the
// settings every kind shares (ring, color, brightness) with exactly one
// kind-specific Params variant.
package effect

import (
	"encoding/json"
	"fmt"
	"time"

	"spotlight/lib/rgb"
)

type Ring int

const (
	Both Ring = iota
	Inner
	Outer
)

func (r Ring) String() string {
	switch r {
	case Inner:
		return "inner"
	case Outer:
		return "outer"
	default:
		return "both"
	}
}

// Sides expands Both into the two physical rings.
func (r Ring) Sides() []Ring {
	if r == Both {
		return []Ring{Inner, Outer}
	}
	return []Ring{r}
}

func (r Ring) Includes(side Ring) bool {
	return r == Both || r == side
}

// ParseRing maps the wire name to a Ring; anything unrecognized means Both.
func ParseRing(s string) Ring {
	switch s {
	case "inner":
		return Inner
	case "outer":
		return Outer
	default:
		return Both
	}
}

func (r Ring) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Ring) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ring: %w", err)
	}
	*r = ParseRing(s)
	return nil
}

type Kind string

const (
	KindStatic   Kind = "static"
	KindFade     Kind = "fade"
	KindStrobe   Kind = "strobe"
	KindPulse    Kind = "pulse"
	KindRotation Kind = "rotation"
	KindRainbow  Kind = "rainbow"
	KindChase    Kind = "chase"
)

var Kinds = []Kind{KindStatic, KindFade, KindStrobe, KindPulse, KindRotation, KindRainbow, KindChase}

type Direction string

const (
	Clockwise        Direction = "clockwise"
	Counterclockwise Direction = "counterclockwise"
)

type Pattern string

const (
	PatternSingle       Pattern = "single"
	PatternTrail        Pattern = "trail"
	PatternOpposite     Pattern = "opposite"
	PatternWave         Pattern = "wave"
	PatternRainbowChase Pattern = "rainbowChase"
)

func parsePattern(s string) Pattern {
	switch s {
	case "trail":
		return PatternTrail
	case "opposite":
		return PatternOpposite
	case "wave":
		return PatternWave
	case "rainbowChase", "rainbow_chase":
		return PatternRainbowChase
	default:
		return PatternSingle
	}
}

type RotationParams struct {
	Active      rgb.Color
	Inactive    rgb.Color
	Step        time.Duration
	Direction   Direction
	Pattern     Pattern
	TrailLength int
	StartOffset int
}

func DefaultRotation() RotationParams {
	return RotationParams{
		Active:      rgb.Red,
		Inactive:    rgb.Black,
		Step:        100 * time.Millisecond,
		Direction:   Clockwise,
		Pattern:     PatternSingle,
		TrailLength: 3,
	}
}

// Params is implemented only by the seven kind variants in this package.
type Params interface {
	Kind() Kind
	sealed()
}

type Static struct{}

// Fade blends from Effect.Color to To over Duration. A zero Duration holds
// the start color forever.
type Fade struct {
	To       rgb.Color
	Duration time.Duration
}

// Strobe flashes Effect.Color at Hz. A non-zero Duration ends the strobe dark.
type Strobe struct {
	Hz       int
	Duration time.Duration
}

// Pulse breathes Effect.Color with period Cycle (2s when zero).
type Pulse struct {
	Cycle time.Duration
}

type Rotation struct {
	RotationParams
}

type Rainbow struct{}

// Chase lights one pixel in Effect.Color and advances it every Step.
type Chase struct {
	Step time.Duration
}

func (Static) Kind() Kind   { return KindStatic }
func (Fade) Kind() Kind     { return KindFade }
func (Strobe) Kind() Kind   { return KindStrobe }
func (Pulse) Kind() Kind    { return KindPulse }
func (Rotation) Kind() Kind { return KindRotation }
func (Rainbow) Kind() Kind  { return KindRainbow }
func (Chase) Kind() Kind    { return KindChase }

func (Static) sealed()   {}
func (Fade) sealed()     {}
func (Strobe) sealed()   {}
func (Pulse) sealed()    {}
func (Rotation) sealed() {}
func (Rainbow) sealed()  {}
func (Chase) sealed()    {}

type Effect struct {
	Ring       Ring
	Color      rgb.Color
	Brightness uint8
	Params     Params
}

func (e Effect) Kind() Kind {
	if e.Params == nil {
		return KindStatic
	}
	return e.Params.Kind()
}

// On returns e aimed at ring r.
func (e Effect) On(r Ring) Effect {
	e.Ring = r
	return e
}

func (e Effect) String() string {
	return fmt.Sprintf("%s/%s %v@%d", e.Ring, e.Kind(), e.Color, e.Brightness)
}
