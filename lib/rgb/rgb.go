// Package rgb holds the 8-bit color primitives shared by the fixture renderer
// and the commander's payload builders.
package rgb

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"

	"golang.org/x/exp/constraints"
)

type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	White = Color{255, 255, 255}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
)

func (c Color) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

// UnmarshalJSON accepts [r,g,b]. Channels are clamped to 0..255 and missing
// channels read as 0.
func (c *Color) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	var ch [3]uint8
	for i := 0; i < len(raw) && i < 3; i++ {
		ch[i] = uint8(Clamp(math.Round(raw[i]), 0, 255))
	}
	*c = Color{ch[0], ch[1], ch[2]}
	return nil
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Blend returns c1*factor + c2*(1-factor). factor is clamped to [0,1], so
// Blend(a, b, 1) == a and Blend(a, b, 0) == b exactly.
func Blend(c1, c2 Color, factor float64) Color {
	f := Clamp(factor, 0, 1)
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*f + float64(b)*(1-f))
	}
	return Color{mix(c1.R, c2.R), mix(c1.G, c2.G), mix(c1.B, c2.B)}
}

// Scale8 scales one channel by s/256 with s==255 as identity.
func Scale8(v, s uint8) uint8 {
	return uint8((uint16(v) * (1 + uint16(s))) >> 8)
}

func (c Color) Scale(s uint8) Color {
	return Color{Scale8(c.R, s), Scale8(c.G, s), Scale8(c.B, s)}
}

// FadeToBlackBy dims c by amount/256; amount 0 leaves c untouched and 255
// yields black.
func (c Color) FadeToBlackBy(amount uint8) Color {
	return c.Scale(255 - amount)
}

// Wheel converts an 8-bit hue at full saturation and value into RGB. The hue
// circle is split into six equal sectors.
func Wheel(hue uint8) Color {
	h := int(hue) * 6
	sector := h / 256
	rem := uint8(h - sector*256)
	up, down := rem, 255-rem
	switch sector {
	case 0:
		return Color{255, up, 0}
	case 1:
		return Color{down, 255, 0}
	case 2:
		return Color{0, 255, up}
	case 3:
		return Color{0, down, 255}
	case 4:
		return Color{up, 0, 255}
	default:
		return Color{255, 0, down}
	}
}

func Fill(buf []Color, c Color) {
	for i := range buf {
		buf[i] = c
	}
}
