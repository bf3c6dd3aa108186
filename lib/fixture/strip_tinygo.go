//go:build tinygo

package fixture

import (
	"errors"
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"

	"spotlight/lib/rgb"
)

// WS2812Strip drives each ring on its own data pin.
type WS2812Strip struct {
	inner, outer ws2812.Device
	buf          []color.RGBA
}

func NewWS2812Strip(innerPin, outerPin machine.Pin) *WS2812Strip {
	innerPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	outerPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &WS2812Strip{
		inner: ws2812.New(innerPin),
		outer: ws2812.New(outerPin),
	}
}

func (s *WS2812Strip) write(dev ws2812.Device, px []rgb.Color) error {
	s.buf = s.buf[:0]
	for _, c := range px {
		s.buf = append(s.buf, c.RGBA())
	}
	return dev.WriteColors(s.buf)
}

func (s *WS2812Strip) Show(inner, outer []rgb.Color) error {
	return errors.Join(s.write(s.inner, inner), s.write(s.outer, outer))
}
