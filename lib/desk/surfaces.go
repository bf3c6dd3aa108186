package desk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
	"spotlight/lib/streamdeck"
	"spotlight/lib/xtouch"
)

const xtouchStrips = 8

// XTouch shows the first eight sequences on the scribble strips, lights the
// transport buttons and moves the main fader to the master level.
type XTouch struct {
	Out *xtouch.Output
}

func (x *XTouch) Render(v View) error {
	var errs []error
	for i := range xtouchStrips {
		var upper, lower string
		lcd := xtouch.ColorBlack
		if i < len(v.Sequences) {
			s := v.Sequences[i]
			upper = s.Name
			if upper == "" {
				upper = s.ID
			}
			lcd = xtouch.ColorWhite
			if i == v.Selected {
				lcd = xtouch.ColorCyan
			}
			if v.Playback.Active && v.Playback.Sequence == s.ID {
				lcd = xtouch.ColorGreen
				lower = "PLAY"
				if v.Playback.Paused {
					lcd = xtouch.ColorYellow
					lower = "PAUSE"
				}
			}
		}
		errs = append(errs, x.Out.SetStrip(uint8(i), lcd, lower != "", upper, lower))

		led := xtouch.LEDOff
		if i == v.Selected {
			led = xtouch.LEDOn
		}
		errs = append(errs, x.Out.SetButtonLED(uint8(xtouch.ButtonSelectFirst+i), led))
	}

	play, stop := xtouch.LEDOff, xtouch.LEDOn
	if v.Playback.Active {
		play, stop = xtouch.LEDOn, xtouch.LEDOff
		if v.Playback.Paused {
			play = xtouch.LEDFlash
		}
	}
	errs = append(errs,
		x.Out.SetButtonLED(xtouch.ButtonPlay, play),
		x.Out.SetButtonLED(xtouch.ButtonStop, stop),
		x.Out.SetFader(xtouch.FaderMain, uint8(int(v.Master)*127/255)),
	)
	return errors.Join(errs...)
}

// KeyDisplay is the part of a Stream Deck the desk draws on.
type KeyDisplay interface {
	Model() *streamdeck.Model
	SetKeyImage(key int, img image.Image) error
}

type Preset struct {
	Label  string
	Effect effect.Effect
}

// DefaultPresets are whole-fixture looks for decks with room for them.
var DefaultPresets = []Preset{
	{"RED", effect.Effect{Ring: effect.Both, Color: rgb.Red, Brightness: 255, Params: effect.Static{}}},
	{"GREEN", effect.Effect{Ring: effect.Both, Color: rgb.Green, Brightness: 255, Params: effect.Static{}}},
	{"BLUE", effect.Effect{Ring: effect.Both, Color: rgb.Blue, Brightness: 255, Params: effect.Static{}}},
	{"WHITE", effect.Effect{Ring: effect.Both, Color: rgb.White, Brightness: 255, Params: effect.Static{}}},
	{"RAINBOW", effect.Effect{Ring: effect.Both, Color: rgb.White, Brightness: 255, Params: effect.Rainbow{}}},
	{"ROTATE", effect.Effect{Ring: effect.Outer, Color: rgb.Red, Brightness: 255, Params: effect.Rotation{RotationParams: effect.DefaultRotation()}}},
	{"STROBE", effect.Effect{Ring: effect.Both, Color: rgb.White, Brightness: 255, Params: effect.Strobe{Hz: 10}}},
}

// Layout assigns deck keys: sequences first, then presets on the bottom
// row, then the play/pause, stop and blackout keys in the last three slots.
type Layout struct {
	Keys      int
	Sequences int
	Presets   []Preset
}

const (
	controlKeys   = 3
	minPresetDeck = 16
)

func NewLayout(m *streamdeck.Model) Layout {
	l := Layout{Keys: m.Keys}
	if m.Keys >= minPresetDeck {
		n := min(len(DefaultPresets), m.KeyCols-controlKeys)
		l.Presets = DefaultPresets[:n]
	}
	l.Sequences = m.Keys - controlKeys - len(l.Presets)
	return l
}

func (l Layout) PlayKey() int     { return l.Keys - 3 }
func (l Layout) StopKey() int     { return l.Keys - 2 }
func (l Layout) BlackoutKey() int { return l.Keys - 1 }

// Deck renders the layout onto a Stream Deck and turns key presses into
// desk actions.
type Deck struct {
	Display KeyDisplay
	Layout  Layout
	Desk    *Desk
}

func NewDeck(display KeyDisplay, d *Desk) *Deck {
	return &Deck{Display: display, Layout: NewLayout(display.Model()), Desk: d}
}

var (
	keyIdle     = color.RGBA{0x20, 0x20, 0x20, 0xff}
	keySelected = color.RGBA{0x00, 0x60, 0x80, 0xff}
	keyPlaying  = color.RGBA{0x00, 0x90, 0x30, 0xff}
	keyPaused   = color.RGBA{0xa0, 0x80, 0x00, 0xff}
	keyDanger   = color.RGBA{0x90, 0x10, 0x10, 0xff}
)

func (k *Deck) key(i int, bg color.Color, lines ...string) error {
	fg := color.Color(color.White)
	if g := color.GrayModel.Convert(bg).(color.Gray); g.Y > 160 {
		fg = color.Black
	}
	return k.Display.SetKeyImage(i, streamdeck.TextImage(k.Display.Model().KeySize, bg, fg, lines...))
}

func (k *Deck) Render(v View) error {
	var errs []error
	for i := range k.Layout.Sequences {
		if i >= len(v.Sequences) {
			errs = append(errs, k.key(i, color.Black))
			continue
		}
		s := v.Sequences[i]
		bg, state := color.Color(keyIdle), fmt.Sprintf("%ds", s.Duration/1000)
		if i == v.Selected {
			bg = keySelected
		}
		if v.Playback.Active && v.Playback.Sequence == s.ID {
			bg, state = keyPlaying, "PLAYING"
			if v.Playback.Paused {
				bg, state = keyPaused, "PAUSED"
			}
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		errs = append(errs, k.key(i, bg, name, state))
	}

	for i, p := range k.Layout.Presets {
		c := p.Effect.Color.RGBA()
		errs = append(errs, k.key(k.Layout.Sequences+i, c, p.Label))
	}

	playLabel := "PLAY"
	if v.Playback.Active && !v.Playback.Paused {
		playLabel = "PAUSE"
	}
	errs = append(errs,
		k.key(k.Layout.PlayKey(), keyPlaying, playLabel),
		k.key(k.Layout.StopKey(), keyIdle, "STOP"),
		k.key(k.Layout.BlackoutKey(), keyDanger, "BLACK", "OUT"),
	)
	return errors.Join(errs...)
}

// HandleKey acts on a key press. Releases are ignored.
func (k *Deck) HandleKey(ctx context.Context, ev streamdeck.KeyEvent) error {
	if !ev.Pressed {
		return nil
	}
	switch l := k.Layout; {
	case ev.Key < l.Sequences:
		k.Desk.SelectIndex(ev.Key)
		return nil
	case ev.Key < l.Sequences+len(l.Presets):
		return k.Desk.SendPreset(ctx, l.Presets[ev.Key-l.Sequences].Effect)
	case ev.Key == l.PlayKey():
		return k.Desk.TogglePlay(ctx)
	case ev.Key == l.StopKey():
		return k.Desk.cmd.StopSequence(ctx)
	case ev.Key == l.BlackoutKey():
		return k.Desk.cmd.Blackout(ctx)
	}
	return nil
}

// HandleEncoder turns encoder 0 into master level and encoder 1 into
// sequence selection.
func (k *Deck) HandleEncoder(ctx context.Context, ev streamdeck.EncoderEvent) error {
	switch ev.Encoder {
	case 0:
		if ev.Delta == 0 {
			return nil
		}
		level := int(k.Desk.View().Master) + ev.Delta*8
		return k.Desk.cmd.SetMaster(ctx, rgb.Clamp(level, 0, 255))
	case 1:
		if ev.Pressed {
			return k.Desk.TogglePlay(ctx)
		}
		k.Desk.Select(ev.Delta)
	}
	return nil
}
