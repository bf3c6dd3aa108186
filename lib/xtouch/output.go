package xtouch

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type LCDColor uint8

const (
	ColorBlack   LCDColor = 0
	ColorRed     LCDColor = 1
	ColorGreen   LCDColor = 2
	ColorYellow  LCDColor = 3
	ColorBlue    LCDColor = 4
	ColorMagenta LCDColor = 5
	ColorCyan    LCDColor = 6
	ColorWhite   LCDColor = 7
)

type LEDState uint8

const (
	LEDOff   LEDState = 0
	LEDFlash LEDState = 64
	LEDOn    LEDState = 127
)

const stripWidth = 7

type Output struct {
	send     func(msg midi.Message) error
	deviceID uint8
}

func NewOutput(port drivers.Out, deviceID uint8) (*Output, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output port: %w", err)
	}
	return &Output{send: send, deviceID: deviceID}, nil
}

// NewOutputFunc builds an Output over any message sink.
func NewOutputFunc(send func(midi.Message) error, deviceID uint8) *Output {
	return &Output{send: send, deviceID: deviceID}
}

func (o *Output) SetFader(fader uint8, value uint8) error {
	cc := CCFaderFirst + fader
	if fader == FaderMain {
		cc = CCFaderMain
	}
	return o.send(midi.ControlChange(0, cc, value))
}

func (o *Output) SetButtonLED(button uint8, state LEDState) error {
	return o.send(midi.NoteOn(0, button, uint8(state)))
}

func (o *Output) SetMeter(channel uint8, value uint8) error {
	return o.send(midi.ControlChange(0, CCMeterFirst+channel, value))
}

// SetStrip writes both lines of scribble strip lcd (0..7). Lines are padded
// or cut to seven characters.
func (o *Output) SetStrip(lcd uint8, color LCDColor, invertLower bool, upper, lower string) error {
	cc := uint8(color)
	if invertLower {
		cc |= 0x20
	}
	data := []byte{0x00, 0x20, 0x32, o.deviceID, 0x4C, lcd, cc}
	data = append(data, fit(upper)...)
	data = append(data, fit(lower)...)
	return o.send(midi.SysEx(data))
}

func fit(s string) []byte {
	out := []byte(s)
	if len(out) > stripWidth {
		return out[:stripWidth]
	}
	for len(out) < stripWidth {
		out = append(out, ' ')
	}
	return out
}
