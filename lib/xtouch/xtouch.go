// Package xtouch decodes Behringer X-Touch input in MC mode and drives its
// faders, button LEDs and scribble strips.
package xtouch

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DeviceIDXTouch   = 0x14
	DeviceIDExtender = 0x15
)

const (
	CCFaderFirst   = 70
	CCFaderLast    = 77
	CCFaderMain    = 78
	CCEncoderFirst = 80
	CCEncoderLast  = 87
	CCJogWheel     = 88
	CCMeterFirst   = 90
)

const (
	NoteButtonFirst     = 0
	NoteButtonLast      = 103
	NoteFaderTouchFirst = 110
	NoteFaderTouchLast  = 117
	NoteFaderTouchMain  = 118
)

// Channel strip and transport buttons.
const (
	ButtonRecFirst    = 0
	ButtonSoloFirst   = 8
	ButtonMuteFirst   = 16
	ButtonSelectFirst = 24

	ButtonRewind  = 91
	ButtonForward = 92
	ButtonStop    = 93
	ButtonPlay    = 94
	ButtonRecord  = 95
)

// FaderMain is the fader index of the main fader.
const FaderMain = 8

type Event interface {
	String() string
}

type ButtonEvent struct {
	Button  uint8
	Pressed bool
}

func (e ButtonEvent) String() string {
	action := "released"
	if e.Pressed {
		action = "pressed"
	}
	return fmt.Sprintf("button %d %s", e.Button, action)
}

type FaderEvent struct {
	Fader uint8
	Value uint8
}

func (e FaderEvent) String() string {
	if e.Fader == FaderMain {
		return fmt.Sprintf("fader main = %d", e.Value)
	}
	return fmt.Sprintf("fader %d = %d", e.Fader, e.Value)
}

type FaderTouchEvent struct {
	Fader   uint8
	Touched bool
}

func (e FaderTouchEvent) String() string {
	action := "released"
	if e.Touched {
		action = "touched"
	}
	return fmt.Sprintf("fader %d %s", e.Fader, action)
}

type EncoderEvent struct {
	Encoder uint8
	Delta   int
}

func (e EncoderEvent) String() string {
	return fmt.Sprintf("encoder %d %+d", e.Encoder, e.Delta)
}

type JogWheelEvent struct {
	Clockwise bool
}

func (e JogWheelEvent) String() string {
	if e.Clockwise {
		return "jog wheel cw"
	}
	return "jog wheel ccw"
}

func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", substr)
}

func FindOutPort(substr string) (drivers.Out, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", substr)
}

// Decode maps one MIDI message to an event, or nil for messages the
// surface does not send. Encoders are read in relative mode.
func Decode(msg midi.Message) Event {
	var channel, a, b uint8
	switch {
	case msg.GetNoteOn(&channel, &a, &b):
		return decodeNote(a, b > 0)
	case msg.GetNoteOff(&channel, &a, &b):
		return decodeNote(a, false)
	case msg.GetControlChange(&channel, &a, &b):
		return decodeCC(a, b)
	}
	return nil
}

func decodeNote(key uint8, pressed bool) Event {
	switch {
	case key <= NoteButtonLast:
		return ButtonEvent{Button: key, Pressed: pressed}
	case key >= NoteFaderTouchFirst && key <= NoteFaderTouchLast:
		return FaderTouchEvent{Fader: key - NoteFaderTouchFirst, Touched: pressed}
	case key == NoteFaderTouchMain:
		return FaderTouchEvent{Fader: FaderMain, Touched: pressed}
	}
	return nil
}

func decodeCC(controller, value uint8) Event {
	switch {
	case controller >= CCFaderFirst && controller <= CCFaderLast:
		return FaderEvent{Fader: controller - CCFaderFirst, Value: value}
	case controller == CCFaderMain:
		return FaderEvent{Fader: FaderMain, Value: value}
	case controller >= CCEncoderFirst && controller <= CCEncoderLast:
		delta := 0
		switch value {
		case 65:
			delta = 1
		case 1:
			delta = -1
		}
		return EncoderEvent{Encoder: controller - CCEncoderFirst, Delta: delta}
	case controller == CCJogWheel:
		return JogWheelEvent{Clockwise: value == 65}
	}
	return nil
}
