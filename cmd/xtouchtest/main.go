// Command xtouchtest checks an X-Touch before a show: it prints every decoded
// event, mirrors each fader onto its neighbour and shows encoder and fader
// values on the scribble strips. Select buttons toggle their LEDs.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"spotlight/lib/rgb"
	"spotlight/lib/xtouch"
)

var lcdColors = []xtouch.LCDColor{
	xtouch.ColorRed,
	xtouch.ColorGreen,
	xtouch.ColorYellow,
	xtouch.ColorBlue,
	xtouch.ColorMagenta,
	xtouch.ColorCyan,
	xtouch.ColorWhite,
}

type panel struct {
	mu       sync.Mutex
	out      *xtouch.Output
	faders   [8]uint8
	encoders [8]int
	selected [8]bool
}

func (p *panel) updateLCD(ch uint8) {
	lcd := lcdColors[p.encoders[ch]*len(lcdColors)/128]
	if err := p.out.SetStrip(ch, lcd, false,
		fmt.Sprintf("E%d", p.encoders[ch]),
		fmt.Sprintf("F%d", p.faders[ch])); err != nil {
		fmt.Fprintf(os.Stderr, "strip %d: %v\n", ch, err)
	}
}

func (p *panel) handle(event xtouch.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case xtouch.FaderEvent:
		if e.Fader >= 8 {
			return
		}
		pair := e.Fader ^ 1
		p.faders[e.Fader] = e.Value
		p.faders[pair] = e.Value
		p.out.SetFader(pair, e.Value)
		p.out.SetMeter(e.Fader, e.Value)
		p.out.SetMeter(pair, e.Value)
		p.updateLCD(e.Fader)
		p.updateLCD(pair)

	case xtouch.EncoderEvent:
		p.encoders[e.Encoder] = rgb.Clamp(p.encoders[e.Encoder]+e.Delta, 0, 127)
		p.updateLCD(e.Encoder)

	case xtouch.ButtonEvent:
		ch := int(e.Button) - xtouch.ButtonSelectFirst
		if !e.Pressed || ch < 0 || ch >= 8 {
			return
		}
		p.selected[ch] = !p.selected[ch]
		state := xtouch.LEDOff
		if p.selected[ch] {
			state = xtouch.LEDOn
		}
		p.out.SetButtonLED(e.Button, state)
	}
}

func main() {
	defer midi.CloseDriver()

	inPort, err := xtouch.FindInPort("x-touch")
	if err != nil {
		fmt.Println("Available MIDI input ports:")
		for _, p := range midi.GetInPorts() {
			fmt.Printf("  %s\n", p)
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}

	outPort, err := xtouch.FindOutPort("x-touch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := &panel{out: out}
	for i := uint8(0); i < 8; i++ {
		p.updateLCD(i)
	}

	fmt.Printf("Listening on: %s\n", inPort)

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		event := xtouch.Decode(msg)
		if event == nil {
			return
		}
		fmt.Println(event)
		p.handle(event)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println()
}
