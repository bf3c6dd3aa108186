// Command deckcolor dials a static color on a Stream Deck+ and sends it to
// every spotlight registered with the commander. Encoders 1-3 set red, green
// and blue; pressing one toggles between fine and coarse steps. Pressing the
// fourth encoder, or any key, sends the color.
package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"os"
	"os/signal"
	"syscall"

	"spotlight/lib/client"
	"spotlight/lib/effect"
	"spotlight/lib/rgb"
	"spotlight/lib/streamdeck"
)

var (
	names      = [3]string{"RED", "GREEN", "BLUE"}
	chanColors = [3]color.RGBA{
		{255, 80, 80, 255},
		{80, 255, 80, 255},
		{80, 160, 255, 255},
	}
)

type dial struct {
	value  [3]int
	coarse [3]bool
}

func (d *dial) color() rgb.Color {
	return rgb.Color{R: uint8(d.value[0]), G: uint8(d.value[1]), B: uint8(d.value[2])}
}

func (d *dial) turn(i, delta int) {
	step := 1
	if d.coarse[i] {
		step = 16
	}
	d.value[i] = rgb.Clamp(d.value[i]+delta*step, 0, 255)
}

func draw(dev *streamdeck.Device, d *dial) {
	for i := range 3 {
		step := "fine"
		if d.coarse[i] {
			step = "coarse"
		}
		label := fmt.Sprintf("%s\n%03d %02x\n%s", names[i], d.value[i], d.value[i], step)
		if err := dev.SetKeyText(i, color.Black, chanColors[i], label); err != nil {
			log.Printf("key %d: %v", i, err)
		}
	}
	c := d.color()
	fg := color.Color(color.White)
	if int(c.R)+int(c.G)+int(c.B) > 384 {
		fg = color.Black
	}
	if err := dev.SetKeyText(3, c.RGBA(), fg, "SEND\n"+c.String()); err != nil {
		log.Printf("key 3: %v", err)
	}
}

func main() {
	log.SetPrefix("[DECKCOLOR] ")

	url := "http://localhost:8080"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	cmd := client.New(url)

	dev, err := streamdeck.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	m := dev.Model()
	if m.Encoders < 4 {
		fmt.Fprintf(os.Stderr, "Error: %s has no encoders\n", m.Name)
		os.Exit(1)
	}
	if err := dev.SetBrightness(80); err != nil {
		log.Printf("brightness: %v", err)
	}
	if err := dev.ClearAllKeys(); err != nil {
		log.Printf("clear: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &dial{}
	draw(dev, d)

	send := func() {
		devs, err := cmd.Devices(ctx)
		if err != nil {
			log.Printf("devices: %v", err)
			return
		}
		targets := make([]string, len(devs))
		for i, dev := range devs {
			targets[i] = dev.ID
		}
		e := effect.Effect{Ring: effect.Both, Color: d.color(), Brightness: 255, Params: effect.Static{}}
		if err := cmd.SendEffect(ctx, targets, e); err != nil {
			log.Printf("send: %v", err)
			return
		}
		log.Printf("sent %s to %d spotlights", e, len(targets))
	}

	input := make(chan streamdeck.InputEvent, 64)
	go func() {
		if err := dev.ReadInput(ctx, input); err != nil && ctx.Err() == nil {
			log.Printf("read: %v", err)
		}
	}()

	for {
		select {
		case ev := <-input:
			switch {
			case ev.Key != nil && ev.Key.Pressed:
				send()
			case ev.Encoder != nil:
				i := ev.Encoder.Encoder
				switch {
				case i == 3 && ev.Encoder.Pressed:
					send()
				case i > 2:
				case ev.Encoder.Delta != 0:
					d.turn(i, ev.Encoder.Delta)
					draw(dev, d)
				case ev.Encoder.Pressed:
					d.coarse[i] = !d.coarse[i]
					draw(dev, d)
				}
			}
		case <-ctx.Done():
			fmt.Println()
			return
		}
	}
}
