// Command desk bridges operator surfaces to the commander: OSC over UDP, a
// Behringer X-Touch over MIDI and an Elgato Stream Deck over USB HID. Each
// surface is optional.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"spotlight/lib/client"
	"spotlight/lib/config"
	"spotlight/lib/desk"
	"spotlight/lib/osc"
	"spotlight/lib/streamdeck"
	"spotlight/lib/xtouch"
)

func main() {
	log.SetPrefix("[DESK] ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var cfg config.Desk
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
	if len(os.Args) > 1 {
		cfg.CommanderURL = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer midi.CloseDriver()

	d := desk.New(client.NewWithTimeout(cfg.CommanderURL, cfg.Timeout))
	d.Targets = cfg.Targets
	g, ctx := errgroup.WithContext(ctx)

	if cfg.OSCAddr != "" {
		srv, err := osc.Listen(cfg.OSCAddr)
		if err != nil {
			config.Exitf("Error: osc: %v", err)
		}
		log.Printf("osc on %s", srv.Addr())
		g.Go(func() error {
			return srv.Serve(ctx, func(ctx context.Context, m osc.Message) {
				logErr("osc "+m.Address, d.HandleOSC(ctx, m))
			})
		})
	}

	if cfg.XTouchPort != "" {
		if err := startXTouch(ctx, d, cfg.XTouchPort); err != nil {
			log.Printf("x-touch disabled: %v", err)
		}
	}

	if cfg.StreamDeck {
		dev, err := streamdeck.Open()
		if err != nil {
			log.Printf("stream deck disabled: %v", err)
		} else {
			defer dev.Close()
			startDeck(ctx, g, d, dev)
		}
	}

	g.Go(func() error {
		t := time.NewTicker(cfg.Poll)
		defer t.Stop()
		var failing bool
		for {
			err := d.Refresh(ctx)
			if err != nil && !failing && ctx.Err() == nil {
				log.Printf("commander %s: %v", cfg.CommanderURL, err)
			}
			failing = err != nil
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("stopped")
}

func logErr(what string, err error) {
	if err != nil {
		log.Printf("%s: %v", what, err)
	}
}

func startXTouch(ctx context.Context, d *desk.Desk, portName string) error {
	in, err := xtouch.FindInPort(portName)
	if err != nil {
		return err
	}
	outPort, err := xtouch.FindOutPort(portName)
	if err != nil {
		return err
	}
	out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
	if err != nil {
		return err
	}

	stopListen, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if ev := xtouch.Decode(msg); ev != nil {
			logErr(ev.String(), d.HandleXTouch(ctx, ev))
		}
	})
	if err != nil {
		return err
	}
	context.AfterFunc(ctx, stopListen)

	d.AddSurface(&desk.XTouch{Out: out})
	log.Printf("x-touch on %s", in)
	return nil
}

func startDeck(ctx context.Context, g *errgroup.Group, d *desk.Desk, dev *streamdeck.Device) {
	m := dev.Model()
	if err := dev.SetBrightness(80); err != nil {
		log.Printf("stream deck: %v", err)
	}
	deck := desk.NewDeck(dev, d)
	d.AddSurface(deck)
	log.Printf("stream deck %s (%s), %d sequence keys", m.Name, dev.SerialNumber(), deck.Layout.Sequences)

	input := make(chan streamdeck.InputEvent, 64)
	go func() {
		if err := dev.ReadInput(ctx, input); err != nil && ctx.Err() == nil {
			log.Printf("stream deck: %v", err)
		}
	}()
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-input:
				switch {
				case ev.Key != nil:
					logErr("deck key", deck.HandleKey(ctx, *ev.Key))
				case ev.Encoder != nil:
					logErr("deck encoder", deck.HandleEncoder(ctx, *ev.Encoder))
				}
			}
		}
	})
}
