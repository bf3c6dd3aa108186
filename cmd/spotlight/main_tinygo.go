//go:build tinygo

// Firmware entrypoint for a Raspberry Pi Pico W (tinygo flash -target=pico-w).
// Settings are linker variables, e.g.
//
//	tinygo flash -target=pico-w -ldflags="-X main.ssid=stage -X main.pass=secret -X main.id=spot1" ./cmd/spotlight
package main

import (
	"context"
	"log"
	"machine"
	"net/http"
	"time"

	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/netlink/probe"

	"spotlight/lib/fixture"
)

var (
	id   = "spotlight"
	ssid string
	pass string
)

const (
	innerPin = machine.GPIO16
	outerPin = machine.GPIO17
	addr     = ":80"
	frame    = 16 * time.Millisecond
)

func main() {
	log.SetPrefix("[SPOTLIGHT] ")

	strip := fixture.NewWS2812Strip(innerPin, outerPin)
	f := fixture.New(id, fixture.DefaultInnerPixels, fixture.DefaultOuterPixels, strip)
	ctx := context.Background()

	if err := f.Startup(ctx); err != nil {
		log.Printf("startup animation: %v", err)
	}

	link, _ := probe.Probe()
	for {
		err := link.NetConnect(&netlink.ConnectParams{Ssid: ssid, Passphrase: pass})
		if err == nil {
			break
		}
		log.Printf("wifi %s: %v", ssid, err)
		time.Sleep(5 * time.Second)
	}

	go func() {
		if err := f.Run(ctx, frame); err != nil {
			log.Printf("render loop: %v", err)
		}
	}()

	log.Printf("%s listening on %s", id, addr)
	log.Fatal(http.ListenAndServe(addr, f.Handler()))
}
