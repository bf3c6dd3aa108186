//go:build !tinygo

// Command spotlight runs one LED ring fixture: the HTTP command surface and
// the render loop. This is the host build; main_tinygo.go is the firmware
// entrypoint.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"spotlight/lib/config"
	"spotlight/lib/fixture"
	"spotlight/lib/telemetry"
)

func main() {
	log.SetPrefix("[SPOTLIGHT] ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var cfg config.Fixture
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
	var otelCfg telemetry.Config
	if err := config.ParseEnv(&otelCfg); err != nil {
		config.Exitf("Error: %v", err)
	}
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "spotlight", cfg.ID, otelCfg)
	if err != nil {
		log.Printf("telemetry disabled: %v", err)
	}
	defer shutdownTracing(context.Background())

	strip, err := newStrip(cfg)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	f := fixture.New(cfg.ID, cfg.InnerPixels, cfg.OuterPixels, strip)
	log.Printf("%s: inner %d, outer %d pixels, %s strip", cfg.ID, cfg.InnerPixels, cfg.OuterPixels, cfg.Strip)

	if cfg.Startup {
		if err := f.Startup(ctx); err != nil && ctx.Err() == nil {
			log.Printf("startup animation: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           f.Handler(),
		ReadHeaderTimeout: config.ReadHeader,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return f.Run(ctx, cfg.Frame)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Shutdown)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("stopped")
}
