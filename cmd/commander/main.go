// Command commander runs the spotlight controller: device registry, effect
// dispatch, sequence playback, health probes and the HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"spotlight/lib/config"
	"spotlight/lib/controller"
	"spotlight/lib/sequence"
	"spotlight/lib/store"
	"spotlight/lib/telemetry"
)

func main() {
	log.SetPrefix("[COMMANDER] ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var cfg config.Commander
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
	var otelCfg telemetry.Config
	if err := config.ParseEnv(&otelCfg); err != nil {
		config.Exitf("Error: %v", err)
	}

	var mock bool
	for _, arg := range os.Args[1:] {
		if arg == "--mock" {
			mock = true
		} else if !strings.HasPrefix(arg, "-") {
			cfg.Addr = arg
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "commander", "", otelCfg)
	if err != nil {
		log.Printf("telemetry disabled: %v", err)
	}
	defer shutdownTracing(context.Background())

	opts := controller.Options{
		Client:          &http.Client{},
		DispatchTimeout: cfg.DispatchTimeout,
		Fanout:          cfg.Fanout,
		ProbeInterval:   cfg.ProbeInterval,
		ProbeTimeout:    cfg.ProbeTimeout,
	}
	if cfg.DBPath != "" {
		s, err := store.Open(ctx, cfg.DBPath)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		defer s.Close()
		opts.Store = s
		log.Printf("persisting to %s", cfg.DBPath)
	}

	c := controller.New(opts)
	if err := c.Restore(ctx); err != nil {
		config.Exitf("Error: restore: %v", err)
	}
	if mock {
		seq := sequence.GenerateMockSequence("mock", 4, 64)
		if err := c.LoadSequence(ctx, *seq); err != nil {
			config.Exitf("Error: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.Handler(),
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
		return c.Run(ctx, cfg.Tick)
	})
	g.Go(func() error {
		return c.RunHealth(ctx)
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
	c.Wait()
	log.Printf("stopped")
}
