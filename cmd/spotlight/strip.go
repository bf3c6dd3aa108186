//go:build !tinygo

package main

import (
	"fmt"
	"os"

	"spotlight/lib/config"
	"spotlight/lib/fixture"
)

func newStrip(cfg config.Fixture) (fixture.Strip, error) {
	switch cfg.Strip {
	case "", "none":
		return fixture.NopStrip{}, nil
	case "term":
		return fixture.NewTermStrip(os.Stdout), nil
	}
	return nil, fmt.Errorf("unknown strip %q", cfg.Strip)
}
