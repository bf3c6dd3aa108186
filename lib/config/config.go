package config

import "time"

type Fixture struct {
	ID          string        `env:"SPOTLIGHT_ID" envDefault:"spotlight"`
	Addr        string        `env:"SPOTLIGHT_ADDR" envDefault:":80"`
	InnerPixels int           `env:"SPOTLIGHT_INNER_LEDS" envDefault:"8"`
	OuterPixels int           `env:"SPOTLIGHT_OUTER_LEDS" envDefault:"24"`
	Frame       time.Duration `env:"SPOTLIGHT_FRAME" envDefault:"16ms"`
	// Strip selects the output: "none" or "term".
	Strip   string `env:"SPOTLIGHT_STRIP" envDefault:"none"`
	Startup bool   `env:"SPOTLIGHT_STARTUP" envDefault:"true"`
}

type Commander struct {
	Addr            string        `env:"COMMANDER_ADDR" envDefault:":8080"`
	DBPath          string        `env:"COMMANDER_DB_PATH"`
	Tick            time.Duration `env:"COMMANDER_TICK" envDefault:"10ms"`
	ProbeInterval   time.Duration `env:"COMMANDER_PROBE_INTERVAL" envDefault:"30s"`
	ProbeTimeout    time.Duration `env:"COMMANDER_PROBE_TIMEOUT" envDefault:"3s"`
	DispatchTimeout time.Duration `env:"COMMANDER_DISPATCH_TIMEOUT" envDefault:"5s"`
	Fanout          int           `env:"COMMANDER_FANOUT" envDefault:"8"`
}

type Desk struct {
	CommanderURL string `env:"DESK_COMMANDER_URL" envDefault:"http://127.0.0.1:8080"`
	OSCAddr      string `env:"DESK_OSC_ADDR" envDefault:":8000"`
	XTouchPort   string `env:"DESK_XTOUCH_PORT" envDefault:"x-touch"`
	StreamDeck   bool   `env:"DESK_STREAMDECK" envDefault:"true"`
	// Targets are the devices the desk's effect keys address; empty means
	// every registered device.
	Targets []string      `env:"DESK_TARGETS" envSeparator:","`
	Poll    time.Duration `env:"DESK_POLL" envDefault:"1s"`
	// Timeout caps one commander request. Keep it above
	// COMMANDER_DISPATCH_TIMEOUT.
	Timeout time.Duration `env:"DESK_TIMEOUT" envDefault:"10s"`
}
