package sequence

import (
	"fmt"
	"math/rand/v2"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
)

var sceneNamePool = []string{
	"Opening", "Walk-in", "Verse", "Chorus", "Bridge", "Drop",
	"Breakdown", "Finale", "Encore", "Blackout", "Interval",
}

var palette = []rgb.Color{
	rgb.Red, rgb.Blue, rgb.White,
	{R: 255, G: 120, B: 0}, {R: 255, G: 0, B: 180}, {R: 0, G: 255, B: 90}, {R: 90, G: 0, B: 255},
}

// GenerateMockSequence builds a deterministic sequence of numEvents events
// spread over numDevices devices named spot1..spotN.
func GenerateMockSequence(id string, numDevices, numEvents int) *Sequence {
	rng := rand.New(rand.NewPCG(42, 0))
	numDevices = max(numDevices, 1)

	devices := make([]string, numDevices)
	for i := range devices {
		devices[i] = fmt.Sprintf("spot%d", i+1)
	}

	seq := &Sequence{
		ID:   id,
		Name: sceneNamePool[rng.IntN(len(sceneNamePool))],
	}

	color := func() rgb.Color { return palette[rng.IntN(len(palette))] }
	ms := func(lo, hi int) time.Duration {
		return time.Duration(lo+rng.IntN(hi-lo+1)) * time.Millisecond
	}

	var offset time.Duration
	for range numEvents {
		offset += ms(50, 1500)

		perm := rng.Perm(numDevices)
		targets := make([]string, 0, numDevices)
		for _, idx := range perm[:1+rng.IntN(numDevices)] {
			targets = append(targets, devices[idx])
		}

		e := effect.Effect{
			Ring:       effect.Ring(rng.IntN(3)),
			Color:      color(),
			Brightness: uint8(64 + rng.IntN(192)),
		}
		switch r := rng.Float64(); {
		case r < 0.25:
			e.Params = effect.Static{}
		case r < 0.40:
			e.Params = effect.Fade{To: color(), Duration: ms(200, 4000)}
		case r < 0.50:
			e.Params = effect.Strobe{Hz: 2 + rng.IntN(18), Duration: ms(200, 2000)}
		case r < 0.65:
			e.Params = effect.Pulse{Cycle: ms(500, 4000)}
		case r < 0.85:
			p := effect.DefaultRotation()
			p.Active, p.Inactive = color(), rgb.Black
			p.Step = ms(20, 200)
			if rng.IntN(2) == 1 {
				p.Direction = effect.Counterclockwise
			}
			p.Pattern = []effect.Pattern{
				effect.PatternSingle, effect.PatternTrail, effect.PatternOpposite, effect.PatternWave,
			}[rng.IntN(4)]
			e.Params = effect.Rotation{RotationParams: p}
		case r < 0.92:
			e.Params = effect.Rainbow{}
		default:
			e.Params = effect.Chase{Step: ms(20, 200)}
		}

		seq.Events = append(seq.Events, Event{Offset: offset, Targets: targets, Effect: e})
	}

	seq.Duration = offset + time.Second
	return seq
}
