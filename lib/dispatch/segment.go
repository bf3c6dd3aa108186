package dispatch

import (
	"context"
	"net/http"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/registry"
	"spotlight/lib/rgb"
)

// Segment-controller effect ids for each kind.
var segmentFX = map[effect.Kind]int{
	effect.KindStatic:   0,
	effect.KindPulse:    2,
	effect.KindRainbow:  9,
	effect.KindChase:    10,
	effect.KindFade:     12,
	effect.KindStrobe:   23,
	effect.KindRotation: 28,
}

// Inner ring is segment 0, outer ring segment 1.
var segmentIDs = map[effect.Ring]int{
	effect.Inner: 0,
	effect.Outer: 1,
}

type SegmentState struct {
	On         *bool     `json:"on,omitempty"`
	Brightness *int      `json:"bri,omitempty"`
	Segments   []Segment `json:"seg"`
}

type Segment struct {
	ID     int        `json:"id"`
	On     bool       `json:"on"`
	Effect *int       `json:"fx,omitempty"`
	Speed  *int       `json:"sx,omitempty"`
	Colors [][3]uint8 `json:"col,omitempty"`
}

// SegmentTransport speaks the segment-state JSON API of third-party LED
// controllers. Both rings share the device brightness.
type SegmentTransport struct {
	Client *http.Client
}

func (t SegmentTransport) Send(ctx context.Context, d registry.Device, e effect.Effect) error {
	return postJSON(ctx, t.Client, baseURL(d)+"/json/state", SegmentPayload(e))
}

func (t SegmentTransport) Stop(ctx context.Context, d registry.Device, side effect.Ring) error {
	st := SegmentState{}
	for _, s := range side.Sides() {
		st.Segments = append(st.Segments, Segment{ID: segmentIDs[s]})
	}
	return postJSON(ctx, t.Client, baseURL(d)+"/json/state", st)
}

func (t SegmentTransport) Status(ctx context.Context, d registry.Device) error {
	return get(ctx, t.Client, baseURL(d)+"/json/info")
}

func SegmentPayload(e effect.Effect) SegmentState {
	on := true
	bri := int(e.Brightness)
	fx := segmentFX[e.Kind()]
	sx := segmentSpeed(e.Params)

	primary, secondary := e.Color, rgb.Black
	switch p := e.Params.(type) {
	case effect.Fade:
		secondary = p.To
	case effect.Rotation:
		primary, secondary = p.Active, p.Inactive
	}
	cols := [][3]uint8{
		{primary.R, primary.G, primary.B},
		{secondary.R, secondary.G, secondary.B},
	}

	st := SegmentState{On: &on, Brightness: &bri}
	for _, s := range e.Ring.Sides() {
		st.Segments = append(st.Segments, Segment{
			ID:     segmentIDs[s],
			On:     true,
			Effect: &fx,
			Speed:  &sx,
			Colors: cols,
		})
	}
	return st
}

// segmentSpeed maps effect timing onto the controller's 0..255 speed scale,
// where higher is faster.
func segmentSpeed(p effect.Params) int {
	fromStep := func(step time.Duration) int {
		if step <= 0 {
			return 0
		}
		return rgb.Clamp(255-int(step/(4*time.Millisecond)), 0, 255)
	}
	switch p := p.(type) {
	case effect.Strobe:
		return rgb.Clamp(p.Hz*8, 0, 255)
	case effect.Rotation:
		return fromStep(p.Step)
	case effect.Chase:
		return fromStep(p.Step)
	case effect.Pulse:
		return fromStep(p.Cycle / 16)
	case effect.Fade:
		return fromStep(p.Duration / 16)
	}
	return 128
}
