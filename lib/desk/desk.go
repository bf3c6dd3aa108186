// Package desk maps operator surfaces (OSC, X-Touch, Stream Deck) onto the
// commander API and mirrors playback state back to them.
package desk

import (
	"context"
	"fmt"
	"log"
	"math"
	"slices"
	"sync"

	"spotlight/lib/client"
	"spotlight/lib/effect"
	"spotlight/lib/osc"
	"spotlight/lib/rgb"
	"spotlight/lib/sequence"
	"spotlight/lib/xtouch"
)

// Commander is the part of the commander API the desk drives.
type Commander interface {
	Status(ctx context.Context) (client.Status, error)
	Sequences(ctx context.Context) ([]sequence.Summary, error)
	Play(ctx context.Context, id string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	StopSequence(ctx context.Context) error
	Blackout(ctx context.Context) error
	SetMaster(ctx context.Context, level int) error
	SendEffect(ctx context.Context, targets []string, e effect.Effect) error
}

// Surface shows the desk view. Render is only called when the view changed.
type Surface interface {
	Render(v View) error
}

type View struct {
	Sequences []sequence.Summary
	Selected  int
	Playback  sequence.PlaybackStatus
	Master    uint8
	Online    int
	Devices   int
}

func (v View) equal(o View) bool {
	return slices.Equal(v.Sequences, o.Sequences) &&
		v.Selected == o.Selected &&
		v.Playback.Active == o.Playback.Active &&
		v.Playback.Paused == o.Playback.Paused &&
		v.Playback.Sequence == o.Playback.Sequence &&
		v.Master == o.Master &&
		v.Online == o.Online &&
		v.Devices == o.Devices
}

// SelectedID is the id of the selected sequence, or "" with none loaded.
func (v View) SelectedID() string {
	if v.Selected < 0 || v.Selected >= len(v.Sequences) {
		return ""
	}
	return v.Sequences[v.Selected].ID
}

type Desk struct {
	cmd Commander
	// Targets are the devices preset effects go to; empty means every
	// registered device.
	Targets []string

	mu       sync.Mutex
	view     View
	rendered map[Surface]View
	surfaces []Surface
	devices  []string
}

func New(cmd Commander) *Desk {
	return &Desk{cmd: cmd, rendered: map[Surface]View{}}
}

func (d *Desk) AddSurface(s Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surfaces = append(d.surfaces, s)
}

func (d *Desk) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Refresh pulls status and the sequence list from the commander and
// re-renders every surface whose view changed.
func (d *Desk) Refresh(ctx context.Context) error {
	st, err := d.cmd.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	seqs, err := d.cmd.Sequences(ctx)
	if err != nil {
		return fmt.Errorf("sequences: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	selectedID := d.view.SelectedID()
	d.view.Sequences = seqs
	d.view.Selected = 0
	if i := slices.IndexFunc(seqs, func(s sequence.Summary) bool { return s.ID == selectedID }); i >= 0 {
		d.view.Selected = i
	}
	d.view.Playback = st.Playback
	d.view.Master = st.Master
	d.view.Devices = len(st.Devices)
	d.view.Online = 0
	d.devices = d.devices[:0]
	for _, dev := range st.Devices {
		d.devices = append(d.devices, dev.ID)
		if dev.Online() {
			d.view.Online++
		}
	}
	d.renderLocked()
	return nil
}

func (d *Desk) renderLocked() {
	for _, s := range d.surfaces {
		if prev, ok := d.rendered[s]; ok && prev.equal(d.view) {
			continue
		}
		if err := s.Render(d.view); err != nil {
			log.Printf("render %T: %v", s, err)
			continue
		}
		d.rendered[s] = d.view
	}
}

// Select moves the selection by delta, clamped to the sequence list.
func (d *Desk) Select(delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectLocked(d.view.Selected + delta)
}

func (d *Desk) SelectIndex(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectLocked(i)
}

func (d *Desk) selectLocked(i int) {
	if len(d.view.Sequences) == 0 {
		return
	}
	d.view.Selected = rgb.Clamp(i, 0, len(d.view.Sequences)-1)
	d.renderLocked()
}

// TogglePlay pauses the running sequence, resumes a paused one, or starts
// the selected sequence.
func (d *Desk) TogglePlay(ctx context.Context) error {
	v := d.View()
	switch {
	case v.Playback.Active && v.Playback.Paused:
		return d.cmd.Resume(ctx)
	case v.Playback.Active && v.Playback.Sequence == v.SelectedID():
		return d.cmd.Pause(ctx)
	}
	id := v.SelectedID()
	if id == "" {
		return fmt.Errorf("no sequence selected")
	}
	return d.cmd.Play(ctx, id)
}

func (d *Desk) targets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Targets) > 0 {
		return d.Targets
	}
	return slices.Clone(d.devices)
}

// SendPreset sends e to the desk's targets.
func (d *Desk) SendPreset(ctx context.Context, e effect.Effect) error {
	return d.cmd.SendEffect(ctx, d.targets(), e)
}

// HandleOSC runs one OSC command. Unknown addresses are ignored.
func (d *Desk) HandleOSC(ctx context.Context, m osc.Message) error {
	switch m.Address {
	case "/spotlight/play":
		if id, ok := m.Text(0); ok {
			return d.cmd.Play(ctx, id)
		}
		return d.TogglePlay(ctx)
	case "/spotlight/pause":
		return d.cmd.Pause(ctx)
	case "/spotlight/resume":
		return d.cmd.Resume(ctx)
	case "/spotlight/stop":
		return d.cmd.StopSequence(ctx)
	case "/spotlight/blackout":
		return d.cmd.Blackout(ctx)
	case "/spotlight/master":
		v, ok := m.Number(0)
		if !ok {
			return fmt.Errorf("%s: missing level", m.Address)
		}
		// Floats are a 0..1 fader position; integers are a raw level.
		switch m.Args[0].(type) {
		case float32, float64:
			v *= 255
		}
		return d.cmd.SetMaster(ctx, int(math.Round(v)))
	case "/spotlight/select":
		v, ok := m.Number(0)
		if !ok {
			return fmt.Errorf("%s: missing index", m.Address)
		}
		d.SelectIndex(int(v))
		return nil
	}
	log.Printf("osc: ignoring %s", m)
	return nil
}

// HandleXTouch maps transport buttons, select buttons, the jog wheel and the
// main fader.
func (d *Desk) HandleXTouch(ctx context.Context, ev xtouch.Event) error {
	switch ev := ev.(type) {
	case xtouch.ButtonEvent:
		if !ev.Pressed {
			return nil
		}
		switch {
		case ev.Button == xtouch.ButtonPlay:
			return d.TogglePlay(ctx)
		case ev.Button == xtouch.ButtonStop:
			return d.cmd.StopSequence(ctx)
		case ev.Button == xtouch.ButtonRecord:
			return d.cmd.Blackout(ctx)
		case ev.Button == xtouch.ButtonRewind:
			d.Select(-1)
		case ev.Button == xtouch.ButtonForward:
			d.Select(1)
		case ev.Button >= xtouch.ButtonSelectFirst && ev.Button < xtouch.ButtonSelectFirst+8:
			d.SelectIndex(int(ev.Button - xtouch.ButtonSelectFirst))
		}
	case xtouch.JogWheelEvent:
		if ev.Clockwise {
			d.Select(1)
		} else {
			d.Select(-1)
		}
	case xtouch.FaderEvent:
		if ev.Fader == xtouch.FaderMain {
			return d.cmd.SetMaster(ctx, int(ev.Value)*255/127)
		}
	}
	return nil
}
