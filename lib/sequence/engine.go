package sequence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"spotlight/lib/effect"
)

var (
	ErrUnknownSequence = errors.New("unknown sequence")
	ErrNotPlaying      = errors.New("not playing")
	ErrAlreadyPaused   = errors.New("already paused")
	ErrNotPaused       = errors.New("not paused")
)

// Dispatcher is what the engine needs from the device fan-out.
type Dispatcher interface {
	Send(ctx context.Context, targets []string, e effect.Effect) error
	StopAll(ctx context.Context) error
}

type PlaybackState struct {
	Active         bool
	SequenceID     string
	Cursor         int
	Start          time.Time
	Paused         bool
	ElapsedAtPause time.Duration
}

type PlaybackStatus struct {
	Active   bool   `json:"active"`
	Sequence string `json:"sequence"`
	Paused   bool   `json:"paused"`
	Position int64  `json:"position"`
}

// Engine owns the sequence library and the single playback state. It is not
// synchronized; the commander serializes calls.
type Engine struct {
	dispatcher Dispatcher
	music      MusicSync
	library    map[string]*Sequence
	state      PlaybackState
}

func NewEngine(d Dispatcher, music MusicSync) *Engine {
	if music == nil {
		music = NopMusic{}
	}
	return &Engine{
		dispatcher: d,
		music:      music,
		library:    map[string]*Sequence{},
	}
}

// Load validates seq and stores it under its id, replacing any previous
// sequence. Playback is not affected.
func (e *Engine) Load(seq Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	seq.Events = slices.Clone(seq.Events)
	e.library[seq.ID] = &seq
	return nil
}

func (e *Engine) Delete(id string) error {
	if _, ok := e.library[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSequence, id)
	}
	delete(e.library, id)
	return nil
}

func (e *Engine) Get(id string) (Sequence, bool) {
	seq, ok := e.library[id]
	if !ok {
		return Sequence{}, false
	}
	return *seq, true
}

func (e *Engine) List() []Summary {
	out := make([]Summary, 0, len(e.library))
	for _, seq := range e.library {
		out = append(out, seq.Summary())
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (e *Engine) State() PlaybackState { return e.state }

// Play starts id from the beginning, replacing any current playback.
func (e *Engine) Play(ctx context.Context, id string, now time.Time) error {
	seq, ok := e.library[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSequence, id)
	}
	e.state = PlaybackState{Active: true, SequenceID: id, Start: now}
	if seq.MusicURI != "" {
		if err := e.music.Play(ctx, seq.MusicURI); err != nil {
			log.Printf("music: play %s: %v", seq.MusicURI, err)
		}
	}
	return nil
}

func (e *Engine) Pause(ctx context.Context, now time.Time) error {
	switch {
	case !e.state.Active:
		return ErrNotPlaying
	case e.state.Paused:
		return ErrAlreadyPaused
	}
	e.state.Paused = true
	e.state.ElapsedAtPause = now.Sub(e.state.Start)
	if err := e.music.Pause(ctx); err != nil {
		log.Printf("music: pause: %v", err)
	}
	return nil
}

func (e *Engine) Resume(ctx context.Context, now time.Time) error {
	switch {
	case !e.state.Active:
		return ErrNotPlaying
	case !e.state.Paused:
		return ErrNotPaused
	}
	e.state.Paused = false
	e.state.Start = now.Add(-e.state.ElapsedAtPause)
	if err := e.music.Resume(ctx); err != nil {
		log.Printf("music: resume: %v", err)
	}
	return nil
}

// Stop ends playback and blanks every known device. Device failures are
// logged; the playback state is reset regardless.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.state.Active {
		return ErrNotPlaying
	}
	e.state = PlaybackState{}
	if err := e.music.Stop(ctx); err != nil {
		log.Printf("music: stop: %v", err)
	}
	if err := e.dispatcher.StopAll(ctx); err != nil {
		log.Printf("stop all: %v", err)
	}
	return nil
}

// Tick dispatches every event due at now, in order, and returns how many
// were dispatched. A failed dispatch is logged and never holds back later
// events.
func (e *Engine) Tick(ctx context.Context, now time.Time) int {
	if !e.state.Active || e.state.Paused {
		return 0
	}
	seq, ok := e.library[e.state.SequenceID]
	if !ok {
		log.Printf("sequence %q was deleted during playback", e.state.SequenceID)
		e.state = PlaybackState{}
		return 0
	}

	elapsed := now.Sub(e.state.Start)
	n := 0
	for e.state.Cursor < len(seq.Events) && seq.Events[e.state.Cursor].Offset <= elapsed {
		ev := seq.Events[e.state.Cursor]
		if err := e.dispatcher.Send(ctx, ev.Targets, ev.Effect); err != nil {
			log.Printf("sequence %s event %d @%dms: %v", seq.ID, e.state.Cursor, ev.Offset.Milliseconds(), err)
		}
		e.state.Cursor++
		n++
	}

	if e.state.Cursor >= len(seq.Events) {
		if seq.Loop {
			e.state.Cursor = 0
			e.state.Start = now
		} else {
			log.Printf("sequence %s complete", seq.ID)
			e.state = PlaybackState{}
		}
	}
	return n
}

// Status reports playback position in milliseconds.
func (e *Engine) Status(now time.Time) PlaybackStatus {
	st := PlaybackStatus{
		Active:   e.state.Active,
		Sequence: e.state.SequenceID,
		Paused:   e.state.Paused,
	}
	switch {
	case !e.state.Active:
	case e.state.Paused:
		st.Position = e.state.ElapsedAtPause.Milliseconds()
	default:
		st.Position = now.Sub(e.state.Start).Milliseconds()
	}
	return st
}
