// Package sequence holds show sequences and plays them back against a
// dispatcher.
package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spotlight/lib/effect"
)

var (
	ErrInvalidSequence = errors.New("invalid sequence")
	ErrUnsorted        = errors.New("events are not in ascending timestamp order")
)

// Event applies one effect to a set of devices Offset after playback starts.
type Event struct {
	Offset  time.Duration
	Targets []string
	Effect  effect.Effect
}

type wireEvent struct {
	Timestamp int64           `json:"timestamp"`
	Targets   []string        `json:"targets"`
	Ring      string          `json:"ring,omitempty"`
	Effect    string          `json:"effect,omitempty"`
	Params    effect.Settings `json:"params"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	cmd := effect.Encode(e.Effect)
	return json.Marshal(wireEvent{
		Timestamp: e.Offset.Milliseconds(),
		Targets:   e.Targets,
		Ring:      cmd.Ring,
		Effect:    cmd.Effect,
		Params:    cmd.Settings,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		Offset:  time.Duration(w.Timestamp) * time.Millisecond,
		Targets: w.Targets,
		Effect:  effect.Command{Ring: w.Ring, Effect: w.Effect, Settings: w.Params}.Decode(),
	}
	return nil
}

type Sequence struct {
	ID       string
	Name     string
	Duration time.Duration
	Loop     bool
	// MusicURI names a track for the music sync to start alongside playback.
	MusicURI string
	Events   []Event
}

type wireSequence struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Duration int64   `json:"duration"`
	Loop     bool    `json:"loop"`
	MusicURI string  `json:"spotifyUri,omitempty"`
	Events   []Event `json:"events"`
}

func (s Sequence) MarshalJSON() ([]byte, error) {
	events := s.Events
	if events == nil {
		events = []Event{}
	}
	return json.Marshal(wireSequence{
		ID:       s.ID,
		Name:     s.Name,
		Duration: s.Duration.Milliseconds(),
		Loop:     s.Loop,
		MusicURI: s.MusicURI,
		Events:   events,
	})
}

func (s *Sequence) UnmarshalJSON(data []byte) error {
	var w wireSequence
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Sequence{
		ID:       w.ID,
		Name:     w.Name,
		Duration: time.Duration(w.Duration) * time.Millisecond,
		Loop:     w.Loop,
		MusicURI: w.MusicURI,
		Events:   w.Events,
	}
	return nil
}

func (s *Sequence) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: sequence is nil", ErrInvalidSequence)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSequence)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidSequence)
	}
	var prev time.Duration
	for i, ev := range s.Events {
		if ev.Offset < 0 {
			return fmt.Errorf("%w: event %d has negative timestamp", ErrInvalidSequence, i)
		}
		if ev.Offset < prev {
			return fmt.Errorf("%w: event %d at %dms follows %dms", ErrUnsorted, i, ev.Offset.Milliseconds(), prev.Milliseconds())
		}
		prev = ev.Offset
	}
	return nil
}

type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Duration   int64  `json:"duration"`
	EventCount int    `json:"eventCount"`
	Loop       bool   `json:"loop"`
}

func (s *Sequence) Summary() Summary {
	return Summary{
		ID:         s.ID,
		Name:       s.Name,
		Duration:   s.Duration.Milliseconds(),
		EventCount: len(s.Events),
		Loop:       s.Loop,
	}
}
