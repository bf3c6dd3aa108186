package sequence

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
)

const showJSON = `{
  "id": "intro",
  "name": "Intro",
  "duration": 4000,
  "loop": true,
  "spotifyUri": "spotify:track:123",
  "events": [
    {"timestamp": 0, "targets": ["spot1", "spot2"], "ring": "both", "effect": "static",
     "params": {"color": [255, 0, 0], "brightness": 200}},
    {"timestamp": 1500, "targets": ["spot1"], "ring": "outer", "effect": "rotation",
     "params": {"rotation": {"activeColor": [0, 0, 255], "speed": 50, "pattern": "trail", "trailLength": 4}}},
    {"timestamp": 3000, "targets": ["spot2"], "effect": "fade",
     "params": {"color2": [0, 0, 0], "duration": 1000}}
  ]
}`

func TestSequenceFromJSON(t *testing.T) {
	var seq Sequence
	if err := json.Unmarshal([]byte(showJSON), &seq); err != nil {
		t.Fatal(err)
	}
	if err := seq.Validate(); err != nil {
		t.Fatal(err)
	}
	if seq.ID != "intro" || !seq.Loop || seq.Duration != 4*time.Second || seq.MusicURI != "spotify:track:123" {
		t.Errorf("got %+v", seq)
	}
	if len(seq.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(seq.Events))
	}

	first := seq.Events[0]
	if first.Effect.Color != rgb.Red || first.Effect.Brightness != 200 || first.Effect.Ring != effect.Both {
		t.Errorf("got %s, want both red at 200", first.Effect)
	}

	rot, ok := seq.Events[1].Effect.Params.(effect.Rotation)
	if !ok {
		t.Fatalf("got %T, want Rotation", seq.Events[1].Effect.Params)
	}
	if rot.Active != rgb.Blue || rot.Step != 50*time.Millisecond || rot.Pattern != effect.PatternTrail || rot.TrailLength != 4 {
		t.Errorf("got %+v", rot.RotationParams)
	}
	if seq.Events[1].Offset != 1500*time.Millisecond {
		t.Errorf("got offset %v, want 1.5s", seq.Events[1].Offset)
	}

	fade := seq.Events[2].Effect.Params.(effect.Fade)
	if fade.To != rgb.Black || fade.Duration != time.Second {
		t.Errorf("got %+v", fade)
	}
}

func TestSequenceJSONRoundTrip(t *testing.T) {
	var seq Sequence
	if err := json.Unmarshal([]byte(showJSON), &seq); err != nil {
		t.Fatal(err)
	}
	buf, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}
	var again Sequence
	if err := json.Unmarshal(buf, &again); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, again) {
		t.Errorf("got %+v, want %+v", again, seq)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
		want error
	}{
		{"ok", Sequence{ID: "a", Events: []Event{{Offset: 0}, {Offset: 0}, {Offset: time.Second}}}, nil},
		{"empty", Sequence{ID: "a"}, nil},
		{"no id", Sequence{}, ErrInvalidSequence},
		{"unsorted", Sequence{ID: "a", Events: []Event{{Offset: time.Second}, {Offset: 0}}}, ErrUnsorted},
		{"negative", Sequence{ID: "a", Events: []Event{{Offset: -time.Second}}}, ErrInvalidSequence},
	}
	for _, tc := range tests {
		err := tc.seq.Validate()
		if tc.want == nil && err != nil {
			t.Errorf("%s: got %v, want nil", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
