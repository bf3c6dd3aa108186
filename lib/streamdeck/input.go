package streamdeck

import (
	"context"
)

type KeyEvent struct {
	Key     int
	Pressed bool
}

type EncoderEvent struct {
	Encoder int
	Pressed bool
	Delta   int
}

// InputEvent carries exactly one of Key or Encoder.
type InputEvent struct {
	Key     *KeyEvent
	Encoder *EncoderEvent
}

// inputState remembers the last key and encoder-button states so only
// changes become events.
type inputState struct {
	model    *Model
	keys     []byte
	encoders []byte
}

func newInputState(m *Model) *inputState {
	return &inputState{
		model:    m,
		keys:     make([]byte, m.Keys),
		encoders: make([]byte, m.Encoders),
	}
}

func (s *inputState) decode(buf []byte) []InputEvent {
	if len(buf) < 4 {
		return nil
	}
	var out []InputEvent
	switch buf[0] {
	case 0x00:
		const keyStart = 3
		for i := range s.model.Keys {
			if keyStart+i >= len(buf) {
				break
			}
			st := buf[keyStart+i]
			if st != s.keys[i] {
				out = append(out, InputEvent{Key: &KeyEvent{Key: i, Pressed: st > 0}})
				s.keys[i] = st
			}
		}
	case 0x03:
		if s.model.Encoders == 0 || len(buf) < 4+s.model.Encoders {
			return nil
		}
		switch buf[3] {
		case 0x00:
			for i := range s.model.Encoders {
				st := buf[4+i]
				if st != s.encoders[i] {
					out = append(out, InputEvent{Encoder: &EncoderEvent{Encoder: i, Pressed: st > 0}})
					s.encoders[i] = st
				}
			}
		case 0x01:
			for i := range s.model.Encoders {
				if delta := int(int8(buf[4+i])); delta != 0 {
					out = append(out, InputEvent{Encoder: &EncoderEvent{Encoder: i, Delta: delta}})
				}
			}
		}
	}
	return out
}

// ReadInput sends key and encoder events to ch until ctx is done or the
// device fails.
func (d *Device) ReadInput(ctx context.Context, ch chan<- InputEvent) error {
	st := newInputState(d.model)
	for {
		_, buf, err := d.dev.GetInputReport()
		if err != nil {
			return err
		}
		for _, ev := range st.decode(buf) {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
