package streamdeck

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestKeyImageReports(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 2500)
	reports := keyImageReports(5, data, 1024)
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}

	var joined []byte
	for i, r := range reports {
		if len(r) != 1024 {
			t.Errorf("report %d: got %d bytes, want 1024", i, len(r))
		}
		if r[0] != 0x02 || r[1] != 0x07 || r[2] != 5 {
			t.Errorf("report %d: got header % x", i, r[:3])
		}
		if int(r[6])|int(r[7])<<8 != i {
			t.Errorf("report %d: got page %d", i, int(r[6])|int(r[7])<<8)
		}
		n := int(r[4]) | int(r[5])<<8
		joined = append(joined, r[8:8+n]...)
		if last := r[3] == 1; last != (i == 2) {
			t.Errorf("report %d: got last=%v", i, last)
		}
	}
	if !bytes.Equal(joined, data) {
		t.Error("payload does not reassemble")
	}
}

func TestEncodeKeyImage(t *testing.T) {
	img := TextImage(ModelXL.KeySize, color.Black, color.White, "PLAY")
	data, err := encodeKeyImage(&ModelXL, img)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 96 || b.Dy() != 96 {
		t.Errorf("got %v, want 96x96", b)
	}
}

func TestDecodeKeys(t *testing.T) {
	st := newInputState(&ModelPlus)
	buf := make([]byte, 16)
	buf[3+2] = 1

	evs := st.decode(buf)
	if len(evs) != 1 || evs[0].Key == nil || evs[0].Key.Key != 2 || !evs[0].Key.Pressed {
		t.Fatalf("got %+v, want key 2 pressed", evs)
	}
	if evs := st.decode(buf); len(evs) != 0 {
		t.Errorf("repeat state: got %d events, want 0", len(evs))
	}
	buf[3+2] = 0
	evs = st.decode(buf)
	if len(evs) != 1 || evs[0].Key.Pressed {
		t.Errorf("got %+v, want key 2 released", evs)
	}
}

func TestDecodeEncoders(t *testing.T) {
	st := newInputState(&ModelPlus)
	buf := []byte{0x03, 0, 0, 0x01, 0, 0xFE, 0, 3}

	evs := st.decode(buf)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if e := evs[0].Encoder; e.Encoder != 1 || e.Delta != -2 {
		t.Errorf("got %+v, want encoder 1 -2", e)
	}
	if e := evs[1].Encoder; e.Encoder != 3 || e.Delta != 3 {
		t.Errorf("got %+v, want encoder 3 +3", e)
	}

	if evs := newInputState(&ModelXL).decode(buf); len(evs) != 0 {
		t.Errorf("XL has no encoders, got %+v", evs)
	}
}
