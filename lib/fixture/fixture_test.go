package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/rgb"
)

var t0 = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

type recordStrip struct {
	frames int
	inner  []rgb.Color
	outer  []rgb.Color
}

func (s *recordStrip) Show(inner, outer []rgb.Color) error {
	s.frames++
	s.inner = append(s.inner[:0], inner...)
	s.outer = append(s.outer[:0], outer...)
	return nil
}

func setupTest(t *testing.T) (*Fixture, *httptest.Server) {
	t.Helper()
	f := New("spot1", DefaultInnerPixels, DefaultOuterPixels, nil)
	f.Now = func() time.Time { return t0 }
	srv := httptest.NewServer(f.Handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func assertSolid(t *testing.T, buf []rgb.Color, want rgb.Color) {
	t.Helper()
	if len(buf) == 0 {
		t.Fatal("empty buffer")
	}
	for i, c := range buf {
		if c != want {
			t.Fatalf("pixel %d: got %v, want %v", i, c, want)
		}
	}
}

func TestEffectStaticInner(t *testing.T) {
	f, srv := setupTest(t)

	code, out := post(t, srv.URL+"/effect", `{"ring":"inner","effect":"static","color":[255,0,0],"brightness":128}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200", code)
	}
	if out["success"] != true {
		t.Errorf("got %v, want success", out)
	}

	if err := f.Tick(t0.Add(16 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	assertSolid(t, f.Pixels(effect.Inner), rgb.Color{R: 128})
	assertSolid(t, f.Pixels(effect.Outer), rgb.Black)
}

func TestEffectBadBody(t *testing.T) {
	_, srv := setupTest(t)

	tests := []struct {
		body string
		want string
	}{
		{"", "No body"},
		{"{not json", "Invalid JSON"},
		{`{"color":"red"}`, "Invalid JSON"},
	}
	for _, tc := range tests {
		code, out := post(t, srv.URL+"/effect", tc.body)
		if code != http.StatusBadRequest {
			t.Errorf("%q: got status %d, want 400", tc.body, code)
		}
		if out["error"] != tc.want {
			t.Errorf("%q: got %v, want %q", tc.body, out["error"], tc.want)
		}
	}
}

func TestOversizedBody(t *testing.T) {
	f, _ := setupTest(t)
	body := `{"color":[1,2,3],"pad":"` + strings.Repeat("x", maxBody) + `"}`

	for _, path := range []string{"/effect", "/stop"} {
		w := httptest.NewRecorder()
		f.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("%s: got status %d, want 413", path, w.Code)
		}
		var out map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if out["error"] != "Body too large" {
			t.Errorf("%s: got %v, want %q", path, out["error"], "Body too large")
		}
	}
}

func TestEffectWrongMethod(t *testing.T) {
	_, srv := setupTest(t)
	resp, err := http.Get(srv.URL + "/effect")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want 405", resp.StatusCode)
	}
}

func TestStop(t *testing.T) {
	f, srv := setupTest(t)
	f.Apply(effect.Effect{Ring: effect.Both, Color: rgb.White, Brightness: 255}, t0)
	f.Tick(t0)

	code, _ := post(t, srv.URL+"/stop", `{"ring":"outer"}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200", code)
	}
	f.Tick(t0.Add(time.Second))
	assertSolid(t, f.Pixels(effect.Outer), rgb.Black)
	assertSolid(t, f.Pixels(effect.Inner), rgb.White)

	code, _ = post(t, srv.URL+"/stop", "")
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200", code)
	}
	f.Tick(t0.Add(2 * time.Second))
	assertSolid(t, f.Pixels(effect.Inner), rgb.Black)

	code, out := post(t, srv.URL+"/stop", "{")
	if code != http.StatusBadRequest || out["error"] != "Invalid JSON" {
		t.Errorf("got %d %v, want 400 Invalid JSON", code, out)
	}
}

func TestStatus(t *testing.T) {
	f, srv := setupTest(t)
	f.Apply(effect.Effect{Ring: effect.Outer, Brightness: 255, Params: effect.Rotation{RotationParams: effect.DefaultRotation()}}, t0)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.ID != "spot1" {
		t.Errorf("got id %q, want %q", st.ID, "spot1")
	}
	if st.IP != "127.0.0.1" {
		t.Errorf("got ip %q, want %q", st.IP, "127.0.0.1")
	}
	if st.Inner.Active || st.Inner.Effect != "off" {
		t.Errorf("got inner %+v, want off", st.Inner)
	}
	if !st.Outer.Active || st.Outer.Effect != "rotation" {
		t.Errorf("got outer %+v, want rotation", st.Outer)
	}
}

func TestRoot(t *testing.T) {
	_, srv := setupTest(t)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "LED Spotlight: spot1") {
		t.Errorf("got %q, want the fixture id in the page", buf.String())
	}
}

func TestFadeEndsOnTarget(t *testing.T) {
	strip := &recordStrip{}
	f := New("spot2", 4, 6, strip)
	f.Apply(effect.Effect{
		Ring:       effect.Both,
		Color:      rgb.Red,
		Brightness: 100,
		Params:     effect.Fade{To: rgb.Blue, Duration: 200 * time.Millisecond},
	}, t0)

	for ms := 0; ms <= 200; ms += 16 {
		f.Tick(t0.Add(time.Duration(ms) * time.Millisecond))
	}
	f.Tick(t0.Add(250 * time.Millisecond))

	assertSolid(t, strip.inner, rgb.Blue)
	assertSolid(t, strip.outer, rgb.Blue)
	if st := f.Status(t0); st.Inner.Active || st.Outer.Active {
		t.Errorf("got %+v, want both rings idle", st)
	}
}

func TestStartup(t *testing.T) {
	strip := &recordStrip{}
	f := New("spot3", 3, 5, strip)
	if err := f.Startup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if strip.frames != 4 {
		t.Errorf("got %d frames, want 4", strip.frames)
	}
	assertSolid(t, strip.inner, rgb.Black)
}

func TestTermStripSkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	s := NewTermStrip(&buf)
	frame := []rgb.Color{rgb.Red, rgb.Blue}

	s.Show(frame, frame)
	n := buf.Len()
	if n == 0 {
		t.Fatal("nothing written")
	}
	s.Show(frame, frame)
	if buf.Len() != n {
		t.Error("identical frame redrawn")
	}
	s.Show(frame[:1], frame)
	if buf.Len() == n {
		t.Error("changed frame not drawn")
	}
}
