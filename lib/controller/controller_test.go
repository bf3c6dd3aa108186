package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/fixture"
	"spotlight/lib/registry"
	"spotlight/lib/rgb"
	"spotlight/lib/sequence"
	"spotlight/lib/store"
)

var t0 = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

type testRig struct {
	c   *Commander
	srv *httptest.Server

	mu  sync.Mutex
	now time.Time
}

func (rig *testRig) setNow(now time.Time) {
	rig.mu.Lock()
	defer rig.mu.Unlock()
	rig.now = now
}

func setupTest(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{now: t0}
	rig.c = New(Options{DispatchTimeout: time.Second, ProbeTimeout: time.Second})
	rig.c.Now = func() time.Time {
		rig.mu.Lock()
		defer rig.mu.Unlock()
		return rig.now
	}
	rig.srv = httptest.NewServer(rig.c.Handler())
	t.Cleanup(rig.srv.Close)
	t.Cleanup(rig.c.Wait)
	return rig
}

// addFixture starts a real fixture behind httptest and registers it.
func (rig *testRig) addFixture(t *testing.T, id string) *fixture.Fixture {
	t.Helper()
	f := fixture.New(id, fixture.DefaultInnerPixels, fixture.DefaultOuterPixels, nil)
	f.Now = func() time.Time { return t0 }
	fs := httptest.NewServer(f.Handler())
	t.Cleanup(fs.Close)

	body := `{"id":"` + id + `","name":"` + id + `","ip":"` + strings.TrimPrefix(fs.URL, "http://") + `"}`
	if code, out := rig.post(t, "/api/spotlight/add", body); code != http.StatusOK {
		t.Fatalf("add %s: got %d %v", id, code, out)
	}
	rig.c.Wait()
	return f
}

func (rig *testRig) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(rig.srv.URL+path, "application/json", strings.NewReader(body))
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

func (rig *testRig) get(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(rig.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: got %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func assertSolid(t *testing.T, buf []rgb.Color, want rgb.Color) {
	t.Helper()
	for i, c := range buf {
		if c != want {
			t.Fatalf("pixel %d: got %v, want %v", i, c, want)
		}
	}
}

func TestSendEffectToFixture(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")

	code, out := rig.post(t, "/api/effect/send",
		`{"targets":["spot1"],"ring":"inner","effect":"static","color":[255,0,0],"brightness":128}`)
	if code != http.StatusOK || out["success"] != true {
		t.Fatalf("got %d %v, want 200 success", code, out)
	}

	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Inner), rgb.Color{R: 128})
	assertSolid(t, f.Pixels(effect.Outer), rgb.Black)
}

func TestSendPartialFailure(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")

	code, out := rig.post(t, "/api/effect/send",
		`{"targets":["spot1","ghost"],"effect":"static","color":[0,0,255]}`)
	if code != http.StatusInternalServerError || out["error"] != "Failed to send effect" {
		t.Fatalf("got %d %v, want 500 failure", code, out)
	}

	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Both), rgb.Blue)
}

func TestSendNoTargets(t *testing.T) {
	rig := setupTest(t)
	code, out := rig.post(t, "/api/effect/send", `{"targets":[],"effect":"static"}`)
	if code != http.StatusOK || out["success"] != true {
		t.Errorf("got %d %v, want 200 success", code, out)
	}
}

func TestStopEffect(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")
	f.Apply(effect.Effect{Ring: effect.Both, Color: rgb.Green, Brightness: 255, Params: effect.Static{}}, t0)

	code, _ := rig.post(t, "/api/effect/stop", `{"targets":["spot1"],"ring":"outer"}`)
	if code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	f.Tick(t0)
	st := f.Status(t0)
	if !st.Inner.Active || st.Outer.Active {
		t.Errorf("got %+v, want inner active and outer stopped", st)
	}
}

func TestBadBodies(t *testing.T) {
	rig := setupTest(t)
	tests := []struct {
		path string
		body string
		want string
	}{
		{"/api/effect/send", "", "No body"},
		{"/api/effect/send", "{", "Invalid JSON"},
		{"/api/effect/stop", "[1,", "Invalid JSON"},
		{"/api/spotlight/add", "", "No body"},
		{"/api/spotlight/add", `{"id":"spot1"}`, "Failed to add spotlight"},
		{"/api/spotlight/add", `{"id":"spot1","ip":"10.0.0.5","protocol":"dmx"}`, "registry: invalid device: unknown protocol \"dmx\""},
		{"/api/sequence/load", "not json", "Invalid JSON"},
		{"/api/sequence/load", `{"id":"x","events":[{"timestamp":500},{"timestamp":100}]}`, "Failed to load sequence"},
		{"/api/sequence/play", "", "No body"},
		{"/api/master", `{}`, "Missing level"},
	}
	for _, tc := range tests {
		code, out := rig.post(t, tc.path, tc.body)
		if code != http.StatusBadRequest || out["error"] != tc.want {
			t.Errorf("%s %q: got %d %v, want 400 %q", tc.path, tc.body, code, out, tc.want)
		}
	}
}

func TestOversizedBody(t *testing.T) {
	rig := setupTest(t)
	body := `{"id":"x","name":"` + strings.Repeat("x", maxBody) + `"}`

	w := httptest.NewRecorder()
	rig.c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sequence/load", strings.NewReader(body)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want 413", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Body too large") {
		t.Errorf("got %q, want Body too large", w.Body.String())
	}
}

func TestAddProbesDevice(t *testing.T) {
	rig := setupTest(t)
	rig.addFixture(t, "spot1")

	var list []map[string]any
	rig.get(t, "/api/spotlight/list", &list)
	if len(list) != 1 {
		t.Fatalf("got %d spotlights, want 1", len(list))
	}
	if list[0]["id"] != "spot1" || list[0]["online"] != true || list[0]["status"] != "online" {
		t.Errorf("got %v, want spot1 online", list[0])
	}

	d, _ := rig.c.Device("spot1")
	if d.InnerPixels != DefaultInnerPixels || d.OuterPixels != DefaultOuterPixels {
		t.Errorf("got %d/%d pixels, want defaults", d.InnerPixels, d.OuterPixels)
	}
}

func TestAddUnreachableIsOffline(t *testing.T) {
	rig := setupTest(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	code, _ := rig.post(t, "/api/spotlight/add", `{"id":"spot9","ip":"`+addr+`"}`)
	if code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	rig.c.Wait()
	d, ok := rig.c.Device("spot9")
	if !ok || d.Liveness != registry.Offline {
		t.Errorf("got %+v, want registered and offline", d)
	}
}

func TestStaleProbeIgnoredAfterReadd(t *testing.T) {
	rig := setupTest(t)
	rig.addFixture(t, "spot1")
	before, _ := rig.c.Device("spot1")

	dead := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()
	if err := rig.c.AddDevice(context.Background(), registry.Device{ID: "spot1", Address: addr}); err != nil {
		t.Fatal(err)
	}
	rig.c.Wait()

	// A health round that started before the re-add still holds the old
	// address, which answers.
	rig.c.probe(context.Background(), []registry.Device{before})

	d, _ := rig.c.Device("spot1")
	if d.Address != addr || d.Liveness != registry.Offline {
		t.Errorf("got %s %s, want %s offline", d.Address, d.Liveness, addr)
	}
}

func TestRemoveSpotlight(t *testing.T) {
	rig := setupTest(t)
	rig.addFixture(t, "spot1")

	if code, _ := rig.post(t, "/api/spotlight/remove", `{"id":"spot1"}`); code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	if code, out := rig.post(t, "/api/spotlight/remove", `{"id":"spot1"}`); code != http.StatusNotFound {
		t.Errorf("got %d %v, want 404", code, out)
	}
	if len(rig.c.Devices()) != 0 {
		t.Error("spot1 still registered")
	}
}

const showJSON = `{
	"id": "intro",
	"name": "Intro",
	"duration": 2000,
	"events": [
		{"timestamp": 0, "targets": ["spot1"], "ring": "outer", "effect": "static", "params": {"color": [0,255,0]}},
		{"timestamp": 1000, "targets": ["spot1"], "ring": "inner", "effect": "static", "params": {"color": [0,0,255]}}
	]
}`

func TestSequenceLifecycle(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")

	if code, out := rig.post(t, "/api/sequence/load", showJSON); code != http.StatusOK {
		t.Fatalf("load: got %d %v", code, out)
	}
	var seqs []sequence.Summary
	rig.get(t, "/api/sequence/list", &seqs)
	if len(seqs) != 1 || seqs[0].ID != "intro" || seqs[0].EventCount != 2 || seqs[0].Duration != 2000 {
		t.Fatalf("got %+v", seqs)
	}

	if code, out := rig.post(t, "/api/sequence/play", `{"sequenceId":"nope"}`); code != http.StatusInternalServerError || out["error"] != "Failed to play sequence" {
		t.Errorf("play unknown: got %d %v", code, out)
	}
	if code, _ := rig.post(t, "/api/sequence/play", `{"sequenceId":"intro"}`); code != http.StatusOK {
		t.Fatalf("play: got %d", code)
	}

	if n := rig.c.Tick(context.Background()); n != 1 {
		t.Fatalf("tick at 0: dispatched %d, want 1", n)
	}
	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Outer), rgb.Green)
	assertSolid(t, f.Pixels(effect.Inner), rgb.Black)

	rig.setNow(t0.Add(400 * time.Millisecond))
	if code, _ := rig.post(t, "/api/sequence/pause", ""); code != http.StatusOK {
		t.Fatalf("pause: got %d", code)
	}
	if code, out := rig.post(t, "/api/sequence/pause", ""); code != http.StatusInternalServerError || out["error"] != "Already paused" {
		t.Errorf("pause twice: got %d %v", code, out)
	}

	rig.setNow(t0.Add(5 * time.Second))
	if n := rig.c.Tick(context.Background()); n != 0 {
		t.Errorf("tick while paused dispatched %d", n)
	}
	var st struct {
		Playback sequence.PlaybackStatus `json:"playback"`
	}
	rig.get(t, "/api/status", &st)
	if !st.Playback.Active || !st.Playback.Paused || st.Playback.Position != 400 {
		t.Errorf("got %+v, want paused at 400", st.Playback)
	}

	if code, _ := rig.post(t, "/api/sequence/resume", ""); code != http.StatusOK {
		t.Fatalf("resume: got %d", code)
	}
	if code, out := rig.post(t, "/api/sequence/resume", ""); code != http.StatusInternalServerError || out["error"] != "Cannot resume" {
		t.Errorf("resume twice: got %d %v", code, out)
	}
	rig.setNow(t0.Add(5*time.Second + 600*time.Millisecond))
	if n := rig.c.Tick(context.Background()); n != 1 {
		t.Errorf("tick after resume dispatched %d, want 1", n)
	}

	if code, _ := rig.post(t, "/api/sequence/stop", ""); code != http.StatusOK {
		t.Fatalf("stop: got %d", code)
	}
	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Both), rgb.Black)
	if code, out := rig.post(t, "/api/sequence/stop", ""); code != http.StatusInternalServerError || out["error"] != "Not playing" {
		t.Errorf("stop twice: got %d %v", code, out)
	}
}

func TestDeleteSequence(t *testing.T) {
	rig := setupTest(t)
	rig.post(t, "/api/sequence/load", showJSON)

	if code, _ := rig.post(t, "/api/sequence/delete", `{"sequenceId":"intro"}`); code != http.StatusOK {
		t.Fatalf("got %d, want 200", code)
	}
	if code, _ := rig.post(t, "/api/sequence/delete", `{"sequenceId":"intro"}`); code != http.StatusNotFound {
		t.Errorf("got %d, want 404", code)
	}
}

func TestMaster(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")

	code, out := rig.post(t, "/api/master", `{"level":300}`)
	if code != http.StatusOK || out["master"] != float64(255) {
		t.Fatalf("got %d %v, want clamped 255", code, out)
	}
	rig.post(t, "/api/master", `{"level":0}`)
	rig.post(t, "/api/effect/send", `{"targets":["spot1"],"effect":"static","color":[255,255,255]}`)
	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Both), rgb.Black)

	if got := rig.c.Status().Master; got != 0 {
		t.Errorf("got master %d, want 0", got)
	}
}

func TestBlackout(t *testing.T) {
	rig := setupTest(t)
	f := rig.addFixture(t, "spot1")
	f.Apply(effect.Effect{Ring: effect.Both, Color: rgb.Red, Brightness: 255, Params: effect.Static{}}, t0)

	if code, out := rig.post(t, "/api/blackout", ""); code != http.StatusOK {
		t.Fatalf("got %d %v, want 200", code, out)
	}
	f.Tick(t0)
	assertSolid(t, f.Pixels(effect.Both), rgb.Black)
}

func TestRoot(t *testing.T) {
	rig := setupTest(t)
	rig.addFixture(t, "spot1")
	rig.post(t, "/api/sequence/load", showJSON)

	resp, err := http.Get(rig.srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Spotlight Commander", "spot1", "intro", "Stopped"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("root page missing %q", want)
		}
	}
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "commander.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	c := New(Options{Store: s, ProbeTimeout: 100 * time.Millisecond})
	if err := c.AddDevice(ctx, registry.Device{ID: "spot1", Address: "127.0.0.1:1"}); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	var seq sequence.Sequence
	if err := json.Unmarshal([]byte(showJSON), &seq); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadSequence(ctx, seq); err != nil {
		t.Fatal(err)
	}

	restored := New(Options{Store: s})
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	devs := restored.Devices()
	if len(devs) != 1 || devs[0].ID != "spot1" || devs[0].Liveness != registry.Unknown {
		t.Errorf("got %+v, want spot1 with unknown liveness", devs)
	}
	if seqs := restored.Sequences(); len(seqs) != 1 || seqs[0].ID != "intro" {
		t.Errorf("got %+v, want intro", seqs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
