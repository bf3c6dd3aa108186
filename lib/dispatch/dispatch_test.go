package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spotlight/lib/effect"
	"spotlight/lib/registry"
	"spotlight/lib/rgb"
)

type request struct {
	Method string
	Path   string
	Body   string
}

// mockDevice records every request it receives.
type mockDevice struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []request
	status   int
	delay    time.Duration
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()
	m := &mockDevice{status: http.StatusOK}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, request{r.Method, r.URL.Path, string(body)})
		status, delay := m.status, m.delay
		m.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockDevice) addr() string {
	return strings.TrimPrefix(m.srv.URL, "http://")
}

func (m *mockDevice) received() []request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]request(nil), m.requests...)
}

func setupTest(t *testing.T) (*Dispatcher, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	return New(reg, nil), reg
}

func addDevice(t *testing.T, reg *registry.Registry, id string, m *mockDevice, proto registry.Protocol) {
	t.Helper()
	if err := reg.Add(registry.Device{ID: id, Address: m.addr(), Protocol: proto}); err != nil {
		t.Fatal(err)
	}
}

var redInner = effect.Effect{Ring: effect.Inner, Color: rgb.Red, Brightness: 255, Params: effect.Static{}}

func TestSendPartialFailure(t *testing.T) {
	d, reg := setupTest(t)
	a := newMockDevice(t)
	addDevice(t, reg, "A", a, registry.Native)

	err := d.Send(context.Background(), []string{"A", "B"}, redInner)
	if err == nil {
		t.Fatal("got nil, want failure for B")
	}
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("got %v, want ErrUnknownDevice", err)
	}
	var te *TargetError
	if !errors.As(err, &te) || te.ID != "B" {
		t.Errorf("got %v, want TargetError for B", err)
	}

	got := a.received()
	if len(got) != 1 || got[0].Path != "/effect" || got[0].Method != http.MethodPost {
		t.Fatalf("got %+v, want one POST /effect", got)
	}
	var cmd effect.Command
	if err := json.Unmarshal([]byte(got[0].Body), &cmd); err != nil {
		t.Fatal(err)
	}
	if e := cmd.Decode(); e.Ring != effect.Inner || e.Color != rgb.Red {
		t.Errorf("got %s, want inner red", e)
	}

	dev, _ := reg.Get("A")
	if !dev.Online() {
		t.Errorf("got %s, want A online", dev.Liveness)
	}
}

func TestSendAllSucceed(t *testing.T) {
	d, reg := setupTest(t)
	ids := []string{"s1", "s2", "s3", "s4"}
	devs := map[string]*mockDevice{}
	for _, id := range ids {
		devs[id] = newMockDevice(t)
		addDevice(t, reg, id, devs[id], registry.Native)
	}
	d.Fanout = 2

	if err := d.Send(context.Background(), ids, redInner); err != nil {
		t.Fatal(err)
	}
	for id, m := range devs {
		if n := len(m.received()); n != 1 {
			t.Errorf("%s: got %d requests, want 1", id, n)
		}
	}
}

func TestSendTransportFailureMarksOffline(t *testing.T) {
	d, reg := setupTest(t)
	bad := newMockDevice(t)
	bad.status = http.StatusInternalServerError
	addDevice(t, reg, "bad", bad, registry.Native)

	err := d.Send(context.Background(), []string{"bad"}, redInner)
	if err == nil {
		t.Fatal("got nil, want error")
	}
	if errors.Is(err, ErrUnknownDevice) {
		t.Errorf("got %v, want a transport error", err)
	}
	dev, _ := reg.Get("bad")
	if dev.Liveness != registry.Offline {
		t.Errorf("got %s, want offline", dev.Liveness)
	}
}

func TestSendTimeout(t *testing.T) {
	d, reg := setupTest(t)
	slow := newMockDevice(t)
	slow.delay = 300 * time.Millisecond
	addDevice(t, reg, "slow", slow, registry.Native)
	d.Timeout = 20 * time.Millisecond

	start := time.Now()
	if err := d.Send(context.Background(), []string{"slow"}, redInner); err == nil {
		t.Fatal("got nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("send took %v, want it bounded by the timeout", elapsed)
	}
}

func TestMasterScalesBrightness(t *testing.T) {
	d, reg := setupTest(t)
	m := newMockDevice(t)
	addDevice(t, reg, "A", m, registry.Native)
	d.SetMaster(128)

	if err := d.Send(context.Background(), []string{"A"}, redInner); err != nil {
		t.Fatal(err)
	}
	var cmd effect.Command
	json.Unmarshal([]byte(m.received()[0].Body), &cmd)
	if e := cmd.Decode(); e.Brightness != 128 {
		t.Errorf("got brightness %d, want 128", e.Brightness)
	}
}

func TestStop(t *testing.T) {
	d, reg := setupTest(t)
	a, b := newMockDevice(t), newMockDevice(t)
	addDevice(t, reg, "A", a, registry.Native)
	addDevice(t, reg, "B", b, registry.Native)

	if err := d.Stop(context.Background(), []string{"A"}, effect.Outer); err != nil {
		t.Fatal(err)
	}
	got := a.received()
	if len(got) != 1 || got[0].Path != "/stop" || !strings.Contains(got[0].Body, `"outer"`) {
		t.Errorf("got %+v, want POST /stop outer", got)
	}

	if err := d.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(a.received()) != 2 || len(b.received()) != 1 {
		t.Errorf("got %d and %d requests, want 2 and 1", len(a.received()), len(b.received()))
	}
}

func TestSegmentTransport(t *testing.T) {
	d, reg := setupTest(t)
	m := newMockDevice(t)
	addDevice(t, reg, "strip", m, registry.Segment)

	e := effect.Effect{
		Ring:       effect.Both,
		Color:      rgb.Red,
		Brightness: 200,
		Params:     effect.Fade{To: rgb.Blue, Duration: time.Second},
	}
	if err := d.Send(context.Background(), []string{"strip"}, e); err != nil {
		t.Fatal(err)
	}
	got := m.received()
	if len(got) != 1 || got[0].Path != "/json/state" {
		t.Fatalf("got %+v, want POST /json/state", got)
	}
	var st SegmentState
	if err := json.Unmarshal([]byte(got[0].Body), &st); err != nil {
		t.Fatal(err)
	}
	if st.Brightness == nil || *st.Brightness != 200 {
		t.Errorf("got bri %v, want 200", st.Brightness)
	}
	if len(st.Segments) != 2 || st.Segments[0].ID != 0 || st.Segments[1].ID != 1 {
		t.Fatalf("got %+v, want segments 0 and 1", st.Segments)
	}
	seg := st.Segments[1]
	if *seg.Effect != segmentFX[effect.KindFade] {
		t.Errorf("got fx %d, want %d", *seg.Effect, segmentFX[effect.KindFade])
	}
	if seg.Colors[0] != [3]uint8{255, 0, 0} || seg.Colors[1] != [3]uint8{0, 0, 255} {
		t.Errorf("got colors %v", seg.Colors)
	}

	if err := d.Stop(context.Background(), []string{"strip"}, effect.Inner); err != nil {
		t.Fatal(err)
	}
	stop := m.received()[1]
	if stop.Body != `{"seg":[{"id":0,"on":false}]}` {
		t.Errorf("got %s", stop.Body)
	}
}

func TestProbe(t *testing.T) {
	d, reg := setupTest(t)
	m := newMockDevice(t)
	addDevice(t, reg, "A", m, registry.Native)
	dev, _ := reg.Get("A")

	if err := d.Probe(context.Background(), dev); err != nil {
		t.Fatal(err)
	}
	if got := m.received(); got[0].Method != http.MethodGet || got[0].Path != "/status" {
		t.Errorf("got %+v, want GET /status", got[0])
	}
	if dev, _ := reg.Get("A"); dev.Liveness != registry.Unknown {
		t.Errorf("probe changed liveness to %s", dev.Liveness)
	}
}
