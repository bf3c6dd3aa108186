// Package client talks to the commander's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spotlight/lib/dispatch"
	"spotlight/lib/effect"
	"spotlight/lib/registry"
	"spotlight/lib/sequence"
)

// DefaultTimeout outlasts the commander's own per-device dispatch timeout,
// so a slow fixture shows up as a dispatch error rather than a client one.
const DefaultTimeout = dispatch.DefaultTimeout + 5*time.Second

type Status struct {
	Uptime   int64                   `json:"uptime"`
	IP       string                  `json:"ip"`
	Master   uint8                   `json:"master"`
	Playback sequence.PlaybackStatus `json:"playback"`
	Devices  []registry.Device       `json:"devices"`
}

// APIError is a non-2xx reply from the commander.
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Path, e.Code, e.Message)
}

type Client struct {
	base string
	http *http.Client
}

func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, DefaultTimeout)
}

// NewWithTimeout caps each request at timeout, or DefaultTimeout when
// timeout is not positive.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.call(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

func (c *Client) Devices(ctx context.Context) ([]registry.Device, error) {
	var devs []registry.Device
	err := c.call(ctx, http.MethodGet, "/api/spotlight/list", nil, &devs)
	return devs, err
}

func (c *Client) AddDevice(ctx context.Context, d registry.Device) error {
	return c.call(ctx, http.MethodPost, "/api/spotlight/add", map[string]any{
		"id":        d.ID,
		"name":      d.Name,
		"ip":        d.Address,
		"protocol":  d.Protocol,
		"innerLeds": d.InnerPixels,
		"outerLeds": d.OuterPixels,
	}, nil)
}

func (c *Client) Sequences(ctx context.Context) ([]sequence.Summary, error) {
	var seqs []sequence.Summary
	err := c.call(ctx, http.MethodGet, "/api/sequence/list", nil, &seqs)
	return seqs, err
}

func (c *Client) LoadSequence(ctx context.Context, seq sequence.Sequence) error {
	return c.call(ctx, http.MethodPost, "/api/sequence/load", seq, nil)
}

func (c *Client) Play(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/api/sequence/play", map[string]string{"sequenceId": id}, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/sequence/pause", struct{}{}, nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/sequence/resume", struct{}{}, nil)
}

func (c *Client) StopSequence(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/sequence/stop", struct{}{}, nil)
}

func (c *Client) SendEffect(ctx context.Context, targets []string, e effect.Effect) error {
	return c.call(ctx, http.MethodPost, "/api/effect/send", struct {
		Targets []string `json:"targets"`
		effect.Command
	}{targets, effect.Encode(e)}, nil)
}

func (c *Client) StopEffect(ctx context.Context, targets []string, side effect.Ring) error {
	return c.call(ctx, http.MethodPost, "/api/effect/stop", map[string]any{
		"targets": targets,
		"ring":    side.String(),
	}, nil)
}

func (c *Client) Blackout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/blackout", struct{}{}, nil)
}

func (c *Client) SetMaster(ctx context.Context, level int) error {
	return c.call(ctx, http.MethodPost, "/api/master", map[string]int{"level": level}, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Path: path, Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}
