package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"spotlight/lib/effect"
	"spotlight/lib/registry"
)

// Transport carries commands to one family of device.
type Transport interface {
	Send(ctx context.Context, d registry.Device, e effect.Effect) error
	Stop(ctx context.Context, d registry.Device, side effect.Ring) error
	Status(ctx context.Context, d registry.Device) error
}

// NativeTransport speaks the spotlight fixture API.
type NativeTransport struct {
	Client *http.Client
}

func (t NativeTransport) Send(ctx context.Context, d registry.Device, e effect.Effect) error {
	return postJSON(ctx, t.Client, baseURL(d)+"/effect", effect.Encode(e))
}

func (t NativeTransport) Stop(ctx context.Context, d registry.Device, side effect.Ring) error {
	return postJSON(ctx, t.Client, baseURL(d)+"/stop", map[string]string{"ring": side.String()})
}

func (t NativeTransport) Status(ctx context.Context, d registry.Device) error {
	return get(ctx, t.Client, baseURL(d)+"/status")
}

func baseURL(d registry.Device) string {
	addr := strings.TrimSuffix(d.Address, "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

func clientOr(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func postJSON(ctx context.Context, c *http.Client, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", url, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(c, req)
}

func get(ctx context.Context, c *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(c, req)
}

func do(c *http.Client, req *http.Request) error {
	resp, err := clientOr(c).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
