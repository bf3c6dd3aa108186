// Package registry tracks the fixtures the commander knows about.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrInvalidDevice = errors.New("registry: invalid device")

type Protocol string

const (
	// Native devices speak the spotlight effect API.
	Native Protocol = "native"
	// Segment devices speak a segment-state JSON API.
	Segment Protocol = "segment"
)

func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(s)) {
	case "", Native:
		return Native, nil
	case Segment:
		return Segment, nil
	}
	return "", fmt.Errorf("%w: unknown protocol %q", ErrInvalidDevice, s)
}

type Liveness int

const (
	Unknown Liveness = iota
	Online
	Offline
)

func (l Liveness) String() string {
	switch l {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

func (l Liveness) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Liveness) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "online":
		*l = Online
	case "offline":
		*l = Offline
	default:
		*l = Unknown
	}
	return nil
}

type Device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"ip"`
	Protocol    Protocol  `json:"protocol"`
	Liveness    Liveness  `json:"status"`
	LastSeen    time.Time `json:"lastSeen,omitzero"`
	InnerPixels int       `json:"innerLeds"`
	OuterPixels int       `json:"outerLeds"`
}

func (d Device) Online() bool { return d.Liveness == Online }

// MarshalJSON adds the boolean "online" alongside the tri-state status.
func (d Device) MarshalJSON() ([]byte, error) {
	type device Device
	return json.Marshal(struct {
		device
		Online bool `json:"online"`
	}{device(d), d.Online()})
}

func (d Device) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidDevice)
	}
	if d.InnerPixels < 0 || d.OuterPixels < 0 {
		return fmt.Errorf("%w: negative pixel count", ErrInvalidDevice)
	}
	return nil
}

// Registry is not synchronized; the commander serializes access.
type Registry struct {
	devices map[string]Device
}

func New() *Registry {
	return &Registry{devices: map[string]Device{}}
}

// Add stores d, replacing any device with the same id. Liveness starts
// unknown until the next probe.
func (r *Registry) Add(d Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Protocol == "" {
		d.Protocol = Native
	}
	d.Liveness = Unknown
	d.LastSeen = time.Time{}
	r.devices[d.ID] = d
	return nil
}

// Restore stores d as is, keeping its liveness and last-seen time.
func (r *Registry) Restore(d Device) {
	r.devices[d.ID] = d
}

func (r *Registry) Remove(id string) bool {
	_, ok := r.devices[id]
	delete(r.devices, id)
	return ok
}

func (r *Registry) Get(id string) (Device, bool) {
	d, ok := r.devices[id]
	return d, ok
}

func (r *Registry) Len() int { return len(r.devices) }

// List returns all devices ordered by id.
func (r *Registry) List() []Device {
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Device) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) MarkOnline(id string, now time.Time) {
	d, ok := r.devices[id]
	if !ok {
		return
	}
	d.Liveness = Online
	d.LastSeen = now
	r.devices[id] = d
}

func (r *Registry) MarkOffline(id string) {
	d, ok := r.devices[id]
	if !ok {
		return
	}
	d.Liveness = Offline
	r.devices[id] = d
}
