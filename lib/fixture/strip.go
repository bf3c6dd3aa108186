package fixture

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"spotlight/lib/rgb"
)

// Strip is the physical output for both rings. Show must not retain the
// slices.
type Strip interface {
	Show(inner, outer []rgb.Color) error
}

type NopStrip struct{}

func (NopStrip) Show(inner, outer []rgb.Color) error { return nil }

// TermStrip draws the rings as a single line of 24-bit colored blocks,
// redrawing in place. Frames identical to the last one are skipped.
type TermStrip struct {
	mu   sync.Mutex
	w    *bufio.Writer
	last []rgb.Color
}

func NewTermStrip(w io.Writer) *TermStrip {
	return &TermStrip{w: bufio.NewWriter(w)}
}

func (s *TermStrip) Show(inner, outer []rgb.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := append(append(make([]rgb.Color, 0, len(inner)+len(outer)), inner...), outer...)
	if equalFrames(frame, s.last) {
		return nil
	}
	s.last = frame

	s.w.WriteString("\r")
	for i, c := range frame {
		if i == len(inner) {
			s.w.WriteString("\x1b[0m | ")
		}
		fmt.Fprintf(s.w, "\x1b[38;2;%d;%d;%dm█", c.R, c.G, c.B)
	}
	s.w.WriteString("\x1b[0m")
	return s.w.Flush()
}

func equalFrames(a, b []rgb.Color) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
