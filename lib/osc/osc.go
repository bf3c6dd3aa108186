// Package osc encodes and decodes OSC 1.0 messages and serves them over UDP.
package osc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrMalformed = errors.New("osc: malformed message")

type Message struct {
	Address string
	Args    []any
}

func (m Message) String() string {
	if len(m.Args) == 0 {
		return m.Address
	}
	return fmt.Sprintf("%s %v", m.Address, m.Args)
}

// Number returns argument i as a float64 for any numeric OSC type.
func (m Message) Number(i int) (float64, bool) {
	if i >= len(m.Args) {
		return 0, false
	}
	switch v := m.Args[i].(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (m Message) Text(i int) (string, bool) {
	if i >= len(m.Args) {
		return "", false
	}
	s, ok := m.Args[i].(string)
	return s, ok
}

func pad(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for range pad(len(s) + 1) {
		buf = append(buf, 0)
	}
	return buf
}

// Encode renders m. Supported argument types are int32, float32, string,
// []byte, int64, float64 and bool; any other type is an error.
func Encode(m Message) ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return nil, fmt.Errorf("%w: address %q", ErrMalformed, m.Address)
	}

	var tags strings.Builder
	tags.WriteByte(',')
	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			tags.WriteByte('i')
		case float32:
			tags.WriteByte('f')
		case string:
			tags.WriteByte('s')
		case []byte:
			tags.WriteByte('b')
		case int64:
			tags.WriteByte('h')
		case float64:
			tags.WriteByte('d')
		case bool:
			if v {
				tags.WriteByte('T')
			} else {
				tags.WriteByte('F')
			}
		default:
			return nil, fmt.Errorf("osc: unsupported argument %T", arg)
		}
	}

	buf := appendString(nil, m.Address)
	buf = appendString(buf, tags.String())
	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			for range pad(len(v)) {
				buf = append(buf, 0)
			}
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf, nil
}

func readString(data []byte, pos int) (string, int, error) {
	end := pos
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return "", 0, fmt.Errorf("%w: unterminated string", ErrMalformed)
	}
	return string(data[pos:end]), end + 1 + pad(end-pos+1), nil
}

// Parse decodes one message. Bundles are not supported.
func Parse(data []byte) (Message, error) {
	if len(data) < 4 || data[0] != '/' {
		return Message{}, fmt.Errorf("%w: not a message", ErrMalformed)
	}
	addr, pos, err := readString(data, 0)
	if err != nil {
		return Message{}, err
	}
	m := Message{Address: addr}
	if pos >= len(data) || data[pos] != ',' {
		return m, nil
	}
	tags, pos, err := readString(data, pos)
	if err != nil {
		return m, err
	}

	need := func(n int, what string) error {
		if pos+n > len(data) {
			return fmt.Errorf("%w: truncated %s", ErrMalformed, what)
		}
		return nil
	}
	for _, t := range tags[1:] {
		switch t {
		case 'i':
			if err := need(4, "int32"); err != nil {
				return m, err
			}
			m.Args = append(m.Args, int32(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case 'f':
			if err := need(4, "float32"); err != nil {
				return m, err
			}
			m.Args = append(m.Args, math.Float32frombits(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case 's':
			var s string
			if s, pos, err = readString(data, pos); err != nil {
				return m, err
			}
			m.Args = append(m.Args, s)
		case 'b':
			if err := need(4, "blob size"); err != nil {
				return m, err
			}
			size := int(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
			if err := need(size, "blob"); err != nil {
				return m, err
			}
			m.Args = append(m.Args, append([]byte(nil), data[pos:pos+size]...))
			pos += size + pad(size)
		case 'h':
			if err := need(8, "int64"); err != nil {
				return m, err
			}
			m.Args = append(m.Args, int64(binary.BigEndian.Uint64(data[pos:])))
			pos += 8
		case 'd':
			if err := need(8, "float64"); err != nil {
				return m, err
			}
			m.Args = append(m.Args, math.Float64frombits(binary.BigEndian.Uint64(data[pos:])))
			pos += 8
		case 'T':
			m.Args = append(m.Args, true)
		case 'F':
			m.Args = append(m.Args, false)
		case 'N':
			m.Args = append(m.Args, nil)
		default:
			return m, fmt.Errorf("%w: unknown type tag %q", ErrMalformed, t)
		}
	}
	return m, nil
}
