package osc

import (
	"context"
	"errors"
	"log"
	"net"
)

const maxPacket = 65535

// Handler is called once per decoded message, from the server's read loop.
type Handler func(ctx context.Context, m Message)

type Server struct {
	conn net.PacketConn
}

// Listen binds a UDP socket on addr.
func Listen(addr string) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{conn: conn}, nil
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve reads packets until ctx is done. Malformed packets are logged and
// dropped.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	buf := make([]byte, maxPacket)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		m, err := Parse(buf[:n])
		if err != nil {
			log.Printf("osc from %s: %v", from, err)
			continue
		}
		h(ctx, m)
	}
}

func (s *Server) Close() error { return s.conn.Close() }

// Send encodes m and writes it to addr over UDP.
func Send(addr string, m Message) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(buf)
	return err
}
