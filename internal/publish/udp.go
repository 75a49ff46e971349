// Package publish is the fan-out layer: a connectionless UDP sender and a
// TCP acceptor with per-client bounded queues that isolate slow or dead
// consumers from the tick loop and from each other.
package publish

import (
	"fmt"
	"net"
)

// UDPSender sends each line as an independent datagram to one destination.
// A destination of "0.0.0.0" or "" is silently normalised to "127.0.0.1" —
// an intentional asymmetry with TCPServer's bind-all-interfaces behaviour.
type UDPSender struct {
	conn net.Conn
}

// NewUDPSender dials a connected UDP socket to host:port.
func NewUDPSender(host string, port int) (*UDPSender, error) {
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("publish: udp dial %s: %w", addr, err)
	}
	return &UDPSender{conn: conn}, nil
}

// Send writes line as one datagram. Errors are the caller's to log and
// drop — a failed send must never be fatal to the tick loop.
func (s *UDPSender) Send(line string) error {
	_, err := s.conn.Write([]byte(line))
	return err
}

// Close releases the underlying socket.
func (s *UDPSender) Close() error {
	return s.conn.Close()
}
