// Package transport wraps the UDP sockets the station uses: one
// broadcast-enabled receive socket bound to the simulator port and one
// unbound send socket for replay and custom messages.
package transport

import (
	"fmt"
	"net"
	"time"
)

// MaxDatagramSize is the largest datagram the protocol produces or accepts.
const MaxDatagramSize = 1024

// Conn is a single UDP socket used in one direction.
type Conn struct {
	udp *net.UDPConn
}

// Listen binds a broadcast-enabled receive socket on all interfaces.
func Listen(port int) (*Conn, error) {
	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: failed to bind UDP port %d: %w", port, err)
	}
	return &Conn{udp: udp}, nil
}

// NewSender opens an unbound socket for outgoing datagrams.
func NewSender() (*Conn, error) {
	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("transport: failed to open send socket: %w", err)
	}
	return &Conn{udp: udp}, nil
}

// Receive reads one datagram into buf, waiting at most timeout. Timeouts are
// expected during normal operation; callers detect them with IsTimeout.
func (c *Conn) Receive(buf []byte, timeout time.Duration) (int, error) {
	if err := c.udp.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, _, err := c.udp.ReadFromUDP(buf)
	return n, err
}

// Send writes one datagram to dest.
func (c *Conn) Send(data []byte, dest *net.UDPAddr) error {
	if _, err := c.udp.WriteToUDP(data, dest); err != nil {
		return fmt.Errorf("transport: failed to send to %s: %w", dest, err)
	}
	return nil
}

// LocalPort returns the port the socket is bound to.
func (c *Conn) LocalPort() int {
	return c.udp.LocalAddr().(*net.UDPAddr).Port
}

func (c *Conn) Close() error {
	return c.udp.Close()
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

// ResolveDestination validates a host/port pair before any datagram is sent.
func ResolveDestination(host string, port int) (*net.UDPAddr, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("transport: invalid port %d", port)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("transport: invalid IP address %q", host)
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
