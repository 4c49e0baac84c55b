// Package receiver runs the UDP receive loop: datagrams are decoded and
// folded into the telemetry tracker and, when a session is active, the
// capture recorder. The loop is the sole writer of both.
package receiver

import (
	"errors"
	"log"
	"time"

	"rewinger/protocol"
	"rewinger/recorder"
	"rewinger/telemetry"
	"rewinger/transport"
)

// pollTimeout bounds each blocking read so the stop signal is observed
// promptly. Timeouts are routine, not errors.
const pollTimeout = 500 * time.Millisecond

type Receiver struct {
	port     int
	tracker  *telemetry.Tracker
	recorder *recorder.Recorder
	conn     *transport.Conn
	stop     chan struct{}
	done     chan struct{}
}

func New(port int, tracker *telemetry.Tracker, rec *recorder.Recorder) *Receiver {
	return &Receiver{
		port:     port,
		tracker:  tracker,
		recorder: rec,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the receive socket and launches the loop.
func (r *Receiver) Start() error {
	conn, err := transport.Listen(r.port)
	if err != nil {
		return err
	}
	r.conn = conn
	log.Printf("Listening for simulator broadcasts on UDP port %d", conn.LocalPort())
	go r.loop()
	return nil
}

func (r *Receiver) loop() {
	defer close(r.done)

	buf := make([]byte, transport.MaxDatagramSize)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.conn.Receive(buf, pollTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			log.Printf("Error reading UDP: %v", err)
			continue
		}

		msg, err := protocol.Decode(buf[:n])
		if err != nil {
			// Foreign traffic on the shared port is expected; only log
			// messages that matched a known prefix but failed to parse.
			if !errors.Is(err, protocol.ErrUnknownMessage) {
				log.Printf("Error parsing datagram: %v", err)
			}
			continue
		}
		if msg == nil {
			// GPS menu-state sentinel: the bytes matched but carry no data.
			continue
		}

		now := time.Now()
		r.tracker.Apply(msg, now)
		if err := r.recorder.Record(msg, float64(now.UnixNano())/1e9); err != nil {
			log.Printf("Error recording message: %v", err)
		}
	}
}

// Port returns the bound receive port.
func (r *Receiver) Port() int {
	if r.conn == nil {
		return r.port
	}
	return r.conn.LocalPort()
}

// Stop signals the loop, waits for it to exit, then closes the socket, in
// that order, so no read can race the close.
func (r *Receiver) Stop() {
	close(r.stop)
	<-r.done
	if r.conn != nil {
		r.conn.Close()
	}
}
