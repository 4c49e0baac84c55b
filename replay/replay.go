// Package replay re-emits a captured flight log over UDP with the original
// inter-sample cadence reconstructed from the embedded timestamps.
package replay

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rewinger/protocol"
	"rewinger/transport"
)

// Mode selects the wire shape a replay run emits.
type Mode string

const (
	// ModeTraffic emits one XTRAFFIC message per tuple, preceded by a
	// one-shot XAIRCRAFT identity message.
	ModeTraffic Mode = "traffic"
	// ModeNative emits one XGPS and one XATT message per tuple.
	ModeNative Mode = "gps"
)

// ParseMode validates an operator-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTraffic, ModeNative:
		return Mode(s), nil
	}
	return "", fmt.Errorf("replay: invalid mode %q, use %q or %q", s, ModeTraffic, ModeNative)
}

// Options configures one replay run. Identity overrides take precedence over
// values derived from the flight log header.
type Options struct {
	Tag            string
	Mode           Mode
	ICAOAddress    string
	Callsign       string
	AircraftType   string
	Registration   string
	FlightNumber   string
	InstanceID     string
	ResendIdentity bool // native mode: resend the identity message with every tuple
}

// Runner is one in-flight replay. Stop cancels it at the next iteration
// boundary; the send socket stays open for subsequent custom sends.
type Runner struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	sent     atomic.Int64
	total    int
	complete atomic.Bool
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomInstanceID() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// Start launches a replay of flog towards dest and returns immediately.
func Start(conn *transport.Conn, dest *net.UDPAddr, flog *FlightLog, opts Options) *Runner {
	r := &Runner{
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		total: len(flog.Points),
	}

	identity := protocol.AircraftIdentity{
		InstanceID:   opts.InstanceID,
		ICAOAddress:  flog.ICAOAddress,
		AircraftType: opts.AircraftType,
		Registration: opts.Registration,
		Callsign:     flog.Callsign,
		FlightNumber: opts.FlightNumber,
	}
	if opts.ICAOAddress != "" {
		identity.ICAOAddress = opts.ICAOAddress
	}
	if opts.Callsign != "" {
		identity.Callsign = opts.Callsign
	}
	if identity.InstanceID == "" {
		identity.InstanceID = randomInstanceID()
	}

	go r.run(conn, dest, flog, opts, identity)
	return r
}

func (r *Runner) run(conn *transport.Conn, dest *net.UDPAddr, flog *FlightLog, opts Options, identity protocol.AircraftIdentity) {
	defer close(r.done)

	if opts.Mode == ModeTraffic {
		if err := conn.Send(protocol.EncodeIdentity(opts.Tag, identity), dest); err != nil {
			log.Printf("Replay aborted: %v", err)
			return
		}
	}

	for _, point := range flog.Points {
		// Wall-clock sleep per reconstructed delay; drift accumulates and
		// that is accepted. A zero delay sends immediately.
		if point.Delay > 0 {
			select {
			case <-time.After(point.Delay):
			case <-r.stop:
				return
			}
		} else {
			select {
			case <-r.stop:
				return
			default:
			}
		}

		var err error
		switch opts.Mode {
		case ModeTraffic:
			contact := protocol.TrafficContact{
				ICAOAddress:   identity.ICAOAddress,
				Latitude:      point.Gps.Latitude,
				Longitude:     point.Gps.Longitude,
				AltitudeFt:    point.Gps.Altitude,
				Airborne:      true,
				HeadingTrue:   point.Attitude.TrueHeading,
				VelocityKnots: point.Gps.GroundSpeed,
				Callsign:      identity.Callsign,
			}
			err = conn.Send(protocol.EncodeTraffic(opts.Tag, contact), dest)
		default:
			if opts.ResendIdentity {
				err = conn.Send(protocol.EncodeIdentity(opts.Tag, identity), dest)
			}
			if err == nil {
				err = conn.Send(protocol.EncodeGps(opts.Tag, point.Gps), dest)
			}
			if err == nil {
				err = conn.Send(protocol.EncodeAttitude(opts.Tag, point.Attitude), dest)
			}
		}
		if err != nil {
			log.Printf("Replay aborted: %v", err)
			return
		}
		r.sent.Add(1)
	}
	r.complete.Store(true)
}

// Stop cancels the run at the next iteration boundary.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done closes when the run has finished or was cancelled.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Sent returns the number of tuples emitted so far.
func (r *Runner) Sent() int {
	return int(r.sent.Load())
}

// Total returns the number of tuples in the flight log.
func (r *Runner) Total() int {
	return r.total
}

// Completed reports whether the whole log was sent (false after a Stop).
func (r *Runner) Completed() bool {
	return r.complete.Load()
}
