// Package recorder persists a live telemetry session as CSV capture streams.
//
// A session writes one file per stream kind (gps, attitude, traffic) plus the
// combined flight log that the replay engine reads back. Recording either
// starts immediately or is armed and deferred until live data is observed.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"rewinger/protocol"
)

type State int

const (
	StateIdle State = iota
	StateArmed
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	}
	return "idle"
}

// FlightLogName is the combined per-session capture artifact replay consumes.
const FlightLogName = "flight.csv"

var streamHeaders = map[string][]string{
	"gps.csv":      {"timestamp", "longitude", "latitude", "altitude", "track", "ground_speed"},
	"attitude.csv": {"timestamp", "true_heading", "pitch", "roll"},
	"traffic.csv":  {"timestamp", "icao_address", "latitude", "longitude", "altitude_ft", "vertical_speed_ft_min", "airborne", "heading_true", "velocity_knots", "callsign"},
	FlightLogName:  {"timestamp", "longitude", "latitude", "altitude", "track", "ground_speed", "true_heading", "pitch", "roll"},
}

type stream struct {
	file   *os.File
	writer *csv.Writer
}

func (s *stream) append(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Recorder owns the capture state. State transitions and appends share one
// mutex, so a write can never race a Stop.
type Recorder struct {
	mu           sync.Mutex
	baseDir      string
	state        State
	dir          string
	streams      map[string]*stream
	lastAttitude protocol.AttitudeSample
	hasAttitude  bool
}

func New(baseDir string) *Recorder {
	return &Recorder{baseDir: baseDir}
}

// Start begins recording immediately and returns the session directory.
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return "", fmt.Errorf("recorder: already recording to %s", r.dir)
	}
	if err := r.open(); err != nil {
		return "", err
	}
	return r.dir, nil
}

// Arm requests deferred recording: files are only created once the next GPS
// sample or traffic contact arrives.
func (r *Recorder) Arm() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return fmt.Errorf("recorder: already recording to %s", r.dir)
	}
	r.state = StateArmed
	return nil
}

// Stop closes all open capture streams and returns the session directory,
// empty if none was created. Stopping while armed just clears the armed flag.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		r.state = StateIdle
		return "", nil
	}

	var firstErr error
	for name, s := range r.streams {
		s.writer.Flush()
		if err := s.writer.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("recorder: failed to flush %s: %w", name, err)
		}
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("recorder: failed to close %s: %w", name, err)
		}
	}
	dir := r.dir
	r.streams = nil
	r.dir = ""
	r.state = StateIdle
	return dir, firstErr
}

// Status returns the current state and session directory, if any.
func (r *Recorder) Status() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording {
		return r.state, r.dir
	}
	return r.state, ""
}

// Record appends one accepted message to its capture stream. Timestamps are
// wall-clock seconds supplied by the receive loop, so ordering within each
// stream follows receipt order. Identity messages are not captured.
func (r *Recorder) Record(msg *protocol.Message, timestamp float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Kind == protocol.KindAttitude {
		// Remembered even before activation so the first flight row can
		// carry a real attitude.
		r.lastAttitude = *msg.Attitude
		r.hasAttitude = true
	}

	if r.state == StateArmed && (msg.Kind == protocol.KindGps || msg.Kind == protocol.KindTraffic) {
		if err := r.open(); err != nil {
			r.state = StateIdle
			return err
		}
	}
	if r.state != StateRecording {
		return nil
	}

	ts := strconv.FormatFloat(timestamp, 'f', 6, 64)
	switch msg.Kind {
	case protocol.KindGps:
		s := msg.Gps
		row := []string{ts, f(s.Longitude), f(s.Latitude), f(s.Altitude), f(s.Track), f(s.GroundSpeed)}
		if err := r.streams["gps.csv"].append(row); err != nil {
			return fmt.Errorf("recorder: failed to append gps row: %w", err)
		}
		att := r.lastAttitude
		flightRow := []string{ts, f(s.Longitude), f(s.Latitude), f(s.Altitude), f(s.Track), f(s.GroundSpeed),
			f(att.TrueHeading), f(att.Pitch), f(att.Roll)}
		if err := r.streams[FlightLogName].append(flightRow); err != nil {
			return fmt.Errorf("recorder: failed to append flight row: %w", err)
		}
	case protocol.KindAttitude:
		s := msg.Attitude
		row := []string{ts, f(s.TrueHeading), f(s.Pitch), f(s.Roll)}
		if err := r.streams["attitude.csv"].append(row); err != nil {
			return fmt.Errorf("recorder: failed to append attitude row: %w", err)
		}
	case protocol.KindTraffic:
		c := msg.Traffic
		airborne := "0"
		if c.Airborne {
			airborne = "1"
		}
		row := []string{ts, c.ICAOAddress, f(c.Latitude), f(c.Longitude), f(c.AltitudeFt),
			f(c.VerticalSpeedFt), airborne, f(c.HeadingTrue), f(c.VelocityKnots), c.Callsign}
		if err := r.streams["traffic.csv"].append(row); err != nil {
			return fmt.Errorf("recorder: failed to append traffic row: %w", err)
		}
	}
	return nil
}

// open creates the session directory and all capture streams with their
// header rows. Caller holds the mutex.
func (r *Recorder) open() error {
	dir := filepath.Join(r.baseDir, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("recorder: failed to create session directory: %w", err)
	}

	streams := make(map[string]*stream, len(streamHeaders))
	for name, header := range streamHeaders {
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			for _, s := range streams {
				s.file.Close()
			}
			return fmt.Errorf("recorder: failed to create %s: %w", name, err)
		}
		s := &stream{file: file, writer: csv.NewWriter(file)}
		if err := s.append(header); err != nil {
			for _, o := range streams {
				o.file.Close()
			}
			file.Close()
			return fmt.Errorf("recorder: failed to write %s header: %w", name, err)
		}
		streams[name] = s
	}

	r.dir = dir
	r.streams = streams
	r.state = StateRecording
	return nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
