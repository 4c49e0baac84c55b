package replay

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"rewinger/protocol"
)

// DefaultIdentity is used for the ICAO address and callsign when neither the
// flight log header nor the operator supplies one.
const DefaultIdentity = "UNKNOWN"

// Point is one replay tuple: a GPS/attitude pair, its absolute capture
// timestamp and the reconstructed delay before it is emitted.
type Point struct {
	Gps       protocol.GpsSample
	Attitude  protocol.AttitudeSample
	Timestamp float64
	Delay     time.Duration
}

// FlightLog is a parsed capture file ready for replay.
type FlightLog struct {
	ICAOAddress string
	Callsign    string
	Points      []Point
}

func isNumeric(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// Load reads a flight log CSV. An optional first row of exactly two
// non-numeric fields is the identity line (icao address, callsign); a
// nine-field non-numeric first row is a column header and is skipped. Every
// other row must carry timestamp, longitude, latitude, altitude, track,
// ground speed, true heading, pitch and roll as decimal numbers.
func Load(path string) (*FlightLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: failed to open flight log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("replay: failed to read flight log: %w", err)
	}

	flog := &FlightLog{ICAOAddress: DefaultIdentity, Callsign: DefaultIdentity}

	start := 0
	if len(records) > 0 {
		first := records[0]
		switch {
		case len(first) == 2 && !isNumeric(first[0]) && !isNumeric(first[1]):
			flog.ICAOAddress = first[0]
			flog.Callsign = first[1]
			start = 1
		case len(first) == 9 && !isNumeric(first[0]):
			// Column header row written by the recorder.
			start = 1
		}
	}

	prev := 0.0
	for i := start; i < len(records); i++ {
		record := records[i]
		if len(record) != 9 {
			return nil, fmt.Errorf("replay: row %d: expected 9 fields, got %d", i+1, len(record))
		}

		vals := make([]float64, 9)
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("replay: row %d: invalid field %q: %v", i+1, field, err)
			}
			vals[j] = v
		}

		point := Point{
			Gps: protocol.GpsSample{
				Longitude:   vals[1],
				Latitude:    vals[2],
				Altitude:    vals[3],
				Track:       vals[4],
				GroundSpeed: vals[5],
			},
			Attitude: protocol.AttitudeSample{
				TrueHeading: vals[6],
				Pitch:       vals[7],
				Roll:        vals[8],
			},
			Timestamp: vals[0],
		}

		// First tuple goes out immediately; later tuples wait out the
		// captured inter-sample gap. Clocks only move forward, so a
		// negative gap collapses to zero.
		if len(flog.Points) > 0 {
			delta := point.Timestamp - prev
			if delta < 0 {
				delta = 0
			}
			point.Delay = time.Duration(delta * float64(time.Second))
		}
		prev = point.Timestamp
		flog.Points = append(flog.Points, point)
	}

	if len(flog.Points) == 0 {
		return nil, fmt.Errorf("replay: flight log %s contains no data rows", path)
	}
	return flog, nil
}
