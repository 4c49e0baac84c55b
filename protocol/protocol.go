package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message prefixes. XAIRCRAFT is the canonical identity prefix; the legacy
// XSageMage revision is not decoded.
const (
	prefixGps      = "XGPS"
	prefixAttitude = "XATT"
	prefixIdentity = "XAIRCRAFT"
	prefixTraffic  = "XTRAFFIC"
)

// ErrUnknownMessage marks a datagram that matches no known prefix. Foreign
// UDP traffic on the shared port is expected, so callers drop these silently.
var ErrUnknownMessage = errors.New("protocol: unknown message")

// Decode parses one datagram into a Message.
//
// A nil Message with a nil error means the bytes matched a known shape but
// yield no sample (the GPS "menu state" sentinel). Any malformed field
// rejects the whole message; nothing is partially applied.
func Decode(data []byte) (*Message, error) {
	text := string(data)

	switch {
	case strings.HasPrefix(text, prefixTraffic):
		return decodeTraffic(text[len(prefixTraffic):])
	case strings.HasPrefix(text, prefixIdentity):
		return decodeIdentity(text[len(prefixIdentity):])
	case strings.HasPrefix(text, prefixAttitude):
		return decodeAttitude(text[len(prefixAttitude):])
	case strings.HasPrefix(text, prefixGps):
		return decodeGps(text[len(prefixGps):])
	}
	return nil, ErrUnknownMessage
}

// splitTagged splits "<tag>,f1,f2,..." into the tag and its fields.
func splitTagged(rest string, want int) (string, []string, error) {
	idx := strings.IndexByte(rest, ',')
	if idx < 0 {
		return "", nil, fmt.Errorf("missing field separator")
	}
	tag := rest[:idx]
	fields := strings.Split(rest[idx+1:], ",")
	if len(fields) != want {
		return "", nil, fmt.Errorf("expected %d fields, got %d", want, len(fields))
	}
	return tag, fields, nil
}

func parseFloats(fields []string, names []string) ([]float64, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %v", names[i], err)
		}
		vals[i] = v
	}
	return vals, nil
}

func decodeGps(rest string) (*Message, error) {
	tag, fields, err := splitTagged(rest, 5)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XGPS message: %w", err)
	}
	vals, err := parseFloats(fields, []string{"longitude", "latitude", "altitude", "track", "ground speed"})
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XGPS message: %w", err)
	}

	sample := GpsSample{
		Longitude:   vals[0],
		Latitude:    vals[1],
		Altitude:    vals[2],
		Track:       vals[3],
		GroundSpeed: vals[4],
	}

	// The simulator emits an all-zero position with track 90 while in the
	// menu or paused. That is not a real position; yield no sample.
	if sample.Longitude == 0 && sample.Latitude == 0 && sample.Altitude == 0 &&
		sample.GroundSpeed == 0 && sample.Track == 90 {
		return nil, nil
	}

	return &Message{Kind: KindGps, Tag: tag, Gps: &sample}, nil
}

func decodeAttitude(rest string) (*Message, error) {
	tag, fields, err := splitTagged(rest, 3)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XATT message: %w", err)
	}
	vals, err := parseFloats(fields, []string{"true heading", "pitch", "roll"})
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XATT message: %w", err)
	}

	sample := AttitudeSample{TrueHeading: vals[0], Pitch: vals[1], Roll: vals[2]}
	return &Message{Kind: KindAttitude, Tag: tag, Attitude: &sample}, nil
}

func decodeIdentity(rest string) (*Message, error) {
	tag, fields, err := splitTagged(rest, 6)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XAIRCRAFT message: %w", err)
	}

	id := AircraftIdentity{
		InstanceID:   fields[0],
		ICAOAddress:  fields[1],
		AircraftType: fields[2],
		Registration: fields[3],
		Callsign:     fields[4],
		FlightNumber: fields[5],
	}
	return &Message{Kind: KindIdentity, Tag: tag, Identity: &id}, nil
}

func decodeTraffic(rest string) (*Message, error) {
	tag, fields, err := splitTagged(rest, 9)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XTRAFFIC message: %w", err)
	}
	vals, err := parseFloats([]string{fields[1], fields[2], fields[3], fields[4], fields[6], fields[7]},
		[]string{"latitude", "longitude", "altitude", "vertical speed", "heading", "velocity"})
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid XTRAFFIC message: %w", err)
	}

	var airborne bool
	switch fields[5] {
	case "0":
		airborne = false
	case "1":
		airborne = true
	default:
		return nil, fmt.Errorf("protocol: invalid XTRAFFIC message: airborne flag must be 0 or 1, got %q", fields[5])
	}

	contact := TrafficContact{
		ICAOAddress:     fields[0],
		Latitude:        vals[0],
		Longitude:       vals[1],
		AltitudeFt:      vals[2],
		VerticalSpeedFt: vals[3],
		Airborne:        airborne,
		HeadingTrue:     vals[4],
		VelocityKnots:   vals[5],
		Callsign:        fields[8],
	}
	return &Message{Kind: KindTraffic, Tag: tag, Traffic: &contact}, nil
}

// formatFloat renders a field with the shortest decimal form that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeGps renders the XGPS wire form. One datagram carries exactly one
// message, so there is no line terminator.
func EncodeGps(tag string, s GpsSample) []byte {
	return []byte(fmt.Sprintf("%s%s,%s,%s,%s,%s,%s", prefixGps, tag,
		formatFloat(s.Longitude), formatFloat(s.Latitude), formatFloat(s.Altitude),
		formatFloat(s.Track), formatFloat(s.GroundSpeed)))
}

// EncodeAttitude renders the XATT wire form.
func EncodeAttitude(tag string, s AttitudeSample) []byte {
	return []byte(fmt.Sprintf("%s%s,%s,%s,%s", prefixAttitude, tag,
		formatFloat(s.TrueHeading), formatFloat(s.Pitch), formatFloat(s.Roll)))
}

// EncodeIdentity renders the XAIRCRAFT wire form.
func EncodeIdentity(tag string, id AircraftIdentity) []byte {
	return []byte(fmt.Sprintf("%s%s,%s,%s,%s,%s,%s,%s", prefixIdentity, tag,
		id.InstanceID, id.ICAOAddress, id.AircraftType, id.Registration,
		id.Callsign, id.FlightNumber))
}

// EncodeTraffic renders the XTRAFFIC wire form.
func EncodeTraffic(tag string, c TrafficContact) []byte {
	airborne := "0"
	if c.Airborne {
		airborne = "1"
	}
	return []byte(fmt.Sprintf("%s%s,%s,%s,%s,%s,%s,%s,%s,%s,%s", prefixTraffic, tag,
		c.ICAOAddress, formatFloat(c.Latitude), formatFloat(c.Longitude),
		formatFloat(c.AltitudeFt), formatFloat(c.VerticalSpeedFt), airborne,
		formatFloat(c.HeadingTrue), formatFloat(c.VelocityKnots), c.Callsign))
}
