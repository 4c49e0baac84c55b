package protocol

// GpsSample represents one position report from the simulator.
// Altitude is meters MSL, track is degrees true, ground speed is m/s.
type GpsSample struct {
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Altitude    float64 `json:"altitude"`
	Track       float64 `json:"track"`
	GroundSpeed float64 `json:"ground_speed"`
}

// AttitudeSample represents one attitude report, all fields in degrees.
type AttitudeSample struct {
	TrueHeading float64 `json:"true_heading"`
	Pitch       float64 `json:"pitch"`
	Roll        float64 `json:"roll"`
}

// AircraftIdentity describes the ownship aircraft. Identity is sticky:
// once received it stays current until replaced by a newer identity message.
type AircraftIdentity struct {
	InstanceID   string `json:"instance_id"`
	ICAOAddress  string `json:"icao_address"`
	AircraftType string `json:"aircraft_type"`
	Registration string `json:"registration"`
	Callsign     string `json:"callsign"`
	FlightNumber string `json:"flight_number"`
}

// TrafficContact represents one position report for another aircraft,
// keyed by its ICAO address.
type TrafficContact struct {
	ICAOAddress     string  `json:"icao_address"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	AltitudeFt      float64 `json:"altitude_ft"`
	VerticalSpeedFt float64 `json:"vertical_speed_ft_min"`
	Airborne        bool    `json:"airborne"`
	HeadingTrue     float64 `json:"heading_true"`
	VelocityKnots   float64 `json:"velocity_knots"`
	Callsign        string  `json:"callsign"`
}

// Kind identifies which of the four message shapes a decoded Message carries.
type Kind int

const (
	KindGps Kind = iota
	KindAttitude
	KindIdentity
	KindTraffic
)

func (k Kind) String() string {
	switch k {
	case KindGps:
		return "gps"
	case KindAttitude:
		return "attitude"
	case KindIdentity:
		return "identity"
	case KindTraffic:
		return "traffic"
	}
	return "unknown"
}

// Message is one successfully decoded datagram. Exactly one of the payload
// pointers is non-nil, matching Kind. Tag is the simulator-identifying string
// embedded between the prefix and the first comma.
type Message struct {
	Kind     Kind
	Tag      string
	Gps      *GpsSample
	Attitude *AttitudeSample
	Identity *AircraftIdentity
	Traffic  *TrafficContact
}
