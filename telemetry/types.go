package telemetry

import "rewinger/protocol"

// Snapshot is a point-in-time, read-only view of the tracker state.
// Absent values are nil pointers; Traffic holds one contact per ICAO address.
type Snapshot struct {
	Gps       *protocol.GpsSample                `json:"gps"`
	Attitude  *protocol.AttitudeSample           `json:"attitude"`
	Aircraft  *protocol.AircraftIdentity         `json:"aircraft"`
	Traffic   map[string]protocol.TrafficContact `json:"traffic"`
	Connected bool                               `json:"connected"`
}
