package telemetry

import (
	"sync"
	"time"

	"rewinger/protocol"
)

const (
	// Traffic contacts are dropped once unseen for this long.
	trafficTimeout = 30 * time.Second
	// Connected means any message arrived within this window.
	receiveTimeout = 5 * time.Second
)

type trafficEntry struct {
	contact  protocol.TrafficContact
	lastSeen time.Time
}

// Tracker owns the latest-known telemetry values. The receive loop is the
// sole writer; any number of readers may call Snapshot. Apply and Snapshot
// are mutually exclusive and neither holds the lock across I/O.
type Tracker struct {
	mu            sync.Mutex
	gps           *protocol.GpsSample
	attitude      *protocol.AttitudeSample
	aircraft      *protocol.AircraftIdentity
	traffic       map[string]trafficEntry
	lastMessageAt time.Time
}

func NewTracker() *Tracker {
	return &Tracker{traffic: make(map[string]trafficEntry)}
}

// Apply folds one decoded message into the tracker. Scalar kinds are
// last-write-wins; traffic contacts are upserted by ICAO address.
func (t *Tracker) Apply(msg *protocol.Message, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastMessageAt = now

	switch msg.Kind {
	case protocol.KindGps:
		sample := *msg.Gps
		t.gps = &sample
	case protocol.KindAttitude:
		sample := *msg.Attitude
		t.attitude = &sample
	case protocol.KindIdentity:
		id := *msg.Identity
		t.aircraft = &id
	case protocol.KindTraffic:
		t.traffic[msg.Traffic.ICAOAddress] = trafficEntry{contact: *msg.Traffic, lastSeen: now}
	}
}

// Snapshot prunes stale traffic, recomputes the connected flag and returns
// copies of the current values.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	for icao, entry := range t.traffic {
		if now.Sub(entry.lastSeen) >= trafficTimeout {
			delete(t.traffic, icao)
		}
	}

	snap := Snapshot{
		Traffic:   make(map[string]protocol.TrafficContact, len(t.traffic)),
		Connected: !t.lastMessageAt.IsZero() && now.Sub(t.lastMessageAt) < receiveTimeout,
	}
	if t.gps != nil {
		sample := *t.gps
		snap.Gps = &sample
	}
	if t.attitude != nil {
		sample := *t.attitude
		snap.Attitude = &sample
	}
	if t.aircraft != nil {
		id := *t.aircraft
		snap.Aircraft = &id
	}
	for icao, entry := range t.traffic {
		snap.Traffic[icao] = entry.contact
	}
	return snap
}
