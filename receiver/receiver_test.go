package receiver

import (
	"net"
	"testing"
	"time"

	"rewinger/recorder"
	"rewinger/telemetry"
)

func startReceiver(t *testing.T) (*Receiver, *telemetry.Tracker, *net.UDPAddr) {
	t.Helper()
	tracker := telemetry.NewTracker()
	rec := recorder.New(t.TempDir())

	recv := New(0, tracker, rec)
	if err := recv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(recv.Stop)

	dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: recv.Port()}
	return recv, tracker, dest
}

func send(t *testing.T, dest *net.UDPAddr, msg string) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(msg)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestReceiveUpdatesTracker(t *testing.T) {
	_, tracker, dest := startReceiver(t)

	send(t, dest, "XGPSAerofly FS 4,9.18,48.68,396.9,271.3,62.5")
	send(t, dest, "XATTAerofly FS 4,271.3,-2.5,0.8")
	send(t, dest, "XTRAFFICAerofly FS 4,3C65A1,48.7,9.2,12000,0,1,90,240,DEKWA")

	ok := waitFor(t, func() bool {
		snap := tracker.Snapshot(time.Now())
		return snap.Gps != nil && snap.Attitude != nil && len(snap.Traffic) == 1
	})
	if !ok {
		t.Fatalf("tracker never saw all three kinds: %+v", tracker.Snapshot(time.Now()))
	}

	snap := tracker.Snapshot(time.Now())
	if snap.Gps.Longitude != 9.18 || snap.Attitude.Pitch != -2.5 || snap.Traffic["3C65A1"].Callsign != "DEKWA" {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.Connected {
		t.Error("connected must be true right after reception")
	}
}

func TestMalformedDatagramsLeaveTrackerUnchanged(t *testing.T) {
	_, tracker, dest := startReceiver(t)

	send(t, dest, "XGPSAerofly FS 4,9.18,48.68,396.9,271.3,62.5")
	if !waitFor(t, func() bool { return tracker.Snapshot(time.Now()).Gps != nil }) {
		t.Fatal("baseline sample never arrived")
	}

	// None of these may disturb the tracked values, and the loop must
	// keep running through all of them.
	send(t, dest, "XGPSAerofly FS 4,not,a,number,at,all")
	send(t, dest, "XGPSAerofly FS 4,1.0,2.0")
	send(t, dest, "totally foreign datagram")
	send(t, dest, "XTRAFFICAerofly FS 4,3C65A1,48.7,9.2,12000,0,7,90,240,DEKWA")
	// The menu-state sentinel matches the pattern but must not zero the fix.
	send(t, dest, "XGPSAerofly FS 4,0.0,0.0,0.0,90.0,0.0")

	// Prove the loop survived by sending one more valid message.
	send(t, dest, "XATTAerofly FS 4,180,0,0")
	if !waitFor(t, func() bool { return tracker.Snapshot(time.Now()).Attitude != nil }) {
		t.Fatal("receive loop stopped accepting messages")
	}

	snap := tracker.Snapshot(time.Now())
	if snap.Gps.Longitude != 9.18 || snap.Gps.Latitude != 48.68 {
		t.Errorf("gps changed by malformed input: %+v", snap.Gps)
	}
	if len(snap.Traffic) != 0 {
		t.Errorf("malformed traffic message was applied: %v", snap.Traffic)
	}
}

func TestRecorderReceivesAcceptedMessages(t *testing.T) {
	tracker := telemetry.NewTracker()
	rec := recorder.New(t.TempDir())

	recv := New(0, tracker, rec)
	if err := recv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer recv.Stop()

	dir, err := rec.Start()
	if err != nil {
		t.Fatalf("recorder Start: %v", err)
	}

	dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: recv.Port()}
	send(t, dest, "XGPSAerofly FS 4,9.18,48.68,396.9,271.3,62.5")

	if !waitFor(t, func() bool { return tracker.Snapshot(time.Now()).Gps != nil }) {
		t.Fatal("sample never arrived")
	}
	if _, err := rec.Stop(); err != nil {
		t.Fatalf("recorder Stop: %v", err)
	}
	if dir == "" {
		t.Fatal("no capture directory")
	}
}

func TestStopJoinsCleanly(t *testing.T) {
	tracker := telemetry.NewTracker()
	recv := New(0, tracker, recorder.New(t.TempDir()))
	if err := recv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		recv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; the loop failed to exit")
	}
}
