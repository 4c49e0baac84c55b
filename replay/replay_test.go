package replay

import (
	"net"
	"strings"
	"testing"
	"time"

	"rewinger/protocol"
	"rewinger/transport"
)

func listen(t *testing.T) (*net.UDPConn, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr)
}

func receiveAll(t *testing.T, conn *net.UDPConn, n int) []string {
	t.Helper()
	var msgs []string
	buf := make([]byte, 1024)
	for len(msgs) < n {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		size, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("received %d of %d messages, then: %v", len(msgs), n, err)
		}
		msgs = append(msgs, string(buf[:size]))
	}
	return msgs
}

func sendConn(t *testing.T) *transport.Conn {
	t.Helper()
	conn, err := transport.NewSender()
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func point(lon, lat, heading float64) Point {
	return Point{
		Gps:      protocol.GpsSample{Longitude: lon, Latitude: lat, Altitude: 400, Track: 90, GroundSpeed: 60},
		Attitude: protocol.AttitudeSample{TrueHeading: heading, Pitch: -2, Roll: 1},
	}
}

func testLog() *FlightLog {
	return &FlightLog{
		ICAOAddress: "3C65A1",
		Callsign:    "DEKWA",
		Points:      []Point{point(9.18, 48.68, 271.3), point(9.19, 48.69, 271.4), point(9.2, 48.7, 271.5)},
	}
}

func TestTrafficModeEmitsIdentityThenTraffic(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	runner := Start(conn, dest, testLog(), Options{Tag: "Aerofly FS 4", Mode: ModeTraffic})
	msgs := receiveAll(t, recv, 4)
	<-runner.Done()

	if !strings.HasPrefix(msgs[0], "XAIRCRAFTAerofly FS 4,") {
		t.Errorf("first message = %q, want one-shot identity", msgs[0])
	}
	if !strings.Contains(msgs[0], ",3C65A1,") || !strings.Contains(msgs[0], ",DEKWA,") {
		t.Errorf("identity message lacks file-derived identity: %q", msgs[0])
	}
	for i, msg := range msgs[1:] {
		if !strings.HasPrefix(msg, "XTRAFFICAerofly FS 4,3C65A1,") {
			t.Errorf("message %d = %q, want traffic report", i+1, msg)
		}
	}
	// Traffic order is lat,lon: first tuple was lon 9.18 lat 48.68.
	if !strings.HasPrefix(msgs[1], "XTRAFFICAerofly FS 4,3C65A1,48.68,9.18,") {
		t.Errorf("traffic message = %q, want lat,lon order", msgs[1])
	}
	if !runner.Completed() || runner.Sent() != 3 {
		t.Errorf("completed = %v sent = %d", runner.Completed(), runner.Sent())
	}
}

func TestNativeModeEmitsGpsAndAttitudePairs(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	runner := Start(conn, dest, testLog(), Options{Tag: "Aerofly FS 4", Mode: ModeNative})
	msgs := receiveAll(t, recv, 6)
	<-runner.Done()

	for i := 0; i < len(msgs); i += 2 {
		if !strings.HasPrefix(msgs[i], "XGPSAerofly FS 4,") {
			t.Errorf("message %d = %q, want XGPS", i, msgs[i])
		}
		if !strings.HasPrefix(msgs[i+1], "XATTAerofly FS 4,") {
			t.Errorf("message %d = %q, want XATT", i+1, msgs[i+1])
		}
	}
	if msgs[0] != "XGPSAerofly FS 4,9.18,48.68,400,90,60" {
		t.Errorf("first gps message = %q", msgs[0])
	}
}

func TestNativeModeResendIdentity(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	runner := Start(conn, dest, testLog(), Options{Tag: "Aerofly FS 4", Mode: ModeNative, ResendIdentity: true})
	msgs := receiveAll(t, recv, 9)
	<-runner.Done()

	for i := 0; i < len(msgs); i += 3 {
		if !strings.HasPrefix(msgs[i], "XAIRCRAFT") {
			t.Errorf("message %d = %q, want identity resent per tuple", i, msgs[i])
		}
	}
}

func TestIdentityOverridesTakePrecedence(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	runner := Start(conn, dest, testLog(), Options{
		Tag:         "Aerofly FS 4",
		Mode:        ModeTraffic,
		ICAOAddress: "AB12CD",
		Callsign:    "OVERRIDE",
	})
	msgs := receiveAll(t, recv, 2)
	runner.Stop()
	<-runner.Done()

	if !strings.Contains(msgs[0], ",AB12CD,") || !strings.Contains(msgs[0], ",OVERRIDE,") {
		t.Errorf("identity message = %q, want configured overrides", msgs[0])
	}
	if !strings.HasPrefix(msgs[1], "XTRAFFICAerofly FS 4,AB12CD,") {
		t.Errorf("traffic message = %q, want overridden ICAO", msgs[1])
	}
}

func TestStopCancelsBetweenTuples(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	flog := testLog()
	// A long gap after the first tuple so Stop lands mid-run.
	flog.Points[1].Delay = 10 * time.Second

	runner := Start(conn, dest, flog, Options{Tag: "Aerofly FS 4", Mode: ModeNative})
	receiveAll(t, recv, 2)

	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		<-runner.Done()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the run at the iteration boundary")
	}
	if runner.Completed() {
		t.Error("a cancelled run must not report completion")
	}
	if runner.Sent() != 1 {
		t.Errorf("sent = %d, want 1", runner.Sent())
	}
}

func TestReplayCadence(t *testing.T) {
	recv, dest := listen(t)
	conn := sendConn(t)

	flog := testLog()
	flog.Points[1].Delay = 150 * time.Millisecond
	flog.Points[2].Delay = 0

	started := time.Now()
	runner := Start(conn, dest, flog, Options{Tag: "Aerofly FS 4", Mode: ModeTraffic})
	receiveAll(t, recv, 4)
	<-runner.Done()
	elapsed := time.Since(started)

	if elapsed < 150*time.Millisecond {
		t.Errorf("run finished in %v, before the captured gap elapsed", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("run took %v; the zero delay must not be rounded up", elapsed)
	}
}
