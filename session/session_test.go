package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCaptureCatalog(t *testing.T) {
	store := openStore(t)

	started := time.Now().Add(-time.Minute)
	stopped := time.Now()
	id, err := store.AddCapture("captures/2025-03-01_10-00-00", true, started, stopped)
	if err != nil {
		t.Fatalf("AddCapture: %v", err)
	}

	sessions, err := store.Captures()
	if err != nil {
		t.Fatalf("Captures: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	cs := sessions[0]
	if cs.ID != id || cs.Directory != "captures/2025-03-01_10-00-00" || !cs.Armed {
		t.Errorf("session = %+v", cs)
	}

	dir, err := store.CaptureDirectory(id)
	if err != nil || dir != cs.Directory {
		t.Errorf("CaptureDirectory = %q, %v", dir, err)
	}
	if _, err := store.CaptureDirectory(id + 99); err == nil {
		t.Error("expected an error for an unknown session id")
	}
}

func TestReplayCatalog(t *testing.T) {
	store := openStore(t)

	id, err := store.StartReplay("captures/x/flight.csv", "traffic", "127.0.0.1:49002", 120, time.Now())
	if err != nil {
		t.Fatalf("StartReplay: %v", err)
	}

	runs, err := store.Replays()
	if err != nil {
		t.Fatalf("Replays: %v", err)
	}
	if len(runs) != 1 || runs[0].Completed || runs[0].StoppedAt != nil {
		t.Fatalf("runs = %+v", runs)
	}

	if err := store.FinishReplay(id, true, time.Now()); err != nil {
		t.Fatalf("FinishReplay: %v", err)
	}
	runs, err = store.Replays()
	if err != nil {
		t.Fatalf("Replays: %v", err)
	}
	if !runs[0].Completed || runs[0].StoppedAt == nil {
		t.Errorf("run not marked finished: %+v", runs[0])
	}
}

func TestExportFlightXLSX(t *testing.T) {
	dir := t.TempDir()
	content := "timestamp,longitude,latitude,altitude,track,ground_speed,true_heading,pitch,roll\n" +
		"0.000000,9.18,48.68,396.9,271.3,62.5,271.3,-2.5,0.8\n" +
		"1.200000,9.19,48.69,397.1,271.4,62.6,271.4,-2.4,0.7\n"
	if err := os.WriteFile(filepath.Join(dir, flightLogName), []byte(content), 0644); err != nil {
		t.Fatalf("write flight log: %v", err)
	}

	buf, err := ExportFlightXLSX(dir)
	if err != nil {
		t.Fatalf("ExportFlightXLSX: %v", err)
	}

	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer wb.Close()

	header, err := wb.GetCellValue("Flight", "B1")
	if err != nil || header != "longitude" {
		t.Errorf("B1 = %q, %v", header, err)
	}
	lon, err := wb.GetCellValue("Flight", "B2")
	if err != nil || lon != "9.18" {
		t.Errorf("B2 = %q, %v", lon, err)
	}
	rows, err := wb.GetRows("Flight")
	if err != nil || len(rows) != 3 {
		t.Errorf("rows = %d, %v", len(rows), err)
	}
}

func TestExportMissingLog(t *testing.T) {
	if _, err := ExportFlightXLSX(t.TempDir()); err == nil {
		t.Error("expected an error when the flight log is missing")
	}
}
