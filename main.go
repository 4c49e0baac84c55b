package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"rewinger/receiver"
	"rewinger/recorder"
	"rewinger/replay"
	"rewinger/session"
	"rewinger/telemetry"
	"rewinger/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	udpPort := envInt("UDP_PORT", 49002)
	httpAddr := envString("HTTP_ADDR", ":8080")
	simulatorTag := envString("SIMULATOR_TAG", "Aerofly FS 4")
	captureDir := envString("CAPTURE_DIR", "captures")
	dbPath := envString("DB_PATH", "data/rewinger.db")

	store, err := session.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open session catalog: %v", err)
	}
	defer store.Close()

	tracker := telemetry.NewTracker()
	rec := recorder.New(captureDir)

	recv := receiver.New(udpPort, tracker, rec)
	if err := recv.Start(); err != nil {
		log.Fatalf("Failed to start receiver: %v", err)
	}

	sender, err := transport.NewSender()
	if err != nil {
		log.Fatalf("Failed to open send socket: %v", err)
	}
	defer sender.Close()

	hub := telemetry.NewHub(tracker)
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	r := mux.NewRouter()
	telemetry.SetupHandlers(r, tracker, hub)
	recorder.SetupHandlers(r, recorder.NewController(rec, store))
	replay.SetupHandlers(r, replay.NewController(sender, store, simulatorTag))
	session.SetupHandlers(r, store)

	// Stop order matters: receiver first (loop exit, then socket close),
	// then the recorder, so nothing can write to a closed capture file.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutting down gracefully...")
		recv.Stop()
		if _, err := rec.Stop(); err != nil {
			log.Printf("Error closing capture session: %v", err)
		}
		close(hubStop)
		sender.Close()
		store.Close()
		os.Exit(0)
	}()

	log.Printf("Station started at http://127.0.0.1%s", httpAddr)
	if err := http.ListenAndServe(httpAddr, r); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid %s value %q, using %d", key, value, fallback)
	}
	return fallback
}
