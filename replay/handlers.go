package replay

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"rewinger/session"
	"rewinger/transport"
)

// Controller owns the send socket and at most one replay run at a time.
type Controller struct {
	mu    sync.Mutex
	conn  *transport.Conn
	store *session.Store
	tag   string

	current     *Runner
	currentID   int64
	currentFile string
	currentMode Mode
	currentDest string
}

func NewController(conn *transport.Conn, store *session.Store, tag string) *Controller {
	return &Controller{conn: conn, store: store, tag: tag}
}

func SetupHandlers(r *mux.Router, c *Controller) {
	r.HandleFunc("/replay/start", c.handleStart).Methods("POST")
	r.HandleFunc("/replay/stop", c.handleStop).Methods("POST")
	r.HandleFunc("/replay/status", c.handleStatus).Methods("GET")
	r.HandleFunc("/send/custom", c.handleCustomMessage).Methods("POST")
}

type startRequest struct {
	File           string `json:"file"`
	Mode           string `json:"mode"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ICAOAddress    string `json:"icao_address"`
	Callsign       string `json:"callsign"`
	AircraftType   string `json:"aircraft_type"`
	Registration   string `json:"registration"`
	FlightNumber   string `json:"flight_number"`
	ResendIdentity bool   `json:"resend_identity"`
}

func (c *Controller) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Everything is validated before the first datagram goes out.
	mode, err := ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dest, err := transport.ResolveDestination(req.Host, req.Port)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flog, err := Load(req.File)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		select {
		case <-c.current.Done():
			c.current = nil
		default:
			http.Error(w, "a replay is already running", http.StatusConflict)
			return
		}
	}

	id, err := c.store.StartReplay(req.File, string(mode), dest.String(), len(flog.Points), time.Now())
	if err != nil {
		log.Printf("Error cataloging replay run: %v", err)
	}

	runner := Start(c.conn, dest, flog, Options{
		Tag:            c.tag,
		Mode:           mode,
		ICAOAddress:    req.ICAOAddress,
		Callsign:       req.Callsign,
		AircraftType:   req.AircraftType,
		Registration:   req.Registration,
		FlightNumber:   req.FlightNumber,
		ResendIdentity: req.ResendIdentity,
	})
	c.current = runner
	c.currentID = id
	c.currentFile = req.File
	c.currentMode = mode
	c.currentDest = dest.String()

	go func() {
		<-runner.Done()
		if err := c.store.FinishReplay(id, runner.Completed(), time.Now()); err != nil {
			log.Printf("Error cataloging replay run: %v", err)
		}
	}()

	log.Printf("Replay started: %s -> %s (%s mode, %d points)", req.File, dest, mode, len(flog.Points))
	writeJSON(w, map[string]any{"id": id, "points": len(flog.Points)})
}

func (c *Controller) handleStop(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	runner := c.current
	c.mu.Unlock()

	if runner == nil {
		http.Error(w, "no replay is running", http.StatusConflict)
		return
	}
	runner.Stop()
	<-runner.Done()

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	log.Printf("Replay stopped after %d points", runner.Sent())
	writeJSON(w, map[string]any{"sent": runner.Sent(), "completed": runner.Completed()})
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := map[string]any{"running": false}
	if c.current != nil {
		select {
		case <-c.current.Done():
			status["completed"] = c.current.Completed()
		default:
			status["running"] = true
		}
		status["id"] = c.currentID
		status["file"] = c.currentFile
		status["mode"] = string(c.currentMode)
		status["destination"] = c.currentDest
		status["sent"] = c.current.Sent()
		status["points"] = c.current.Total()
	}
	writeJSON(w, status)
}

type customMessageRequest struct {
	Message string `json:"message"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// handleCustomMessage sends one operator-supplied datagram, sharing the
// replay send socket.
func (c *Controller) handleCustomMessage(w http.ResponseWriter, r *http.Request) {
	var req customMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	dest, err := transport.ResolveDestination(req.Host, req.Port)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := c.conn.Send([]byte(req.Message), dest); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("Custom message sent to %s: %s", dest, req.Message)
	writeJSON(w, map[string]string{"sent": req.Message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
