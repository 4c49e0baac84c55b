package recorder

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"rewinger/session"
)

// Controller ties the recorder to the session catalog: it remembers when the
// operator started or armed a session so the completed session can be
// cataloged on stop.
type Controller struct {
	mu        sync.Mutex
	rec       *Recorder
	store     *session.Store
	startedAt time.Time
	armed     bool
}

func NewController(rec *Recorder, store *session.Store) *Controller {
	return &Controller{rec: rec, store: store}
}

func SetupHandlers(r *mux.Router, c *Controller) {
	r.HandleFunc("/recorder/start", c.handleStart).Methods("POST")
	r.HandleFunc("/recorder/arm", c.handleArm).Methods("POST")
	r.HandleFunc("/recorder/stop", c.handleStop).Methods("POST")
	r.HandleFunc("/recorder/status", c.handleStatus).Methods("GET")
}

func (c *Controller) handleStart(w http.ResponseWriter, r *http.Request) {
	dir, err := c.rec.Start()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.armed = false
	c.mu.Unlock()

	log.Printf("Recording started: %s", dir)
	writeJSON(w, map[string]string{"state": StateRecording.String(), "directory": dir})
}

func (c *Controller) handleArm(w http.ResponseWriter, r *http.Request) {
	if err := c.rec.Arm(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.armed = true
	c.mu.Unlock()

	log.Printf("Recording armed, waiting for live data")
	writeJSON(w, map[string]string{"state": StateArmed.String()})
}

func (c *Controller) handleStop(w http.ResponseWriter, r *http.Request) {
	dir, err := c.rec.Stop()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if dir != "" {
		c.mu.Lock()
		startedAt, armed := c.startedAt, c.armed
		c.mu.Unlock()
		if _, err := c.store.AddCapture(dir, armed, startedAt, time.Now()); err != nil {
			log.Printf("Error cataloging capture session: %v", err)
		}
		log.Printf("Recording stopped: %s", dir)
	}
	writeJSON(w, map[string]string{"state": StateIdle.String(), "directory": dir})
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, dir := c.rec.Status()
	writeJSON(w, map[string]string{"state": state.String(), "directory": dir})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
