package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub pushes the tracker snapshot to websocket clients at a fixed interval.
// It pulls from the tracker on its own timer; the receive path never calls
// into it.
type Hub struct {
	tracker *Tracker
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewHub(tracker *Tracker) *Hub {
	return &Hub{
		tracker: tracker,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Run broadcasts snapshots once per second until the stop channel closes.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := h.tracker.Snapshot(time.Now())
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(snap); err != nil {
					log.Printf("Error sending snapshot to client: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-stop:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func SetupHandlers(r *mux.Router, tracker *Tracker, hub *Hub) {
	r.HandleFunc("/telemetry/snapshot", handleSnapshot(tracker)).Methods("GET")
	r.HandleFunc("/telemetry/live", handleLive(hub)).Methods("GET")
}

func handleSnapshot(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tracker.Snapshot(time.Now()))
	}
}

func handleLive(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Error upgrading websocket: %v", err)
			return
		}

		hub.mu.Lock()
		hub.clients[conn] = true
		hub.mu.Unlock()
	}
}
