package session

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func SetupHandlers(r *mux.Router, store *Store) {
	r.HandleFunc("/sessions", handleSessions(store)).Methods("GET")
	r.HandleFunc("/sessions/capture/{id}/export", handleCaptureExport(store)).Methods("GET")
}

func handleSessions(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		captures, err := store.Captures()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		replays, err := store.Replays()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Captures []CaptureSession `json:"captures"`
			Replays  []ReplayRun      `json:"replays"`
		}{captures, replays})
	}
}

func handleCaptureExport(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "Invalid session id", http.StatusBadRequest)
			return
		}

		dir, err := store.CaptureDirectory(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		buf, err := ExportFlightXLSX(dir)
		if err != nil {
			log.Printf("Error exporting capture session %d: %v", id, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=capture_%d.xlsx", id))
		w.Write(buf.Bytes())
	}
}
