package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Questroom/backend/internal/config"
	"github.com/BioHazard786/Questroom/backend/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,

	// Headsets connect from native apps without an Origin header.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Routes registers every endpoint of the relay server on a new mux.
func Routes(hub *signaling.Hub, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthCheck)
	mux.HandleFunc("GET /rooms", ListRooms(hub))
	mux.HandleFunc("/ws", ServeWs(hub, cfg))
	return mux
}

// HealthCheck reports liveness.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Relay server is healthy."))
}

// ListRooms serves the active rooms as JSON.
func ListRooms(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := hub.Rooms(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rooms); err != nil {
			log.Warn().Err(err).Msg("encode room list")
		}
	}
}

// ServeWs upgrades the request and starts the client's pumps.
func ServeWs(hub *signaling.Hub, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := signaling.NewClient(hub, conn, cfg.PoseRate, cfg.PoseBurst)
		if !hub.Accept(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
