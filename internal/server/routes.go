package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all application routes:
// health check, stats, WebSocket endpoint, and test page.
func SetupRoutes(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	// Method checking stays in the handler so non-GET requests get its message.
	r.HandleFunc("/ws", h.WebSocketHandler)
	return r
}
