package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	// OPTIONS is listed everywhere so preflights reach the CORS middleware.
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/scopes/{scope}/queue/join", s.handleQueueJoin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/queue/leave", s.handleQueueLeave).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/heartbeat", s.handleHeartbeat).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/state", s.handleRoomState).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/guess", s.handleGuess).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/draw", s.handleDraw).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/clear", s.handleClearCanvas).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/advance", s.handleAdvance).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/scopes/{scope}/rooms/{roomId}/leave", s.handleRoomLeave).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/ws/{scope}", s.handleWebSocket)

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-User-Id, X-User-Name")

		// Websocket upgrades skip the preflight handling.
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
