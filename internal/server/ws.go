package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sketchmatch/server/internal/broadcast"
)

// handleWebSocket bridges pub/sub to one viewer connection. The caller is
// subscribed to their personal channel plus the channel of whatever room the
// index currently places them in; after a match_found the client reconnects
// to pick up the new room channel. Delivery stays at-most-effort end to end —
// clients reconcile through the state fetch.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		// Browsers cannot set headers on websocket dials.
		if userID := r.URL.Query().Get("user_id"); userID != "" {
			caller = identity{UserID: userID, DisplayName: userID}
		} else {
			respondErrorMessage(w, http.StatusBadRequest, "missing user identity")
			return
		}
	}
	scope := mux.Vars(r)["scope"]

	channels := []string{broadcast.UserChannel(scope, caller.UserID)}
	if roomID, err := s.svc.GetUserRoom(r.Context(), scope, caller.UserID); err == nil && roomID != "" {
		channels = append(channels, broadcast.RoomChannel(scope, roomID))
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.sub.Subscribe(ctx, channels...)
	if err != nil {
		s.log.Error().Err(err).Str("scope", scope).Msg("subscribe failed")
		respondErrorMessage(w, http.StatusBadGateway, "subscription unavailable")
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Debug().
		Str("scope", scope).
		Str("user", caller.UserID).
		Strs("channels", channels).
		Msg("viewer connected")

	// Reads only detect the close; this gateway accepts no client commands.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
