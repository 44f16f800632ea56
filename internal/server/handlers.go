package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/game"
)

// Identity rides on headers so the same client code works for plain fetches
// and for the polling loop. No authentication: the upstream embedding this
// service owns that.
type identity struct {
	UserID      string
	DisplayName string
}

func callerIdentity(r *http.Request) (identity, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return identity{}, false
	}
	name := r.Header.Get("X-User-Name")
	if name == "" {
		name = userID
	}
	return identity{UserID: userID, DisplayName: name}, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondErrorMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		respondErrorMessage(w, http.StatusNotFound, "room not found")
	case errors.Is(err, game.ErrNotMember):
		respondErrorMessage(w, http.StatusForbidden, "not a member of this room")
	case errors.Is(err, game.ErrNotDrawer):
		respondErrorMessage(w, http.StatusForbidden, "only the drawer may do that")
	case errors.Is(err, game.ErrDrawerGuess):
		respondErrorMessage(w, http.StatusForbidden, "the drawer may not guess")
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueueJoin(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	scope := mux.Vars(r)["scope"]

	result, err := s.svc.JoinQueue(r.Context(), scope, caller.UserID, caller.DisplayName, s.now())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueueLeave(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	scope := mux.Vars(r)["scope"]

	if err := s.svc.LeaveQueue(r.Context(), scope, caller.UserID, s.now()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	scope := mux.Vars(r)["scope"]

	if err := s.svc.Heartbeat(r.Context(), scope, caller.UserID, s.now()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	view, err := s.svc.State(r.Context(), vars["scope"], vars["roomId"], caller.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type guessRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		respondErrorMessage(w, http.StatusBadRequest, "guess text required")
		return
	}

	result, err := s.svc.SubmitGuess(r.Context(), vars["scope"], vars["roomId"], caller.UserID, req.Text, s.now())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	var stroke broadcast.StrokeData
	if err := json.NewDecoder(r.Body).Decode(&stroke); err != nil || len(stroke.Points) == 0 {
		respondErrorMessage(w, http.StatusBadRequest, "stroke points required")
		return
	}

	if err := s.svc.SubmitStroke(r.Context(), vars["scope"], vars["roomId"], caller.UserID, stroke); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearCanvas(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	if err := s.svc.ClearCanvas(r.Context(), vars["scope"], vars["roomId"], caller.UserID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	advanced, err := s.svc.SubmitAdvance(r.Context(), vars["scope"], vars["roomId"], caller.UserID, s.now())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"advanced": advanced})
}

func (s *Server) handleRoomLeave(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		respondErrorMessage(w, http.StatusBadRequest, "missing X-User-Id")
		return
	}
	vars := mux.Vars(r)

	if err := s.svc.LeaveRoom(r.Context(), vars["scope"], vars["roomId"], caller.UserID, s.now()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}
