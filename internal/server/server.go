// Package server exposes the game service over HTTP: the matchmaking and
// room mutation endpoints, plus the websocket gateway that relays pub/sub
// broadcasts to connected viewers.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/game"
)

type Server struct {
	svc *game.Service
	sub broadcast.Subscriber
	log zerolog.Logger

	// now is swappable in tests.
	now func() time.Time

	upgrader websocket.Upgrader
}

func New(svc *game.Service, sub broadcast.Subscriber, log zerolog.Logger) *Server {
	return &Server{
		svc: svc,
		sub: sub,
		log: log,
		now: time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
