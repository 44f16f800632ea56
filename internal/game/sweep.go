package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sketchmatch/server/internal/broadcast"
)

// The periodic sweep is the only thing that progresses state without a
// client request: it prunes stale queue entries, starts overdue matches,
// advances rounds whose deadline passed with nobody watching, and reclaims
// abandoned or understaffed rooms.

type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run sweeps on a ticker until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.svc.Sweep(ctx, time.Now()); err != nil {
				w.log.Warn().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

// Sweep runs one pass over every tracked scope.
func (s *Service) Sweep(ctx context.Context, now time.Time) error {
	scopes, err := s.listScopes(ctx)
	if err != nil {
		return err
	}
	for _, scope := range scopes {
		if err := s.SweepScope(ctx, scope, now); err != nil {
			s.log.Warn().Err(err).Str("scope", scope).Msg("scope sweep failed")
		}
	}
	return nil
}

// SweepScope maintains one scope: queue staleness + match start, then room
// GC and forced round advancement. A scope with nothing left to track is
// dropped from the registry.
func (s *Service) SweepScope(ctx context.Context, scope string, now time.Time) error {
	if err := s.SweepQueue(ctx, scope, now); err != nil {
		return err
	}
	if _, err := s.PickIfReady(ctx, scope, now); err != nil {
		return err
	}

	rooms, err := s.listRooms(ctx, scope)
	if err != nil {
		return err
	}
	for roomID, touched := range rooms {
		s.sweepRoom(ctx, scope, roomID, touched, now)
	}

	s.maybeDropScope(ctx, scope, now)
	return nil
}

func (s *Service) sweepRoom(ctx context.Context, scope, roomID string, indexedAt int64, now time.Time) {
	room, err := s.loadRoom(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		// Index entry outlived the record.
		s.dropRoomIndex(ctx, scope, roomID)
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Msg("sweep load room")
		return
	}

	lastTouched := room.UpdatedAt
	if indexedAt > lastTouched {
		lastTouched = indexedAt
	}
	idle := now.UnixMilli()-lastTouched > s.cfg.RoomIdleAfter.Milliseconds()

	if len(room.Players) < 2 || idle {
		s.teardownRoom(ctx, room, broadcast.ReasonLeft)
		return
	}

	if roundDue(room, now) {
		if _, err := s.advanceIfDue(ctx, roomID, now); err != nil && !errors.Is(err, ErrRoomNotFound) {
			s.log.Warn().Err(err).Str("room", roomID).Msg("sweep advance")
		}
	}
}

// maybeDropScope deregisters a scope with an empty queue and no rooms.
func (s *Service) maybeDropScope(ctx context.Context, scope string, now time.Time) {
	rooms, err := s.listRooms(ctx, scope)
	if err != nil || len(rooms) > 0 {
		return
	}
	data, err := s.store.Get(ctx, queueKey(scope))
	if err == nil && len(decodeQueue(data).Entries) > 0 {
		return
	}
	s.deregisterScope(ctx, scope)
}
