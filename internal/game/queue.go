package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/kv"
)

// Queue scheduler. The waiting list is strict FIFO per scope; a match starts
// when the queue hits capacity, or when at least MinPlayers are queued and
// the oldest has waited out the quick-start timeout. The read and the
// removal of the picked roster happen in one optimistic transaction so two
// concurrent evaluations can never pick overlapping entries.

// Queue join outcomes.
const (
	JoinStatusQueued  = "queued"
	JoinStatusMatched = "matched"
)

type JoinResult struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queue_size,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
}

// JoinQueue upserts the caller into the scope's waiting list, refreshing
// last_seen and display name on re-join, then evaluates the start condition.
// A caller who is already in a live room is reported as matched immediately.
func (s *Service) JoinQueue(ctx context.Context, scope, userID, displayName string, now time.Time) (JoinResult, error) {
	if roomID, err := s.GetUserRoom(ctx, scope, userID); err != nil {
		return JoinResult{}, err
	} else if roomID != "" {
		return JoinResult{Status: JoinStatusMatched, RoomID: roomID}, nil
	}

	s.registerScope(ctx, scope, now)

	size := 0
	mutate := func(record *queueRecord) {
		record.Entries = pruneStale(record.Entries, now, s.cfg.QueueStaleAfter)
		upserted := false
		for i := range record.Entries {
			if record.Entries[i].UserID == userID {
				record.Entries[i].DisplayName = displayName
				record.Entries[i].LastSeen = now.UnixMilli()
				upserted = true
				break
			}
		}
		if !upserted {
			record.Entries = append(record.Entries, QueueEntry{
				UserID:      userID,
				DisplayName: displayName,
				JoinedAt:    now.UnixMilli(),
				LastSeen:    now.UnixMilli(),
			})
		}
		size = len(record.Entries)
	}
	if err := s.updateQueue(ctx, scope, mutate); err != nil {
		return JoinResult{}, err
	}

	room, err := s.PickIfReady(ctx, scope, now)
	if err != nil {
		return JoinResult{}, err
	}
	if room != nil && room.IsMember(userID) {
		return JoinResult{Status: JoinStatusMatched, RoomID: room.ID}, nil
	}
	return JoinResult{Status: JoinStatusQueued, QueueSize: size}, nil
}

// LeaveQueue removes the caller's entry; absent entries are a no-op.
func (s *Service) LeaveQueue(ctx context.Context, scope, userID string, now time.Time) error {
	return s.updateQueue(ctx, scope, func(record *queueRecord) {
		entries := record.Entries[:0]
		for _, entry := range record.Entries {
			if entry.UserID != userID {
				entries = append(entries, entry)
			}
		}
		record.Entries = entries
	})
}

// Heartbeat refreshes the caller's liveness wherever they currently live:
// their queue entry, their player record, or both (multi-device callers).
func (s *Service) Heartbeat(ctx context.Context, scope, userID string, now time.Time) error {
	err := s.updateQueue(ctx, scope, func(record *queueRecord) {
		for i := range record.Entries {
			if record.Entries[i].UserID == userID {
				record.Entries[i].LastSeen = now.UnixMilli()
				return
			}
		}
	})
	if err != nil {
		return err
	}

	roomID, err := s.GetUserRoom(ctx, scope, userID)
	if err != nil || roomID == "" {
		return err
	}
	key := roomKey(roomID)
	err = kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		if !exists {
			return kv.Mutation{}, nil
		}
		room, err := decodeRoom(current)
		if err != nil {
			return kv.Mutation{}, err
		}
		player, ok := room.Players[userID]
		if !ok {
			return kv.Mutation{}, nil
		}
		player.LastSeen = now.UnixMilli()
		room.touch(now)
		return kv.Mutation{Put: map[string][]byte{key: encodeRoom(room)}}, nil
	})
	if errors.Is(err, kv.ErrConflict) {
		// Liveness is refreshed by the next heartbeat anyway.
		return nil
	}
	return err
}

// SweepQueue drops entries whose last_seen fell behind the staleness
// threshold. Called by the periodic sweep.
func (s *Service) SweepQueue(ctx context.Context, scope string, now time.Time) error {
	return s.updateQueue(ctx, scope, func(record *queueRecord) {
		record.Entries = pruneStale(record.Entries, now, s.cfg.QueueStaleAfter)
	})
}

// PickIfReady evaluates the start condition and, when it holds, atomically
// removes the picked roster and creates the room. Returns nil when no match
// started.
func (s *Service) PickIfReady(ctx context.Context, scope string, now time.Time) (*Room, error) {
	key := queueKey(scope)
	var roster []QueueEntry

	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		roster = nil
		record := decodeQueue(current)
		record.Entries = pruneStale(record.Entries, now, s.cfg.QueueStaleAfter)

		if !s.shouldStart(record.Entries, now) {
			if !exists && len(record.Entries) == 0 {
				return kv.Mutation{}, nil
			}
			return kv.Mutation{Put: map[string][]byte{key: encodeQueue(record)}}, nil
		}

		picked := len(record.Entries)
		if picked > s.cfg.MaxPlayers {
			picked = s.cfg.MaxPlayers
		}
		// Oldest first, no reordering.
		roster = append([]QueueEntry(nil), record.Entries[:picked]...)
		record.Entries = record.Entries[picked:]
		return kv.Mutation{Put: map[string][]byte{key: encodeQueue(record)}}, nil
	})
	if errors.Is(err, kv.ErrConflict) {
		// Another evaluation owns the queue right now; it will start the
		// match if one is due.
		s.log.Debug().Str("scope", scope).Msg("queue pick lost the race")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if roster == nil {
		return nil, nil
	}
	return s.createRoom(ctx, scope, roster, now)
}

// shouldStart applies the dual condition: full room, or enough players with
// the oldest candidate past the quick-start timeout.
func (s *Service) shouldStart(entries []QueueEntry, now time.Time) bool {
	if len(entries) < s.cfg.MinPlayers {
		return false
	}
	if len(entries) >= s.cfg.MaxPlayers {
		return true
	}
	oldest := entries[0].JoinedAt
	return now.UnixMilli()-oldest >= s.cfg.QuickStart.Milliseconds()
}

// createRoom turns a picked roster into a live room: record, indexes, first
// round, and the match-found notifications.
func (s *Service) createRoom(ctx context.Context, scope string, roster []QueueEntry, now time.Time) (*Room, error) {
	room := &Room{
		ID:        uuid.NewString(),
		Scope:     scope,
		Status:    StatusWaiting,
		CreatedAt: now.UnixMilli(),
		Players:   make(map[string]*Player, len(roster)),
		Order:     make([]string, 0, len(roster)),
		MaxRounds: s.cfg.MaxRounds,
	}
	for _, entry := range roster {
		room.Players[entry.UserID] = &Player{
			UserID:      entry.UserID,
			DisplayName: entry.DisplayName,
			LastSeen:    now.UnixMilli(),
		}
		room.Order = append(room.Order, entry.UserID)
	}
	startRound(room, s.words.Draw(), s.cfg.RoundDuration, now)

	if err := s.store.Put(ctx, roomKey(room.ID), encodeRoom(room)); err != nil {
		return nil, err
	}
	s.indexRoom(ctx, scope, room.ID, now)
	s.assignUserRooms(ctx, scope, room.ID, room.Order)

	for _, userID := range room.Order {
		s.events.MatchFound(ctx, scope, userID, room.ID)
	}
	s.events.RoomState(ctx, scope, room.ID, room.Redacted())
	s.events.Event(ctx, scope, room.ID, broadcast.TypeSystem, broadcast.SystemData{
		Text: "Match found, round 1 is starting",
	})

	s.log.Info().
		Str("scope", scope).
		Str("room", room.ID).
		Int("players", len(room.Order)).
		Msg("match started")
	return room, nil
}

// updateQueue applies mutate under the queue transaction; after the retry
// budget it degrades to a last-resort read-modify-write so queue maintenance
// never wedges under extreme contention. The narrow race window this accepts
// is bounded to the low-stakes upsert/removal paths.
func (s *Service) updateQueue(ctx context.Context, scope string, mutate func(*queueRecord)) error {
	key := queueKey(scope)
	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		record := decodeQueue(current)
		mutate(&record)
		if !exists && len(record.Entries) == 0 {
			return kv.Mutation{}, nil
		}
		return kv.Mutation{Put: map[string][]byte{key: encodeQueue(record)}}, nil
	})
	if !errors.Is(err, kv.ErrConflict) {
		return err
	}

	s.log.Warn().Str("scope", scope).Msg("queue transaction exhausted retries, falling back")
	data, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	record := decodeQueue(data)
	mutate(&record)
	return s.store.Put(ctx, key, encodeQueue(record))
}

func pruneStale(entries []QueueEntry, now time.Time, threshold time.Duration) []QueueEntry {
	cutoff := now.UnixMilli() - threshold.Milliseconds()
	kept := entries[:0]
	for _, entry := range entries {
		if entry.LastSeen >= cutoff {
			kept = append(kept, entry)
		}
	}
	return kept
}
