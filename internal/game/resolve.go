package game

import (
	"context"
	"errors"
	"time"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/kv"
)

// Resolution engine. Exactly one resolution happens per round: the gate
// (round_resolved_at), the score mutation, and the follow-up rotation commit
// in a single transaction on the room key. A concurrent trigger that loses
// the race re-reads a room whose round already moved on and becomes a no-op.

type GuessResult struct {
	Correct  bool `json:"correct"`
	Resolved bool `json:"resolved"`
	Ended    bool `json:"ended"`
}

// SubmitGuess evaluates a guess. The guess is echoed to the room as a chat
// event whatever the outcome; only the first correct guess of a round
// mutates state.
func (s *Service) SubmitGuess(ctx context.Context, scope, roomID, userID, text string, now time.Time) (GuessResult, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return GuessResult{}, err
	}
	player, ok := room.Players[userID]
	if !ok {
		return GuessResult{}, ErrNotMember
	}
	if userID == room.DrawerID {
		return GuessResult{}, ErrDrawerGuess
	}

	guess := normalizeGuess(text)
	correct := room.Status == StatusPlaying && guess != "" && guess == normalizeGuess(room.SecretWord)

	// Guessing is visible to everyone, right or wrong.
	s.events.Event(ctx, scope, roomID, broadcast.TypeChat, broadcast.ChatData{
		UserID:      userID,
		DisplayName: player.DisplayName,
		Text:        text,
		Correct:     correct,
	})

	if !correct {
		return GuessResult{}, nil
	}

	result := GuessResult{Correct: true}
	outcome, err := s.resolveRound(ctx, roomID, now, func(room *Room) (string, bool) {
		// Gate sequence, re-read under the transaction.
		if room.RoundResolvedAt != 0 {
			return "", false
		}
		for _, winner := range room.GuessedCorrect {
			if winner == userID {
				return "", false
			}
		}
		if guess != normalizeGuess(room.SecretWord) {
			// The round rotated underneath us; this guess lost.
			return "", false
		}
		room.GuessedCorrect = append(room.GuessedCorrect, userID)
		if guesser, ok := room.Players[userID]; ok {
			guesser.Score += s.cfg.GuessAward
		}
		if drawer, ok := room.Players[room.DrawerID]; ok {
			drawer.Score += s.cfg.DrawAward
		}
		return broadcast.ReasonGuessed, true
	})
	if err != nil {
		return result, err
	}
	result.Resolved = outcome.resolved
	result.Ended = outcome.ended
	return result, nil
}

// SubmitAdvance is the client-driven deadline trigger: a no-op unless the
// round deadline has passed.
func (s *Service) SubmitAdvance(ctx context.Context, scope, roomID, userID string, now time.Time) (bool, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !room.IsMember(userID) {
		return false, ErrNotMember
	}
	outcome, err := s.advanceIfDue(ctx, roomID, now)
	if err != nil {
		return false, err
	}
	return outcome.resolved, nil
}

// advanceIfDue resolves a timed-out round with no scoring. Shared by the
// client advance request and the periodic sweep.
func (s *Service) advanceIfDue(ctx context.Context, roomID string, now time.Time) (resolveOutcome, error) {
	return s.resolveRound(ctx, roomID, now, func(room *Room) (string, bool) {
		if !roundDue(room, now) {
			return "", false
		}
		return broadcast.ReasonTime, true
	})
}

type resolveOutcome struct {
	resolved bool
	ended    bool
}

// resolveRound runs the shared resolution transaction: decide() inspects the
// freshly read room and applies any scoring; on a true decision the gate is
// set and advanceOrEnd rotates or ends the room, all in one conditional
// write. Retry exhaustion is benign — the triggering condition stays true
// and a later call re-fires it.
func (s *Service) resolveRound(ctx context.Context, roomID string, now time.Time, decide func(*Room) (string, bool)) (resolveOutcome, error) {
	key := roomKey(roomID)
	var (
		outcome  resolveOutcome
		reason   string
		snapshot *Room
		word     string
		round    int
	)

	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		outcome, reason, snapshot = resolveOutcome{}, "", nil
		if !exists {
			return kv.Mutation{}, ErrRoomNotFound
		}
		room, err := decodeRoom(current)
		if err != nil {
			return kv.Mutation{}, err
		}
		if room.Status != StatusPlaying {
			return kv.Mutation{}, nil
		}

		resolvedReason, resolve := decide(room)
		if !resolve {
			return kv.Mutation{}, nil
		}

		if room.RoundResolvedAt == 0 {
			room.RoundResolvedAt = now.UnixMilli()
		}
		word = room.SecretWord
		round = room.RoundNumber
		reason = resolvedReason
		outcome.resolved = true
		outcome.ended = advanceOrEnd(room, s.words.Draw(), s.cfg.RoundDuration, now)
		snapshot = room
		return kv.Mutation{Put: map[string][]byte{key: encodeRoom(room)}}, nil
	})
	if errors.Is(err, kv.ErrConflict) {
		// Deferred to the next trigger; the deadline or the correct guess
		// does not stop being true.
		s.log.Warn().Str("room", roomID).Msg("resolution retries exhausted, deferring")
		return resolveOutcome{}, nil
	}
	if err != nil {
		return resolveOutcome{}, err
	}
	if !outcome.resolved {
		return outcome, nil
	}

	s.indexRoom(ctx, snapshot.Scope, roomID, now)
	s.events.Event(ctx, snapshot.Scope, roomID, broadcast.TypeRoundEnded, broadcast.RoundEndedData{
		RoomID:      roomID,
		RoundNumber: round,
		Reason:      reason,
		Word:        word,
		GameEnded:   outcome.ended,
	})
	s.events.RoomState(ctx, snapshot.Scope, roomID, snapshot.Redacted())

	if outcome.ended {
		// The record survives for final-score fetches until the sweep
		// reclaims it, but members are released to matchmaking now.
		userIDs := make([]string, 0, len(snapshot.Players))
		for id := range snapshot.Players {
			userIDs = append(userIDs, id)
		}
		s.clearUserRooms(ctx, snapshot.Scope, userIDs...)
	}

	s.log.Info().
		Str("room", roomID).
		Int("round", round).
		Str("reason", reason).
		Bool("ended", outcome.ended).
		Msg("round resolved")
	return outcome, nil
}

// LeaveRoom removes the player. A room left with fewer than two members is
// force-ended and torn down; a departing drawer forces the round to resolve.
func (s *Service) LeaveRoom(ctx context.Context, scope, roomID, userID string, now time.Time) error {
	key := roomKey(roomID)
	var (
		snapshot *Room
		teardown bool
		advanced bool
		round    int
		word     string
		leftName string
	)

	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		snapshot, teardown, advanced = nil, false, false
		if !exists {
			return kv.Mutation{}, ErrRoomNotFound
		}
		room, err := decodeRoom(current)
		if err != nil {
			return kv.Mutation{}, err
		}
		if !room.IsMember(userID) {
			// Already gone; leaving twice is fine.
			return kv.Mutation{}, nil
		}

		leftName = room.Players[userID].DisplayName
		wasDrawer := room.DrawerID == userID
		delete(room.Players, userID)
		order := room.Order[:0]
		for _, id := range room.Order {
			if id != userID {
				order = append(order, id)
			}
		}
		room.Order = order
		round = room.RoundNumber
		word = room.SecretWord

		if len(room.Players) < 2 {
			endRoom(room, now)
			snapshot = room
			teardown = true
			return kv.Mutation{Delete: []string{key}}, nil
		}

		if wasDrawer && room.Status == StatusPlaying {
			if room.RoundResolvedAt == 0 {
				room.RoundResolvedAt = now.UnixMilli()
			}
			advanceOrEnd(room, s.words.Draw(), s.cfg.RoundDuration, now)
			advanced = true
		}
		room.touch(now)
		snapshot = room
		return kv.Mutation{Put: map[string][]byte{key: encodeRoom(room)}}, nil
	})
	if errors.Is(err, kv.ErrConflict) {
		s.log.Warn().Str("room", roomID).Str("user", userID).Msg("leave retries exhausted, deferring")
		return nil
	}
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	s.clearUserRooms(ctx, scope, userID)

	if teardown {
		s.teardownRoom(ctx, snapshot, broadcast.ReasonLeft)
		return nil
	}

	s.events.Event(ctx, scope, roomID, broadcast.TypeSystem, broadcast.SystemData{
		Text: leftName + " left the game",
	})
	if advanced {
		s.indexRoom(ctx, scope, roomID, now)
		s.events.Event(ctx, scope, roomID, broadcast.TypeRoundEnded, broadcast.RoundEndedData{
			RoomID:      roomID,
			RoundNumber: round,
			Reason:      broadcast.ReasonLeft,
			Word:        word,
			GameEnded:   snapshot.Status == StatusEnded,
		})
	}
	s.events.RoomState(ctx, scope, roomID, snapshot.Redacted())
	return nil
}

// SubmitStroke relays a drawing fragment to the room. The server validates
// the drawer and forwards; it does not model the canvas raster.
func (s *Service) SubmitStroke(ctx context.Context, scope, roomID, userID string, stroke broadcast.StrokeData) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return ErrNotMember
	}
	if room.Status != StatusPlaying || room.DrawerID != userID {
		return ErrNotDrawer
	}
	s.events.Event(ctx, scope, roomID, broadcast.TypeDraw, stroke)
	return nil
}

// ClearCanvas broadcasts a canvas reset on behalf of the drawer.
func (s *Service) ClearCanvas(ctx context.Context, scope, roomID, userID string) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return ErrNotMember
	}
	if room.Status != StatusPlaying || room.DrawerID != userID {
		return ErrNotDrawer
	}
	s.events.Event(ctx, scope, roomID, broadcast.TypeCanvasClear, broadcast.CanvasClearData{RoomID: roomID})
	return nil
}

// State returns the personalized snapshot: the drawer gets the secret word,
// everyone else the mask.
func (s *Service) State(ctx context.Context, scope, roomID, userID string) (RoomView, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return room.View(userID), nil
}
