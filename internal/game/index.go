package game

import (
	"context"
	"errors"
	"time"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/kv"
)

// The user->room index is the single source of truth for "which room am I
// in", but it is never trusted blindly: a pointer at a room that no longer
// lists the user is stale (crash, partial teardown) and is cleared on read.

// GetUserRoom resolves the caller's current room, self-healing stale entries.
// An empty room id means the user is free to queue.
func (s *Service) GetUserRoom(ctx context.Context, scope, userID string) (string, error) {
	data, err := s.store.Get(ctx, memberIndexKey(scope))
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	roomID := decodeMemberIndex(data)[userID]
	if roomID == "" {
		return "", nil
	}

	room, err := s.loadRoom(ctx, roomID)
	if err == nil && room.IsMember(userID) {
		return roomID, nil
	}
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return "", err
	}

	// Stale pointer: the room is gone or dropped the user. Clear it.
	s.clearUserRooms(ctx, scope, userID)
	return "", nil
}

// assignUserRooms points every roster member at the freshly created room.
func (s *Service) assignUserRooms(ctx context.Context, scope, roomID string, userIDs []string) {
	key := memberIndexKey(scope)
	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		index := decodeMemberIndex(current)
		for _, userID := range userIDs {
			index[userID] = roomID
		}
		return kv.Mutation{Put: map[string][]byte{key: encodeJSON(index)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Str("room", roomID).Msg("assign user-room index")
	}
}

// clearUserRooms removes index entries; missing entries are fine.
func (s *Service) clearUserRooms(ctx context.Context, scope string, userIDs ...string) {
	key := memberIndexKey(scope)
	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		if !exists {
			return kv.Mutation{}, nil
		}
		index := decodeMemberIndex(current)
		changed := false
		for _, userID := range userIDs {
			if _, ok := index[userID]; ok {
				delete(index, userID)
				changed = true
			}
		}
		if !changed {
			return kv.Mutation{}, nil
		}
		return kv.Mutation{Put: map[string][]byte{key: encodeJSON(index)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("clear user-room index")
	}
}

// indexRoom records the room in the scope's enumeration index so sweeps can
// find it without scanning unrelated keys.
func (s *Service) indexRoom(ctx context.Context, scope, roomID string, now time.Time) {
	key := roomIndexKey(scope)
	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		index := decodeRoomIndex(current)
		index[roomID] = now.UnixMilli()
		return kv.Mutation{Put: map[string][]byte{key: encodeJSON(index)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Str("room", roomID).Msg("index room")
	}
}

func (s *Service) dropRoomIndex(ctx context.Context, scope string, roomIDs ...string) {
	key := roomIndexKey(scope)
	err := kv.Update(ctx, s.store, key, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		if !exists {
			return kv.Mutation{}, nil
		}
		index := decodeRoomIndex(current)
		changed := false
		for _, roomID := range roomIDs {
			if _, ok := index[roomID]; ok {
				delete(index, roomID)
				changed = true
			}
		}
		if !changed {
			return kv.Mutation{}, nil
		}
		return kv.Mutation{Put: map[string][]byte{key: encodeJSON(index)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("drop room index")
	}
}

func (s *Service) listRooms(ctx context.Context, scope string) (map[string]int64, error) {
	data, err := s.store.Get(ctx, roomIndexKey(scope))
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRoomIndex(data), nil
}

// registerScope tracks which scopes have activity, so the sweep knows where
// to look. Guarded by the same CAS discipline as every other shared key.
func (s *Service) registerScope(ctx context.Context, scope string, now time.Time) {
	err := kv.Update(ctx, s.store, scopeRegistryKey, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		registry := decodeRoomIndex(current)
		registry[scope] = now.UnixMilli()
		return kv.Mutation{Put: map[string][]byte{scopeRegistryKey: encodeJSON(registry)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("register scope")
	}
}

func (s *Service) deregisterScope(ctx context.Context, scope string) {
	err := kv.Update(ctx, s.store, scopeRegistryKey, kv.DefaultAttempts, func(current []byte, exists bool) (kv.Mutation, error) {
		if !exists {
			return kv.Mutation{}, nil
		}
		registry := decodeRoomIndex(current)
		if _, ok := registry[scope]; !ok {
			return kv.Mutation{}, nil
		}
		delete(registry, scope)
		return kv.Mutation{Put: map[string][]byte{scopeRegistryKey: encodeJSON(registry)}}, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("deregister scope")
	}
}

func (s *Service) listScopes(ctx context.Context) ([]string, error) {
	data, err := s.store.Get(ctx, scopeRegistryKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	registry := decodeRoomIndex(data)
	scopes := make([]string, 0, len(registry))
	for scope := range registry {
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

func (s *Service) loadRoom(ctx context.Context, roomID string) (*Room, error) {
	data, err := s.store.Get(ctx, roomKey(roomID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRoom(data)
}

// teardownRoom deletes a room and every pointer at it, then tells viewers.
// Index entries are cleared before the record so a half-finished teardown
// leaves only self-healing stale pointers behind.
func (s *Service) teardownRoom(ctx context.Context, room *Room, reason string) {
	userIDs := make([]string, 0, len(room.Players))
	for userID := range room.Players {
		userIDs = append(userIDs, userID)
	}
	s.clearUserRooms(ctx, room.Scope, userIDs...)
	s.dropRoomIndex(ctx, room.Scope, room.ID)

	if err := s.store.Delete(ctx, roomKey(room.ID)); err != nil {
		s.log.Warn().Err(err).Str("room", room.ID).Msg("delete room record")
	}

	s.events.Event(ctx, room.Scope, room.ID, broadcast.TypeRoundEnded, broadcast.RoundEndedData{
		RoomID:      room.ID,
		RoundNumber: room.RoundNumber,
		Reason:      reason,
		GameEnded:   true,
	})
	s.log.Info().Str("room", room.ID).Str("scope", room.Scope).Str("reason", reason).Msg("room torn down")
}
