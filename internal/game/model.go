package game

import (
	"encoding/json"
	"strings"
	"time"
)

type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusPlaying RoomStatus = "playing"
	StatusEnded   RoomStatus = "ended"
)

// QueueEntry is one candidate in a scope's waiting list, ordered by JoinedAt.
// Timestamps are unix milliseconds.
type QueueEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	JoinedAt    int64  `json:"joined_at"`
	LastSeen    int64  `json:"last_seen"`
}

type queueRecord struct {
	Entries []QueueEntry `json:"entries"`
}

type Player struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	LastSeen    int64  `json:"last_seen"`
}

// Room is the authoritative record of one active game. Order is a
// permutation of the Players keys and defines the drawer rotation.
// RoundResolvedAt is the resolution gate: zero at round start, set exactly
// once per round, and no scoring may happen after it is set.
type Room struct {
	ID              string             `json:"id"`
	Scope           string             `json:"scope"`
	Status          RoomStatus         `json:"status"`
	CreatedAt       int64              `json:"created_at"`
	UpdatedAt       int64              `json:"updated_at"`
	Players         map[string]*Player `json:"players"`
	Order           []string           `json:"order"`
	RoundNumber     int                `json:"round_number"`
	MaxRounds       int                `json:"max_rounds"`
	DrawerID        string             `json:"drawer_id,omitempty"`
	SecretWord      string             `json:"secret_word,omitempty"`
	RoundEndsAt     int64              `json:"round_ends_at,omitempty"`
	RoundResolvedAt int64              `json:"round_resolved_at,omitempty"`
	GuessedCorrect  []string           `json:"guessed_correct"`
}

// ensureDefaults backfills fields older records may lack, so the schema can
// evolve without breaking rooms that are already live.
func (r *Room) ensureDefaults() {
	if r.Players == nil {
		r.Players = make(map[string]*Player)
	}
	if r.Order == nil {
		r.Order = []string{}
	}
	if r.GuessedCorrect == nil {
		r.GuessedCorrect = []string{}
	}
	if r.Status == "" {
		r.Status = StatusWaiting
	}
	if r.MaxRounds <= 0 {
		r.MaxRounds = 3
	}
}

func decodeRoom(data []byte) (*Room, error) {
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	room.ensureDefaults()
	return &room, nil
}

func encodeRoom(room *Room) []byte {
	data, _ := json.Marshal(room)
	return data
}

func decodeQueue(data []byte) queueRecord {
	var record queueRecord
	if len(data) > 0 {
		_ = json.Unmarshal(data, &record)
	}
	if record.Entries == nil {
		record.Entries = []QueueEntry{}
	}
	return record
}

func encodeQueue(record queueRecord) []byte {
	data, _ := json.Marshal(record)
	return data
}

// decodeStringMap reads the member and room index records, which are plain
// string->string / string->int64 maps.
func decodeMemberIndex(data []byte) map[string]string {
	index := make(map[string]string)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &index)
	}
	return index
}

func decodeRoomIndex(data []byte) map[string]int64 {
	index := make(map[string]int64)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &index)
	}
	return index
}

func encodeJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

func (r *Room) IsMember(userID string) bool {
	_, ok := r.Players[userID]
	return ok
}

// touch bumps the monotonic staleness fence viewers use to discard
// out-of-order broadcasts.
func (r *Room) touch(now time.Time) {
	ms := now.UnixMilli()
	if ms <= r.UpdatedAt {
		ms = r.UpdatedAt + 1
	}
	r.UpdatedAt = ms
}

// PlayerView is the viewer-safe projection of a Player.
type PlayerView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	IsDrawer    bool   `json:"is_drawer"`
	HasGuessed  bool   `json:"has_guessed"`
}

// RoomView is the snapshot sent to viewers. MaskedWord shows underscores to
// guessers; Word carries the secret only in the drawer's personalized fetch
// and is never present in a broadcast snapshot.
type RoomView struct {
	ID             string       `json:"id"`
	Scope          string       `json:"scope"`
	Status         RoomStatus   `json:"status"`
	UpdatedAt      int64        `json:"updated_at"`
	Players        []PlayerView `json:"players"`
	Order          []string     `json:"order"`
	RoundNumber    int          `json:"round_number"`
	MaxRounds      int          `json:"max_rounds"`
	DrawerID       string       `json:"drawer_id,omitempty"`
	RoundEndsAt    int64        `json:"round_ends_at,omitempty"`
	MaskedWord     string       `json:"masked_word,omitempty"`
	Word           string       `json:"word,omitempty"`
	GuessedCorrect []string     `json:"guessed_correct"`
}

// View builds the personalized snapshot for one caller: the drawer sees the
// secret word, everyone else sees the mask.
func (r *Room) View(forUser string) RoomView {
	view := r.Redacted()
	if forUser != "" && forUser == r.DrawerID {
		view.Word = r.SecretWord
	}
	return view
}

// Redacted builds the broadcast-safe snapshot with the secret word stripped.
func (r *Room) Redacted() RoomView {
	guessed := make(map[string]bool, len(r.GuessedCorrect))
	for _, userID := range r.GuessedCorrect {
		guessed[userID] = true
	}

	players := make([]PlayerView, 0, len(r.Order))
	for _, userID := range r.Order {
		player, ok := r.Players[userID]
		if !ok {
			continue
		}
		players = append(players, PlayerView{
			UserID:      player.UserID,
			DisplayName: player.DisplayName,
			Score:       player.Score,
			IsDrawer:    player.UserID == r.DrawerID,
			HasGuessed:  guessed[player.UserID],
		})
	}

	return RoomView{
		ID:             r.ID,
		Scope:          r.Scope,
		Status:         r.Status,
		UpdatedAt:      r.UpdatedAt,
		Players:        players,
		Order:          append([]string(nil), r.Order...),
		RoundNumber:    r.RoundNumber,
		MaxRounds:      r.MaxRounds,
		DrawerID:       r.DrawerID,
		RoundEndsAt:    r.RoundEndsAt,
		MaskedWord:     maskWord(r.SecretWord),
		GuessedCorrect: append([]string(nil), r.GuessedCorrect...),
	}
}

// maskWord converts a word to underscores for display, preserving spaces,
// e.g. "ice cream" -> "_ _ _   _ _ _ _ _".
func maskWord(word string) string {
	if word == "" {
		return ""
	}
	masked := make([]string, 0, len(word))
	for _, r := range word {
		if r == ' ' {
			masked = append(masked, " ")
		} else {
			masked = append(masked, "_")
		}
	}
	return strings.Join(masked, " ")
}

// normalizeGuess lower-cases and trims a guess before the exact-match
// comparison with the secret word.
func normalizeGuess(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
