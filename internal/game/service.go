package game

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/kv"
)

// Config carries the game rules. Everything is server-enforced; clients only
// ever see the consequences.
type Config struct {
	MinPlayers int
	MaxPlayers int
	MaxRounds  int

	// RoundDuration bounds one drawer/word cycle.
	RoundDuration time.Duration
	// QuickStart is how long the oldest queued candidate waits before a
	// below-capacity (but >= MinPlayers) group starts anyway.
	QuickStart time.Duration
	// QueueStaleAfter evicts queue entries that stopped heartbeating.
	QueueStaleAfter time.Duration
	// RoomIdleAfter reclaims rooms nobody has touched.
	RoomIdleAfter time.Duration

	// Fixed score awards for the first correct guesser and the drawer.
	GuessAward int
	DrawAward  int
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:      2,
		MaxPlayers:      8,
		MaxRounds:       3,
		RoundDuration:   90 * time.Second,
		QuickStart:      15 * time.Second,
		QueueStaleAfter: 30 * time.Second,
		RoomIdleAfter:   10 * time.Minute,
		GuessAward:      100,
		DrawAward:       50,
	}
}

// Service is the matchmaking scheduler, room store, round machine, and
// resolution engine in one request-scoped facade. It holds no in-process
// locks: every mutation goes through the store's optimistic transactions and
// any number of handlers may call it concurrently.
type Service struct {
	store  kv.Store
	events *broadcast.Coordinator
	words  WordSource
	cfg    Config
	log    zerolog.Logger
}

func NewService(store kv.Store, events *broadcast.Coordinator, words WordSource, cfg Config, log zerolog.Logger) *Service {
	if cfg.MinPlayers < 2 {
		cfg.MinPlayers = 2
	}
	if cfg.MaxPlayers < cfg.MinPlayers {
		cfg.MaxPlayers = cfg.MinPlayers
	}
	return &Service{
		store:  store,
		events: events,
		words:  words,
		cfg:    cfg,
		log:    log,
	}
}
