package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sketchmatch/server/internal/broadcast"
	"github.com/sketchmatch/server/internal/kv"
)

type capturedEvent struct {
	Channel string
	Type    string
	Data    json.RawMessage
}

// eventRecorder captures everything the coordinator publishes so tests can
// assert on broadcast side effects without a broker.
type eventRecorder struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (r *eventRecorder) publisher() broadcast.Publisher {
	return broadcast.PublisherFunc(func(ctx context.Context, channel string, payload []byte) error {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		_ = json.Unmarshal(payload, &msg)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, capturedEvent{Channel: channel, Type: msg.Type, Data: msg.Data})
		return nil
	})
}

func (r *eventRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Type == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(kind string) (capturedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == kind {
			return r.events[i], true
		}
	}
	return capturedEvent{}, false
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func testConfig() Config {
	return Config{
		MinPlayers:      2,
		MaxPlayers:      4,
		MaxRounds:       3,
		RoundDuration:   60 * time.Second,
		QuickStart:      10 * time.Second,
		QueueStaleAfter: 30 * time.Second,
		RoomIdleAfter:   5 * time.Minute,
		GuessAward:      100,
		DrawAward:       50,
	}
}

// testWords cycles a fixed list so the first round's word is always "alpha".
func testWords() WordSource {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	var mu sync.Mutex
	i := 0
	return WordSourceFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		word := words[i%len(words)]
		i++
		return word
	})
}

func newTestService(t *testing.T, cfg Config) (*Service, *kv.Memory, *eventRecorder) {
	t.Helper()
	store := kv.NewMemory()
	recorder := &eventRecorder{}
	coordinator := broadcast.NewCoordinator(recorder.publisher(), zerolog.Nop())
	svc := NewService(store, coordinator, testWords(), cfg, zerolog.Nop())
	return svc, store, recorder
}

var baseTime = time.UnixMilli(1_700_000_000_000)

// startTwoPlayerRoom queues alice and bob and returns the room they match
// into. Alice joined first, so she draws round one.
func startTwoPlayerRoom(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()

	result, err := svc.JoinQueue(ctx, "post1", "alice", "Alice", baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != JoinStatusQueued {
		t.Fatalf("alice should be queued, got %q", result.Status)
	}

	result, err = svc.JoinQueue(ctx, "post1", "bob", "Bob", baseTime.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != JoinStatusMatched {
		t.Fatalf("bob should be matched, got %q", result.Status)
	}
	return result.RoomID
}

// startRoomWith queues the given users far enough apart to trip the
// quick-start timeout on the last join.
func startRoomWith(t *testing.T, svc *Service, users ...string) string {
	t.Helper()
	ctx := context.Background()

	for _, user := range users[:len(users)-1] {
		if _, err := svc.JoinQueue(ctx, "post1", user, user, baseTime); err != nil {
			t.Fatal(err)
		}
	}
	result, err := svc.JoinQueue(ctx, "post1", users[len(users)-1], users[len(users)-1], baseTime.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != JoinStatusMatched {
		t.Fatalf("last join should trigger the match, got %q", result.Status)
	}
	return result.RoomID
}
