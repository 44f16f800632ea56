package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchmatch/server/internal/broadcast"
)

func TestCorrectGuessScoresAndAdvances(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)
	now := baseTime.Add(20 * time.Second)

	// Alice joined first and draws round one; the word source dealt "alpha".
	result, err := svc.SubmitGuess(ctx, "post1", roomID, "bob", "  Alpha ", now)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.True(t, result.Resolved)
	assert.False(t, result.Ended)

	view, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, view.RoundNumber)
	assert.Equal(t, "bob", view.DrawerID, "rotation moves one past the old drawer")

	scores := map[string]int{}
	for _, player := range view.Players {
		scores[player.UserID] = player.Score
	}
	assert.Equal(t, 100, scores["bob"], "guesser award")
	assert.Equal(t, 50, scores["alice"], "drawer award")

	event, ok := events.last(broadcast.TypeRoundEnded)
	require.True(t, ok)
	var ended broadcast.RoundEndedData
	require.NoError(t, json.Unmarshal(event.Data, &ended))
	assert.Equal(t, broadcast.ReasonGuessed, ended.Reason)
	assert.Equal(t, 1, ended.RoundNumber)
	assert.Equal(t, "alpha", ended.Word)
	assert.False(t, ended.GameEnded)

	// The new drawer can fetch the fresh secret; the old one is retired.
	drawerView, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, drawerView.Word)
	assert.NotEqual(t, "alpha", drawerView.Word)
}

func TestWrongGuessOnlyEchoes(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)
	now := baseTime.Add(20 * time.Second)
	events.reset()

	result, err := svc.SubmitGuess(ctx, "post1", roomID, "bob", "zebra", now)
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.False(t, result.Resolved)

	// The guess is visible to the room, flagged incorrect.
	event, ok := events.last(broadcast.TypeChat)
	require.True(t, ok)
	var chat broadcast.ChatData
	require.NoError(t, json.Unmarshal(event.Data, &chat))
	assert.Equal(t, "bob", chat.UserID)
	assert.False(t, chat.Correct)

	view, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, view.RoundNumber)
	for _, player := range view.Players {
		assert.Zero(t, player.Score)
	}
	assert.Zero(t, events.count(broadcast.TypeRoundEnded))
}

func TestDrawerCannotGuess(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)

	_, err := svc.SubmitGuess(ctx, "post1", roomID, "alice", "alpha", baseTime.Add(20*time.Second))
	assert.ErrorIs(t, err, ErrDrawerGuess)
}

func TestNonMemberCannotGuess(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)

	_, err := svc.SubmitGuess(ctx, "post1", roomID, "mallory", "alpha", baseTime.Add(20*time.Second))
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestGuessUnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig())

	_, err := svc.SubmitGuess(context.Background(), "post1", "nope", "bob", "alpha", baseTime)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestConcurrentCorrectGuessesResolveOnce(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startRoomWith(t, svc, "alice", "bob", "carol")
	now := baseTime.Add(20 * time.Second)
	events.reset()

	// Both guessers submit the word inside the same retry window.
	var wg sync.WaitGroup
	for _, user := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := svc.SubmitGuess(ctx, "post1", roomID, user, "alpha", now)
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	view, err := svc.State(ctx, "post1", roomID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, view.RoundNumber, "exactly one advance")

	scores := map[string]int{}
	for _, player := range view.Players {
		scores[player.UserID] = player.Score
	}
	// Exactly one guesser was credited as first correct.
	assert.Equal(t, 100, scores["bob"]+scores["carol"])
	assert.Equal(t, 50, scores["alice"], "drawer scored once")
	assert.Equal(t, 1, events.count(broadcast.TypeRoundEnded))
}

func TestAdvanceBeforeDeadlineIsNoop(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)
	events.reset()

	advanced, err := svc.SubmitAdvance(ctx, "post1", roomID, "bob", baseTime.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Zero(t, events.count(broadcast.TypeRoundEnded))
}

func TestAdvanceAfterDeadlineIsIdempotent(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)
	events.reset()

	// Round one started at +10s, so its 60s deadline passes at +70s.
	due := baseTime.Add(75 * time.Second)
	advanced, err := svc.SubmitAdvance(ctx, "post1", roomID, "bob", due)
	require.NoError(t, err)
	assert.True(t, advanced)

	// A second client repeating the trigger is a no-op: the fresh round's
	// deadline is in the future again.
	advanced, err = svc.SubmitAdvance(ctx, "post1", roomID, "alice", due)
	require.NoError(t, err)
	assert.False(t, advanced)

	assert.Equal(t, 1, events.count(broadcast.TypeRoundEnded))

	view, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, view.RoundNumber)
	for _, player := range view.Players {
		assert.Zero(t, player.Score, "timeouts never score")
	}
}

func TestRoomEndsAfterMaxRounds(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)

	now := baseTime.Add(10 * time.Second)
	for round := 1; round <= 3; round++ {
		now = now.Add(61 * time.Second)
		advanced, err := svc.SubmitAdvance(ctx, "post1", roomID, "bob", now)
		require.NoError(t, err)
		require.True(t, advanced, "round %d should advance", round)
	}

	view, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, view.Status)
	assert.Equal(t, 3, view.RoundNumber, "round number never exceeds max rounds")
	assert.Empty(t, view.DrawerID)
	assert.Empty(t, view.Word)
	assert.Empty(t, view.MaskedWord)

	event, ok := events.last(broadcast.TypeRoundEnded)
	require.True(t, ok)
	var ended broadcast.RoundEndedData
	require.NoError(t, json.Unmarshal(event.Data, &ended))
	assert.True(t, ended.GameEnded)

	// Members are released back to matchmaking.
	for _, user := range []string{"alice", "bob"} {
		got, err := svc.GetUserRoom(ctx, "post1", user)
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	// A straggling advance against the ended room stays a no-op.
	advanced, err := svc.SubmitAdvance(ctx, "post1", roomID, "bob", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestOnlyDrawerMayDraw(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)
	events.reset()

	stroke := broadcast.StrokeData{
		Points: []broadcast.StrokePoint{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Color:  "#000000",
		Width:  4,
	}

	require.NoError(t, svc.SubmitStroke(ctx, "post1", roomID, "alice", stroke))
	assert.Equal(t, 1, events.count(broadcast.TypeDraw))

	err := svc.SubmitStroke(ctx, "post1", roomID, "bob", stroke)
	assert.ErrorIs(t, err, ErrNotDrawer)

	err = svc.ClearCanvas(ctx, "post1", roomID, "bob")
	assert.ErrorIs(t, err, ErrNotDrawer)

	require.NoError(t, svc.ClearCanvas(ctx, "post1", roomID, "alice"))
	assert.Equal(t, 1, events.count(broadcast.TypeCanvasClear))
}

func TestPersonalizedStateRedaction(t *testing.T) {
	svc, _, events := newTestService(t, testConfig())
	ctx := context.Background()
	roomID := startTwoPlayerRoom(t, svc)

	drawerView, err := svc.State(ctx, "post1", roomID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alpha", drawerView.Word)

	guesserView, err := svc.State(ctx, "post1", roomID, "bob")
	require.NoError(t, err)
	assert.Empty(t, guesserView.Word)
	assert.Equal(t, "_ _ _ _ _", guesserView.MaskedWord)

	// The broadcast snapshot never carries the secret either.
	event, ok := events.last(broadcast.TypeRoomState)
	require.True(t, ok)
	var state RoomView
	require.NoError(t, json.Unmarshal(event.Data, &state))
	assert.Empty(t, state.Word)
	assert.NotContains(t, string(event.Data), "alpha")
}
