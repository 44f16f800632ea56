package game

import "time"

// The round state machine: waiting -> playing -> ended, one-directional.
// Rooms formed by the scheduler start directly in playing. Three triggers
// drive it — a correct guess, a client-side deadline check, and the periodic
// sweep — and all of them funnel through advanceOrEnd, so duplicate triggers
// are harmless no-ops.

// startRound rotates the drawer one position past the current one, assigns a
// fresh secret word, arms the deadline, and clears the resolution gate.
func startRound(room *Room, word string, duration time.Duration, now time.Time) {
	room.Status = StatusPlaying
	room.DrawerID = nextDrawer(room)
	room.SecretWord = word
	room.RoundEndsAt = now.Add(duration).UnixMilli()
	room.RoundResolvedAt = 0
	room.GuessedCorrect = []string{}
	room.RoundNumber++
	room.touch(now)
}

// advanceOrEnd moves to the next round, or to ended once MaxRounds have been
// played. Returns true when the room ended.
func advanceOrEnd(room *Room, word string, duration time.Duration, now time.Time) bool {
	if room.RoundNumber >= room.MaxRounds {
		endRoom(room, now)
		return true
	}
	startRound(room, word, duration, now)
	return false
}

// endRoom is terminal: no room ever leaves ended.
func endRoom(room *Room, now time.Time) {
	room.Status = StatusEnded
	room.SecretWord = ""
	room.DrawerID = ""
	room.RoundEndsAt = 0
	room.touch(now)
}

// nextDrawer picks the order entry one past the current drawer, wrapping
// around. A missing drawer (first round, or the drawer left) restarts the
// rotation at the head of the order.
func nextDrawer(room *Room) string {
	if len(room.Order) == 0 {
		return ""
	}
	current := -1
	for i, userID := range room.Order {
		if userID == room.DrawerID {
			current = i
			break
		}
	}
	if current < 0 {
		return room.Order[0]
	}
	return room.Order[(current+1)%len(room.Order)]
}

// roundDue reports whether the deadline trigger may fire.
func roundDue(room *Room, now time.Time) bool {
	return room.Status == StatusPlaying && room.RoundEndsAt > 0 && now.UnixMilli() >= room.RoundEndsAt
}
