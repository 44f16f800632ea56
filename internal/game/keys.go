package game

// Key layout, per scope:
//
//	scope:<scope>:queue    ordered waiting list
//	scope:<scope>:rooms    room id -> last updated (ms), for sweep enumeration
//	scope:<scope>:members  user id -> room id
//	room:<id>              one record per active room
//	scopes                 scope -> last active (ms), the sweep registry
//
// All contention is scoped to a single one of these keys, so throughput
// scales with the number of independent rooms.

const scopeRegistryKey = "scopes"

func queueKey(scope string) string {
	return "scope:" + scope + ":queue"
}

func roomIndexKey(scope string) string {
	return "scope:" + scope + ":rooms"
}

func memberIndexKey(scope string) string {
	return "scope:" + scope + ":members"
}

func roomKey(roomID string) string {
	return "room:" + roomID
}
