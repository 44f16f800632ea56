package broadcast

import (
	"fmt"
	"regexp"
)

// Channel identifiers are restricted to [A-Za-z0-9_]. Anything else in a
// scope, room id, or user id is substituted rather than rejected, so odd
// display names never break channel addressing.
var unsafeChannelChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeChannelPart(part string) string {
	return unsafeChannelChars.ReplaceAllString(part, "_")
}

// RoomChannel is the shared channel every viewer of a room subscribes to.
func RoomChannel(scope, roomID string) string {
	return fmt.Sprintf("scope_%s_room_%s", sanitizeChannelPart(scope), sanitizeChannelPart(roomID))
}

// UserChannel is a user's personal channel, used for match-found
// notifications while the user is still queued.
func UserChannel(scope, userID string) string {
	return fmt.Sprintf("scope_%s_user_%s", sanitizeChannelPart(scope), sanitizeChannelPart(userID))
}
