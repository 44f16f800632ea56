package game

import "errors"

var (
	// ErrRoomNotFound maps to a 404: the client should return to the menu.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotMember rejects mutations from users the room does not list.
	ErrNotMember = errors.New("not a member of this room")
	// ErrNotDrawer rejects draw strokes and canvas clears from guessers.
	ErrNotDrawer = errors.New("only the current drawer may draw")
	// ErrDrawerGuess rejects guesses from the player holding the word.
	ErrDrawerGuess = errors.New("the drawer cannot guess")
)
