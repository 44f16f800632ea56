package broadcast

// Message is the wire envelope for every broadcast, matching the
// {type, data} shape clients already parse.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcast message kinds.
const (
	TypeRoomState   = "room_state"
	TypeChat        = "chat"
	TypeSystem      = "system"
	TypeDraw        = "draw"
	TypeCanvasClear = "canvas_clear"
	TypeRoundEnded  = "round_ended"
	TypeMatchFound  = "match_found"
)

// Reasons a round ended.
const (
	ReasonTime    = "time"
	ReasonGuessed = "guessed"
	ReasonLeft    = "left"
)

type ChatData struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
}

type SystemData struct {
	Text string `json:"text"`
}

type RoundEndedData struct {
	RoomID      string `json:"room_id"`
	RoundNumber int    `json:"round_number"`
	Reason      string `json:"reason"`
	Word        string `json:"word,omitempty"`
	GameEnded   bool   `json:"game_ended"`
}

type MatchFoundData struct {
	RoomID string `json:"room_id"`
}

type CanvasClearData struct {
	RoomID string `json:"room_id"`
}

type StrokePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StrokeData is one fragment of a drawing gesture. Continues marks a fragment
// that extends the previous one, so viewers can join segments after a drop.
type StrokeData struct {
	Points    []StrokePoint `json:"points"`
	Color     string        `json:"color"`
	Width     int           `json:"width"`
	Continues bool          `json:"continues"`
}
