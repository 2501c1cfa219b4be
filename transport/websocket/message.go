package websocket

import "encoding/json"

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound actions, as the clients send them.
const (
	actionCreateRoom  = "createRoom"
	actionJoinRoom    = "joinRoom"
	actionTap         = "tap"
	actionWinner      = "winner"
	actionDraw        = "draw"
	actionRestartGame = "restart_game"
)

type createRoomPayload struct {
	Nickname  string `json:"nickname"`
	MaxRounds int    `json:"maxRounds,omitempty"`
}

type joinRoomPayload struct {
	Nickname string `json:"nickname"`
	RoomID   string `json:"roomId"`
}

type tapPayload struct {
	Index  int    `json:"index"`
	RoomID string `json:"roomId"`
}

type winnerPayload struct {
	WinnerSocketID string `json:"winnerSocketId"`
	RoomID         string `json:"roomId"`
}

type drawPayload struct {
	RoomID       string   `json:"roomId"`
	CurrentRound int      `json:"currentRound"`
	Board        []string `json:"board"`
}

type restartGamePayload struct {
	RoomID string `json:"roomId"`
}
