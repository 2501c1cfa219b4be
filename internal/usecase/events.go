package usecase

import "github.com/Laura77-code/tictactoe/internal/entity"

// Outbound event names, as the clients know them.
const (
	EventCreateRoomSuccess = "createRoomSuccess"
	EventJoinRoomSuccess   = "joinRoomSuccess"
	EventStartGame         = "startGame"
	EventUpdateRoom        = "updateRoom"
	EventTapped            = "tapped"
	EventGameWin           = "gameWin"
	EventGameEnd           = "gameEnd"
	EventDraw              = "draw"
	EventGameRestarted     = "game_restarted"
	EventPlayerLeft        = "playerLeft"
	EventErrorOccurred     = "errorOccurred"
)

type RoomPayload struct {
	Room *entity.Room `json:"room"`
}

type TappedPayload struct {
	Index  int          `json:"index"`
	Choice string       `json:"choice"`
	Room   *entity.Room `json:"room"`
}

type GameWinPayload struct {
	Room           *entity.Room `json:"room"`
	WinnerSocketID string       `json:"winnerSocketId"`
	IsLastRound    bool         `json:"isLastRound"`
}

type GameEndPayload struct {
	Room           *entity.Room   `json:"room"`
	WinnerSocketID string         `json:"winnerSocketId,omitempty"`
	FinalScores    []entity.Score `json:"finalScores"`
}

type DrawPayload struct {
	Room        *entity.Room `json:"room"`
	IsLastRound bool         `json:"isLastRound"`
}

type PlayerLeftPayload struct {
	Room           *entity.Room `json:"room"`
	PlayerSocketID string       `json:"playerSocketId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
