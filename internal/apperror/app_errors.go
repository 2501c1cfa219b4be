package apperror

import "errors"

var (
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game is in progress")
	ErrPlayerNotFound = errors.New("player not found")
)
