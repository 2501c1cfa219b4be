package websocket

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Laura77-code/tictactoe/internal/apperror"
	"github.com/Laura77-code/tictactoe/internal/usecase"
)

func (that *Server) handleCreateRoom(ctx context.Context, c *client, msg *Message) error {
	var payload createRoomPayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	that.logger.Info("creating room", "nickname", payload.Nickname, "socketID", c.socketID)

	return that.manager.CreateRoom(ctx, c.socketID, payload.Nickname, payload.MaxRounds)
}

func (that *Server) handleJoinRoom(ctx context.Context, c *client, msg *Message) error {
	var payload joinRoomPayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	that.logger.Info("join room request", "nickname", payload.Nickname, "roomID", payload.RoomID)

	return that.manager.JoinRoom(ctx, c.socketID, payload.Nickname, payload.RoomID)
}

func (that *Server) handleTap(ctx context.Context, c *client, msg *Message) error {
	var payload tapPayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	return that.manager.Tap(ctx, c.socketID, payload.RoomID, payload.Index)
}

func (that *Server) handleWinner(ctx context.Context, c *client, msg *Message) error {
	var payload winnerPayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	return that.manager.DeclareWinner(ctx, payload.WinnerSocketID, payload.RoomID)
}

func (that *Server) handleDraw(ctx context.Context, c *client, msg *Message) error {
	var payload drawPayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	return that.manager.DeclareDraw(ctx, payload.RoomID, payload.CurrentRound, payload.Board)
}

func (that *Server) handleRestartGame(ctx context.Context, c *client, msg *Message) error {
	var payload restartGamePayload
	if err := mustUnmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	return that.manager.RestartGame(ctx, payload.RoomID)
}

// dispatchError surfaces validation failures to the originating caller as an
// errorOccurred event. Anything else (persistence failures included) is
// logged server-side only and the caller gets no response.
func (that *Server) dispatchError(log *slog.Logger, c *client, err error) {
	for _, appErr := range []error{
		apperror.ErrInvalidRoomID,
		apperror.ErrRoomNotFound,
		apperror.ErrGameInProgress,
	} {
		if errors.Is(err, appErr) {
			that.hub.SendTo(c.socketID, usecase.EventErrorOccurred, usecase.ErrorPayload{Message: appErr.Error()})
			return
		}
	}

	log.Error("error processing message", "error", err)
}
