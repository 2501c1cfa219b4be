package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Laura77-code/tictactoe/internal/apperror"
	"github.com/Laura77-code/tictactoe/internal/entity"
	"github.com/Laura77-code/tictactoe/internal/pkg"
)

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
}

type sessionRepo interface {
	Add(ctx context.Context, socketID, roomID string) error
	RoomsBySocketID(ctx context.Context, socketID string) ([]string, error)
	Remove(ctx context.Context, socketID, roomID string) error
}

// broadcaster is the transport collaborator: it subscribes connections to a
// room's topic and fans events out to the topic or to a single connection.
type broadcaster interface {
	Subscribe(roomID, socketID string)
	Broadcast(roomID, event string, payload any)
	SendTo(socketID, event string, payload any)
}

// RoomManager owns the room lifecycle and the turn/round/score state machine.
// Every operation is a load-mutate-save-broadcast transition; a per-room lock
// keeps same-room transitions in arrival order.
type RoomManager struct {
	logger *slog.Logger

	roomRepo    roomRepo
	sessionRepo sessionRepo
	broadcaster broadcaster

	maxRounds  int
	roundDelay time.Duration

	locks sync.Map // roomID -> *sync.Mutex
}

func NewRoomManager(logger *slog.Logger, roomRepo roomRepo, sessionRepo sessionRepo, broadcaster broadcaster, maxRounds int, roundDelay time.Duration) *RoomManager {
	return &RoomManager{
		logger: logger,

		roomRepo:    roomRepo,
		sessionRepo: sessionRepo,
		broadcaster: broadcaster,

		maxRounds:  maxRounds,
		roundDelay: roundDelay,
	}
}

// CreateRoom creates a room with the caller as its "X" player holding the
// first turn and announces it on the room's topic.
func (that *RoomManager) CreateRoom(ctx context.Context, socketID, nickname string, maxRounds int) error {
	if maxRounds < 1 {
		maxRounds = that.maxRounds
	}

	room := entity.NewRoom(pkg.GenerateRoomID(), nickname, socketID, maxRounds)

	unlock := that.lockRoom(room.ID)
	defer unlock()

	if err := that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if err := that.sessionRepo.Add(ctx, socketID, room.ID); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}

	that.broadcaster.Subscribe(room.ID, socketID)
	that.broadcaster.Broadcast(room.ID, EventCreateRoomSuccess, RoomPayload{Room: room})

	return nil
}

// JoinRoom adds the caller as the "O" player of an open room. The room is
// considered joinable on the isJoin flag alone, not on a player count.
func (that *RoomManager) JoinRoom(ctx context.Context, socketID, nickname, roomID string) error {
	if !pkg.IsValidRoomID(roomID) {
		return apperror.ErrInvalidRoomID
	}

	unlock := that.lockRoom(roomID)
	defer unlock()

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	if !room.IsJoin {
		return apperror.ErrGameInProgress
	}

	room.Join(nickname, socketID)

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if err = that.sessionRepo.Add(ctx, socketID, room.ID); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}

	that.broadcaster.Subscribe(room.ID, socketID)
	that.broadcaster.Broadcast(room.ID, EventUpdateRoom, RoomPayload{Room: room})
	that.broadcaster.SendTo(socketID, EventJoinRoomSuccess, RoomPayload{Room: room})

	if creator := room.FindPlayerByType(entity.PlayerX); creator != nil {
		that.broadcaster.SendTo(creator.SocketID, EventStartGame, RoomPayload{Room: room})
	}

	return nil
}

// Tap records a move. A tap from a socket that does not hold the turn is
// ignored without an error; move legality beyond that is client-trusted.
func (that *RoomManager) Tap(ctx context.Context, socketID, roomID string, cell int) error {
	unlock := that.lockRoom(roomID)
	defer unlock()

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	choice, ok := room.ApplyTap(socketID, cell)
	if !ok {
		that.logger.Debug("tap ignored", "roomID", roomID, "socketID", socketID)
		return nil
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	that.broadcaster.Broadcast(room.ID, EventTapped, TappedPayload{
		Index:  cell,
		Choice: choice,
		Room:   room,
	})

	return nil
}

// DeclareWinner credits a client-reported round win. A second report for the
// same winner and round is a silent no-op. The round advance (or the final
// scores on the last round) is deferred so clients can finish animating.
func (that *RoomManager) DeclareWinner(ctx context.Context, winnerSocketID, roomID string) error {
	log := that.logger.With("method", "DeclareWinner", "roomID", roomID)

	unlock := that.lockRoom(roomID)
	defer unlock()

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		log.Debug("winner report for missing room", "error", err)
		return nil
	}

	if !room.CreditWin(winnerSocketID) {
		log.Debug("duplicate or unknown winner report", "winnerSocketID", winnerSocketID)
		return nil
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if room.IsFinalRound() {
		that.broadcaster.Broadcast(room.ID, EventGameWin, GameWinPayload{
			Room:           room,
			WinnerSocketID: winnerSocketID,
			IsLastRound:    true,
		})
		that.scheduleGameEnd(room.ID, room.Generation, winnerSocketID)

		return nil
	}

	that.broadcaster.Broadcast(room.ID, EventGameWin, GameWinPayload{
		Room:           room,
		WinnerSocketID: winnerSocketID,
		IsLastRound:    false,
	})
	that.scheduleRoundAdvance(room.ID, room.Generation, false)

	return nil
}

// DeclareDraw persists the client-reported round and board verbatim. On the
// non-final path the deferred advance also resets the board and hands the
// turn back to the first player.
func (that *RoomManager) DeclareDraw(ctx context.Context, roomID string, currentRound int, board []string) error {
	log := that.logger.With("method", "DeclareDraw", "roomID", roomID)

	unlock := that.lockRoom(roomID)
	defer unlock()

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		log.Debug("draw report for missing room", "error", err)
		return nil
	}

	room.CurrentRound = currentRound
	room.Board = board

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if room.IsFinalRound() {
		that.broadcaster.Broadcast(room.ID, EventDraw, DrawPayload{Room: room, IsLastRound: true})
		that.scheduleGameEnd(room.ID, room.Generation, "")

		return nil
	}

	that.broadcaster.Broadcast(room.ID, EventDraw, DrawPayload{Room: room, IsLastRound: false})
	that.scheduleRoundAdvance(room.ID, room.Generation, true)

	return nil
}

// RestartGame clears the board for a new round. The round counter is
// incremented without an upper bound check.
func (that *RoomManager) RestartGame(ctx context.Context, roomID string) error {
	log := that.logger.With("method", "RestartGame", "roomID", roomID)

	unlock := that.lockRoom(roomID)
	defer unlock()

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		log.Debug("restart request for missing room", "error", err)
		return nil
	}

	room.ResetBoard()
	room.AdvanceRound()

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	that.broadcaster.Broadcast(room.ID, EventGameRestarted, RoomPayload{Room: room})

	return nil
}

// Disconnect removes the caller from every room it belongs to, deleting
// rooms it leaves empty and reopening the rest for joining. The turn is not
// reassigned even if the leaving player held it.
func (that *RoomManager) Disconnect(ctx context.Context, socketID string) {
	log := that.logger.With("method", "Disconnect", "socketID", socketID)

	roomIDs, err := that.sessionRepo.RoomsBySocketID(ctx, socketID)
	if err != nil {
		log.Error("failed to find rooms for socket", "error", err)
		return
	}

	for _, roomID := range roomIDs {
		that.leaveRoom(ctx, log, socketID, roomID)
	}
}

func (that *RoomManager) leaveRoom(ctx context.Context, log *slog.Logger, socketID, roomID string) {
	unlock := that.lockRoom(roomID)
	defer unlock()

	if err := that.sessionRepo.Remove(ctx, socketID, roomID); err != nil {
		log.Error("failed to remove session entry", "roomID", roomID, "error", err)
	}

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		log.Debug("room already gone", "roomID", roomID, "error", err)
		return
	}

	if !room.RemovePlayer(socketID) {
		return
	}

	if room.IsEmpty() {
		if err = that.roomRepo.DeleteByID(ctx, roomID); err != nil {
			log.Error("failed to delete empty room", "roomID", roomID, "error", err)
		}
		return
	}

	room.IsJoin = true

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		log.Error("failed to update room", "roomID", roomID, "error", err)
		return
	}

	that.broadcaster.Broadcast(room.ID, EventPlayerLeft, PlayerLeftPayload{
		Room:           room,
		PlayerSocketID: socketID,
	})
}

// GetRoom looks a room up by its identifier.
func (that *RoomManager) GetRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	if !pkg.IsValidRoomID(roomID) {
		return nil, apperror.ErrInvalidRoomID
	}

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// scheduleRoundAdvance defers the round increment so clients can sequence
// their round-result animation first. The task is tagged with the room's
// generation at scheduling time; if the room is gone, or any newer transition
// has been saved since, the task is a no-op.
func (that *RoomManager) scheduleRoundAdvance(roomID string, generation int64, resetBoard bool) {
	log := that.logger.With("method", "scheduleRoundAdvance", "roomID", roomID)

	time.AfterFunc(that.roundDelay, func() {
		ctx := context.Background()

		unlock := that.lockRoom(roomID)
		defer unlock()

		room, err := that.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			log.Debug("room gone before round advance", "error", err)
			return
		}

		if room.Generation != generation {
			log.Debug("round advance overtaken by newer state", "generation", room.Generation)
			return
		}

		room.AdvanceRound()
		if resetBoard {
			room.ResetBoard()
		}

		if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
			log.Error("failed to update room", "error", err)
			return
		}

		that.broadcaster.Broadcast(room.ID, EventUpdateRoom, RoomPayload{Room: room})
	})
}

// scheduleGameEnd defers the final-scores broadcast after the last round.
// An empty winnerSocketID means the match ended on a draw.
func (that *RoomManager) scheduleGameEnd(roomID string, generation int64, winnerSocketID string) {
	log := that.logger.With("method", "scheduleGameEnd", "roomID", roomID)

	time.AfterFunc(that.roundDelay, func() {
		ctx := context.Background()

		unlock := that.lockRoom(roomID)
		defer unlock()

		room, err := that.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			log.Debug("room gone before game end", "error", err)
			return
		}

		if room.Generation != generation {
			log.Debug("game end overtaken by newer state", "generation", room.Generation)
			return
		}

		that.broadcaster.Broadcast(room.ID, EventGameEnd, GameEndPayload{
			Room:           room,
			WinnerSocketID: winnerSocketID,
			FinalScores:    room.FinalScores(),
		})
	})
}

func (that *RoomManager) lockRoom(roomID string) func() {
	value, _ := that.locks.LoadOrStore(roomID, &sync.Mutex{})

	mu, ok := value.(*sync.Mutex)
	if !ok {
		return func() {}
	}

	mu.Lock()

	return mu.Unlock
}
