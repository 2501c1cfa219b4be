package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laura77-code/tictactoe/internal/apperror"
	"github.com/Laura77-code/tictactoe/internal/entity"
)

const (
	testRoomID  = "a1b2c3d4e5f6a1b2c3d4e5f6"
	testDelay   = 20 * time.Millisecond
	waitTimeout = 2 * time.Second
)

// fakeRoomRepo stores rooms like the document store does: every get and save
// passes through JSON, so callers never share memory with the stored copy.
type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string][]byte
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string][]byte)}
}

func (that *fakeRoomRepo) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	room.Generation++

	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}

	that.rooms[room.ID] = raw

	return nil
}

func (that *fakeRoomRepo) GetByID(_ context.Context, id string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.rooms[id]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	var room entity.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, err
	}

	return &room, nil
}

func (that *fakeRoomRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, id)

	return nil
}

// seed stores a room without bumping its generation.
func (that *fakeRoomRepo) seed(t *testing.T, room *entity.Room) {
	t.Helper()

	that.mu.Lock()
	defer that.mu.Unlock()

	raw, err := json.Marshal(room)
	require.NoError(t, err)

	that.rooms[room.ID] = raw
}

func (that *fakeRoomRepo) only(t *testing.T) *entity.Room {
	t.Helper()

	that.mu.Lock()
	defer that.mu.Unlock()

	require.Len(t, that.rooms, 1)

	for _, raw := range that.rooms {
		var room entity.Room
		require.NoError(t, json.Unmarshal(raw, &room))
		return &room
	}

	return nil
}

func (that *fakeRoomRepo) exists(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.rooms[id]
	return ok
}

type fakeSessionRepo struct {
	mu    sync.Mutex
	rooms map[string][]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rooms: make(map[string][]string)}
}

func (that *fakeSessionRepo) Add(_ context.Context, socketID, roomID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rooms[socketID] = append(that.rooms[socketID], roomID)

	return nil
}

func (that *fakeSessionRepo) RoomsBySocketID(_ context.Context, socketID string) ([]string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.rooms[socketID]...), nil
}

func (that *fakeSessionRepo) Remove(_ context.Context, socketID, roomID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	kept := that.rooms[socketID][:0]
	for _, id := range that.rooms[socketID] {
		if id != roomID {
			kept = append(kept, id)
		}
	}
	that.rooms[socketID] = kept

	return nil
}

type recordedEvent struct {
	roomID   string
	socketID string
	event    string
	payload  any
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	subs       []recordedEvent
	broadcasts []recordedEvent
	directs    []recordedEvent
}

func (that *recordingBroadcaster) Subscribe(roomID, socketID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.subs = append(that.subs, recordedEvent{roomID: roomID, socketID: socketID})
}

func (that *recordingBroadcaster) Broadcast(roomID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.broadcasts = append(that.broadcasts, recordedEvent{roomID: roomID, event: event, payload: payload})
}

func (that *recordingBroadcaster) SendTo(socketID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.directs = append(that.directs, recordedEvent{socketID: socketID, event: event, payload: payload})
}

func (that *recordingBroadcaster) broadcastsOf(event string) []recordedEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	var out []recordedEvent
	for _, e := range that.broadcasts {
		if e.event == event {
			out = append(out, e)
		}
	}

	return out
}

func (that *recordingBroadcaster) directsOf(event string) []recordedEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	var out []recordedEvent
	for _, e := range that.directs {
		if e.event == event {
			out = append(out, e)
		}
	}

	return out
}

func newTestManager() (*RoomManager, *fakeRoomRepo, *fakeSessionRepo, *recordingBroadcaster) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := newFakeRoomRepo()
	sessionRepo := newFakeSessionRepo()
	bc := &recordingBroadcaster{}

	manager := NewRoomManager(logger, roomRepo, sessionRepo, bc, entity.DefaultMaxRounds, testDelay)

	return manager, roomRepo, sessionRepo, bc
}

func seedFullRoom(t *testing.T, roomRepo *fakeRoomRepo, maxRounds int) *entity.Room {
	t.Helper()

	room := entity.NewRoom(testRoomID, "alice", "sock-1", maxRounds)
	room.Join("bob", "sock-2")
	roomRepo.seed(t, room)

	return room
}

func TestRoomManager_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a single-player room and announces it", func(t *testing.T) {
		// Given: a fresh manager
		manager, roomRepo, sessionRepo, bc := newTestManager()

		// When: a room is created
		err := manager.CreateRoom(ctx, "sock-1", "alice", 3)

		// Then: the stored room has one X player holding the turn
		require.NoError(t, err)
		room := roomRepo.only(t)
		require.Len(t, room.Players, 1)
		assert.Equal(t, entity.PlayerX, room.Players[0].PlayerType)
		assert.Equal(t, "sock-1", room.Turn.SocketID)
		assert.True(t, room.IsJoin)

		// And: the creator was subscribed and got the creation event
		require.Len(t, bc.subs, 1)
		assert.Equal(t, room.ID, bc.subs[0].roomID)
		created := bc.broadcastsOf(EventCreateRoomSuccess)
		require.Len(t, created, 1)
		assert.Equal(t, room.ID, created[0].roomID)

		// And: the session registry knows the creator's room
		rooms, err := sessionRepo.RoomsBySocketID(ctx, "sock-1")
		require.NoError(t, err)
		assert.Equal(t, []string{room.ID}, rooms)
	})

	t.Run("Missing maxRounds falls back to the configured default", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager()

		require.NoError(t, manager.CreateRoom(ctx, "sock-1", "alice", 0))

		assert.Equal(t, entity.DefaultMaxRounds, roomRepo.only(t).MaxRounds)
	})
}

func TestRoomManager_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects a malformed room id", func(t *testing.T) {
		// Given: a manager with no rooms
		manager, _, _, _ := newTestManager()

		// When: joining with a non-hex id
		err := manager.JoinRoom(ctx, "sock-2", "bob", "not-a-room-id")

		// Then: the caller gets the validation error
		assert.ErrorIs(t, err, apperror.ErrInvalidRoomID)
	})

	t.Run("Rejects a missing room", func(t *testing.T) {
		manager, _, _, _ := newTestManager()

		err := manager.JoinRoom(ctx, "sock-2", "bob", testRoomID)

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Rejects a room that is not joinable and mutates nothing", func(t *testing.T) {
		// Given: a full room with isJoin already false
		manager, roomRepo, _, _ := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		// When: a third player tries to join
		err := manager.JoinRoom(ctx, "sock-3", "carol", testRoomID)

		// Then: the join is rejected and players are untouched
		assert.ErrorIs(t, err, apperror.ErrGameInProgress)
		assert.Len(t, roomRepo.only(t).Players, 2)
	})

	t.Run("Joins an open room and notifies everyone involved", func(t *testing.T) {
		// Given: a one-player room
		manager, roomRepo, _, bc := newTestManager()
		room := entity.NewRoom(testRoomID, "alice", "sock-1", 3)
		roomRepo.seed(t, room)

		// When: a second player joins
		err := manager.JoinRoom(ctx, "sock-2", "bob", testRoomID)

		// Then: the room is full, the new player is O, joining is closed
		require.NoError(t, err)
		stored := roomRepo.only(t)
		require.Len(t, stored.Players, 2)
		assert.Equal(t, entity.PlayerO, stored.Players[1].PlayerType)
		assert.False(t, stored.IsJoin)

		// And: the room group got updateRoom, the joiner got joinRoomSuccess,
		// the creator got startGame
		assert.Len(t, bc.broadcastsOf(EventUpdateRoom), 1)
		joined := bc.directsOf(EventJoinRoomSuccess)
		require.Len(t, joined, 1)
		assert.Equal(t, "sock-2", joined[0].socketID)
		started := bc.directsOf(EventStartGame)
		require.Len(t, started, 1)
		assert.Equal(t, "sock-1", started[0].socketID)
	})
}

func TestRoomManager_Tap(t *testing.T) {
	ctx := context.Background()

	t.Run("Tap from the turn holder writes the cell and flips the turn", func(t *testing.T) {
		// Given: a full room with X to move
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		// When: X taps cell 4
		err := manager.Tap(ctx, "sock-1", testRoomID, 4)

		// Then: the board carries the mark and the turn moved to O
		require.NoError(t, err)
		stored := roomRepo.only(t)
		assert.Equal(t, entity.PlayerX, stored.Board[4])
		assert.Equal(t, "sock-2", stored.Turn.SocketID)

		// And: the room group got the tapped event
		tapped := bc.broadcastsOf(EventTapped)
		require.Len(t, tapped, 1)
		payload, ok := tapped[0].payload.(TappedPayload)
		require.True(t, ok)
		assert.Equal(t, 4, payload.Index)
		assert.Equal(t, entity.PlayerX, payload.Choice)
	})

	t.Run("Tap out of turn is silently ignored", func(t *testing.T) {
		// Given: a full room with X to move
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		// When: O taps out of turn
		err := manager.Tap(ctx, "sock-2", testRoomID, 0)

		// Then: no error, no mutation, no broadcast
		require.NoError(t, err)
		stored := roomRepo.only(t)
		assert.Nil(t, stored.Board)
		assert.Equal(t, "sock-1", stored.Turn.SocketID)
		assert.Empty(t, bc.broadcastsOf(EventTapped))
	})

	t.Run("Tap on a missing room surfaces room not found", func(t *testing.T) {
		manager, _, _, _ := newTestManager()

		err := manager.Tap(ctx, "sock-1", testRoomID, 0)

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestRoomManager_DeclareWinner(t *testing.T) {
	ctx := context.Background()

	t.Run("Credits the win once and advances the round after the delay", func(t *testing.T) {
		// Given: a full three-round room in round 1
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		// When: the same win is reported twice
		require.NoError(t, manager.DeclareWinner(ctx, "sock-1", testRoomID))
		require.NoError(t, manager.DeclareWinner(ctx, "sock-1", testRoomID))

		// Then: a single point and a single gameWin broadcast
		stored := roomRepo.only(t)
		assert.Equal(t, 1, stored.Players[0].Points)
		wins := bc.broadcastsOf(EventGameWin)
		require.Len(t, wins, 1)
		payload, ok := wins[0].payload.(GameWinPayload)
		require.True(t, ok)
		assert.False(t, payload.IsLastRound)

		// And: the round is unchanged until the deferred advance fires
		assert.Equal(t, 1, stored.CurrentRound)
		require.Eventually(t, func() bool {
			return len(bc.broadcastsOf(EventUpdateRoom)) == 1
		}, waitTimeout, 5*time.Millisecond)
		assert.Equal(t, 2, roomRepo.only(t).CurrentRound)
	})

	t.Run("Final round win emits gameWin then the final scores", func(t *testing.T) {
		// Given: a single-round room, so the first win ends the match
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 1)

		// When: the win is reported
		require.NoError(t, manager.DeclareWinner(ctx, "sock-1", testRoomID))

		// Then: gameWin carries the last-round flag
		wins := bc.broadcastsOf(EventGameWin)
		require.Len(t, wins, 1)
		payload, ok := wins[0].payload.(GameWinPayload)
		require.True(t, ok)
		assert.True(t, payload.IsLastRound)
		assert.Equal(t, "sock-1", payload.WinnerSocketID)

		// And: the deferred gameEnd carries the credited totals
		require.Eventually(t, func() bool {
			return len(bc.broadcastsOf(EventGameEnd)) == 1
		}, waitTimeout, 5*time.Millisecond)
		end, ok := bc.broadcastsOf(EventGameEnd)[0].payload.(GameEndPayload)
		require.True(t, ok)
		assert.Equal(t, "sock-1", end.WinnerSocketID)
		require.Len(t, end.FinalScores, 2)
		assert.Equal(t, 1, end.FinalScores[0].Points)
		assert.Equal(t, 0, end.FinalScores[1].Points)

		// And: the room document survives completion
		assert.True(t, roomRepo.exists(testRoomID))
	})

	t.Run("Unknown winner socket is a silent no-op", func(t *testing.T) {
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		require.NoError(t, manager.DeclareWinner(ctx, "sock-ghost", testRoomID))

		assert.Empty(t, bc.broadcastsOf(EventGameWin))
		assert.Equal(t, 0, roomRepo.only(t).Players[0].Points)
	})

	t.Run("Missing room is a silent no-op", func(t *testing.T) {
		manager, _, _, bc := newTestManager()

		require.NoError(t, manager.DeclareWinner(ctx, "sock-1", testRoomID))

		assert.Empty(t, bc.broadcastsOf(EventGameWin))
	})

	t.Run("Deferred advance is dropped when newer state overtakes it", func(t *testing.T) {
		// Given: a reported win with the round advance pending
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)
		require.NoError(t, manager.DeclareWinner(ctx, "sock-1", testRoomID))

		// When: a tap lands before the deferred task fires
		require.NoError(t, manager.Tap(ctx, "sock-1", testRoomID, 0))

		// Then: the stale task never applies its advance
		time.Sleep(4 * testDelay)
		assert.Empty(t, bc.broadcastsOf(EventUpdateRoom))
		assert.Equal(t, 1, roomRepo.only(t).CurrentRound)
	})
}

func TestRoomManager_DeclareDraw(t *testing.T) {
	ctx := context.Background()

	fullBoard := []string{"X", "O", "X", "O", "X", "O", "O", "X", "O"}

	t.Run("Persists the reported state and resets for the next round", func(t *testing.T) {
		// Given: a full three-round room
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		// When: a draw is reported for round 1
		require.NoError(t, manager.DeclareDraw(ctx, testRoomID, 1, fullBoard))

		// Then: the reported board is stored verbatim and the group is told
		stored := roomRepo.only(t)
		assert.Equal(t, fullBoard, stored.Board)
		draws := bc.broadcastsOf(EventDraw)
		require.Len(t, draws, 1)
		payload, ok := draws[0].payload.(DrawPayload)
		require.True(t, ok)
		assert.False(t, payload.IsLastRound)

		// And: the deferred advance clears the board and restarts the round
		require.Eventually(t, func() bool {
			return len(bc.broadcastsOf(EventUpdateRoom)) == 1
		}, waitTimeout, 5*time.Millisecond)
		stored = roomRepo.only(t)
		assert.Equal(t, 2, stored.CurrentRound)
		require.Len(t, stored.Board, entity.BoardCells)
		for _, cell := range stored.Board {
			assert.Equal(t, entity.EmptyCell, cell)
		}
		assert.Equal(t, "sock-1", stored.Turn.SocketID)

		// And: no points were handed out
		assert.Equal(t, 0, stored.Players[0].Points)
		assert.Equal(t, 0, stored.Players[1].Points)
	})

	t.Run("Final round draw ends the match without a winner", func(t *testing.T) {
		// Given: a single-round room
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 1)

		// When: the draw is reported
		require.NoError(t, manager.DeclareDraw(ctx, testRoomID, 1, fullBoard))

		// Then: the draw event carries the last-round flag
		draws := bc.broadcastsOf(EventDraw)
		require.Len(t, draws, 1)
		payload, ok := draws[0].payload.(DrawPayload)
		require.True(t, ok)
		assert.True(t, payload.IsLastRound)

		// And: the deferred gameEnd names no winner
		require.Eventually(t, func() bool {
			return len(bc.broadcastsOf(EventGameEnd)) == 1
		}, waitTimeout, 5*time.Millisecond)
		end, ok := bc.broadcastsOf(EventGameEnd)[0].payload.(GameEndPayload)
		require.True(t, ok)
		assert.Empty(t, end.WinnerSocketID)
		require.Len(t, end.FinalScores, 2)
		assert.True(t, roomRepo.exists(testRoomID))
	})
}

func TestRoomManager_RestartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Resets the board and advances the round without a bound", func(t *testing.T) {
		// Given: a full three-round room mid-game
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)
		require.NoError(t, manager.Tap(ctx, "sock-1", testRoomID, 4))

		// When: the game is restarted past maxRounds, repeatedly
		for i := 0; i < 4; i++ {
			require.NoError(t, manager.RestartGame(ctx, testRoomID))
		}

		// Then: the counter ran straight past maxRounds
		stored := roomRepo.only(t)
		assert.Equal(t, 5, stored.CurrentRound)
		assert.Equal(t, "sock-1", stored.Turn.SocketID)
		for _, cell := range stored.Board {
			assert.Equal(t, entity.EmptyCell, cell)
		}
		assert.Len(t, bc.broadcastsOf(EventGameRestarted), 4)
	})
}

func TestRoomManager_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Leaving one of two players reopens the room", func(t *testing.T) {
		// Given: a full room known to the session registry
		manager, roomRepo, sessionRepo, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)
		require.NoError(t, sessionRepo.Add(ctx, "sock-1", testRoomID))
		require.NoError(t, sessionRepo.Add(ctx, "sock-2", testRoomID))

		// When: the creator disconnects
		manager.Disconnect(ctx, "sock-1")

		// Then: one player remains and the room reopens for joining
		stored := roomRepo.only(t)
		require.Len(t, stored.Players, 1)
		assert.Equal(t, "sock-2", stored.Players[0].SocketID)
		assert.True(t, stored.IsJoin)

		// And: the remaining group is told who left
		left := bc.broadcastsOf(EventPlayerLeft)
		require.Len(t, left, 1)
		payload, ok := left[0].payload.(PlayerLeftPayload)
		require.True(t, ok)
		assert.Equal(t, "sock-1", payload.PlayerSocketID)

		// And: the turn still names the departed socket
		assert.Equal(t, "sock-1", stored.Turn.SocketID)
	})

	t.Run("Last player leaving deletes the room", func(t *testing.T) {
		// Given: a single-player room
		manager, roomRepo, sessionRepo, bc := newTestManager()
		room := entity.NewRoom(testRoomID, "alice", "sock-1", 3)
		roomRepo.seed(t, room)
		require.NoError(t, sessionRepo.Add(ctx, "sock-1", testRoomID))

		// When: its only player disconnects
		manager.Disconnect(ctx, "sock-1")

		// Then: the room document is gone and nobody is notified
		assert.False(t, roomRepo.exists(testRoomID))
		assert.Empty(t, bc.broadcastsOf(EventPlayerLeft))

		// And: the session registry entry is cleared
		rooms, err := sessionRepo.RoomsBySocketID(ctx, "sock-1")
		require.NoError(t, err)
		assert.Empty(t, rooms)
	})

	t.Run("Socket with no rooms is a no-op", func(t *testing.T) {
		manager, roomRepo, _, bc := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		manager.Disconnect(ctx, "sock-ghost")

		assert.Len(t, roomRepo.only(t).Players, 2)
		assert.Empty(t, bc.broadcasts)
	})
}

func TestRoomManager_GetRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns the stored room", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager()
		seedFullRoom(t, roomRepo, 3)

		room, err := manager.GetRoom(ctx, testRoomID)

		require.NoError(t, err)
		assert.Equal(t, testRoomID, room.ID)
	})

	t.Run("Rejects a malformed id", func(t *testing.T) {
		manager, _, _, _ := newTestManager()

		_, err := manager.GetRoom(ctx, "nope")

		assert.ErrorIs(t, err, apperror.ErrInvalidRoomID)
	})

	t.Run("Reports a missing room", func(t *testing.T) {
		manager, _, _, _ := newTestManager()

		_, err := manager.GetRoom(ctx, testRoomID)

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}
