package entity

const (
	Occupancy        = 2
	BoardCells       = 9
	DefaultMaxRounds = 3

	PlayerX = "X"
	PlayerO = "O"

	EmptyCell = ""
)

// Player is one participant's identity, mark and score within a room.
type Player struct {
	Nickname   string `json:"nickname"`
	SocketID   string `json:"socketID"`
	PlayerType string `json:"playerType"`
	Points     int    `json:"points"`
}

// LastWinner records the most recently credited winner per round. It is used
// to suppress duplicate win reports for the same round.
type LastWinner struct {
	SocketID string `json:"socketID"`
	Round    int    `json:"round"`
}

// Score is one player's entry in the final-scores snapshot sent on game end.
type Score struct {
	Nickname   string `json:"nickname"`
	Points     int    `json:"points"`
	SocketID   string `json:"socketID"`
	PlayerType string `json:"playerType"`
}

// Room is one game session's full state, persisted as a single document.
//
// Turn holds a copy of the player whose move is awaited; TurnIndex mirrors it
// as an index into Players. Board stays nil until the first move of a round.
type Room struct {
	ID           string      `json:"id"`
	Occupancy    int         `json:"occupancy"`
	Players      []*Player   `json:"players"`
	IsJoin       bool        `json:"isJoin"`
	Board        []string    `json:"board,omitempty"`
	Turn         *Player     `json:"turn,omitempty"`
	TurnIndex    int         `json:"turnIndex"`
	CurrentRound int         `json:"currentRound"`
	MaxRounds    int         `json:"maxRounds"`
	LastWinner   *LastWinner `json:"lastWinner,omitempty"`
	Generation   int64       `json:"generation"`
}

// NewRoom creates a room with its creator as the "X" player holding the first
// turn. A non-positive maxRounds falls back to the default.
func NewRoom(id, nickname, socketID string, maxRounds int) *Room {
	if maxRounds < 1 {
		maxRounds = DefaultMaxRounds
	}

	creator := &Player{
		Nickname:   nickname,
		SocketID:   socketID,
		PlayerType: PlayerX,
	}

	turn := *creator

	return &Room{
		ID:           id,
		Occupancy:    Occupancy,
		Players:      []*Player{creator},
		IsJoin:       true,
		Turn:         &turn,
		TurnIndex:    0,
		CurrentRound: 1,
		MaxRounds:    maxRounds,
	}
}

// Join appends the second player as "O" and closes the room for joining.
func (that *Room) Join(nickname, socketID string) *Player {
	player := &Player{
		Nickname:   nickname,
		SocketID:   socketID,
		PlayerType: PlayerO,
	}

	that.Players = append(that.Players, player)
	that.IsJoin = false

	return player
}

// FindPlayer returns the player owning the socket, or nil.
func (that *Room) FindPlayer(socketID string) *Player {
	for _, player := range that.Players {
		if player.SocketID == socketID {
			return player
		}
	}

	return nil
}

// FindPlayerByType returns the player holding the given mark, or nil.
func (that *Room) FindPlayerByType(playerType string) *Player {
	for _, player := range that.Players {
		if player.PlayerType == playerType {
			return player
		}
	}

	return nil
}

// ApplyTap records a move by the socket currently holding the turn and flips
// the turn to the other player. A tap from any other socket, or with an
// out-of-range cell, changes nothing and reports ok=false. The cell itself is
// trusted as-is; occupancy of the cell is not checked.
func (that *Room) ApplyTap(socketID string, cell int) (string, bool) {
	if that.Turn == nil || that.Turn.SocketID != socketID {
		return "", false
	}

	if cell < 0 || cell >= BoardCells {
		return "", false
	}

	if that.Board == nil {
		that.Board = make([]string, BoardCells)
	}

	choice := that.Turn.PlayerType
	that.Board[cell] = choice

	nextIndex := 1 - that.TurnIndex
	if nextIndex < len(that.Players) {
		turn := *that.Players[nextIndex]
		that.Turn = &turn
		that.TurnIndex = nextIndex
	}

	return choice, true
}

// CreditWin increments the winner's points once per round. A repeated report
// for the same socket and round is ignored, as is a socket that is not a
// current player.
func (that *Room) CreditWin(socketID string) bool {
	player := that.FindPlayer(socketID)
	if player == nil {
		return false
	}

	if that.LastWinner != nil && that.LastWinner.SocketID == socketID && that.LastWinner.Round == that.CurrentRound {
		return false
	}

	player.Points++
	that.LastWinner = &LastWinner{
		SocketID: socketID,
		Round:    that.CurrentRound,
	}

	return true
}

// IsFinalRound reports whether the current round is the last configured one.
func (that *Room) IsFinalRound() bool {
	return that.CurrentRound >= that.MaxRounds
}

func (that *Room) AdvanceRound() {
	that.CurrentRound++
}

// ResetBoard clears the grid and hands the turn back to the first player.
func (that *Room) ResetBoard() {
	that.Board = make([]string, BoardCells)

	if len(that.Players) > 0 {
		turn := *that.Players[0]
		that.Turn = &turn
		that.TurnIndex = 0
	}
}

// RemovePlayer drops the player owning the socket. The turn is deliberately
// left pointing at whoever held it, even if that was the leaving player.
func (that *Room) RemovePlayer(socketID string) bool {
	for i, player := range that.Players {
		if player.SocketID == socketID {
			that.Players = append(that.Players[:i], that.Players[i+1:]...)
			return true
		}
	}

	return false
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

// FinalScores returns the per-player snapshot sent with the game end event.
func (that *Room) FinalScores() []Score {
	scores := make([]Score, 0, len(that.Players))

	for _, player := range that.Players {
		scores = append(scores, Score{
			Nickname:   player.Nickname,
			Points:     player.Points,
			SocketID:   player.SocketID,
			PlayerType: player.PlayerType,
		})
	}

	return scores
}
