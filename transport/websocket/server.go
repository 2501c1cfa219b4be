package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type roomManager interface {
	CreateRoom(ctx context.Context, socketID, nickname string, maxRounds int) error
	JoinRoom(ctx context.Context, socketID, nickname, roomID string) error
	Tap(ctx context.Context, socketID, roomID string, cell int) error
	DeclareWinner(ctx context.Context, winnerSocketID, roomID string) error
	DeclareDraw(ctx context.Context, roomID string, currentRound int, board []string) error
	RestartGame(ctx context.Context, roomID string) error
	Disconnect(ctx context.Context, socketID string)
}

type Server struct {
	logger  *slog.Logger
	manager roomManager
	hub     *Hub

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, c *client, message *Message) error
}

func New(logger *slog.Logger, manager roomManager, hub *Hub) *Server {
	server := &Server{
		logger:  logger,
		manager: manager,
		hub:     hub,

		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers[actionCreateRoom] = server.handleCreateRoom
	server.handlers[actionJoinRoom] = server.handleJoinRoom
	server.handlers[actionTap] = server.handleTap
	server.handlers[actionWinner] = server.handleWinner
	server.handlers[actionDraw] = server.handleDraw
	server.handlers[actionRestartGame] = server.handleRestartGame

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection - upgrades the connection and pumps its messages until it
// closes; teardown runs the disconnect cleanup for the session.
func (that *Server) serveConnection(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		socketID: uuid.NewString(),
		conn:     conn,
	}

	that.hub.register(c)
	log = log.With("socketID", c.socketID)
	log.Info("connection established")

	defer func() {
		that.hub.unregister(c.socketID)
		that.manager.Disconnect(ctx, c.socketID)
		_ = conn.Close()
		log.Info("connection closed")
	}()

	that.handleMessages(ctx, c)
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, c *client) {
	log := that.logger.With("method", "handleMessages", "socketID", c.socketID)

	for {
		var message Message
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err := handler(ctx, c, &message); err != nil {
			that.dispatchError(log, c, err)
		}
	}
}

func mustUnmarshal(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil
}
