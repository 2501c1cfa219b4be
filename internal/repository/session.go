package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SessionRepository is the session registry: it answers which rooms contain
// the player owned by a given connection, so disconnect cleanup can find
// every room a socket belongs to.
type SessionRepository interface {
	Add(ctx context.Context, socketID, roomID string) error
	RoomsBySocketID(ctx context.Context, socketID string) ([]string, error)
	Remove(ctx context.Context, socketID, roomID string) error
}

type dbSession struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &dbSession{
		client: client,
	}
}

func (that *dbSession) Add(ctx context.Context, socketID, roomID string) error {
	sessionKey := "sockets:" + socketID

	err := that.client.SAdd(ctx, sessionKey, roomID).Err()
	if err != nil {
		return fmt.Errorf("failed to add room to session: %w", err)
	}

	return nil
}

func (that *dbSession) RoomsBySocketID(ctx context.Context, socketID string) ([]string, error) {
	sessionKey := "sockets:" + socketID

	roomIDs, err := that.client.SMembers(ctx, sessionKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms by socket ID: %w", err)
	}

	return roomIDs, nil
}

func (that *dbSession) Remove(ctx context.Context, socketID, roomID string) error {
	sessionKey := "sockets:" + socketID

	err := that.client.SRem(ctx, sessionKey, roomID).Err()
	if err != nil {
		return fmt.Errorf("failed to remove room from session: %w", err)
	}

	return nil
}
