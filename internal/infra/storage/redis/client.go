// Package redis implements the storage interfaces of txledger, escrow and
// identity on a single Redis connection. Records are stored as JSON values
// under namespaced keys, with SETNX backing the uniqueness constraints and
// sorted sets serving the participant indexes.
package redis

import (
	"context"

	"github.com/gabapcia/escrowledger/internal/pkg/resilience/retry"

	redis "github.com/redis/go-redis/v9"
)

type client struct {
	conn *redis.Client
}

func (c *client) Close() error {
	return c.conn.Close()
}

// NewClient connects to Redis and verifies the connection with a ping. The
// ping is retried with backoff so a service starting alongside its Redis
// container does not give up before the container is ready.
func NewClient(ctx context.Context, addr, username, password string, db int) (*client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	ping := retry.New(retry.WithAttempts(5))
	if err := ping.Execute(ctx, func() error { return conn.Ping(ctx).Err() }); err != nil {
		return nil, err
	}

	return &client{
		conn: conn,
	}, nil
}
