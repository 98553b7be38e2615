package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/escrowledger/internal/identity"

	"github.com/redis/go-redis/v9"
)

// identityKeyPrefix is the namespace prefix for all identity keys.
const identityKeyPrefix = "identity"

// identityUserKey builds the key holding an identity profile as JSON.
//
// Format: "identity:user:<username>"
func identityUserKey(username string) string {
	return fmt.Sprintf("%s:user:%s", identityKeyPrefix, username)
}

// SaveIdentity implements the identity.CredentialStorage interface.
func (c *client) SaveIdentity(ctx context.Context, record identity.Identity) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	created, err := c.conn.SetNX(ctx, identityUserKey(record.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return identity.ErrIdentityTaken
	}
	return nil
}

// GetIdentity implements the identity.CredentialStorage interface.
func (c *client) GetIdentity(ctx context.Context, username string) (identity.Identity, error) {
	data, err := c.conn.Get(ctx, identityUserKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = identity.ErrIdentityNotFound
		}
		return identity.Identity{}, err
	}

	var record identity.Identity
	return record, json.Unmarshal(data, &record)
}

// Compile-time assertion to ensure *client satisfies the identity.CredentialStorage interface
var _ identity.CredentialStorage = new(client)
