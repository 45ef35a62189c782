package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ClaimStore implements ports.ClaimStore using Redis SET NX.
// The retry sweeper claims an attempt before redelivery so overlapping
// sweeps (or a second engine instance) never process the same row twice.
type ClaimStore struct {
	client *goredis.Client
}

// NewClaimStore creates a new Redis-backed claim store.
func NewClaimStore(client *goredis.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

// Claim atomically acquires key for ttl. Returns true if this caller won
// the claim, false if another holder already owns it.
func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — claim is held elsewhere
			return false, nil
		}
		return false, fmt.Errorf("redis claim: %w", err)
	}
	return result == "OK", nil
}
