package nonceRepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NonceRepo hands out one-time login nonces keyed by wallet address. A nonce
// is consumed on first read, so a captured signature cannot be replayed.
type NonceRepo struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *NonceRepo {
	return &NonceRepo{Client: client, TTL: ttl}
}

func (r *NonceRepo) buildKey(address string) string {
	return fmt.Sprintf("login:nonce:%s", strings.ToLower(address))
}

func (r *NonceRepo) Issue(ctx context.Context, address string) (string, error) {
	nonce := uuid.NewString()
	key := r.buildKey(address)
	if err := r.Client.Set(ctx, key, nonce, r.TTL).Err(); err != nil {
		return "", err
	}
	return nonce, nil
}

// Consume returns the pending nonce for address and deletes it. A missing
// nonce comes back as redis.Nil.
func (r *NonceRepo) Consume(ctx context.Context, address string) (string, error) {
	key := r.buildKey(address)
	return r.Client.GetDel(ctx, key).Result()
}
