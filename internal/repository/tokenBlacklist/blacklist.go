package tokenBlacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistRepo marks revoked gateway tokens until their natural expiry.
type BlacklistRepo struct {
	Client *redis.Client
}

func New(client *redis.Client) *BlacklistRepo {
	return &BlacklistRepo{Client: client}
}

func (r *BlacklistRepo) buildKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func (r *BlacklistRepo) AddToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	key := r.buildKey(token)
	return r.Client.Set(ctx, key, "1", ttl).Err()
}

func (r *BlacklistRepo) RemoveToken(ctx context.Context, token string) error {
	key := r.buildKey(token)
	return r.Client.Del(ctx, key).Err()
}

func (r *BlacklistRepo) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	key := r.buildKey(token)
	_, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
