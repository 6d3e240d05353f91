package tokenBlacklist_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"blockvault/internal/repository/tokenBlacklist"
)

func setup(t *testing.T) (*tokenBlacklist.BlacklistRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return tokenBlacklist.New(client), mr
}

func TestBlacklistRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("AddToken then IsTokenBlacklisted", func(t *testing.T) {
		repo, _ := setup(t)

		err := repo.AddToken(ctx, "token123", time.Now().Add(time.Hour))
		assert.NoError(t, err)

		blacklisted, err := repo.IsTokenBlacklisted(ctx, "token123")
		assert.NoError(t, err)
		assert.True(t, blacklisted)
	})

	t.Run("Unknown token is not blacklisted", func(t *testing.T) {
		repo, _ := setup(t)

		blacklisted, err := repo.IsTokenBlacklisted(ctx, "nobody")
		assert.NoError(t, err)
		assert.False(t, blacklisted)
	})

	t.Run("AddToken skips already expired token", func(t *testing.T) {
		repo, _ := setup(t)

		err := repo.AddToken(ctx, "stale", time.Now().Add(-time.Minute))
		assert.NoError(t, err)

		blacklisted, err := repo.IsTokenBlacklisted(ctx, "stale")
		assert.NoError(t, err)
		assert.False(t, blacklisted)
	})

	t.Run("Entry falls out at token expiry", func(t *testing.T) {
		repo, mr := setup(t)

		err := repo.AddToken(ctx, "token123", time.Now().Add(time.Minute))
		assert.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		blacklisted, err := repo.IsTokenBlacklisted(ctx, "token123")
		assert.NoError(t, err)
		assert.False(t, blacklisted)
	})

	t.Run("RemoveToken", func(t *testing.T) {
		repo, _ := setup(t)

		err := repo.AddToken(ctx, "token123", time.Now().Add(time.Hour))
		assert.NoError(t, err)
		assert.NoError(t, repo.RemoveToken(ctx, "token123"))

		blacklisted, err := repo.IsTokenBlacklisted(ctx, "token123")
		assert.NoError(t, err)
		assert.False(t, blacklisted)
	})
}
