package recordCache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blockvault/internal/model/fileInfo"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// RecordCache keeps decoded ledger records in redis so repeated detail reads
// don't hit the contract. It is a read-through cache only: the orchestration
// layer writes entries after confirmed reads and drops them after confirmed
// deletes.
type RecordCache struct {
	Client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *RecordCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RecordCache{Client: client, ttl: ttl}
}

func (c *RecordCache) buildKey(fileID string) string {
	return fmt.Sprintf("file:%s", fileID)
}

// Get returns (nil, nil) on a cache miss.
func (c *RecordCache) Get(ctx context.Context, fileID string) (*fileInfo.File, error) {
	data, err := c.Client.Get(ctx, c.buildKey(fileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var file fileInfo.File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *RecordCache) Set(ctx context.Context, file *fileInfo.File) error {
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.buildKey(file.ID), data, c.ttl).Err()
}

func (c *RecordCache) Delete(ctx context.Context, fileID string) error {
	return c.Client.Del(ctx, c.buildKey(fileID)).Err()
}
