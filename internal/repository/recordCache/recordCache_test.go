package recordCache_test

import (
	"context"
	"testing"
	"time"

	"blockvault/internal/model/fileInfo"
	"blockvault/internal/repository/recordCache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupCache(t *testing.T) (*recordCache.RecordCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return recordCache.New(cli, time.Minute), mr
}

func sampleFile() *fileInfo.File {
	return &fileInfo.File{
		ID:        "7",
		Name:      "a.txt",
		MimeType:  "text/plain",
		SizeBytes: 10,
		ContentID: "Qm123",
		Owner:     "0x1111111111111111111111111111111111111111",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, sampleFile()))

	got, err := cache.Get(ctx, "7")
	assert.NoError(t, err)
	assert.Equal(t, sampleFile(), got)
}

func TestGet_MissReturnsNil(t *testing.T) {
	cache, _ := setupCache(t)

	got, err := cache.Get(context.Background(), "404")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, sampleFile()))
	assert.NoError(t, cache.Delete(ctx, "7"))

	got, err := cache.Get(ctx, "7")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestEntriesExpire(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, sampleFile()))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "7")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
