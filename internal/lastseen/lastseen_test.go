package lastseen

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	require.Contains(t, Names(), "none")
	require.Contains(t, Names(), "redis")

	load, err := Select("none")
	require.NoError(t, err)
	rec, err := load(context.Background())
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), "alice", time.Now()))
	_, ok, err := rec.LastSeen(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, rec.Close())

	_, err = Select("etcd")
	require.ErrorContains(t, err, "unknown last-seen recorder")
}

func TestRedisLoaderRequiresURL(t *testing.T) {
	load, err := Select("redis")
	require.NoError(t, err)
	_, err = load(context.Background())
	require.ErrorContains(t, err, "redis-url is required")
}

func TestRedisClose(t *testing.T) {
	// No server is needed: the client dials lazily.
	rec := NewRedis(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}))
	require.NoError(t, rec.Close())
	require.Error(t, rec.Record(context.Background(), "alice", time.Now()))
}
