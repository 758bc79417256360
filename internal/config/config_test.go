package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, GroupFanoutAll, cfg.GroupFanout)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GroupFanout = "everyone"
	require.ErrorContains(t, cfg.Validate(), "invalid group fanout")

	cfg = DefaultConfig()
	cfg.StoreType = "mongo"
	require.ErrorContains(t, cfg.Validate(), "db-url")

	cfg.DBURL = "mongodb://localhost:27017"
	require.NoError(t, cfg.Validate())

	cfg.LastSeenType = "redis"
	require.ErrorContains(t, cfg.Validate(), "redis-url")

	cfg.SendBuffer = 0
	cfg.LastSeenType = "none"
	require.ErrorContains(t, cfg.Validate(), "send buffer")
}

func TestContextRoundTrip(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))

	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), &cfg)
	require.Same(t, &cfg, FromContext(ctx))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("YUMMY_CHAT_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("YUMMY_CHAT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "from-file", os.Getenv("YUMMY_CHAT_TEST_DOTENV"))
}
