package lastseen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

func init() {
	Register(Plugin{
		Name: "redis",
		Loader: func(ctx context.Context) (Recorder, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.RedisURL == "" {
				return nil, errors.New("redis last-seen: redis-url is required")
			}
			return NewRedisFromURL(ctx, cfg.RedisURL)
		},
	})
}

// Redis keeps last-seen times as unix-millisecond strings under lastseen:<username>.
type Redis struct {
	client goredis.UniversalClient
}

// NewRedisFromURL connects and pings.
func NewRedisFromURL(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis last-seen: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis last-seen: ping failed: %w", err)
	}
	return NewRedis(client), nil
}

func NewRedis(client goredis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func lastSeenKey(username string) string {
	return "lastseen:" + username
}

func (r *Redis) Record(ctx context.Context, username string, at time.Time) error {
	return r.client.Set(ctx, lastSeenKey(username), strconv.FormatInt(at.UnixMilli(), 10), 0).Err()
}

func (r *Redis) LastSeen(ctx context.Context, username string) (time.Time, bool, error) {
	v, err := r.client.Get(ctx, lastSeenKey(username)).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis last-seen: corrupt value for %s: %w", username, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
