package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	GroupFanoutAll     = "all"
	GroupFanoutMembers = "members"
	GroupFanoutRoom    = "room"
)

// Config holds all configuration for the chat server.
type Config struct {
	// Server
	ListenAddr   string
	StaticDir    string
	DrainTimeout time.Duration
	LogLevel     string

	// Datastore backend: "memory", "pebble" or "mongo".
	StoreType  string
	DBURL      string
	DBName     string
	PebblePath string

	// Friendship/group directory backend: "memory" or "mongo".
	DirectoryType string
	// DirectoryFile seeds the memory directory (YAML).
	DirectoryFile string

	// Last-seen recorder: "none" or "redis".
	LastSeenType string
	RedisURL     string

	// GroupFanout selects who receives group_chat pushes: "all", "members" or "room".
	GroupFanout string

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "127.0.0.1:3000",
		DrainTimeout:  10 * time.Second,
		LogLevel:      "info",
		StoreType:     "memory",
		DBName:        "yummy_chat",
		PebblePath:    "data/chat",
		DirectoryType: "memory",
		LastSeenType:  "none",
		GroupFanout:   GroupFanoutAll,
		SendBuffer:    16,
	}
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.GroupFanout {
	case GroupFanoutAll, GroupFanoutMembers, GroupFanoutRoom:
	default:
		return fmt.Errorf("invalid group fanout %q: want %s|%s|%s", c.GroupFanout, GroupFanoutAll, GroupFanoutMembers, GroupFanoutRoom)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	if c.StoreType == "mongo" && strings.TrimSpace(c.DBURL) == "" {
		return errors.New("db-url is required for the mongo store")
	}
	if c.LastSeenType == "redis" && strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("redis-url is required for the redis last-seen recorder")
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
