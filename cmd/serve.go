package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/yummy-chat/internal/chat"
	"github.com/pelusa-v/yummy-chat/internal/config"
	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/handlers"
	"github.com/pelusa-v/yummy-chat/internal/lastseen"
	"github.com/pelusa-v/yummy-chat/internal/store"
	storemetrics "github.com/pelusa-v/yummy-chat/internal/store/metrics"
	"github.com/urfave/cli/v3"

	// Import all backends to trigger init() registration
	_ "github.com/pelusa-v/yummy-chat/internal/store/memory"
	_ "github.com/pelusa-v/yummy-chat/internal/store/mongo"
	_ "github.com/pelusa-v/yummy-chat/internal/store/pebble"
)

func serveCommand() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat HTTP and websocket server",
		Flags: serveFlags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			log.SetLevel(level)
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func serveFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		// ── Server ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "listen",
			Category:    "Server:",
			Sources:     cli.EnvVars("YUMMY_CHAT_LISTEN"),
			Destination: &cfg.ListenAddr,
			Value:       cfg.ListenAddr,
			Usage:       "HTTP listen address",
		},
		&cli.StringFlag{
			Name:        "static-dir",
			Category:    "Server:",
			Sources:     cli.EnvVars("YUMMY_CHAT_STATIC_DIR"),
			Destination: &cfg.StaticDir,
			Usage:       "Directory of static pages served at /",
		},
		&cli.DurationFlag{
			Name:        "drain-timeout",
			Category:    "Server:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DRAIN_TIMEOUT"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Time allowed for open requests on shutdown",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Server:",
			Sources:     cli.EnvVars("YUMMY_CHAT_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
			Value:       cfg.LogLevel,
			Usage:       "Log level (debug|info|warn|error)",
		},
		// ── Delivery ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "group-fanout",
			Category:    "Delivery:",
			Sources:     cli.EnvVars("YUMMY_CHAT_GROUP_FANOUT"),
			Destination: &cfg.GroupFanout,
			Value:       cfg.GroupFanout,
			Usage:       "Who receives group messages (all|members|room)",
		},
		&cli.IntFlag{
			Name:        "send-buffer",
			Category:    "Delivery:",
			Sources:     cli.EnvVars("YUMMY_CHAT_SEND_BUFFER"),
			Destination: &cfg.SendBuffer,
			Value:       cfg.SendBuffer,
			Usage:       "Outbound queue length per connection",
		},
		// ── Database ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DB_KIND"),
			Destination: &cfg.StoreType,
			Value:       cfg.StoreType,
			Usage:       "Message store (" + strings.Join(store.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "MongoDB connection URL",
		},
		&cli.StringFlag{
			Name:        "db-name",
			Category:    "Database:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DB_NAME"),
			Destination: &cfg.DBName,
			Value:       cfg.DBName,
			Usage:       "MongoDB database name",
		},
		&cli.StringFlag{
			Name:        "pebble-path",
			Category:    "Database:",
			Sources:     cli.EnvVars("YUMMY_CHAT_PEBBLE_PATH"),
			Destination: &cfg.PebblePath,
			Value:       cfg.PebblePath,
			Usage:       "Data directory of the pebble store",
		},
		// ── Directory ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "directory-kind",
			Category:    "Directory:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DIRECTORY_KIND"),
			Destination: &cfg.DirectoryType,
			Value:       cfg.DirectoryType,
			Usage:       "Friendship and group directory (memory|mongo)",
		},
		&cli.StringFlag{
			Name:        "directory-file",
			Category:    "Directory:",
			Sources:     cli.EnvVars("YUMMY_CHAT_DIRECTORY_FILE"),
			Destination: &cfg.DirectoryFile,
			Usage:       "YAML seed for the memory directory",
		},
		// ── Last Seen ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "last-seen-kind",
			Category:    "Last Seen:",
			Sources:     cli.EnvVars("YUMMY_CHAT_LAST_SEEN_KIND"),
			Destination: &cfg.LastSeenType,
			Value:       cfg.LastSeenType,
			Usage:       "Last-seen recorder (" + strings.Join(lastseen.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Last Seen:",
			Sources:     cli.EnvVars("YUMMY_CHAT_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	loader, err := store.Select(cfg.StoreType)
	if err != nil {
		return err
	}
	st, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreType, err)
	}
	st = storemetrics.Wrap(st)
	defer closeStore(st)

	friends, groups, closeDir, err := openDirectory(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closeDir()

	recLoader, err := lastseen.Select(cfg.LastSeenType)
	if err != nil {
		return err
	}
	rec, err := recLoader(ctx)
	if err != nil {
		return err
	}
	defer closeRecorder(rec)

	svc, err := chat.NewService(chat.Options{
		Store:       st,
		Friendships: friends,
		Groups:      groups,
		GroupPolicy: chat.GroupPolicy(cfg.GroupFanout),
	})
	if err != nil {
		return err
	}
	mgr := chat.NewManager(svc, rec, cfg.SendBuffer)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler,
	})
	app.Use(handlers.AccessLog)
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}
	handlers.New(ctx, svc, mgr).Register(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", cfg.ListenAddr, "store", cfg.StoreType, "directory", cfg.DirectoryType, "group_fanout", cfg.GroupFanout)
		errCh <- app.Listen(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(cfg.DrainTimeout); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func closeStore(st store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		log.Error("Failed to close store", "err", err)
	}
}

func closeRecorder(rec lastseen.Recorder) {
	if err := rec.Close(); err != nil {
		log.Error("Failed to close last-seen recorder", "err", err)
	}
}

func openDirectory(ctx context.Context, cfg config.Config, logs directory.LogCreator) (directory.Friendships, directory.Groups, func(), error) {
	switch cfg.DirectoryType {
	case "memory":
		dir := directory.NewMemory(logs)
		if cfg.DirectoryFile != "" {
			if err := dir.SeedFile(ctx, cfg.DirectoryFile); err != nil {
				return nil, nil, nil, fmt.Errorf("seed directory: %w", err)
			}
		}
		return dir.Friendships(), dir.Groups(), func() {}, nil
	case "mongo":
		if cfg.DBURL == "" {
			return nil, nil, nil, errors.New("mongo directory: db-url is required")
		}
		dir, err := directory.ConnectMongo(ctx, cfg.DBURL, cfg.DBName)
		if err != nil {
			return nil, nil, nil, err
		}
		return dir.Friendships(), dir.Groups(), func() { _ = dir.Close(context.Background()) }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown directory %q; valid: [memory mongo]", cfg.DirectoryType)
}
