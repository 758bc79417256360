package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/store/mongo"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the MongoDB collections and indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Sources:  cli.EnvVars("YUMMY_CHAT_DB_URL"),
				Usage:    "MongoDB connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db-name",
				Sources: cli.EnvVars("YUMMY_CHAT_DB_NAME"),
				Usage:   "MongoDB database name",
				Value:   "yummy_chat",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := mongo.Connect(ctx, cmd.String("db-url"), cmd.String("db-name"))
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			log.Info("Running migrations...")
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
