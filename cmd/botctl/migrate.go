package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/db"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cobra.Command {
	var dbConnStr string

	cmd := &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			if dbConnStr == "" {
				dbConnStr = os.Getenv("DATABASE_URL")
			}
			if dbConnStr == "" {
				return fmt.Errorf("DATABASE_URL is not set and --db was not given")
			}
			return runMigrate(cmd.Context(), dbConnStr, action)
		},
	}

	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides DATABASE_URL)")

	return cmd
}

func runMigrate(ctx context.Context, dbConnStr, action string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Open(ctx, dbConnStr, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if action == "status" {
		return db.MigrationStatus(database)
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
