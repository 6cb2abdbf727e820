package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func setupGoose() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Migrate applies every pending migration compiled into the binary.
func Migrate(database *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := goose.Up(database, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MigrationStatus prints the state of every migration through goose's logger.
func MigrationStatus(database *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := goose.Status(database, "migrations"); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
