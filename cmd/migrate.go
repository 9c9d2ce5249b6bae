/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/htverse/apiserver/config"
	"github.com/htverse/apiserver/internal/db"
)

var migrationsDir string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run PostgreSQL database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(func(m *migrate.Migrate) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(func(m *migrate.Migrate) error { return m.Steps(-1) })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				cmd.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "internal/db/migrations", "directory holding the SQL migrations")
}

func runMigrations(step func(*migrate.Migrate) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	migrator, err := migrate.New("file://"+migrationsDir, db.PostgresURL(cfg.Database))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
