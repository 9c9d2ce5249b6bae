/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/htverse/apiserver/config"
	"github.com/htverse/apiserver/internal/logger"
	"github.com/htverse/apiserver/internal/server"
	"github.com/htverse/apiserver/internal/services"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or repair the demo accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger.Setup(cfg.Env)

		repos, err := server.OpenRepositories(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = repos.Close(cmd.Context())
		}()

		users := services.NewUserService(repos.Users, slog.Default())
		if err := users.SeedDemoAccounts(cmd.Context()); err != nil {
			return err
		}
		for _, account := range services.DemoAccounts {
			slog.Info("demo account ready", "email", account.User.Email, "role", account.User.Role)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
