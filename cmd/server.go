/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/htverse/apiserver/config"
	"github.com/htverse/apiserver/internal/logger"
	"github.com/htverse/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the hackathon API server",
	Long: `Starts the hackathon API server. Usage:

	htverse server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger.Setup(cfg.Env)

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			slog.Error("failed to start server", "error", err)
			return fmt.Errorf("start server: %w", err)
		}
		if err := srv.Start(cmd.Context()); err != nil {
			slog.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
