/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/htverse/apiserver/config"
	"github.com/htverse/apiserver/internal/logger"
	"github.com/htverse/apiserver/internal/mq"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail hackathon events from the message queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger.Setup(cfg.Env)

		backend, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		publisher := mq.NewPublisher(backend, cfg.MQ.Channel)
		defer func() {
			_ = publisher.Close()
		}()

		slog.Info("tailing events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = publisher.Subscribe(cmd.Context(), func(ctx context.Context, event mq.Event) error {
			slog.Info("event",
				"id", event.ID,
				"type", event.Type,
				"hackathon_id", event.HackathonID,
				"actor_id", event.ActorID,
				"occurred_at", event.OccurredAt,
				"data", event.Data,
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
