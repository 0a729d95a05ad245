/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aimaster/apiserver/internal/mq"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect publish events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log publish events as they arrive",
	Long: `Subscribes to the publish event channel on the configured broker
(EVENTS_BACKEND) and logs every event until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("events are disabled; set EVENTS_BACKEND to rabbitmq or pubsub")
		}
		defer broker.Close()

		log.Info().Str("channel", cfg.Events.Channel).Msg("tailing publish events")
		err = broker.Subscribe(ctx, cfg.Events.Channel, func(ctx context.Context, msg mq.Message) error {
			ev, err := mq.DecodePublishEvent(msg)
			if err != nil {
				log.Warn().Err(err).Str("message_id", msg.ID).Msg("skipping message")
				return nil
			}
			log.Info().
				Int("user_id", ev.UserID).
				Str("flow", ev.Flow).
				Str("value", ev.Value).
				Str("key", ev.Key).
				Time("published_at", ev.PublishedAt).
				Msg("published")
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
	eventsCmd.AddCommand(eventsTailCmd)
}
