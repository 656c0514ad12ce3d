package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/rostersync/internal/model"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <slug>",
		Short: "Stream broadcast events from a roster",
		Long: `Connect to the roster's event stream and print events as they arrive.

Events include:
  - PlayerUpdated: a player's name or role changed
  - PlayerDeleted: a player was soft-deleted
  - PlayerActivated: a soft-deleted player was restored
  - PlayerGearChoiceUpdated: a player's gear choice changed
  - RosterUpdated: a player was added or the roster was renamed

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, cmd, model.RosterSlug(args[0]))
		},
	}

	return cmd
}

func streamEvents(ctx context.Context, cmd *cobra.Command, slug model.RosterSlug) error {
	out := NewOutput(cfg.Output, cmd.OutOrStdout())
	source := cfg.Source(cfg.Logger())

	feed, err := source.Open(ctx, slug)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer feed.Close()

	if cfg.Output != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to roster %s\n", slug)
	}

	for {
		select {
		case <-ctx.Done():
			if cfg.Output != "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "\nDisconnected")
			}
			return nil
		case event, ok := <-feed.Events():
			if !ok {
				if cfg.Output != "json" {
					fmt.Fprintln(cmd.OutOrStdout(), "Disconnected")
				}
				return nil
			}
			out.printEvent(time.Now(), event)
		}
	}
}
