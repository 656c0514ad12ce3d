package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/rostersync/internal/client/session"
	"github.com/mcoot/rostersync/internal/model"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <slug>",
		Short: "Show a roster's players and keep the list live",
		Long: `Open a live view of the roster. The player list is reprinted whenever it
changes, whether the change came from this machine or another client.
Dropped connections are retried with backoff.

Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := cfg.Logger()
			sess := session.New(session.Config{
				Gateway:   client,
				Source:    cfg.Source(logger),
				Logger:    logger,
				Reconnect: true,
			})
			defer sess.Close()

			view, err := sess.OpenRoster(ctx, model.RosterSlug(args[0]))
			if err != nil {
				return err
			}
			defer view.Close()

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			changed := make(chan struct{}, 1)
			unsubscribe := view.Subscribe(func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			defer unsubscribe()

			printView(out, view)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
					printView(out, view)
				}
			}
		},
	}
}

func printView(out *Output, view *session.View) {
	if roster, ok := view.Roster(); ok {
		out.Print(roster)
	}
	players, _ := view.Players()
	if players == nil {
		players = []model.Player{}
	}
	out.Print(players)
	if out.format != "json" {
		fmt.Fprintln(out.w)
	}
}
