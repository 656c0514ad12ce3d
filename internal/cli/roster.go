package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rostersync/internal/model"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster management commands",
	}

	cmd.AddCommand(newRosterCreateCmd())
	cmd.AddCommand(newRosterGetCmd())
	cmd.AddCommand(newRosterRenameCmd())
	cmd.AddCommand(newRosterPlayersCmd())

	return cmd
}

func newRosterCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.CreateRoster(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newRosterGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Get roster details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.GetRoster(cmd.Context(), model.RosterSlug(args[0]))
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newRosterRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <slug> <name>",
		Short: "Rename a roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.UpdateRoster(cmd.Context(), model.RosterSlug(args[0]), args[1])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newRosterPlayersCmd() *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "players <slug>",
		Short: "List a roster's players",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.ListPlayers(cmd.Context(), model.RosterSlug(args[0]), !inactive)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "List soft-deleted players instead")

	return cmd
}
