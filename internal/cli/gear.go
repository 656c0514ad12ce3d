package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/rostersync/internal/model"
)

func newGearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gear",
		Short: "Gear choice commands",
	}

	cmd.AddCommand(newGearGetCmd())
	cmd.AddCommand(newGearSetCmd())
	cmd.AddCommand(newGearImportCmd())

	return cmd
}

func newGearGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <player-id>",
		Short: "Show a player's gear choice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.GetOrCreateGearChoice(cmd.Context(), model.PlayerID(args[0]))
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newGearSetCmd() *cobra.Command {
	var sources, obtained []string

	cmd := &cobra.Command{
		Use:   "set <player-id>",
		Short: "Change gear slots",
		Long: `Change one or more gear slots, e.g.

  rosterctl gear set <player-id> --source weapon=Tome --obtained ring1=true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := parseGearUpdate(sources, obtained)
			if err != nil {
				return err
			}

			result, err := client.UpdateGearChoice(cmd.Context(), model.PlayerID(args[0]), update)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sources, "source", nil, "slot=Raid|Tome|Crafted (repeatable)")
	cmd.Flags().StringArrayVar(&obtained, "obtained", nil, "slot=true|false (repeatable)")

	return cmd
}

func newGearImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <player-id> <url>",
		Short: "Set gear sources from an xivgear.app set link",
		Long: `Set each slot's source from the items in an xivgear.app set. Savage
pieces become Raid, augmented tome pieces Tome, and anything else Crafted.
Slots the set leaves empty and obtained flags are not changed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := cfg.Importer().Import(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			result, err := client.UpdateGearChoice(cmd.Context(), model.PlayerID(args[0]), update)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.XivgearAPI, "xivgear-api", cfg.XivgearAPI, "xivgear API URL (env: ROSTERCTL_XIVGEAR_API)")
	cmd.Flags().StringVar(&cfg.XivgearData, "xivgear-data", cfg.XivgearData, "xivgear data URL (env: ROSTERCTL_XIVGEAR_DATA)")

	return cmd
}

// parseGearUpdate builds an update from slot=value pairs
func parseGearUpdate(sources, obtained []string) (model.GearChoiceUpdate, error) {
	update := model.GearChoiceUpdate{}
	for _, pair := range sources {
		slot, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --source %q, want slot=source", pair)
		}
		update.SetSource(model.GearSlot(slot), model.GearSource(value))
	}
	for _, pair := range obtained {
		slot, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --obtained %q, want slot=true|false", pair)
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid --obtained %q: %w", pair, err)
		}
		update.SetObtained(model.GearSlot(slot), b)
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	return update, nil
}
