package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive egg picker",
	Long: `Opens an interactive TUI for browsing imported eggs.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Show the egg's variables and a create command for it
  e      - Export the egg in the egg file format
  q/Esc  - Quit

When stdout is not a terminal the eggs are listed instead.`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logging.Debug("picker mode started")

	listed, err := db().ListEggs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list eggs: %w", err)
	}

	// The list has no variables; the picker shows their count.
	eggs := make([]*model.Egg, 0, len(listed))
	for _, e := range listed {
		full, err := db().GetEgg(ctx, e.ID)
		if err != nil {
			return err
		}
		eggs = append(eggs, full)
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprint(cmd.OutOrStdout(), tui.SimplePicker(eggs))
		return nil
	}

	if len(eggs) == 0 {
		logInfo("No eggs found. Import one with: hearth-ctl egg import <file>")
		return nil
	}

	result, err := tui.RunPicker(eggs)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action)

	switch result.Action {
	case tui.ActionSelect:
		out := cmd.OutOrStdout()
		printEgg(out, result.Egg)
		fmt.Fprintln(out, "\nTo create a server from this egg, run:")
		fmt.Fprintf(out, "  hearth-ctl server create <name> --owner <user> --node <node> --egg %d\n", result.Egg.ID)

	case tui.ActionExport:
		return writeEgg(cmd.OutOrStdout(), result.Egg, "")

	case tui.ActionQuit:
		// Just exit cleanly
	}

	return nil
}
