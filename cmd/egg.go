package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/egg"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/variables"
)

var eggCmd = &cobra.Command{
	Use:   "egg",
	Short: "Manage eggs (server type templates)",
}

var eggImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an egg file",
	Long: `Import an egg file in YAML or JSON.

Relative names are looked up in the eggs directory next to config.toml.

Examples:
  hearth-ctl egg import bungeecord.yaml
  hearth-ctl egg import /tmp/egg-paper.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEggImport,
}

var eggListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported eggs",
	Args:  cobra.NoArgs,
	RunE:  runEggList,
}

var eggShowCmd = &cobra.Command{
	Use:   "show <egg-id>",
	Short: "Show an egg and its variables",
	Args:  cobra.ExactArgs(1),
	RunE:  runEggShow,
}

var eggExportCmd = &cobra.Command{
	Use:   "export <egg-id>",
	Short: "Write an egg in the egg file format",
	Args:  cobra.ExactArgs(1),
	RunE:  runEggExport,
}

var eggExportOutput string

func init() {
	eggExportCmd.Flags().StringVarP(&eggExportOutput, "output", "o", "", "Write to a file instead of stdout")

	eggCmd.AddCommand(eggImportCmd, eggListCmd, eggShowCmd, eggExportCmd)
	rootCmd.AddCommand(eggCmd)
}

func runEggImport(cmd *cobra.Command, args []string) error {
	e, err := egg.LoadFile(app.Default.Paths, args[0])
	if err != nil {
		return err
	}
	if err := egg.Import(cmd.Context(), db(), e); err != nil {
		return err
	}

	logSuccess("Imported egg %s (id %d, %d variables)", e.Name, e.ID, len(e.Variables))
	return nil
}

func runEggList(cmd *cobra.Command, args []string) error {
	eggs, err := db().ListEggs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list eggs: %w", err)
	}

	if len(eggs) == 0 {
		logInfo("No eggs found. Import one with: hearth-ctl egg import <file>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAUTHOR\tIMAGE")
	fmt.Fprintln(w, "--\t----\t------\t-----")
	for _, e := range eggs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.Author, e.DefaultImage)
	}
	return w.Flush()
}

func loadEgg(cmd *cobra.Command, arg string) (*model.Egg, error) {
	id, err := parseID("egg", arg)
	if err != nil {
		return nil, err
	}
	return db().GetEgg(cmd.Context(), id)
}

func runEggShow(cmd *cobra.Command, args []string) error {
	e, err := loadEgg(cmd, args[0])
	if err != nil {
		return err
	}
	printEgg(cmd.OutOrStdout(), e)
	return nil
}

// printEgg writes an egg with one line per variable. LABEL is the name
// validation errors use for the variable.
func printEgg(out io.Writer, e *model.Egg) {
	fmt.Fprintf(out, "Egg:     %s (id %d)\n", e.Name, e.ID)
	fmt.Fprintf(out, "Author:  %s\n", e.Author)
	fmt.Fprintf(out, "Image:   %s\n", e.DefaultImage)
	fmt.Fprintf(out, "Startup: %s\n", e.Startup)
	if e.Description != "" {
		fmt.Fprintf(out, "\n%s\n", e.Description)
	}

	if len(e.Variables) == 0 {
		return
	}
	fmt.Fprintln(out, "\nVariables:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ENV\tDEFAULT\tRULES\tEDITABLE\tLABEL")
	for _, v := range e.Variables {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%t\t%s\n",
			v.EnvVariable, v.DefaultValue, v.Rules, v.UserEditable, variables.Attribute(v))
	}
	w.Flush()
}

func runEggExport(cmd *cobra.Command, args []string) error {
	e, err := loadEgg(cmd, args[0])
	if err != nil {
		return err
	}
	return writeEgg(cmd.OutOrStdout(), e, eggExportOutput)
}

func writeEgg(stdout io.Writer, e *model.Egg, path string) error {
	data, err := egg.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode egg: %w", err)
	}
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logSuccess("Wrote %s", path)
	return nil
}
