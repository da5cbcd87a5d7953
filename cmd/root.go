package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "hearth-ctl",
	Short: "Hearth game server panel CLI",
	Long: `hearth-ctl provisions game servers on nodes running the Hearth daemon.

A server is created from an egg (a server type template), gets one or more
IP:port allocations on its node, and is registered with the node's daemon.
A creation the daemon rejects is rolled back completely.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		return openApp(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		app.Default.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// openApp loads the configuration unless one was injected, then opens
// whatever the default app is still missing.
func openApp(ctx context.Context) error {
	a := app.Default
	if a.Config == nil {
		path, explicit := a.Paths.ConfigFile(), false
		if configPath != "" {
			path, explicit = configPath, true
		}
		cfg, err := config.Load(a.Paths, path, explicit)
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	return a.Open(ctx)
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
