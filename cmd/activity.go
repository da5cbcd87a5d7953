package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/audit"
)

var activityCmd = &cobra.Command{
	Use:   "activity <server-uuid>",
	Short: "Display the activity log of a server",
	Long: `Display the activity log of a server.

The log outlives the server, so a deleted server's UUID still works.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivity,
}

var activityJSONL bool

func init() {
	activityCmd.Flags().BoolVar(&activityJSONL, "jsonl", false, "Output events as JSON lines")
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, args []string) error {
	uuid := args[0]
	if srv, err := loadServer(cmd.Context(), uuid); err == nil {
		uuid = srv.UUID
	}

	events, err := audit.NewLogger(app.Default.Config.Activity.Dir).Events(uuid)
	if err != nil {
		return fmt.Errorf("failed to read activity log: %w", err)
	}

	if len(events) == 0 {
		logInfo("No activity found for server %s", uuid)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if activityJSONL {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		if props := formatProperties(e.Properties); props != "" {
			fmt.Fprintf(out, "[%s] %-26s %s\n", ts, e.Type, props)
		} else {
			fmt.Fprintf(out, "[%s] %s\n", ts, e.Type)
		}
	}

	return nil
}

func formatProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return strings.Join(parts, " ")
}
