package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/port"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

var allocationCmd = &cobra.Command{
	Use:     "allocation",
	Aliases: []string{"alloc"},
	Short:   "Manage IP:port allocations",
}

var allocationCreateCmd = &cobra.Command{
	Use:   "create <node> <ports>",
	Short: "Create free allocations on a node",
	Long: `Create free allocations for every port in a port expression.

Ports that already exist on the IP are skipped.

Examples:
  hearth-ctl allocation create node-1 25565-25575
  hearth-ctl allocation create node-1 27015,27020 --ip 10.0.0.2 --alias play.example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runAllocationCreate,
}

var allocationCreateFlags struct {
	ip    string
	alias string
}

var allocationListCmd = &cobra.Command{
	Use:   "list <node>",
	Short: "List the allocations of a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocationList,
}

var allocationListFree bool

var allocationDeleteCmd = &cobra.Command{
	Use:   "delete <node> <allocation-id>",
	Short: "Delete a free allocation from a node",
	Long: `Delete a free allocation from a node. Allocations assigned to a server
must be removed from it first.`,
	Args: cobra.ExactArgs(2),
	RunE: runAllocationDelete,
}

var allocationAddCmd = &cobra.Command{
	Use:   "add <server>",
	Short: "Give a server one more allocation on its node",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocationAdd,
}

var allocationRemoveCmd = &cobra.Command{
	Use:   "remove <server> <allocation-id>",
	Short: "Release an allocation from a server",
	Args:  cobra.ExactArgs(2),
	RunE:  runAllocationRemove,
}

var allocationPrimaryCmd = &cobra.Command{
	Use:   "primary <server> <allocation-id>",
	Short: "Make an allocation the server's primary",
	Args:  cobra.ExactArgs(2),
	RunE:  runAllocationPrimary,
}

var allocationNotesCmd = &cobra.Command{
	Use:   "notes <server> <allocation-id> [notes...]",
	Short: "Set or clear the notes on a server's allocation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAllocationNotes,
}

func init() {
	allocationCreateCmd.Flags().StringVar(&allocationCreateFlags.ip, "ip", "", "IP address (default: the node's allocation IP)")
	allocationCreateCmd.Flags().StringVar(&allocationCreateFlags.alias, "alias", "", "Hostname shown instead of the IP")

	allocationListCmd.Flags().BoolVar(&allocationListFree, "free", false, "Only unassigned allocations")

	allocationCmd.AddCommand(allocationCreateCmd, allocationListCmd, allocationDeleteCmd, allocationAddCmd,
		allocationRemoveCmd, allocationPrimaryCmd, allocationNotesCmd)
	rootCmd.AddCommand(allocationCmd)
}

func runAllocationCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	node, err := loadNode(ctx, args[0])
	if err != nil {
		return err
	}
	ports, err := port.Parse(args[1])
	if err != nil {
		return errors.Wrap(errors.KindValidation, "invalid port expression", err)
	}

	var res *allocation.CreateResult
	err = db().WithTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = allocation.NewPool(q).Create(ctx, node, allocationCreateFlags.ip, allocationCreateFlags.alias, ports)
		return err
	})
	if err != nil {
		return err
	}

	logSuccess("Created %d allocation(s) on %s", len(res.Created), node.Name)
	if len(res.Skipped) > 0 {
		logWarning("Skipped existing ports: %s", joinPorts(res.Skipped))
	}
	return nil
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}

func runAllocationList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	node, err := loadNode(ctx, args[0])
	if err != nil {
		return err
	}

	allocs, err := db().ListAllocations(ctx, store.AllocationFilter{NodeID: node.ID, FreeOnly: allocationListFree})
	if err != nil {
		return fmt.Errorf("failed to list allocations: %w", err)
	}

	if len(allocs) == 0 {
		logInfo("No allocations on %s. Create some with: hearth-ctl allocation create %s <ports>", node.Name, node.Name)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADDRESS\tSERVER\tNOTES")
	fmt.Fprintln(w, "--\t-------\t------\t-----")

	for _, a := range allocs {
		server := "-"
		if a.ServerID != nil {
			server = fmt.Sprint(*a.ServerID)
		}
		notes := ""
		if a.Notes != nil {
			notes = *a.Notes
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Address(), server, notes)
	}

	return w.Flush()
}

func runAllocationDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	node, err := loadNode(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := parseID("allocation", args[1])
	if err != nil {
		return err
	}

	a, err := allocation.NewPool(db().Queries).Delete(ctx, node, id)
	if err != nil {
		return err
	}

	logSuccess("Deleted allocation %s from %s", a.Address(), node.Name)
	return nil
}

func runAllocationAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	srv, err := loadServer(ctx, args[0])
	if err != nil {
		return err
	}

	a, err := app.Default.Allocations().AddToServer(ctx, srv)
	if err != nil {
		return err
	}

	logSuccess("Assigned %s (allocation %d) to %s", a.Address(), a.ID, srv.Name)
	return nil
}

func runAllocationRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	srv, err := loadServer(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := parseID("allocation", args[1])
	if err != nil {
		return err
	}

	if err := app.Default.Allocations().RemoveFromServer(ctx, srv, id); err != nil {
		return err
	}

	logSuccess("Released allocation %d from %s", id, srv.Name)
	return nil
}

func runAllocationPrimary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	srv, err := loadServer(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := parseID("allocation", args[1])
	if err != nil {
		return err
	}

	a, err := app.Default.Allocations().SetPrimary(ctx, srv, id)
	if err != nil {
		return err
	}

	logSuccess("%s is now the primary allocation of %s", a.Address(), srv.Name)
	return nil
}

func runAllocationNotes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	srv, err := loadServer(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := parseID("allocation", args[1])
	if err != nil {
		return err
	}

	notes := strings.Join(args[2:], " ")
	if err := app.Default.Allocations().SetNotes(ctx, srv, id, notes); err != nil {
		return err
	}

	if notes == "" {
		logSuccess("Cleared notes on allocation %d", id)
	} else {
		logSuccess("Updated notes on allocation %d", id)
	}
	return nil
}
