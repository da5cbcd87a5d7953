package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/port"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage nodes running the daemon",
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a node",
	Long: `Register a node running the Hearth daemon.

--port-start and --port-end give the node its own range for automatic
allocation creation; without them the configured range applies.

Examples:
  hearth-ctl node create node-1 --fqdn node1.example.com --allocation-ip 10.0.0.1 --token secret
  hearth-ctl node create node-2 --fqdn 10.0.0.2 --scheme http --port-start 27000 --port-end 27100`,
	Args: cobra.ExactArgs(1),
	RunE: runNodeCreate,
}

var nodeCreateFlags struct {
	fqdn         string
	scheme       string
	daemonPort   int
	token        string
	allocationIP string
	portStart    int
	portEnd      int
	memory       int64
	disk         int64
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes",
	Args:  cobra.NoArgs,
	RunE:  runNodeList,
}

func init() {
	f := nodeCreateCmd.Flags()
	f.StringVar(&nodeCreateFlags.fqdn, "fqdn", "", "Hostname or IP of the daemon (required)")
	f.StringVar(&nodeCreateFlags.scheme, "scheme", "https", "Daemon URL scheme")
	f.IntVar(&nodeCreateFlags.daemonPort, "daemon-port", 8080, "Daemon listen port")
	f.StringVar(&nodeCreateFlags.token, "token", "", "Bearer token the daemon accepts")
	f.StringVar(&nodeCreateFlags.allocationIP, "allocation-ip", "", "Default IP for new allocations (default: --fqdn)")
	f.IntVar(&nodeCreateFlags.portStart, "port-start", 0, "First port for automatic allocations")
	f.IntVar(&nodeCreateFlags.portEnd, "port-end", 0, "Last port for automatic allocations")
	f.Int64Var(&nodeCreateFlags.memory, "memory", 0, "Total memory in MiB")
	f.Int64Var(&nodeCreateFlags.disk, "disk", 0, "Total disk in MiB")
	_ = nodeCreateCmd.MarkFlagRequired("fqdn")

	nodeCmd.AddCommand(nodeCreateCmd, nodeListCmd)
	rootCmd.AddCommand(nodeCmd)
}

func runNodeCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]
	fl := nodeCreateFlags

	if err := config.ValidateNodeName(name); err != nil {
		return errors.Wrap(errors.KindValidation, "invalid node name", err)
	}
	if fl.portStart != 0 || fl.portEnd != 0 {
		r := port.Range{From: fl.portStart, To: fl.portEnd}
		if err := r.Validate(); err != nil {
			return errors.Wrap(errors.KindValidation, "invalid node port range", err)
		}
	}

	node := &model.Node{
		Name:         name,
		FQDN:         fl.fqdn,
		Scheme:       fl.scheme,
		DaemonPort:   fl.daemonPort,
		DaemonToken:  fl.token,
		AllocationIP: fl.allocationIP,
		PortStart:    fl.portStart,
		PortEnd:      fl.portEnd,
		Memory:       fl.memory,
		Disk:         fl.disk,
	}
	if node.AllocationIP == "" {
		node.AllocationIP = node.FQDN
	}

	err := db().WithTx(ctx, func(q *store.Queries) error {
		return q.CreateNode(ctx, node)
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("node %q already exists", name))
		}
		return err
	}

	logSuccess("Node %s registered (id %d)", node.Name, node.ID)
	return nil
}

func runNodeList(cmd *cobra.Command, args []string) error {
	nodes, err := db().ListNodes(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	if len(nodes) == 0 {
		logInfo("No nodes found. Register one with: hearth-ctl node create <name> --fqdn <host>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDAEMON\tALLOCATION IP\tPORT RANGE")
	fmt.Fprintln(w, "--\t----\t------\t-------------\t----------")

	for _, n := range nodes {
		rng := "default"
		if n.HasPortRange() {
			rng = port.Range{From: n.PortStart, To: n.PortEnd}.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.Name, n.DaemonURL(), n.AllocationIP, rng)
	}

	return w.Flush()
}
