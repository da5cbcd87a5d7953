package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/port"
	"github.com/hearth-panel/hearth-ctl/internal/provision"
	"github.com/hearth-panel/hearth-ctl/internal/startup"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Create, inspect, and delete game servers",
}

var serverCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a server on a node",
	Long: `Create a server from an egg and register it with the node's daemon.

Ports given with --ports are claimed on the node's allocation IP and the
lowest becomes the primary allocation. Without --ports a free allocation is picked on the node,
or created from the configured range when allocations.auto_create is set.

Examples:
  hearth-ctl server create lobby --owner admin --node node-1 --egg 1 --memory 1024
  hearth-ctl server create lobby --owner 1 --node 1 --egg 1 --ports 25565,25570-25571
  hearth-ctl server create lobby --owner 1 --node 1 --egg 1 --env BUNGEE_VERSION=latest`,
	Args: cobra.ExactArgs(1),
	RunE: runServerCreate,
}

var serverCreateFlags struct {
	description     string
	externalID      string
	owner           string
	node            string
	egg             int64
	memory          int64
	swap            int64
	disk            int64
	io              int64
	cpu             int64
	oomKiller       bool
	image           string
	startup         string
	env             map[string]string
	ports           string
	dedicatedIP     bool
	start           bool
	databaseLimit   int
	allocationLimit int
	backupLimit     int
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers",
	Args:  cobra.NoArgs,
	RunE:  runServerList,
}

var serverListFlags struct {
	owner string
	node  string
}

var serverShowCmd = &cobra.Command{
	Use:   "show <server>",
	Short: "Show a server with its allocations and variables",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerShow,
}

var serverDeleteCmd = &cobra.Command{
	Use:   "delete <server>",
	Short: "Delete a server from its node and the panel",
	Long: `Delete a server. The node's daemon is asked to remove it first; if that
fails the server is kept unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runServerDelete,
}

var serverDeleteForce bool

func init() {
	f := serverCreateCmd.Flags()
	f.StringVar(&serverCreateFlags.description, "description", "", "Server description")
	f.StringVar(&serverCreateFlags.externalID, "external-id", "", "Identifier in an external system")
	f.StringVar(&serverCreateFlags.owner, "owner", "", "Owner user id or username (required)")
	f.StringVar(&serverCreateFlags.node, "node", "", "Node id or name (required)")
	f.Int64Var(&serverCreateFlags.egg, "egg", 0, "Egg id (required)")
	f.Int64Var(&serverCreateFlags.memory, "memory", 0, "Memory limit in MiB (-1 for unlimited)")
	f.Int64Var(&serverCreateFlags.swap, "swap", 0, "Swap limit in MiB (-1 for unlimited)")
	f.Int64Var(&serverCreateFlags.disk, "disk", 0, "Disk limit in MiB")
	f.Int64Var(&serverCreateFlags.io, "io", 500, "Block IO weight")
	f.Int64Var(&serverCreateFlags.cpu, "cpu", 0, "CPU limit in percent (0 for unlimited)")
	f.BoolVar(&serverCreateFlags.oomKiller, "oom-killer", false, "Enable the OOM killer")
	f.StringVar(&serverCreateFlags.image, "image", "", "Container image (default: the egg's image)")
	f.StringVar(&serverCreateFlags.startup, "startup", "", "Startup command (default: the egg's)")
	f.StringToStringVarP(&serverCreateFlags.env, "env", "e", nil, "Egg variable values (KEY=VALUE)")
	f.StringVarP(&serverCreateFlags.ports, "ports", "p", "", "Ports to claim, e.g. 25565,25570-25575")
	f.BoolVar(&serverCreateFlags.dedicatedIP, "dedicated-ip", false, "Use an IP no other server uses")
	f.BoolVar(&serverCreateFlags.start, "start", false, "Start the server once installed")
	f.IntVar(&serverCreateFlags.databaseLimit, "database-limit", 0, "Maximum databases")
	f.IntVar(&serverCreateFlags.allocationLimit, "allocation-limit", 0, "Maximum allocations the server may hold (0 allows no additional ones)")
	f.IntVar(&serverCreateFlags.backupLimit, "backup-limit", 0, "Maximum backups")
	_ = serverCreateCmd.MarkFlagRequired("owner")
	_ = serverCreateCmd.MarkFlagRequired("node")
	_ = serverCreateCmd.MarkFlagRequired("egg")

	serverListCmd.Flags().StringVar(&serverListFlags.owner, "owner", "", "Only servers of this user")
	serverListCmd.Flags().StringVar(&serverListFlags.node, "node", "", "Only servers on this node")

	serverDeleteCmd.Flags().BoolVarP(&serverDeleteForce, "force", "f", false, "Delete even if the daemon cannot be reached")

	serverCmd.AddCommand(serverCreateCmd, serverListCmd, serverShowCmd, serverDeleteCmd)
	rootCmd.AddCommand(serverCmd)
}

func runServerCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fl := serverCreateFlags

	owner, err := loadUser(ctx, fl.owner)
	if err != nil {
		return err
	}
	node, err := loadNode(ctx, fl.node)
	if err != nil {
		return err
	}

	opts := provision.CreateOptions{
		Name:              args[0],
		Description:       fl.description,
		ExternalID:        fl.externalID,
		OwnerID:           owner.ID,
		NodeID:            node.ID,
		EggID:             fl.egg,
		Memory:            fl.memory,
		Swap:              fl.swap,
		Disk:              fl.disk,
		IO:                fl.io,
		CPU:               fl.cpu,
		OOMKiller:         fl.oomKiller,
		Startup:           fl.startup,
		Image:             fl.image,
		Environment:       fl.env,
		StartOnCompletion: fl.start,
		DatabaseLimit:     fl.databaseLimit,
		AllocationLimit:   fl.allocationLimit,
		BackupLimit:       fl.backupLimit,
	}

	if opts.Startup == "" || opts.Image == "" {
		egg, err := db().GetEgg(ctx, fl.egg)
		if err != nil {
			return err
		}
		if opts.Startup == "" {
			opts.Startup = egg.Startup
		}
		if opts.Image == "" {
			opts.Image = egg.DefaultImage
		}
	}

	if fl.ports != "" {
		ports, err := port.Parse(fl.ports)
		if err != nil {
			return errors.Wrap(errors.KindValidation, "invalid --ports", err)
		}
		opts.Ports = ports
	}

	logInfo("Creating server %s on %s...", opts.Name, node.Name)
	logging.Debug("creating server", "name", opts.Name, "node", node.Name, "egg", opts.EggID, "ports", opts.Ports)

	srv, err := app.Default.Creator().Create(ctx, opts, &model.Deployment{Dedicated: fl.dedicatedIP})
	if err != nil {
		return err
	}

	logSuccess("Server %s created (%s)", srv.Name, srv.UUIDShort)
	if primary := srv.PrimaryAllocation(); primary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Address: %s\n", primary.Address())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  UUID:    %s\n", srv.UUID)
	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var filter store.ServerFilter
	if serverListFlags.owner != "" {
		owner, err := loadUser(ctx, serverListFlags.owner)
		if err != nil {
			return err
		}
		filter.OwnerID = owner.ID
	}
	if serverListFlags.node != "" {
		node, err := loadNode(ctx, serverListFlags.node)
		if err != nil {
			return err
		}
		filter.NodeID = node.ID
	}

	servers, err := db().ListServers(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	if len(servers) == 0 {
		logInfo("No servers found. Create one with: hearth-ctl server create <name> --owner <user> --node <node> --egg <id>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIDENTIFIER\tNAME\tOWNER\tNODE\tADDRESS\tMEMORY")
	fmt.Fprintln(w, "--\t----------\t----\t-----\t----\t-------\t------")

	for _, srv := range servers {
		if err := db().LoadRelations(ctx, srv); err != nil {
			return err
		}
		address := "-"
		if primary := srv.PrimaryAllocation(); primary != nil {
			address = primary.Address()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			srv.ID, srv.UUIDShort, srv.Name, srv.OwnerID, srv.NodeID, address, formatMemory(srv.Limits.Memory))
	}

	return w.Flush()
}

func formatMemory(mib int64) string {
	switch {
	case mib < 0:
		return "unlimited"
	case mib == 0:
		return "-"
	default:
		return fmt.Sprintf("%d MiB", mib)
	}
}

func runServerShow(cmd *cobra.Command, args []string) error {
	srv, err := loadServer(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:      %s\n", srv.Name)
	fmt.Fprintf(out, "UUID:        %s\n", srv.UUID)
	fmt.Fprintf(out, "Identifier:  %s\n", srv.UUIDShort)
	if srv.ExternalID != "" {
		fmt.Fprintf(out, "External ID: %s\n", srv.ExternalID)
	}
	fmt.Fprintf(out, "Owner:       %d\n", srv.OwnerID)
	fmt.Fprintf(out, "Node:        %d\n", srv.NodeID)
	fmt.Fprintf(out, "Egg:         %d\n", srv.EggID)
	fmt.Fprintf(out, "Image:       %s\n", srv.Image)
	fmt.Fprintf(out, "Memory:      %s\n", formatMemory(srv.Limits.Memory))
	fmt.Fprintf(out, "Created:     %s\n", srv.CreatedAt.Format("2006-01-02 15:04:05"))

	if cmdline, err := startup.Preview(srv); err == nil {
		fmt.Fprintf(out, "Startup:     %s\n", cmdline)
	} else {
		logWarning("cannot render startup command: %v", err)
	}

	fmt.Fprintln(out, "\nAllocations:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range srv.Allocations {
		marker := " "
		if a.ID == srv.AllocationID {
			marker = "*"
		}
		notes := ""
		if a.Notes != nil {
			notes = *a.Notes
		}
		fmt.Fprintf(w, "  %s %d\t%s\t%s\n", marker, a.ID, a.Address(), notes)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(srv.Variables) > 0 {
		fmt.Fprintln(out, "\nVariables:")
		for _, v := range srv.Variables {
			fmt.Fprintf(out, "  %s=%s\n", v.EnvVariable, v.Value)
		}
	}

	return nil
}

func runServerDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	srv, err := loadServer(ctx, args[0])
	if err != nil {
		return err
	}

	logInfo("Deleting server %s...", srv.Name)
	if err := app.Default.Deleter().Delete(ctx, srv, serverDeleteForce); err != nil {
		return err
	}

	logSuccess("Server %s deleted", srv.Name)
	return nil
}
