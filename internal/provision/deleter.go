package provision

import (
	"context"
	"strconv"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/daemon"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/metrics"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/store"
	"github.com/hearth-panel/hearth-ctl/internal/tracing"
)

// Deleter removes servers from their node and from the panel.
type Deleter struct {
	st       *store.Store
	daemon   daemon.Client
	recorder audit.Recorder
	timeout  time.Duration
}

// NewDeleter creates a Deleter. recorder may be nil.
func NewDeleter(st *store.Store, client daemon.Client, recorder audit.Recorder, cfg *config.Config) *Deleter {
	return &Deleter{st: st, daemon: client, recorder: recorder, timeout: cfg.Daemon.Timeout}
}

// Delete removes server from its node's daemon, then deletes its variables
// and row and releases its allocations. A daemon failure aborts the delete
// unless force is set.
func (d *Deleter) Delete(ctx context.Context, server *model.Server, force bool) (err error) {
	ctx, span := tracing.Start(ctx, "provision.delete")
	defer func() { tracing.End(span, err) }()

	node, err := d.st.GetNode(ctx, server.NodeID)
	if err != nil {
		return err
	}

	if err := d.deleteRemote(ctx, node, server); err != nil {
		if !force {
			return err
		}
		logging.Warn("daemon delete failed, removing server anyway", "uuid", server.UUID, "node", node.Name, "error", err)
	}

	if err := d.deleteLocal(ctx, server); err != nil {
		return err
	}

	audit.Emit(ctx, d.recorder, audit.Event{
		Type:   audit.EventServerDelete,
		Server: server.UUID,
		Properties: map[string]string{
			"name":  server.Name,
			"node":  node.Name,
			"force": strconv.FormatBool(force),
		},
	})
	logging.Info("server deleted", "uuid", server.UUID, "node", node.Name)
	return nil
}

func (d *Deleter) deleteRemote(ctx context.Context, node *model.Node, server *model.Server) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.daemon.Delete(ctx, server, node)
	metrics.RecordDaemonCall("delete", start, err)
	return err
}

func (d *Deleter) deleteLocal(ctx context.Context, server *model.Server) error {
	return d.st.WithTx(ctx, func(q *store.Queries) error {
		deleted, err := q.DeleteServer(ctx, server.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return errors.NotFound("server", server.UUID)
		}
		return nil
	})
}
