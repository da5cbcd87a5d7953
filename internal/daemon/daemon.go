package daemon

import (
	"context"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

// Client provisions and removes servers on a node's daemon.
//
// Every failure, including a cancelled or expired context, is returned as
// an *errors.DaemonConnectionError.
type Client interface {
	// Create asks the daemon to install the server, starting it once the
	// install finishes when startOnCompletion is set.
	Create(ctx context.Context, server *model.Server, node *model.Node, startOnCompletion bool) error

	// Delete removes the server from the daemon. Deleting a server the
	// daemon does not know is not an error.
	Delete(ctx context.Context, server *model.Server, node *model.Node) error
}
