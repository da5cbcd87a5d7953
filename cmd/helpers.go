package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

// db returns the application store.
func db() *store.Store {
	return app.Default.Store
}

// loadServer resolves a numeric id, a UUID, or a short UUID and loads the
// server's allocations and variables.
func loadServer(ctx context.Context, ident string) (*model.Server, error) {
	var srv *model.Server
	var err error
	if id, perr := strconv.ParseInt(ident, 10, 64); perr == nil {
		srv, err = db().GetServer(ctx, id)
	} else {
		srv, err = db().GetServerByIdentifier(ctx, ident)
	}
	if err != nil {
		return nil, err
	}
	if err := db().LoadRelations(ctx, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// loadNode resolves a node by numeric id or by name.
func loadNode(ctx context.Context, ident string) (*model.Node, error) {
	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return db().GetNode(ctx, id)
	}
	return db().GetNodeByName(ctx, ident)
}

// loadUser resolves a user by numeric id or by username.
func loadUser(ctx context.Context, ident string) (*model.User, error) {
	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return db().GetUser(ctx, id)
	}
	return db().GetUserByUsername(ctx, ident)
}

// parseID parses a numeric id argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New(errors.KindValidation, fmt.Sprintf("invalid %s id %q", what, s))
	}
	return id, nil
}
