package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const serverColumns = `id, uuid, uuid_short, external_id, name, description, owner_id,
	node_id, egg_id, allocation_id, memory, swap, disk, io, cpu, oom_killer,
	database_limit, allocation_limit, backup_limit, startup, image, suspended, created_at`

func scanServer(row scanner) (*model.Server, error) {
	var s model.Server
	var externalID sql.NullString
	var allocationID sql.NullInt64
	var created int64
	err := row.Scan(&s.ID, &s.UUID, &s.UUIDShort, &externalID, &s.Name, &s.Description,
		&s.OwnerID, &s.NodeID, &s.EggID, &allocationID,
		&s.Limits.Memory, &s.Limits.Swap, &s.Limits.Disk, &s.Limits.IO, &s.Limits.CPU, &s.Limits.OOMKiller,
		&s.FeatureLimits.Databases, &s.FeatureLimits.Allocations, &s.FeatureLimits.Backups,
		&s.Startup, &s.Image, &s.Suspended, &created)
	if err != nil {
		return nil, err
	}
	s.ExternalID = externalID.String
	s.AllocationID = allocationID.Int64
	s.CreatedAt = time.Unix(created, 0)
	return &s, nil
}

// InsertServer inserts s without its allocations or variables. The caller
// assigns UUID and UUIDShort; ID and CreatedAt are filled in.
func (q *Queries) InsertServer(ctx context.Context, s *model.Server) error {
	s.CreatedAt = time.Now()
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO servers (uuid, uuid_short, external_id, name, description, owner_id,
			node_id, egg_id, memory, swap, disk, io, cpu, oom_killer,
			database_limit, allocation_limit, backup_limit, startup, image, suspended, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UUID, s.UUIDShort, nullString(s.ExternalID), s.Name, s.Description, s.OwnerID,
		s.NodeID, s.EggID, s.Limits.Memory, s.Limits.Swap, s.Limits.Disk, s.Limits.IO, s.Limits.CPU,
		s.Limits.OOMKiller, s.FeatureLimits.Databases, s.FeatureLimits.Allocations,
		s.FeatureLimits.Backups, s.Startup, s.Image, s.Suspended, s.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

// SetServerAllocation points the server's primary allocation at allocationID.
func (q *Queries) SetServerAllocation(ctx context.Context, serverID, allocationID int64) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE servers SET allocation_id = ? WHERE id = ?`, allocationID, serverID)
	return err
}

// GetServer loads a server by id without relations.
func (q *Queries) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	s, err := scanServer(row)
	if err != nil {
		return nil, notFound(err, "server", id)
	}
	return s, nil
}

// GetServerByIdentifier loads a server by full or short UUID.
func (q *Queries) GetServerByIdentifier(ctx context.Context, ident string) (*model.Server, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE uuid = ? OR uuid_short = ?`, ident, ident)
	s, err := scanServer(row)
	if err != nil {
		return nil, notFound(err, "server", ident)
	}
	return s, nil
}

// GetServerByExternalID loads a server by the id another system gave it.
func (q *Queries) GetServerByExternalID(ctx context.Context, externalID string) (*model.Server, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE external_id = ?`, externalID)
	s, err := scanServer(row)
	if err != nil {
		return nil, notFound(err, "server", externalID)
	}
	return s, nil
}

// LoadRelations fills in the server's allocations and variables.
func (q *Queries) LoadRelations(ctx context.Context, s *model.Server) error {
	allocs, err := q.ListAllocations(ctx, AllocationFilter{ServerID: &s.ID})
	if err != nil {
		return err
	}
	s.Allocations = allocs
	s.Variables, err = q.ServerVariables(ctx, s.ID)
	return err
}

// ServerFilter narrows ListServers. Zero fields match everything.
type ServerFilter struct {
	OwnerID int64
	NodeID  int64
}

// ListServers returns servers matching f ordered by id.
func (q *Queries) ListServers(ctx context.Context, f ServerFilter) ([]*model.Server, error) {
	var where []string
	var args []any
	if f.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.NodeID != 0 {
		where = append(where, "node_id = ?")
		args = append(args, f.NodeID)
	}

	query := `SELECT ` + serverColumns + ` FROM servers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*model.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// DeleteServer removes the server row, its variables, and releases every
// allocation it held. Returns false when no such server existed.
func (q *Queries) DeleteServer(ctx context.Context, id int64) (bool, error) {
	if _, err := q.ReleaseServerAllocations(ctx, id); err != nil {
		return false, err
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM server_variables WHERE server_id = ?`, id); err != nil {
		return false, err
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertServerVariables stores the resolved variables of a server.
func (q *Queries) InsertServerVariables(ctx context.Context, serverID int64, vars []model.ServerVariable) error {
	for i := range vars {
		vars[i].ServerID = serverID
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO server_variables (server_id, variable_id, variable_value) VALUES (?, ?, ?)`,
			serverID, vars[i].VariableID, vars[i].Value,
		); err != nil {
			return err
		}
	}
	return nil
}

// ServerVariables returns a server's resolved variables in definition order.
func (q *Queries) ServerVariables(ctx context.Context, serverID int64) ([]model.ServerVariable, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT sv.server_id, sv.variable_id, ev.env_variable, sv.variable_value
		 FROM server_variables sv
		 JOIN egg_variables ev ON ev.id = sv.variable_id
		 WHERE sv.server_id = ?
		 ORDER BY ev.sort, ev.id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vars []model.ServerVariable
	for rows.Next() {
		var v model.ServerVariable
		if err := rows.Scan(&v.ServerID, &v.VariableID, &v.EnvVariable, &v.Value); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}
