package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const allocationColumns = `a.id, a.node_id, a.ip, a.ip_alias, a.port, a.notes, a.server_id,
	CASE WHEN s.allocation_id = a.id THEN 1 ELSE 0 END`

const allocationFrom = ` FROM allocations a LEFT JOIN servers s ON s.id = a.server_id`

func scanAllocation(row scanner) (*model.Allocation, error) {
	var a model.Allocation
	var notes sql.NullString
	var serverID sql.NullInt64
	if err := row.Scan(&a.ID, &a.NodeID, &a.IP, &a.Alias, &a.Port, &notes, &serverID, &a.Primary); err != nil {
		return nil, err
	}
	if notes.Valid {
		a.Notes = &notes.String
	}
	if serverID.Valid {
		id := serverID.Int64
		a.ServerID = &id
	}
	return &a, nil
}

// InsertAllocation inserts a free allocation. A duplicate (node, ip, port)
// fails with an error for which IsUniqueViolation is true.
func (q *Queries) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO allocations (node_id, ip, ip_alias, port, notes, server_id, created_at)
		 VALUES (?, ?, ?, ?, ?, NULL, ?)`,
		a.NodeID, a.IP, a.Alias, a.Port, a.Notes, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetAllocation loads an allocation by id.
func (q *Queries) GetAllocation(ctx context.Context, id int64) (*model.Allocation, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+allocationColumns+allocationFrom+` WHERE a.id = ?`, id)
	a, err := scanAllocation(row)
	if err != nil {
		return nil, notFound(err, "allocation", id)
	}
	return a, nil
}

// FindAllocation loads the allocation for an exact (node, ip, port) tuple.
func (q *Queries) FindAllocation(ctx context.Context, nodeID int64, ip string, port int) (*model.Allocation, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+allocationColumns+allocationFrom+` WHERE a.node_id = ? AND a.ip = ? AND a.port = ?`,
		nodeID, ip, port)
	a, err := scanAllocation(row)
	if err != nil {
		return nil, notFound(err, "allocation", fmt.Sprintf("%s:%d", ip, port))
	}
	return a, nil
}

// AllocationFilter narrows ListAllocations. Zero fields match everything.
type AllocationFilter struct {
	NodeID   int64
	ServerID *int64
	FreeOnly bool
	IP       string
	Ports    []int
}

// ListAllocations returns matching allocations ordered by port, then ip. A
// server's allocations (ServerID set) come in the order it was given them.
func (q *Queries) ListAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, error) {
	var where []string
	var args []any
	if f.NodeID != 0 {
		where = append(where, "a.node_id = ?")
		args = append(args, f.NodeID)
	}
	if f.ServerID != nil {
		where = append(where, "a.server_id = ?")
		args = append(args, *f.ServerID)
	}
	if f.FreeOnly {
		where = append(where, "a.server_id IS NULL")
	}
	if f.IP != "" {
		where = append(where, "a.ip = ?")
		args = append(args, f.IP)
	}
	if len(f.Ports) > 0 {
		where = append(where, "a.port IN ("+placeholders(len(f.Ports))+")")
		for _, p := range f.Ports {
			args = append(args, p)
		}
	}

	query := `SELECT ` + allocationColumns + allocationFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.ServerID != nil {
		query += " ORDER BY a.position, a.id"
	} else {
		query += " ORDER BY a.port, a.ip, a.id"
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, *a)
	}
	return allocs, rows.Err()
}

// ReserveAllocation assigns the allocation to serverID when it is free or
// already held by serverID, as one conditional update. A newly assigned
// allocation goes after the ones serverID already holds. It returns false
// when the allocation is held by another server or lives on another node.
func (q *Queries) ReserveAllocation(ctx context.Context, id, nodeID, serverID int64) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE allocations SET server_id = ?,
		 position = CASE WHEN server_id = ? THEN position
			ELSE (SELECT COALESCE(MAX(position), 0) + 1 FROM allocations WHERE server_id = ?) END
		 WHERE id = ? AND node_id = ? AND (server_id IS NULL OR server_id = ?)`,
		serverID, serverID, serverID, id, nodeID, serverID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseAllocation clears the holder and notes of an allocation.
func (q *Queries) ReleaseAllocation(ctx context.Context, id int64) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE allocations SET server_id = NULL, notes = NULL, position = 0 WHERE id = ?`, id)
	return err
}

// ReleaseServerAllocations frees every allocation held by serverID.
func (q *Queries) ReleaseServerAllocations(ctx context.Context, serverID int64) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE allocations SET server_id = NULL, notes = NULL, position = 0 WHERE server_id = ?`, serverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAllocationNotes replaces the notes of an allocation.
func (q *Queries) SetAllocationNotes(ctx context.Context, id int64, notes *string) error {
	_, err := q.q.ExecContext(ctx, `UPDATE allocations SET notes = ? WHERE id = ?`, notes, id)
	return err
}

// DeleteAllocation removes a free allocation. Held allocations are kept and
// false is returned.
func (q *Queries) DeleteAllocation(ctx context.Context, id int64) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM allocations WHERE id = ? AND server_id IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountServerAllocations returns how many allocations serverID holds.
func (q *Queries) CountServerAllocations(ctx context.Context, serverID int64) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allocations WHERE server_id = ?`, serverID).Scan(&n)
	return n, err
}

// UsedPorts returns every allocated port on (node, ip), free or held.
func (q *Queries) UsedPorts(ctx context.Context, nodeID int64, ip string) ([]int, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT port FROM allocations WHERE node_id = ? AND ip = ? ORDER BY port`, nodeID, ip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ports []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

// IPsInUse returns the IPs on a node holding at least one allocation of a
// server other than exceptServerID (0 excludes nothing).
func (q *Queries) IPsInUse(ctx context.Context, nodeID, exceptServerID int64) (map[string]bool, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT DISTINCT ip FROM allocations
		 WHERE node_id = ? AND server_id IS NOT NULL AND server_id != ?`,
		nodeID, exceptServerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		used[ip] = true
	}
	return used, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
