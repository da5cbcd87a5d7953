package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-panel/hearth-ctl/internal/model"
)

const nodeColumns = `id, uuid, name, fqdn, scheme, daemon_port, daemon_token,
	allocation_ip, port_start, port_end, memory, disk`

func scanNode(row scanner) (*model.Node, error) {
	var n model.Node
	err := row.Scan(&n.ID, &n.UUID, &n.Name, &n.FQDN, &n.Scheme, &n.DaemonPort,
		&n.DaemonToken, &n.AllocationIP, &n.PortStart, &n.PortEnd, &n.Memory, &n.Disk)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNode inserts n and fills in its ID and UUID.
func (q *Queries) CreateNode(ctx context.Context, n *model.Node) error {
	if n.UUID == "" {
		n.UUID = uuid.NewString()
	}
	if n.Scheme == "" {
		n.Scheme = "https"
	}
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO nodes (uuid, name, fqdn, scheme, daemon_port, daemon_token,
			allocation_ip, port_start, port_end, memory, disk, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UUID, n.Name, n.FQDN, n.Scheme, n.DaemonPort, n.DaemonToken,
		n.AllocationIP, n.PortStart, n.PortEnd, n.Memory, n.Disk, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

// GetNode loads a node by id.
func (q *Queries) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err != nil {
		return nil, notFound(err, "node", id)
	}
	return n, nil
}

// GetNodeByName loads a node by its unique name.
func (q *Queries) GetNodeByName(ctx context.Context, name string) (*model.Node, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE name = ?`, name)
	n, err := scanNode(row)
	if err != nil {
		return nil, notFound(err, "node", name)
	}
	return n, nil
}

// ListNodes returns all nodes ordered by id.
func (q *Queries) ListNodes(ctx context.Context) ([]*model.Node, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
