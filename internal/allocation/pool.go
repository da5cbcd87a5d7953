package allocation

import (
	"context"
	"fmt"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/metrics"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

// Pool manages the allocations of all nodes. It runs on whatever Queries it
// is given, so callers decide whether it takes part in a transaction.
type Pool struct {
	q *store.Queries
}

// NewPool returns a Pool over q.
func NewPool(q *store.Queries) *Pool {
	return &Pool{q: q}
}

// IsFree reports whether (node, ip, port) is unallocated or held by no server.
func (p *Pool) IsFree(ctx context.Context, nodeID int64, ip string, port int) (bool, error) {
	a, err := p.q.FindAllocation(ctx, nodeID, ip, port)
	if errors.IsKind(err, errors.KindNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return a.IsFree(), nil
}

// Reserve assigns the allocation to server. Reserving an allocation the
// server already holds succeeds without change. An allocation held by
// another server or on another node fails with a Conflict error.
func (p *Pool) Reserve(ctx context.Context, allocationID int64, server *model.Server) (*model.Allocation, error) {
	ok, err := p.q.ReserveAllocation(ctx, allocationID, server.NodeID, server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve allocation %d: %w", allocationID, err)
	}
	metrics.RecordReservation(ok)

	a, err := p.q.GetAllocation(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if a.NodeID != server.NodeID {
			return nil, errors.Conflict(fmt.Sprintf("allocation %s is not on the server's node", a.Address()))
		}
		return nil, errors.Conflict(fmt.Sprintf("allocation %s is already assigned to another server", a.Address()))
	}

	logging.Debug("allocation reserved", "allocation", a.ID, "address", a.Address(), "server", server.UUID)
	return a, nil
}

// Release frees an allocation and clears its notes. Releasing a free
// allocation is a no-op. A server's primary allocation cannot be released;
// delete the server or move the primary first.
func (p *Pool) Release(ctx context.Context, allocationID int64) error {
	a, err := p.q.GetAllocation(ctx, allocationID)
	if err != nil {
		return err
	}
	if a.IsFree() {
		return nil
	}
	if a.Primary {
		return errors.Conflict(fmt.Sprintf("allocation %s is the server's primary allocation", a.Address()))
	}
	return p.q.ReleaseAllocation(ctx, allocationID)
}

// Delete removes a free allocation from node. An allocation held by a
// server fails with a Conflict error.
func (p *Pool) Delete(ctx context.Context, node *model.Node, allocationID int64) (*model.Allocation, error) {
	a, err := p.q.GetAllocation(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if a.NodeID != node.ID {
		return nil, errors.NotFound(fmt.Sprintf("allocation on node %s", node.Name), allocationID)
	}
	ok, err := p.q.DeleteAllocation(ctx, allocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete allocation %d: %w", allocationID, err)
	}
	if !ok {
		return nil, errors.Conflict(fmt.Sprintf("allocation %s is assigned to a server", a.Address()))
	}
	logging.Debug("allocation deleted", "node", node.Name, "allocation", a.ID, "address", a.Address())
	return a, nil
}

// SetPrimary makes an allocation the server owns its primary allocation,
// replacing the previous one.
func (p *Pool) SetPrimary(ctx context.Context, server *model.Server, allocationID int64) (*model.Allocation, error) {
	a, err := p.q.GetAllocation(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if !a.OwnedBy(server.ID) {
		return nil, errors.Conflict(fmt.Sprintf("allocation %s is not assigned to server %s", a.Address(), server.UUIDShort))
	}
	if err := p.q.SetServerAllocation(ctx, server.ID, a.ID); err != nil {
		return nil, err
	}
	server.AllocationID = a.ID
	a.Primary = true
	return a, nil
}

// CreateResult lists what Create inserted and which ports already existed.
type CreateResult struct {
	Created []model.Allocation
	Skipped []int
}

// Create inserts free allocations for every port on (node, ip). Ports that
// already exist are skipped and reported.
func (p *Pool) Create(ctx context.Context, node *model.Node, ip, alias string, ports []int) (*CreateResult, error) {
	if ip == "" {
		ip = node.AllocationIP
	}
	res := &CreateResult{}
	for _, port := range ports {
		a := model.Allocation{NodeID: node.ID, IP: ip, Alias: alias, Port: port}
		if err := p.q.InsertAllocation(ctx, &a); err != nil {
			if store.IsUniqueViolation(err) {
				res.Skipped = append(res.Skipped, port)
				continue
			}
			return nil, fmt.Errorf("failed to create allocation %s:%d: %w", ip, port, err)
		}
		res.Created = append(res.Created, a)
	}
	metrics.AllocationsCreated.WithLabelValues("operator").Add(float64(len(res.Created)))
	logging.Debug("allocations created", "node", node.Name, "ip", ip, "created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}
