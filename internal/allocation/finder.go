package allocation

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/metrics"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/port"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

// Finder picks a free allocation for a server, creating one in the node's
// port range when none exists and auto-creation is enabled. It never
// assigns what it finds.
type Finder struct {
	q            *store.Queries
	autoCreate   bool
	defaultRange port.Range
}

// NewFinder returns a Finder over q using the allocation settings of cfg.
func NewFinder(q *store.Queries, cfg config.AllocationConfig) *Finder {
	return &Finder{
		q:            q,
		autoCreate:   cfg.AutoCreate,
		defaultRange: port.Range{From: cfg.RangeStart, To: cfg.RangeEnd},
	}
}

// Handle returns an assignable allocation on the server's node.
func (f *Finder) Handle(ctx context.Context, server *model.Server) (*model.Allocation, error) {
	return f.Find(ctx, server, nil)
}

// Find is Handle with deployment hints. Ports restricts candidates to the
// listed ports; Dedicated skips IPs that carry another server's allocations.
//
// Existing free allocations win, lowest port first, with those on the
// server's primary IP ahead of the rest. Otherwise the lowest unallocated
// port of the node's range (or the configured default range) is created.
func (f *Finder) Find(ctx context.Context, server *model.Server, d *model.Deployment) (*model.Allocation, error) {
	node, err := f.q.GetNode(ctx, server.NodeID)
	if err != nil {
		return nil, err
	}

	var wantPorts []int
	var dedicated bool
	if d != nil {
		wantPorts, dedicated = d.Ports, d.Dedicated
	}

	var busyIPs map[string]bool
	if dedicated {
		if busyIPs, err = f.q.IPsInUse(ctx, node.ID, server.ID); err != nil {
			return nil, err
		}
	}

	preferredIP := ""
	if server.AllocationID != 0 {
		if primary, err := f.q.GetAllocation(ctx, server.AllocationID); err == nil {
			preferredIP = primary.IP
		}
	}

	free, err := f.q.ListAllocations(ctx, store.AllocationFilter{NodeID: node.ID, FreeOnly: true, Ports: wantPorts})
	if err != nil {
		return nil, err
	}
	free = slices.DeleteFunc(free, func(a model.Allocation) bool { return busyIPs[a.IP] })
	if preferredIP != "" {
		sort.SliceStable(free, func(i, j int) bool {
			return free[i].IP == preferredIP && free[j].IP != preferredIP
		})
	}
	if len(free) > 0 {
		logging.Debug("found free allocation", "node", node.Name, "address", free[0].Address())
		return &free[0], nil
	}

	if !f.autoCreate {
		return nil, errors.AutoAllocationNotEnabled()
	}

	ip := preferredIP
	if ip == "" {
		ip = node.AllocationIP
	}
	rng := f.defaultRange
	if node.HasPortRange() {
		rng = port.Range{From: node.PortStart, To: node.PortEnd}
	}
	if busyIPs[ip] {
		return nil, errors.NoAutoAllocationSpace(rng.From, rng.To)
	}

	return f.create(ctx, node, ip, rng, wantPorts)
}

// create inserts the first port of rng (or of wantPorts) not yet allocated
// on ip. A port taken concurrently makes it move on to the next one.
func (f *Finder) create(ctx context.Context, node *model.Node, ip string, rng port.Range, wantPorts []int) (*model.Allocation, error) {
	used, err := f.q.UsedPorts(ctx, node.ID, ip)
	if err != nil {
		return nil, err
	}

	candidates := port.FreePorts(rng, used)
	if len(wantPorts) > 0 {
		candidates = slices.DeleteFunc(slices.Sorted(slices.Values(wantPorts)), func(p int) bool {
			return slices.Contains(used, p)
		})
	}

	for _, p := range candidates {
		a := model.Allocation{NodeID: node.ID, IP: ip, Port: p}
		if err := f.q.InsertAllocation(ctx, &a); err != nil {
			if store.IsUniqueViolation(err) {
				logging.Debug("port taken concurrently, trying next", "ip", ip, "port", p)
				continue
			}
			return nil, fmt.Errorf("failed to create allocation %s:%d: %w", ip, p, err)
		}
		metrics.AllocationsCreated.WithLabelValues("auto").Inc()
		logging.Debug("created allocation", "node", node.Name, "address", a.Address())
		return &a, nil
	}

	return nil, errors.NoAutoAllocationSpace(rng.From, rng.To)
}
