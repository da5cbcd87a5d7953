package provision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/daemon"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/metrics"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/saga"
	"github.com/hearth-panel/hearth-ctl/internal/store"
	"github.com/hearth-panel/hearth-ctl/internal/tracing"
	"github.com/hearth-panel/hearth-ctl/internal/variables"
)

// uuidAttempts bounds retries when a generated short UUID collides.
const uuidAttempts = 3

// Creator orchestrates server creation.
type Creator struct {
	st          *store.Store
	daemon      daemon.Client
	validator   *variables.Validator
	recorder    audit.Recorder
	deleter     *Deleter
	allocations config.AllocationConfig
	timeout     time.Duration
}

// NewCreator creates a Creator. recorder may be nil.
func NewCreator(st *store.Store, client daemon.Client, recorder audit.Recorder, cfg *config.Config) *Creator {
	return &Creator{
		st:          st,
		daemon:      client,
		validator:   variables.NewValidator(st),
		recorder:    recorder,
		deleter:     NewDeleter(st, client, recorder, cfg),
		allocations: cfg.Allocations,
		timeout:     cfg.Daemon.Timeout,
	}
}

// creation carries state between the stages of one Create call.
type creation struct {
	opts        CreateOptions
	deployment  *model.Deployment
	node        *model.Node
	variables   []model.ServerVariable
	allocations []*model.Allocation
	server      *model.Server
}

// Create validates opts, assigns allocations, stores the server and asks the
// node's daemon to create it. d may be nil.
//
// A daemon failure removes the server again (remotely on a best-effort
// basis, then locally) and returns the daemon error.
func (c *Creator) Create(ctx context.Context, opts CreateOptions, d *model.Deployment) (server *model.Server, err error) {
	ctx, span := tracing.Start(ctx, "provision.create")
	defer func() {
		tracing.End(span, err)
		metrics.RecordCreation(err)
	}()

	cr := &creation{opts: opts, deployment: d}

	err = saga.New("server-create").
		Add(saga.Step{
			Name: "validate",
			Do:   stage("validate", cr, c.validate),
		}).
		Add(saga.Step{
			Name: "resolve-allocations",
			Do:   stage("resolve-allocations", cr, c.resolveAllocations),
		}).
		Add(saga.Step{
			Name:       "persist",
			Do:         stage("persist", cr, c.persist),
			Compensate: stage("rollback-persist", cr, c.rollback),
		}).
		Add(saga.Step{
			Name:                "provision",
			Do:                  stage("provision", cr, c.provision),
			Compensate:          stage("rollback-provision", cr, c.unprovision),
			CompensateOnFailure: true,
		}).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	server = cr.server
	if err := c.st.LoadRelations(ctx, server); err != nil {
		return nil, fmt.Errorf("failed to reload server %s: %w", server.UUID, err)
	}

	audit.Emit(ctx, c.recorder, audit.Event{
		Type:   audit.EventServerCreate,
		Server: server.UUID,
		Properties: map[string]string{
			"name":       server.Name,
			"node":       cr.node.Name,
			"allocation": server.PrimaryAllocation().Address(),
		},
	})
	logging.Info("server created", "uuid", server.UUID, "name", server.Name, "node", cr.node.Name)
	return server, nil
}

// stage binds a creation stage to cr and gives it its own span.
func stage(name string, cr *creation, fn func(context.Context, *creation) error) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		ctx, span := tracing.Start(ctx, "provision."+name)
		defer func() { tracing.End(span, err) }()
		return fn(ctx, cr)
	}
}

// validate checks the attributes and the egg variables together so the
// caller sees every problem at once.
func (c *Creator) validate(ctx context.Context, cr *creation) error {
	verr := errors.NewValidationError()
	cr.opts.validate(verr)
	if cr.deployment != nil {
		validatePorts("deployment.port_range", cr.deployment.Ports, verr)
	}

	if _, err := c.st.GetUser(ctx, cr.opts.OwnerID); err != nil {
		if !errors.IsKind(err, errors.KindNotFound) {
			return err
		}
		verr.Add("owner_id", "The selected owner id is invalid.")
	}

	node, err := c.st.GetNode(ctx, cr.opts.NodeID)
	switch {
	case errors.IsKind(err, errors.KindNotFound):
		verr.Add("node_id", "The selected node id is invalid.")
	case err != nil:
		return err
	}
	cr.node = node

	if cr.opts.ExternalID != "" {
		_, err := c.st.GetServerByExternalID(ctx, cr.opts.ExternalID)
		switch {
		case err == nil:
			verr.Add("external_id", "The external id has already been taken.")
		case !errors.IsKind(err, errors.KindNotFound):
			return err
		}
	}

	vars, err := c.validator.Validate(ctx, cr.opts.EggID, cr.opts.Environment, true)
	var varErr *errors.ValidationError
	switch {
	case errors.As(err, &varErr):
		verr.Merge(varErr)
	case errors.IsKind(err, errors.KindNotFound):
		verr.Add("egg_id", "The selected egg id is invalid.")
	case err != nil:
		return err
	}
	cr.variables = vars

	return verr.OrNil()
}

// resolveAllocations picks the allocations the server will own, in request
// order. Without requested ports a single allocation is found, restricted to
// the deployment's ports when it has any. Missing requested ports are
// created as free allocations; nothing is assigned.
func (c *Creator) resolveAllocations(ctx context.Context, cr *creation) error {
	ports := cr.opts.Ports
	if len(ports) == 0 {
		finder := allocation.NewFinder(c.st.Queries, c.allocations)
		a, err := finder.Find(ctx, &model.Server{NodeID: cr.node.ID}, cr.deployment)
		if err != nil {
			return err
		}
		cr.allocations = []*model.Allocation{a}
		return nil
	}

	dedicated := cr.deployment != nil && cr.deployment.Dedicated

	var busy map[string]bool
	if dedicated {
		var err error
		if busy, err = c.st.IPsInUse(ctx, cr.node.ID, 0); err != nil {
			return err
		}
	}

	pinnedIP := ""
	for _, p := range ports {
		a, err := c.allocationForPort(ctx, cr.node, p, pinnedIP, busy)
		if err != nil {
			return err
		}
		if dedicated {
			pinnedIP = a.IP
		}
		cr.allocations = append(cr.allocations, a)
	}

	logging.Debug("allocations resolved", "node", cr.node.Name, "ports", ports, "dedicated", dedicated)
	return nil
}

// allocationForPort returns a free allocation for port on node, preferring
// pinnedIP (or the node's allocation IP) and skipping busy IPs. When the
// port does not exist on that IP yet it is created.
func (c *Creator) allocationForPort(ctx context.Context, node *model.Node, port int, pinnedIP string, busy map[string]bool) (*model.Allocation, error) {
	candidates, err := c.st.ListAllocations(ctx, store.AllocationFilter{NodeID: node.ID, Ports: []int{port}})
	if err != nil {
		return nil, err
	}

	preferred := pinnedIP
	if preferred == "" {
		preferred = node.AllocationIP
	}
	allowed := func(ip string) bool {
		return !busy[ip] && (pinnedIP == "" || ip == pinnedIP)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IP == preferred && candidates[j].IP != preferred
	})

	existsOnPreferred := false
	for i := range candidates {
		a := &candidates[i]
		if a.IP == preferred {
			existsOnPreferred = true
		}
		if a.IsFree() && allowed(a.IP) {
			return a, nil
		}
	}

	if existsOnPreferred || !allowed(preferred) {
		return nil, errors.Conflict(fmt.Sprintf("port %d is not available on node %s", port, node.Name))
	}

	a := &model.Allocation{NodeID: node.ID, IP: preferred, Port: port}
	if err := c.st.InsertAllocation(ctx, a); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, errors.Conflict(fmt.Sprintf("port %d on %s was taken concurrently", port, preferred))
		}
		return nil, fmt.Errorf("failed to create allocation %s:%d: %w", preferred, port, err)
	}
	metrics.AllocationsCreated.WithLabelValues("deployment").Inc()
	logging.Debug("created allocation for requested port", "node", node.Name, "address", a.Address())
	return a, nil
}

// persist stores the server, its variables and its allocations in one
// transaction. A reservation conflict aborts all of it.
func (c *Creator) persist(ctx context.Context, cr *creation) error {
	o := &cr.opts
	srv := &model.Server{
		ExternalID:    o.ExternalID,
		Name:          o.Name,
		Description:   o.Description,
		OwnerID:       o.OwnerID,
		NodeID:        cr.node.ID,
		EggID:         o.EggID,
		Limits:        o.limits(),
		FeatureLimits: o.featureLimits(),
		Startup:       o.Startup,
		Image:         o.Image,
	}
	primary := cr.allocations[0]

	err := c.st.WithTx(ctx, func(q *store.Queries) error {
		if err := insertServer(ctx, q, srv); err != nil {
			return err
		}
		if err := q.InsertServerVariables(ctx, srv.ID, cr.variables); err != nil {
			return fmt.Errorf("failed to store variables: %w", err)
		}
		pool := allocation.NewPool(q)
		for _, a := range cr.allocations {
			if _, err := pool.Reserve(ctx, a.ID, srv); err != nil {
				return err
			}
		}
		return q.SetServerAllocation(ctx, srv.ID, primary.ID)
	})
	if err != nil {
		return err
	}

	srv.AllocationID = primary.ID
	cr.server = srv
	logging.Debug("server stored", "uuid", srv.UUID, "allocations", len(cr.allocations))
	return nil
}

// insertServer assigns a fresh UUID and inserts srv, regenerating the UUID
// when its short form collides with an existing server.
func insertServer(ctx context.Context, q *store.Queries, srv *model.Server) error {
	for attempt := 1; ; attempt++ {
		srv.UUID = uuid.NewString()
		srv.UUIDShort = srv.UUID[:8]
		err := q.InsertServer(ctx, srv)
		if err == nil {
			return nil
		}
		if !store.IsUniqueViolation(err) || attempt == uuidAttempts {
			return fmt.Errorf("failed to store server: %w", err)
		}
		logging.Debug("server uuid collided, regenerating", "uuid_short", srv.UUIDShort)
	}
}

func (c *Creator) rollback(ctx context.Context, cr *creation) error {
	metrics.Rollbacks.Inc()
	if err := c.deleter.deleteLocal(ctx, cr.server); err != nil {
		logging.Error("failed to remove server after failed creation", "uuid", cr.server.UUID, "error", err)
		return err
	}
	audit.Emit(ctx, c.recorder, audit.Event{
		Type:       audit.EventServerCreateRollback,
		Server:     cr.server.UUID,
		Properties: map[string]string{"name": cr.server.Name, "node": cr.node.Name},
	})
	logging.Warn("server creation rolled back", "uuid", cr.server.UUID, "node", cr.node.Name)
	return nil
}

func (c *Creator) provision(ctx context.Context, cr *creation) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.daemon.Create(ctx, cr.server, cr.node, cr.opts.StartOnCompletion)
	metrics.RecordDaemonCall("create", start, err)
	if err == nil {
		return nil
	}

	var derr *errors.DaemonConnectionError
	if errors.As(err, &derr) {
		return err
	}
	return &errors.DaemonConnectionError{Node: cr.node.Name, Cause: err}
}

// unprovision asks the daemon to forget a server it may have partially
// created. Failure leaves an orphan on the node and is only logged.
func (c *Creator) unprovision(ctx context.Context, cr *creation) error {
	return c.deleter.deleteRemote(ctx, cr.node, cr.server)
}
