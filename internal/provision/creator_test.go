package provision_test

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/provision"
	"github.com/hearth-panel/hearth-ctl/internal/store"
	"github.com/hearth-panel/hearth-ctl/internal/testutil"
)

func ports(allocs []model.Allocation) []int {
	out := make([]int, len(allocs))
	for i, a := range allocs {
		out[i] = a.Port
	}
	return out
}

func TestCreate_WithDeployment(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	opts := env.CreateOptions()
	opts.StartOnCompletion = true
	opts.Ports = []int{1234, 2345, 3456}

	srv := env.CreateServer(opts, &model.Deployment{Dedicated: true, Ports: []int{1234}})

	if srv.UUID == "" || srv.UUIDShort != srv.UUID[:8] {
		t.Errorf("uuid = %q, short = %q", srv.UUID, srv.UUIDShort)
	}
	if srv.Name != opts.Name || srv.Description != opts.Description {
		t.Errorf("name/description = %q/%q", srv.Name, srv.Description)
	}
	if srv.OwnerID != env.Owner.ID || srv.NodeID != env.Node.ID || srv.EggID != env.Egg.ID {
		t.Errorf("relations = owner %d node %d egg %d", srv.OwnerID, srv.NodeID, srv.EggID)
	}
	if srv.Limits != (model.Limits{}) || srv.FeatureLimits != (model.FeatureLimits{}) {
		t.Errorf("limits = %+v %+v, want zero", srv.Limits, srv.FeatureLimits)
	}
	if srv.Limits.OOMKiller || srv.Suspended {
		t.Error("oom killer and suspension should default to false")
	}

	if got := ports(srv.Allocations); !reflect.DeepEqual(got, []int{1234, 2345, 3456}) {
		t.Errorf("allocation ports = %v", got)
	}
	primary := srv.PrimaryAllocation()
	if primary == nil || primary.Port != 1234 {
		t.Errorf("primary = %+v, want port 1234", primary)
	}

	wantEnv := map[string]string{
		"BUNGEE_VERSION": "123",
		"SERVER_JARFILE": "server2.jar",
		"SERVER_PORT":    "25577",
	}
	if got := srv.Environment(); !reflect.DeepEqual(got, wantEnv) {
		t.Errorf("environment = %v, want %v", got, wantEnv)
	}

	calls := env.Daemon.GetCallsFor("Create")
	if len(calls) != 1 || calls[0].Server != srv.UUID || !calls[0].Start {
		t.Errorf("daemon create calls = %+v", calls)
	}
	if !env.Daemon.Has(srv.UUID) {
		t.Error("daemon should know the server")
	}

	events := env.Activity.Events(audit.EventServerCreate)
	if len(events) != 1 || events[0].Server != srv.UUID {
		t.Errorf("activity = %+v", events)
	}
}

func TestCreate_RequestedPortsKeepOrder(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25566)
	opts := env.CreateOptions()
	opts.Ports = []int{25567, 25566}

	// Ports in the options win over the deployment
	srv := env.CreateServer(opts, &model.Deployment{Ports: []int{30000}})

	if got := ports(srv.Allocations); !reflect.DeepEqual(got, []int{25567, 25566}) {
		t.Errorf("allocation ports = %v, want [25567 25566]", got)
	}
	if p := srv.PrimaryAllocation(); p == nil || p.Port != 25567 || !srv.Allocations[0].Primary {
		t.Errorf("primary = %+v, want the first requested port listed first", p)
	}

	stored, err := env.Store.GetServer(context.Background(), srv.ID)
	if err != nil {
		t.Fatalf("GetServer failed: %v", err)
	}
	if err := env.Store.LoadRelations(context.Background(), stored); err != nil {
		t.Fatalf("LoadRelations failed: %v", err)
	}
	if got := ports(stored.Allocations); !reflect.DeepEqual(got, []int{25567, 25566}) {
		t.Errorf("reloaded allocation ports = %v, want request order", got)
	}
}

func TestCreate_UnsortedDedicatedPorts(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	opts := env.CreateOptions()
	opts.Ports = []int{3456, 1234, 2345}
	srv := env.CreateServer(opts, &model.Deployment{Dedicated: true})

	if got := ports(srv.Allocations); !reflect.DeepEqual(got, opts.Ports) {
		t.Errorf("allocation ports = %v, want %v", got, opts.Ports)
	}
	if p := srv.PrimaryAllocation(); p == nil || p.Port != 3456 {
		t.Errorf("primary = %+v, want port 3456", p)
	}
}

func TestCreate_DeploymentPortsSelectOne(t *testing.T) {
	tests := []struct {
		name       string
		existing   []int
		autoCreate bool
		wantPort   int
		wantKind   errors.Kind
	}{
		{"lowest free in range", []int{25564, 25567, 25566}, false, 25566, ""},
		{"created inside range", []int{25564}, true, 25565, ""},
		{"nothing free without auto creation", []int{25564, 25571}, false, 0, errors.KindResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			defer env.Cleanup()

			env.Config.Allocations.AutoCreate = tt.autoCreate
			env.AddAllocations(tt.existing...)
			d := &model.Deployment{Ports: []int{25565, 25566, 25567, 25568, 25569, 25570}}

			srv, err := env.App.Creator().Create(context.Background(), env.CreateOptions(), d)
			if tt.wantKind != "" {
				if !errors.IsKind(err, tt.wantKind) {
					t.Fatalf("error = %v, want %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if got := ports(srv.Allocations); !reflect.DeepEqual(got, []int{tt.wantPort}) {
				t.Errorf("allocation ports = %v, want only %d", got, tt.wantPort)
			}
		})
	}
}

func TestCreate_PortOwnedByAnotherServer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25565)
	env.CreateServer(env.CreateOptions(), nil)

	opts := env.CreateOptions()
	opts.Ports = []int{25566, 25565}
	_, err := env.App.Creator().Create(context.Background(), opts, nil)
	if !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}

	if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 1 {
		t.Errorf("servers = %d, want only the first", n)
	}
	if n := len(env.Daemon.GetCallsFor("Create")); n != 1 {
		t.Errorf("daemon create calls = %d, want 1", n)
	}
}

func TestCreate_DedicatedIP(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25565)
	env.CreateServer(env.CreateOptions(), nil)
	env.AddAllocations(25566)
	env.AddAllocationsOn("10.0.0.2", 25566, 25567)

	opts := env.CreateOptions()
	opts.Ports = []int{25566, 25567}
	srv := env.CreateServer(opts, &model.Deployment{Dedicated: true})

	if len(srv.Allocations) != 2 {
		t.Fatalf("allocations = %+v, want both requested ports", srv.Allocations)
	}
	for _, a := range srv.Allocations {
		if a.IP != "10.0.0.2" {
			t.Errorf("allocation %s should be on the unused IP", a.Address())
		}
	}
}

func TestCreate_NoAllocationAvailable(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	_, err := env.App.Creator().Create(context.Background(), env.CreateOptions(), nil)
	if !errors.IsKind(err, errors.KindResourceExhausted) {
		t.Errorf("error = %v, want resource exhausted", err)
	}
	if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 0 {
		t.Errorf("servers = %d, want 0", n)
	}
}

func TestCreate_DaemonFailureRollsBack(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565)
	env.Daemon.SetError("Create", &errors.DaemonConnectionError{Node: env.Node.Name, StatusCode: 500})

	opts := env.CreateOptions()
	_, err := env.App.Creator().Create(ctx, opts, nil)

	var derr *errors.DaemonConnectionError
	if !stderrors.As(err, &derr) {
		t.Fatalf("error = %v, want DaemonConnectionError", err)
	}
	if derr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", derr.StatusCode)
	}

	if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 0 {
		t.Errorf("servers = %d, want 0 after rollback", n)
	}
	free, err := env.Store.ListAllocations(ctx, store.AllocationFilter{NodeID: env.Node.ID, FreeOnly: true})
	if err != nil {
		t.Fatalf("ListAllocations failed: %v", err)
	}
	if len(free) != 1 {
		t.Errorf("free allocations = %d, want 1", len(free))
	}

	deletes := env.Daemon.GetCallsFor("Delete")
	creates := env.Daemon.GetCallsFor("Create")
	if len(deletes) != 1 || deletes[0].Server != creates[0].Server {
		t.Errorf("daemon delete calls = %+v, want one for the created uuid", deletes)
	}
	if n := len(env.Activity.Events(audit.EventServerCreateRollback)); n != 1 {
		t.Errorf("rollback activity = %d, want 1", n)
	}

	// The same request succeeds once the daemon recovers
	env.Daemon.Reset()
	srv := env.CreateServer(opts, nil)
	if srv.PrimaryAllocation() == nil || srv.PrimaryAllocation().Port != 25565 {
		t.Errorf("retry primary = %+v, want the released port", srv.PrimaryAllocation())
	}
}

func TestCreate_DaemonDeleteFailureKeepsOriginalError(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25565)
	env.Daemon.SetError("Create", &errors.DaemonConnectionError{Node: env.Node.Name, StatusCode: 502})
	env.Daemon.SetError("Delete", stderrors.New("connection refused"))

	_, err := env.App.Creator().Create(context.Background(), env.CreateOptions(), nil)

	var derr *errors.DaemonConnectionError
	if !stderrors.As(err, &derr) || derr.StatusCode != 502 {
		t.Fatalf("error = %v, want the create failure", err)
	}
	if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 0 {
		t.Errorf("servers = %d, want local rollback despite remote failure", n)
	}
}

func TestCreate_DaemonTimeout(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25565)
	env.Config.Daemon.Timeout = 20 * time.Millisecond
	env.Daemon.SetDelay("Create", time.Second)

	start := time.Now()
	_, err := env.App.Creator().Create(context.Background(), env.CreateOptions(), nil)

	if !errors.IsKind(err, errors.KindDaemonConnection) {
		t.Fatalf("error = %v, want daemon connection error", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Create took %v, want it bounded by the daemon timeout", elapsed)
	}
	if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 0 {
		t.Errorf("servers = %d, want 0", n)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(env *testutil.TestEnv, o *provision.CreateOptions)
		wantKeys []string
	}{
		{
			name: "empty required variable",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.Environment["BUNGEE_VERSION"] = ""
			},
			wantKeys: []string{"environment.BUNGEE_VERSION"},
		},
		{
			name: "attributes and variables together",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.Name = ""
				o.Swap = -2
				o.Environment["SERVER_JARFILE"] = "server.zip"
			},
			wantKeys: []string{"environment.SERVER_JARFILE", "name", "swap"},
		},
		{
			name: "admin may not bypass non-editable rules",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.Environment["SERVER_PORT"] = "80"
			},
			wantKeys: []string{"environment.SERVER_PORT"},
		},
		{
			name: "missing references",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.OwnerID, o.NodeID, o.EggID = 999, 999, 999
			},
			wantKeys: []string{"egg_id", "node_id", "owner_id"},
		},
		{
			name: "bad and duplicate ports",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.Ports = []int{80, 25565, 25565}
			},
			wantKeys: []string{"ports.0", "ports.2"},
		},
		{
			name: "startup and image required",
			modify: func(env *testutil.TestEnv, o *provision.CreateOptions) {
				o.Startup, o.Image = "", " "
			},
			wantKeys: []string{"image", "startup"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			defer env.Cleanup()
			env.AddAllocations(25565)

			opts := env.CreateOptions()
			tt.modify(env, &opts)
			_, err := env.App.Creator().Create(context.Background(), opts, nil)

			var verr *errors.ValidationError
			if !stderrors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if got := verr.Keys(); !reflect.DeepEqual(got, tt.wantKeys) {
				t.Errorf("keys = %v, want %v", got, tt.wantKeys)
			}
			if n := len(env.ServersOwnedBy(env.Owner.ID)); n != 0 {
				t.Errorf("servers = %d, want 0", n)
			}
			if n := len(env.Daemon.CallLog); n != 0 {
				t.Errorf("daemon calls = %d, want 0", n)
			}
		})
	}
}

func TestCreate_RequiredVariableMessage(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	env.AddAllocations(25565)

	opts := env.CreateOptions()
	opts.Environment["BUNGEE_VERSION"] = ""
	_, err := env.App.Creator().Create(context.Background(), opts, nil)

	var verr *errors.ValidationError
	if !stderrors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	want := []string{"The Bungeecord Version variable field is required."}
	if got := verr.Fields["environment.BUNGEE_VERSION"]; !reflect.DeepEqual(got, want) {
		t.Errorf("messages = %q, want %q", got, want)
	}
}

func TestCreate_ExternalIDTaken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	env.AddAllocations(25565, 25566)

	opts := env.CreateOptions()
	opts.ExternalID = "billing-42"
	env.CreateServer(opts, nil)

	_, err := env.App.Creator().Create(context.Background(), opts, nil)
	var verr *errors.ValidationError
	if !stderrors.As(err, &verr) || len(verr.Fields["external_id"]) != 1 {
		t.Errorf("error = %v, want external_id taken", err)
	}
}
