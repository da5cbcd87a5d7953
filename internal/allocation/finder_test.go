package allocation_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/testutil"
)

func finder(env *testutil.TestEnv) *allocation.Finder {
	return allocation.NewFinder(env.Store.Queries, env.Config.Allocations)
}

func errorCode(err error) string {
	var perr *errors.PanelError
	if stderrors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

func TestFinder_LowestFreePortFirst(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25568, 25566, 25567)

	a, err := finder(env).Handle(context.Background(), &model.Server{NodeID: env.Node.ID})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if a.Port != 25566 {
		t.Errorf("port = %d, want 25566", a.Port)
	}
	if !a.IsFree() {
		t.Error("Finder must not assign the allocation")
	}
}

func TestFinder_PrefersPrimaryIP(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocationsOn("10.0.0.2", 25566)
	srv := env.CreateServer(env.CreateOptions(), nil)

	env.AddAllocations(25565)
	env.AddAllocationsOn("10.0.0.2", 25569)

	a, err := finder(env).Handle(context.Background(), srv)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if a.IP != "10.0.0.2" || a.Port != 25569 {
		t.Errorf("allocation = %s, want 10.0.0.2:25569", a.Address())
	}
}

func TestFinder_DeploymentHints(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565)
	env.CreateServer(env.CreateOptions(), nil)
	env.AddAllocations(25566, 25567)
	env.AddAllocationsOn("10.0.0.2", 25568)

	tests := []struct {
		name       string
		deployment *model.Deployment
		wantIP     string
		wantPort   int
	}{
		{"no hints", nil, "10.0.0.1", 25566},
		{"requested port", &model.Deployment{Ports: []int{25567}}, "10.0.0.1", 25567},
		{"dedicated skips used ip", &model.Deployment{Dedicated: true}, "10.0.0.2", 25568},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := finder(env).Find(ctx, &model.Server{NodeID: env.Node.ID}, tt.deployment)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if a.IP != tt.wantIP || a.Port != tt.wantPort {
				t.Errorf("allocation = %s:%d, want %s:%d", a.IP, a.Port, tt.wantIP, tt.wantPort)
			}
		})
	}
}

func TestFinder_AutoCreateDisabled(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	_, err := finder(env).Handle(context.Background(), &model.Server{NodeID: env.Node.ID})
	if !errors.IsKind(err, errors.KindResourceExhausted) {
		t.Fatalf("error = %v, want resource exhausted", err)
	}
	if code := errorCode(err); code != errors.CodeAutoAllocationNotEnabled {
		t.Errorf("code = %q, want %q", code, errors.CodeAutoAllocationNotEnabled)
	}
}

func TestFinder_AutoCreateLowestGap(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565, 25567)
	env.CreateServer(env.CreateOptions(), nil)
	env.CreateServer(env.CreateOptions(), nil)
	env.Config.Allocations.AutoCreate = true

	a, err := finder(env).Handle(ctx, &model.Server{NodeID: env.Node.ID})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if a.Port != 25566 || a.IP != env.Node.AllocationIP {
		t.Errorf("allocation = %s, want 10.0.0.1:25566", a.Address())
	}

	stored, err := env.Store.FindAllocation(ctx, env.Node.ID, env.Node.AllocationIP, 25566)
	if err != nil {
		t.Fatalf("created allocation not stored: %v", err)
	}
	if !stored.IsFree() {
		t.Error("auto-created allocation should be free")
	}
}

func TestFinder_AutoCreateDefaultRange(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	node := &model.Node{Name: "node-2", FQDN: "node2.example.com", DaemonPort: 8080, AllocationIP: "10.0.1.1"}
	if err := env.Store.CreateNode(ctx, node); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	env.Config.Allocations.AutoCreate = true
	env.Config.Allocations.RangeStart = 30000
	env.Config.Allocations.RangeEnd = 30001

	a, err := finder(env).Handle(ctx, &model.Server{NodeID: node.ID})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if a.Port != 30000 || a.IP != "10.0.1.1" {
		t.Errorf("allocation = %s, want 10.0.1.1:30000", a.Address())
	}
}

func TestFinder_RangeExhausted(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	ports := []int{25565, 25566, 25567, 25568, 25569, 25570}
	env.AddAllocations(ports...)
	opts := env.CreateOptions()
	opts.Ports = ports
	env.CreateServer(opts, nil)
	env.Config.Allocations.AutoCreate = true

	_, err := finder(env).Handle(context.Background(), &model.Server{NodeID: env.Node.ID})
	if !errors.IsKind(err, errors.KindResourceExhausted) {
		t.Fatalf("error = %v, want resource exhausted", err)
	}
	if code := errorCode(err); code != errors.CodeNoAutoAllocationSpaceAvailable {
		t.Errorf("code = %q, want %q", code, errors.CodeNoAutoAllocationSpaceAvailable)
	}
}
