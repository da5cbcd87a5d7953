package allocation_test

import (
	"context"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/store"
	"github.com/hearth-panel/hearth-ctl/internal/testutil"
)

func TestService_AddToServer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565, 25566, 25567)
	opts := env.CreateOptions()
	opts.AllocationLimit = 2
	srv := env.CreateServer(opts, nil)
	svc := env.App.Allocations()

	a, err := svc.AddToServer(ctx, srv)
	if err != nil {
		t.Fatalf("AddToServer failed: %v", err)
	}
	if !a.OwnedBy(srv.ID) || a.Port != 25566 {
		t.Errorf("added allocation = %+v", a)
	}
	if got := env.Activity.Events(audit.EventAllocationCreate); len(got) != 1 || got[0].Server != srv.UUID {
		t.Errorf("activity = %+v", got)
	}

	_, err = svc.AddToServer(ctx, srv)
	if !errors.IsKind(err, errors.KindConflict) || errorCode(err) != errors.CodeAllocationLimitReached {
		t.Errorf("error = %v, want allocation limit reached", err)
	}
}

func TestService_AddToServerWithoutLimit(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	env.AddAllocations(25565, 25566)
	srv := env.CreateServer(env.CreateOptions(), nil)

	_, err := env.App.Allocations().AddToServer(context.Background(), srv)
	if errorCode(err) != errors.CodeAllocationLimitReached {
		t.Errorf("error = %v, want allocation limit reached for a zero limit", err)
	}
}

func TestService_AddToServerDisabled(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565, 25566)
	opts := env.CreateOptions()
	opts.AllocationLimit = 5
	srv := env.CreateServer(opts, nil)
	env.Config.Allocations.ClientEnabled = false

	_, err := env.App.Allocations().AddToServer(ctx, srv)
	if !errors.IsKind(err, errors.KindConflict) || errorCode(err) != errors.CodeAllocationsDisabled {
		t.Errorf("error = %v, want allocations disabled", err)
	}
	if n, _ := env.Store.CountServerAllocations(ctx, srv.ID); n != 1 {
		t.Errorf("server allocations = %d, want 1", n)
	}
	if got := env.Activity.Events(audit.EventAllocationCreate); len(got) != 0 {
		t.Errorf("activity = %+v, want none", got)
	}
}

func TestService_RemoveFromServer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565, 25566)
	opts := env.CreateOptions()
	opts.Ports = []int{25565, 25566}
	srv := env.CreateServer(opts, nil)
	svc := env.App.Allocations()

	if err := svc.RemoveFromServer(ctx, srv, srv.AllocationID); !errors.IsKind(err, errors.KindConflict) {
		t.Errorf("removing primary: error = %v, want conflict", err)
	}

	if err := svc.SetNotes(ctx, srv, srv.Allocations[1].ID, "voice"); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}
	if err := svc.RemoveFromServer(ctx, srv, srv.Allocations[1].ID); err != nil {
		t.Fatalf("RemoveFromServer failed: %v", err)
	}

	a, err := env.Store.GetAllocation(ctx, srv.Allocations[1].ID)
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if !a.IsFree() || a.Notes != nil {
		t.Errorf("released allocation = %+v, want free without notes", a)
	}

	owned, err := env.Store.ListAllocations(ctx, store.AllocationFilter{ServerID: &srv.ID})
	if err != nil {
		t.Fatalf("ListAllocations failed: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != srv.AllocationID {
		t.Errorf("remaining allocations = %+v, want only the primary", owned)
	}

	if got := env.Activity.Events(audit.EventAllocationDelete); len(got) != 1 {
		t.Errorf("delete activity = %d, want 1", len(got))
	}
}

func TestService_SetPrimary(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565, 25566)
	opts := env.CreateOptions()
	opts.Ports = []int{25565, 25566}
	srv := env.CreateServer(opts, nil)

	a, err := env.App.Allocations().SetPrimary(ctx, srv, srv.Allocations[1].ID)
	if err != nil {
		t.Fatalf("SetPrimary failed: %v", err)
	}
	if a.Port != 25566 || srv.AllocationID != a.ID {
		t.Errorf("primary = %s", a.Address())
	}
	if got := env.Activity.Events(audit.EventAllocationPrimary); len(got) != 1 {
		t.Errorf("primary activity = %d, want 1", len(got))
	}
}

func TestService_NotOwned(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ctx := context.Background()

	env.AddAllocations(25565)
	srv := env.CreateServer(env.CreateOptions(), nil)
	free := env.AddAllocations(25566)[0]
	svc := env.App.Allocations()

	if err := svc.SetNotes(ctx, srv, free.ID, "x"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("SetNotes error = %v, want not found", err)
	}
	if err := svc.RemoveFromServer(ctx, srv, free.ID); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("RemoveFromServer error = %v, want not found", err)
	}
}
