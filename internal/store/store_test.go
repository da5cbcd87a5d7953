package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "panel.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type fixture struct {
	node *model.Node
	user *model.User
	egg  *model.Egg
}

func seed(t *testing.T, st *Store) fixture {
	t.Helper()
	ctx := context.Background()

	node := &model.Node{Name: "node-1", FQDN: "node1.example.com", DaemonPort: 8080, AllocationIP: "10.0.0.1"}
	if err := st.CreateNode(ctx, node); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	user := &model.User{Username: "owner", Email: "owner@example.com", ExternalID: "ext-1"}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	egg := &model.Egg{
		Author: "panel@example.com", Name: "Bungeecord", Startup: "java -jar {{SERVER_JARFILE}}",
		DefaultImage: "ghcr.io/hearth/java:17",
		Variables: []model.VariableDefinition{
			{Name: "Bungeecord Version", EnvVariable: "BUNGEE_VERSION", DefaultValue: "latest", Rules: "required|string", Sort: 1},
			{Name: "Bungeecord Jar File", EnvVariable: "SERVER_JARFILE", DefaultValue: "bungeecord.jar", Rules: "required|string", Sort: 2},
		},
	}
	if err := st.CreateEgg(ctx, egg); err != nil {
		t.Fatalf("CreateEgg failed: %v", err)
	}
	return fixture{node: node, user: user, egg: egg}
}

func insertServer(t *testing.T, q *Queries, f fixture, uuid string) *model.Server {
	t.Helper()
	srv := &model.Server{
		UUID: uuid, UUIDShort: uuid[:8], Name: "srv", OwnerID: f.user.ID,
		NodeID: f.node.ID, EggID: f.egg.ID, Startup: f.egg.Startup, Image: f.egg.DefaultImage,
	}
	if err := q.InsertServer(context.Background(), srv); err != nil {
		t.Fatalf("InsertServer failed: %v", err)
	}
	return srv
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.db")
	for i := 0; i < 2; i++ {
		st, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i, err)
		}
		st.Close()
	}
}

func TestEggs(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	egg, err := st.GetEgg(ctx, f.egg.ID)
	if err != nil {
		t.Fatalf("GetEgg failed: %v", err)
	}
	if len(egg.Variables) != 2 {
		t.Fatalf("len(Variables) = %d, want 2", len(egg.Variables))
	}
	if egg.Variables[0].EnvVariable != "BUNGEE_VERSION" {
		t.Errorf("Variables[0] = %q, want BUNGEE_VERSION", egg.Variables[0].EnvVariable)
	}

	_, err = st.GetEgg(ctx, 999)
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("GetEgg(999) error = %v, want not found", err)
	}
}

func TestUsers_ExternalID(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)

	u, err := st.GetUserByExternalID(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("GetUserByExternalID failed: %v", err)
	}
	if u.ID != f.user.ID {
		t.Errorf("ID = %d, want %d", u.ID, f.user.ID)
	}

	if _, err := st.GetUserByExternalID(context.Background(), "missing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestAllocations_UniqueTuple(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	a := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.1", Port: 25565}
	if err := st.InsertAllocation(ctx, a); err != nil {
		t.Fatalf("InsertAllocation failed: %v", err)
	}

	dup := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.1", Port: 25565}
	err := st.InsertAllocation(ctx, dup)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false", err)
	}
}

func TestAllocations_ReserveAndRelease(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	a := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.1", Port: 25565}
	if err := st.InsertAllocation(ctx, a); err != nil {
		t.Fatal(err)
	}
	s1 := insertServer(t, st.Queries, f, "11111111-aaaa-bbbb-cccc-000000000001")
	s2 := insertServer(t, st.Queries, f, "22222222-aaaa-bbbb-cccc-000000000002")

	ok, err := st.ReserveAllocation(ctx, a.ID, f.node.ID, s1.ID)
	if err != nil || !ok {
		t.Fatalf("Reserve s1 = %v, %v; want true", ok, err)
	}
	ok, err = st.ReserveAllocation(ctx, a.ID, f.node.ID, s1.ID)
	if err != nil || !ok {
		t.Errorf("re-Reserve by holder = %v, %v; want true", ok, err)
	}
	ok, err = st.ReserveAllocation(ctx, a.ID, f.node.ID, s2.ID)
	if err != nil || ok {
		t.Errorf("Reserve s2 = %v, %v; want false", ok, err)
	}
	ok, err = st.ReserveAllocation(ctx, a.ID, f.node.ID+1, s1.ID)
	if err != nil || ok {
		t.Errorf("Reserve on other node = %v, %v; want false", ok, err)
	}

	if err := st.SetServerAllocation(ctx, s1.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetAllocation(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.OwnedBy(s1.ID) || !got.Primary {
		t.Errorf("allocation = %+v, want primary of server %d", got, s1.ID)
	}

	if err := st.ReleaseAllocation(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetAllocation(ctx, a.ID)
	if !got.IsFree() || got.Notes != nil {
		t.Errorf("released allocation = %+v, want free without notes", got)
	}
}

func TestListAllocations_ServerOrder(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()
	srv := insertServer(t, st.Queries, f, "44444444-aaaa-bbbb-cccc-000000000004")

	ids := make(map[int]int64)
	for _, port := range []int{1234, 2345, 3456} {
		a := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.1", Port: port}
		if err := st.InsertAllocation(ctx, a); err != nil {
			t.Fatal(err)
		}
		ids[port] = a.ID
	}

	serverPorts := func() []int {
		t.Helper()
		allocs, err := st.ListAllocations(ctx, AllocationFilter{ServerID: &srv.ID})
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		var got []int
		for _, a := range allocs {
			got = append(got, a.Port)
		}
		return got
	}

	for _, port := range []int{3456, 1234, 2345, 3456} {
		if ok, err := st.ReserveAllocation(ctx, ids[port], f.node.ID, srv.ID); err != nil || !ok {
			t.Fatalf("Reserve %d = %v, %v", port, ok, err)
		}
	}
	if got := serverPorts(); !reflect.DeepEqual(got, []int{3456, 1234, 2345}) {
		t.Errorf("server ports = %v, want assignment order [3456 1234 2345]", got)
	}

	if err := st.ReleaseAllocation(ctx, ids[3456]); err != nil {
		t.Fatal(err)
	}
	if ok, err := st.ReserveAllocation(ctx, ids[3456], f.node.ID, srv.ID); err != nil || !ok {
		t.Fatalf("re-Reserve = %v, %v", ok, err)
	}
	if got := serverPorts(); !reflect.DeepEqual(got, []int{1234, 2345, 3456}) {
		t.Errorf("server ports = %v, want the re-reserved port last", got)
	}

	free, err := st.ListAllocations(ctx, AllocationFilter{NodeID: f.node.ID})
	if err != nil {
		t.Fatal(err)
	}
	if free[0].Port != 1234 || free[2].Port != 3456 {
		t.Errorf("node listing should stay ordered by port, got %+v", free)
	}
}

func TestDeleteServer_ReleasesEverything(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	var srv *model.Server
	err := st.WithTx(ctx, func(q *Queries) error {
		srv = insertServer(t, q, f, "33333333-aaaa-bbbb-cccc-000000000003")
		for _, port := range []int{1234, 2345} {
			a := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.1", Port: port}
			if err := q.InsertAllocation(ctx, a); err != nil {
				return err
			}
			if _, err := q.ReserveAllocation(ctx, a.ID, f.node.ID, srv.ID); err != nil {
				return err
			}
		}
		return q.InsertServerVariables(ctx, srv.ID, []model.ServerVariable{
			{VariableID: f.egg.Variables[0].ID, Value: "latest"},
		})
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	if err := st.LoadRelations(ctx, srv); err != nil {
		t.Fatal(err)
	}
	if len(srv.Allocations) != 2 || len(srv.Variables) != 1 {
		t.Fatalf("relations = %d allocations, %d variables", len(srv.Allocations), len(srv.Variables))
	}

	deleted, err := st.DeleteServer(ctx, srv.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteServer = %v, %v", deleted, err)
	}

	free, err := st.ListAllocations(ctx, AllocationFilter{NodeID: f.node.ID, FreeOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 2 {
		t.Errorf("free allocations = %d, want 2", len(free))
	}
	servers, _ := st.ListServers(ctx, ServerFilter{OwnerID: f.user.ID})
	if len(servers) != 0 {
		t.Errorf("servers for owner = %d, want 0", len(servers))
	}
}

func TestWithTx_RollsBack(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	err := st.WithTx(ctx, func(q *Queries) error {
		insertServer(t, q, f, "44444444-aaaa-bbbb-cccc-000000000004")
		return errors.Conflict("abort")
	})
	if !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("WithTx error = %v, want conflict", err)
	}

	servers, err := st.ListServers(ctx, ServerFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 0 {
		t.Errorf("servers = %d after rollback, want 0", len(servers))
	}
}

func TestIPsInUse(t *testing.T) {
	st := openTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	srv := insertServer(t, st.Queries, f, "55555555-aaaa-bbbb-cccc-000000000005")
	a := &model.Allocation{NodeID: f.node.ID, IP: "10.0.0.2", Port: 25565}
	if err := st.InsertAllocation(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ReserveAllocation(ctx, a.ID, f.node.ID, srv.ID); err != nil {
		t.Fatal(err)
	}

	used, err := st.IPsInUse(ctx, f.node.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !used["10.0.0.2"] {
		t.Errorf("IPsInUse = %v, want 10.0.0.2", used)
	}

	used, _ = st.IPsInUse(ctx, f.node.ID, srv.ID)
	if used["10.0.0.2"] {
		t.Errorf("IPsInUse excluding holder = %v, want empty", used)
	}
}
