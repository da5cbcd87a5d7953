// Package testutil provides test utilities for integration tests
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/daemon"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/provision"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Paths    *config.Paths
	Config   *config.Config
	Store    *store.Store
	Daemon   *daemon.MockClient
	Activity *audit.Memory
	App      *app.App

	// Seeded rows
	Node  *model.Node
	Owner *model.User
	Egg   *model.Egg

	cleanup func()
}

// NewTestEnv creates a new test environment backed by a temporary SQLite
// database and a mock daemon, seeded with node-1, an owner and the
// Bungeecord egg.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	paths := config.NewPaths(filepath.Join(tmpDir, "config"), filepath.Join(tmpDir, "state"))

	// Create directories
	for _, dir := range []string{paths.ConfigDir, paths.StateDir, paths.EggsDir, paths.ActivityDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	cfg := config.Default(paths)
	cfg.Allocations.ClientEnabled = true

	st, err := store.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mockDaemon := daemon.NewMockClient()
	activity := &audit.Memory{}

	testApp := app.New(
		app.WithPaths(paths),
		app.WithConfig(cfg),
		app.WithStore(st),
		app.WithDaemon(mockDaemon),
		app.WithRecorder(activity),
	)

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Paths:    paths,
		Config:   cfg,
		Store:    st,
		Daemon:   mockDaemon,
		Activity: activity,
		App:      testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	env.seed()

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
	}
}

func (e *TestEnv) seed() {
	e.T.Helper()
	ctx := context.Background()

	node, err := TestNode()
	if err != nil {
		e.T.Fatalf("Failed to load node fixture: %v", err)
	}
	if err := e.Store.CreateNode(ctx, node); err != nil {
		e.T.Fatalf("Failed to create node: %v", err)
	}

	owner, err := TestUser()
	if err != nil {
		e.T.Fatalf("Failed to load user fixture: %v", err)
	}
	if err := e.Store.CreateUser(ctx, owner); err != nil {
		e.T.Fatalf("Failed to create user: %v", err)
	}

	egg, err := BungeecordEgg()
	if err != nil {
		e.T.Fatalf("Failed to load egg fixture: %v", err)
	}
	if err := e.Store.CreateEgg(ctx, egg); err != nil {
		e.T.Fatalf("Failed to create egg: %v", err)
	}

	e.Node, e.Owner, e.Egg = node, owner, egg
}

// AddAllocations creates free allocations for ports on the node's
// allocation IP.
func (e *TestEnv) AddAllocations(ports ...int) []model.Allocation {
	e.T.Helper()
	return e.AddAllocationsOn(e.Node.AllocationIP, ports...)
}

// AddAllocationsOn creates free allocations for ports on ip.
func (e *TestEnv) AddAllocationsOn(ip string, ports ...int) []model.Allocation {
	e.T.Helper()

	res, err := allocation.NewPool(e.Store.Queries).Create(context.Background(), e.Node, ip, "", ports)
	if err != nil {
		e.T.Fatalf("Failed to create allocations: %v", err)
	}
	if len(res.Skipped) > 0 {
		e.T.Fatalf("Allocations already existed for ports %v", res.Skipped)
	}
	return res.Created
}

// AddUser creates another user.
func (e *TestEnv) AddUser(username string) *model.User {
	e.T.Helper()

	u := &model.User{Username: username, Email: username + "@example.com"}
	if err := e.Store.CreateUser(context.Background(), u); err != nil {
		e.T.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// CreateOptions returns valid options for a Bungeecord server owned by the
// seeded user on the seeded node.
func (e *TestEnv) CreateOptions() provision.CreateOptions {
	return provision.CreateOptions{
		Name:        "My Bungeecord",
		Description: "Test server",
		OwnerID:     e.Owner.ID,
		NodeID:      e.Node.ID,
		EggID:       e.Egg.ID,
		Startup:     e.Egg.Startup,
		Image:       e.Egg.DefaultImage,
		Environment: map[string]string{
			"BUNGEE_VERSION": "123",
			"SERVER_JARFILE": "server2.jar",
		},
	}
}

// CreateServer creates a server through the app's Creator and fails the
// test on error.
func (e *TestEnv) CreateServer(opts provision.CreateOptions, d *model.Deployment) *model.Server {
	e.T.Helper()

	srv, err := e.App.Creator().Create(context.Background(), opts, d)
	if err != nil {
		e.T.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

// ServersOwnedBy returns the servers of owner.
func (e *TestEnv) ServersOwnedBy(ownerID int64) []*model.Server {
	e.T.Helper()

	servers, err := e.Store.ListServers(context.Background(), store.ServerFilter{OwnerID: ownerID})
	if err != nil {
		e.T.Fatalf("Failed to list servers: %v", err)
	}
	return servers
}
