// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/bungeecord_egg.json
//	fixtures/node.json
//	fixtures/user.json
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//
// # Test Environment
//
// NewTestEnv builds a temporary SQLite store, a mock daemon and an
// in-memory activity recorder, wires them into an app.App installed as
// app.Default, and seeds node-1, an owner and the Bungeecord egg:
//
//	func TestCreate(t *testing.T) {
//	    env := testutil.NewTestEnv(t)
//	    defer env.Cleanup()
//
//	    env.AddAllocations(25565, 25566)
//	    srv := env.CreateServer(env.CreateOptions(), nil)
//	    if !env.Daemon.Has(srv.UUID) {
//	        t.Error("daemon should know the server")
//	    }
//	}
package testutil
