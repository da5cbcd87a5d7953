// Package provision creates and deletes game servers.
//
// # Creator
//
// Creator turns a creation request into a stored server that the node's
// daemon knows about:
//
//	creator := provision.NewCreator(store, daemonClient, recorder, cfg)
//
//	server, err := creator.Create(ctx, provision.CreateOptions{
//	    Name:        "lobby",
//	    OwnerID:     owner.ID,
//	    NodeID:      node.ID,
//	    EggID:       egg.ID,
//	    Memory:      1024,
//	    Startup:     egg.Startup,
//	    Image:       egg.DefaultImage,
//	    Environment: map[string]string{"BUNGEE_VERSION": "latest"},
//	}, &model.Deployment{Ports: []int{25565, 25566, 25567}})
//
// # Creation Flow
//
// The Creator.Create method runs these stages in order:
//  1. Validates attributes and egg variables, reporting every field at once
//  2. Resolves allocations: every requested port in request order, or a
//     single one found by the Finder among the deployment's ports
//  3. Stores the server, its variables and allocations in one transaction
//  4. Asks the daemon to create the server, under daemon.timeout
//
// A daemon failure rolls back: the daemon is asked to delete the server
// (best effort, logged on failure), then the stored server is deleted and
// its allocations released. The daemon error is returned.
//
// # Deleter
//
// Deleter.Delete removes the server from the daemon first and from the
// database second. With force, a daemon failure is logged and the database
// side still runs.
package provision
