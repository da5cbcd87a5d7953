// Package allocation manages the IP and port pairs servers listen on.
//
// # Pool
//
// Pool reserves, releases and creates allocations. Reservation is a
// compare-and-set in the database, so two servers racing for one allocation
// end with exactly one owner and one Conflict error.
//
// # Finder
//
// Finder picks an assignable allocation for a server:
//
//	a, err := allocation.NewFinder(store.Queries, cfg.Allocations).Handle(ctx, server)
//
// Free allocations on the server's node win, lowest port first. When none
// exist and allocations.auto_create is set, the lowest unallocated port of
// the node's range is created. Otherwise the error is
// AutoAllocationNotEnabled or NoAutoAllocationSpaceAvailable.
//
// # Service
//
// Service adds, removes and re-points the allocations of existing servers,
// enforcing the server's allocation limit and protecting its primary.
package allocation
