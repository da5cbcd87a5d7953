// Package store persists panel records in SQLite.
//
// The database is opened through modernc.org/sqlite with WAL journaling,
// foreign keys, a busy timeout, and immediate transaction locking. Schema
// changes live in migrations/*.sql and are applied once each, in name order.
//
// # Queries and Transactions
//
// Every repository method hangs off Queries, which wraps either the database
// handle or a transaction:
//
//	srv, err := st.GetServer(ctx, id)          // outside a transaction
//
//	err := st.WithTx(ctx, func(q *store.Queries) error {
//	    if err := q.InsertServer(ctx, srv); err != nil {
//	        return err
//	    }
//	    return q.InsertServerVariables(ctx, srv.ID, vars)
//	})
//
// # Allocation Invariants
//
//   - (node_id, ip, port) is unique; IsUniqueViolation detects collisions
//   - ReserveAllocation is a conditional UPDATE, so concurrent reservations
//     of one allocation cannot both succeed
//   - the primary allocation is servers.allocation_id, so a server has at
//     most one
//
// Lookups of missing rows return a NotFound error from internal/errors.
package store
