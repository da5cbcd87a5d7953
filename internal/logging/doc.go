// Package logging provides logging utilities for hearth-ctl.
//
// Two kinds of output are kept apart:
//   - Debug logging: structured logs (slog) for operators and the API server
//   - User output: formatted one-line messages for people at a terminal
//
// # Debug Logging
//
//	logging.Debug("reserving allocation", "allocation", id, "server", serverID)
//	logging.Warn("compensation failed", "step", name, "error", err)
//
// Setup switches between text and JSON handlers and enables debug level
// when verbose. The API server runs with JSON output so logs can be shipped.
//
// # User Output
//
//	logging.UserInfo("Resolving allocations on node %s...", node.Name)
//	logging.UserSuccess("Server %s created (%s)", name, uuidShort)
//	logging.UserWarning("Allocation %d is already free", id)
//	logging.UserError("Failed to create server: %v", err)
//
// UserInfo and UserSuccess write to Stdout, UserWarning and UserError to
// Stderr. Status indicators: ℹ info, ✓ success, ⚠ warning, ✗ error.
package logging
