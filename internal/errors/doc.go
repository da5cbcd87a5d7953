// Package errors provides typed errors with exit codes for hearth-ctl.
//
// # Error Types
//
// PanelError is the base error type. It carries a Kind that decides the
// exit code and the HTTP status the API answers with:
//
//	type PanelError struct {
//	    Kind    Kind   // Classification
//	    Code    string // Machine-readable code, optional
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// Two errors carry structured payloads of their own:
//
//	ValidationError       // Fields map[string][]string, keyed "name", "environment.SERVER_JARFILE", ...
//	DaemonConnectionError // node, HTTP status (0 on transport failure), cause
//
// # Exit Codes
//
//	ExitSuccess           = 0  // Success
//	ExitGeneralError      = 1  // General/unknown errors
//	ExitValidation        = 2  // Request failed validation
//	ExitConflict          = 3  // Allocation owned by another server, limits
//	ExitResourceExhausted = 4  // No allocation could be found or created
//	ExitDaemonConnection  = 5  // Node daemon unreachable or failed
//	ExitNotFound          = 6  // Record does not exist
//	ExitConfigError       = 7  // Configuration error
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
