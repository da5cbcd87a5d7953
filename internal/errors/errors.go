package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Exit codes for hearth-ctl
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitValidation        = 2
	ExitConflict          = 3
	ExitResourceExhausted = 4
	ExitDaemonConnection  = 5
	ExitNotFound          = 6
	ExitConfigError       = 7
)

// Kind classifies a PanelError independently of its message.
type Kind string

const (
	KindGeneral           Kind = "general"
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindResourceExhausted Kind = "resource_exhausted"
	KindDaemonConnection  Kind = "daemon_connection"
	KindNotFound          Kind = "not_found"
	KindConfig            Kind = "config"
)

var exitCodes = map[Kind]int{
	KindGeneral:           ExitGeneralError,
	KindValidation:        ExitValidation,
	KindConflict:          ExitConflict,
	KindResourceExhausted: ExitResourceExhausted,
	KindDaemonConnection:  ExitDaemonConnection,
	KindNotFound:          ExitNotFound,
	KindConfig:            ExitConfigError,
}

// PanelError is the base error type for hearth-ctl
type PanelError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *PanelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PanelError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *PanelError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return ExitGeneralError
}

// New creates a new PanelError
func New(kind Kind, message string) *PanelError {
	return &PanelError{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with a PanelError
func Wrap(kind Kind, message string, cause error) *PanelError {
	return &PanelError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// Machine-readable codes for the resource exhaustion cases.
const (
	CodeAutoAllocationNotEnabled       = "AutoAllocationNotEnabled"
	CodeNoAutoAllocationSpaceAvailable = "NoAutoAllocationSpaceAvailable"
	CodeAllocationLimitReached         = "AllocationLimitReached"
	CodeAllocationsDisabled            = "AllocationsDisabled"
)

// Common error constructors

// NotFound returns an error for a missing record
func NotFound(what string, id any) *PanelError {
	return New(KindNotFound, fmt.Sprintf("%s not found: %v", what, id))
}

// Conflict returns an error for a state conflict such as an owned allocation
func Conflict(message string) *PanelError {
	return New(KindConflict, message)
}

// AutoAllocationNotEnabled is returned when no free allocation exists and
// automatic creation is turned off.
func AutoAllocationNotEnabled() *PanelError {
	return &PanelError{
		Kind:    KindResourceExhausted,
		Code:    CodeAutoAllocationNotEnabled,
		Message: "no free allocation available and automatic allocation creation is disabled",
	}
}

// NoAutoAllocationSpace is returned when the configured port range is full.
func NoAutoAllocationSpace(start, end int) *PanelError {
	return &PanelError{
		Kind:    KindResourceExhausted,
		Code:    CodeNoAutoAllocationSpaceAvailable,
		Message: fmt.Sprintf("no free port left in range %d-%d", start, end),
	}
}

// AllocationLimitReached is returned when a server already holds its
// maximum number of allocations.
func AllocationLimitReached(limit int) *PanelError {
	return &PanelError{
		Kind:    KindConflict,
		Code:    CodeAllocationLimitReached,
		Message: fmt.Sprintf("server has reached its allocation limit of %d", limit),
	}
}

// AllocationsDisabled is returned when adding allocations to existing
// servers is turned off.
func AllocationsDisabled() *PanelError {
	return &PanelError{
		Kind:    KindConflict,
		Code:    CodeAllocationsDisabled,
		Message: "adding allocations to servers is disabled (allocations.client_enabled)",
	}
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *PanelError {
	return Wrap(KindConfig, message, cause)
}

// ValidationError carries every failed field with its messages. Field keys
// for egg variables take the form "environment.<ENV_KEY>".
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add appends a message for a field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge copies every message of other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, m := range msgs {
			e.Add(field, m)
		}
	}
}

// Empty reports whether no field has failed.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Keys returns the failed field names in sorted order.
func (e *ValidationError) Keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, k := range e.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ExitCode returns the exit code for validation failures
func (e *ValidationError) ExitCode() int {
	return ExitValidation
}

// OrNil returns e as an error when it holds failures, and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// DaemonConnectionError reports a failed or timed out call to a node daemon.
// StatusCode is zero when no HTTP response was received.
type DaemonConnectionError struct {
	Node       string
	StatusCode int
	Cause      error
}

func (e *DaemonConnectionError) Error() string {
	msg := fmt.Sprintf("daemon on node %s", e.Node)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s returned HTTP %d", msg, e.StatusCode)
	} else {
		msg += " is unreachable"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DaemonConnectionError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for daemon failures
func (e *DaemonConnectionError) ExitCode() int {
	return ExitDaemonConnection
}

// KindOf returns the classification of the first typed error in err's chain.
func KindOf(err error) Kind {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	var daemonErr *DaemonConnectionError
	if errors.As(err, &daemonErr) {
		return KindDaemonConnection
	}
	var panelErr *PanelError
	if errors.As(err, &panelErr) {
		return panelErr.Kind
	}
	return KindGeneral
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if code, ok := exitCodes[KindOf(err)]; ok {
		return code
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
