// Package etlerr defines the failure taxonomy shared by every stage of the
// load job.
//
// Four kinds exist:
//
//   - ErrConnectivity: object storage or warehouse unreachable. Fatal.
//   - ErrSchemaMismatch: a rename source is missing from the input schema, or
//     the renamed schema is not well formed. Fatal.
//   - ErrCoercionNull: a value failed integer parsing and became null. Never
//     returned as an error by the normalizer; it is recorded in stats.
//   - ErrWriteFailure: the warehouse rejected the load (auth, quota, lock,
//     bad data). Fatal.
//
// Callers classify with errors.Is against the sentinels; the concrete types
// carry details.
package etlerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnectivity   = errors.New("connectivity error")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrCoercionNull   = errors.New("coercion null")
	ErrWriteFailure   = errors.New("write failure")
)

// Error attaches a taxonomy kind and the failing operation to a cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Connectivity wraps err as a ConnectivityError for op. A nil err yields nil.
func Connectivity(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectivity) {
		return err
	}
	return &Error{Kind: ErrConnectivity, Op: op, Err: err}
}

// WriteFailure wraps err as a WriteFailure for op. A nil err yields nil.
func WriteFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrWriteFailure) || errors.Is(err, ErrConnectivity) {
		return err
	}
	return &Error{Kind: ErrWriteFailure, Op: op, Err: err}
}

// SchemaMismatchError lists the names that prevented a schema from being
// normalized.
type SchemaMismatchError struct {
	// Missing are mapping source names absent from the input schema.
	Missing []string
	// Duplicate are output names that would appear more than once.
	Duplicate []string
	// Unsupported are input columns whose physical shape cannot be loaded
	// (nested or repeated columns).
	Unsupported []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	if len(e.Unsupported) > 0 {
		parts = append(parts, "unsupported columns: "+strings.Join(e.Unsupported, ", "))
	}
	if len(parts) == 0 {
		return ErrSchemaMismatch.Error()
	}
	return ErrSchemaMismatch.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// CoercionNull records one value that failed integer coercion. Row is the
// zero-based position within the batch it was found in.
type CoercionNull struct {
	Column string
	Row    int
	Value  any
}

func (c CoercionNull) Error() string {
	return fmt.Sprintf("%v: column %s row %d: %#v", ErrCoercionNull, c.Column, c.Row, c.Value)
}

func (c CoercionNull) Is(target error) bool { return target == ErrCoercionNull }

// Exit codes used by the CLI for each fatal kind.
const (
	ExitOK             = 0
	ExitConfig         = 1
	ExitConnectivity   = 2
	ExitSchemaMismatch = 3
	ExitWriteFailure   = 4
)

// ExitCode maps err onto the process exit code for its kind. Errors outside
// the taxonomy map to ExitConfig.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConnectivity):
		return ExitConnectivity
	case errors.Is(err, ErrSchemaMismatch):
		return ExitSchemaMismatch
	case errors.Is(err, ErrWriteFailure):
		return ExitWriteFailure
	default:
		return ExitConfig
	}
}
