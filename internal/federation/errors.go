package federation

import (
	"fmt"
	"time"
)

// ValidationError covers ill-formed requests and failed qualifier
// resolution. No I/O has happened when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidSQLError covers parse failures and unsupported statement shapes.
type InvalidSQLError struct {
	SQL    string
	Reason string
	Cause  error
}

func (e *InvalidSQLError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid sql %q: %s: %v", truncateSQL(e.SQL), e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid sql %q: %s", truncateSQL(e.SQL), e.Reason)
}

func (e *InvalidSQLError) Unwrap() error { return e.Cause }

// ConnectionError means an engine adapter could not be reached or resolved.
type ConnectionError struct {
	ConnectionID string
	Engine       string
	Cause        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s (%s): %v", e.ConnectionID, e.Engine, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ExecutionError means a sub-query failed at its target engine or the merge
// query failed in the embedded engine.
type ExecutionError struct {
	ConnectionID string
	Engine       string
	SQL          string
	Cause        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution on %s (%s), sql %q: %v", e.ConnectionID, e.Engine, truncateSQL(e.SQL), e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError means a sub-query or the whole request exceeded its deadline.
type TimeoutError struct {
	ConnectionID string
	Engine       string
	Timeout      time.Duration
}

func (e *TimeoutError) Error() string {
	if e.ConnectionID == "" {
		return fmt.Sprintf("federation timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("sub-query on %s (%s) timed out after %s", e.ConnectionID, e.Engine, e.Timeout)
}

func truncateSQL(sql string) string {
	const max = 120
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
