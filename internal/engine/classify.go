package engine

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
)

// isTransientErr reports whether err looks like a recoverable connectivity
// or timeout failure rather than a genuine data-rejection error (a bad
// schema, a constraint violation, malformed input). Apply implementations
// wrap only the latter as *ErrEngineFatal; a transient error is returned
// plain so pool.go's backoff/retry loop in applyWithRetry actually runs
// instead of immediately dead-lettering, per spec.md's scenario of an
// engine recovering once a transient outage clears.
func isTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyApplyErr wraps err as *ErrEngineFatal unless isTransientErr (or
// one of extra's checks) says it's worth retrying.
func classifyApplyErr(err error, extra ...func(error) bool) error {
	if err == nil {
		return nil
	}
	if isTransientErr(err) {
		return err
	}
	for _, check := range extra {
		if check(err) {
			return err
		}
	}
	return &ErrEngineFatal{Reason: err.Error()}
}
