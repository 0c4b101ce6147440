package logging

import (
	"context"
	"time"
)

// DetachContext creates a context that won't be cancelled when parent is.
//
// This matters for persistence of migration phase transitions, which must be
// recorded even when the parent pipeline context is cancelled mid-phase.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout creates a detached context with its own timeout,
// so bookkeeping writes get a deadline independent of the parent's cancellation.
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(DetachContext(parent), timeout)
}
