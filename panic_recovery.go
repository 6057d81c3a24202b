// panic_recovery.go: Panic containment for handler and hook invocations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"fmt"
	"runtime"
)

// panicToError normalizes a recovered panic value into an error so it can
// travel through the regular error-handling path (metrics, error handlers,
// error event) instead of crashing the host process.
func panicToError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}

// safeInvoke runs fn and converts a panic into a returned error, capturing a
// stack trace through the logger. Capability handlers, hooks, middleware and
// error handlers are all user code; a panic in any of them must degrade to a
// regular failure of that one invocation.
func safeInvoke(logger Logger, component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 64<<10)
			n := runtime.Stack(buf, false)
			logger.Error("Panic recovered",
				"component", component,
				"panic", r,
				"stack", string(buf[:n]))
			err = panicToError(r)
		}
	}()
	return fn()
}
