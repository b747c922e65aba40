// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import "context"

// contextKey is an unexported type so values this package stores in a
// context can never collide with keys set by unrelated packages.
type contextKey int

const (
	currentOperationKey contextKey = iota
	managedKey
	workerNameKey
)

// currentOperationFromContext returns the operation lexically wrapping ctx,
// or nil if none is set.
func currentOperationFromContext(ctx context.Context) *State {
	state, _ := ctx.Value(currentOperationKey).(*State)
	return state
}

// withCurrentOperation returns a context carrying state as the operation
// that wraps it. A nil state leaves ctx unchanged, rather than overwriting
// an existing value with nil — callers that want to clear the current
// operation construct a fresh context instead.
func withCurrentOperation(ctx context.Context, state *State) context.Context {
	if state == nil {
		return ctx
	}
	return context.WithValue(ctx, currentOperationKey, state)
}

// isManagedContext reports whether ctx was marked with [ManagedContext] or
// was produced by the executor dispatching a job onto its worker pool.
func isManagedContext(ctx context.Context) bool {
	managed, _ := ctx.Value(managedKey).(bool)
	return managed
}

// ManagedContext marks ctx as belonging to a worker the executor considers
// managed — typically the build's main driver goroutine — without
// installing a current operation. Run, Call, and RunAll invoked with a
// managed context never fabricate an unmanaged-thread parent even when
// there is no ambient current operation; an unmarked context with no
// current operation is assumed to be an arbitrary external goroutine
// re-entering the executor and does get the synthetic parent.
func ManagedContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, managedKey, true)
}

// WithWorkerName attaches a human-readable label for the calling goroutine,
// used only to name the synthetic parent fabricated for an unmanaged
// thread. Go has no equivalent of a thread name; callers that care about
// this label (mainly test assertions and diagnostics) set one explicitly.
// Unlabeled goroutines are named "goroutine".
func WithWorkerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerNameKey, name)
}

func workerNameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(workerNameKey).(string); ok && name != "" {
		return name
	}
	return "goroutine"
}

// NewRootContext returns a context carrying an artificial, already-running
// root operation with id [RootOperationID] and no parent — the Go-native
// form of the test fixture tools use to pretend a build is already
// underway. ctx must not already carry a current operation.
func (e *Executor) NewRootContext(ctx context.Context) (context.Context, error) {
	if currentOperationFromContext(ctx) != nil {
		return nil, &InvalidStateError{Message: "cannot create an artificial root operation: a current operation is already set on this context"}
	}
	root := newState(Descriptor{ID: RootOperationID, DisplayName: "root"}, e.clock.Now())
	root.setRunning(true)
	return withCurrentOperation(ManagedContext(ctx), root), nil
}

// GetCurrentOperation returns the operation lexically wrapping ctx. It
// fails with an [InvalidStateError] if ctx carries none.
func (e *Executor) GetCurrentOperation(ctx context.Context) (*State, error) {
	state := currentOperationFromContext(ctx)
	if state == nil {
		return nil, &InvalidStateError{Message: "no operation is currently running"}
	}
	return state, nil
}
