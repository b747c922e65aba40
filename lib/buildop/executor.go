// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/bureau/lib/clock"
)

// ErrExecutorStopped is returned by RunAll once [Executor.Stop] has been
// called. In-flight work started before Stop is unaffected; only new
// parallel batches are rejected.
var ErrExecutorStopped = errors.New("buildop: executor has been stopped")

// Executor runs build operations, tracks their parent/child lineage, and
// notifies a [Listener] of start/finish events. Run and Call execute
// synchronously on the calling goroutine; RunAll fans work out across a
// bounded pool while preserving the caller's current operation as every
// job's default parent.
//
// An Executor is safe for concurrent use by multiple goroutines.
type Executor struct {
	listener Listener
	clock    clock.Clock
	logger   *slog.Logger
	progress ProgressLoggerFactory

	nextID      atomic.Int64
	unmanagedID atomic.Int64

	sem     chan struct{}
	stopped atomic.Bool
}

// New creates an Executor that notifies listener of every operation it
// runs, uses clk as its time source, logs through logger, and bounds
// RunAll's parallel batches to maxWorkers concurrent jobs.
//
// progress may be nil — operations that request progress logging simply
// run without a progress scope.
func New(listener Listener, clk clock.Clock, logger *slog.Logger, progress ProgressLoggerFactory, maxWorkers int) *Executor {
	if listener == nil {
		listener = NopListener{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	e := &Executor{
		listener: listener,
		clock:    clk,
		logger:   logger,
		progress: progress,
		sem:      make(chan struct{}, maxWorkers),
	}
	// Ids for normal operations start at 1, not 0 — RootOperationID is
	// reserved for the artificial root fixture.
	e.nextID.Store(0)
	return e
}

// Stop stops the executor from accepting new parallel batches. Work
// already in flight (including jobs already submitted to a RunAll batch
// that hasn't drained yet) runs to completion.
func (e *Executor) Stop() {
	e.stopped.Store(true)
}

// Run executes op synchronously on the calling goroutine.
func (e *Executor) Run(ctx context.Context, op RunnableOperation) error {
	_, err := e.executeOperation(ctx, op, op.Description(), runnableWorker{})
	return err
}

// Call executes op synchronously on the calling goroutine and returns the
// value its body produces.
func Call[T any](ctx context.Context, e *Executor, op CallableOperation[T]) (T, error) {
	var result T
	_, err := e.execute(ctx, op.Description(), func(childCtx context.Context, opCtx *Context) error {
		value, callErr := op.Call(childCtx, opCtx)
		if callErr != nil {
			return callErr
		}
		result = value
		opCtx.SetResult(value)
		return nil
	})
	return result, err
}

// executeOperation runs op through worker, building its descriptor from
// builder. Shared by Run and by queued jobs dispatched through RunAll.
func (e *Executor) executeOperation(ctx context.Context, op Operation, builder *DescriptorBuilder, worker OperationWorker) (context.Context, error) {
	return e.execute(ctx, builder, func(childCtx context.Context, opCtx *Context) error {
		return worker.Execute(childCtx, op, opCtx)
	})
}

// execute is the shared execution envelope described by the executor's
// design: resolve the parent, mint an id, check the parent is running,
// mark this operation running, dispatch started, run body, dispatch
// finished, restore bookkeeping, and propagate any failure.
func (e *Executor) execute(ctx context.Context, builder *DescriptorBuilder, body func(ctx context.Context, opCtx *Context) error) (context.Context, error) {
	parent := builder.parentOverride
	if parent == nil {
		parent = currentOperationFromContext(ctx)
	}
	managed := isManagedContext(ctx)

	var fabricated *unmanagedThreadState
	if parent == nil && !managed {
		fabricated = e.startUnmanagedThreadOperation(ctx)
		parent = fabricated.State
		// Registered first so it is the last deferred function to run,
		// after this call's own finished event has already fired —
		// the unmanaged parent's finished event must come last.
		defer e.stopUnmanagedThreadOperation(fabricated)
	}

	id := OperationID(e.nextID.Add(1))
	var parentID *OperationID
	if parent != nil {
		parentIDValue := parent.ID()
		parentID = &parentIDValue
	}
	descriptor := builder.build(id, parentID)

	if parent != nil && !parent.Running() {
		return ctx, &ParentNotRunningError{ChildDisplayName: descriptor.DisplayName, ParentDisplayName: parent.descriptor.DisplayName}
	}

	state := newState(descriptor, e.clock.Now())
	state.setRunning(true)
	childCtx := withCurrentOperation(ctx, state)

	e.listener.Started(descriptor, StartEvent{StartTime: state.startTime})

	var progressLogger ProgressLogger
	if e.progress != nil && descriptor.ProgressDisplayName != "" {
		progressLogger = e.progress.NewOperation(descriptor)
	}

	e.logger.Debug("build operation started", "display_name", descriptor.DisplayName, "id", descriptor.ID)

	opCtx := &Context{}
	bodyErr := runBody(childCtx, opCtx, body)

	if progressLogger != nil {
		progressLogger.Completed()
	}

	if bodyErr != nil {
		opCtx.Failed(bodyErr)
	} else if parent != nil && !parent.Running() {
		bodyErr = &ParentCompletedEarlyError{ChildDisplayName: descriptor.DisplayName, ParentDisplayName: parent.descriptor.DisplayName}
		opCtx.Failed(bodyErr)
	}

	endTime := e.clock.Now()
	e.listener.Finished(descriptor, FinishEvent{
		StartTime: state.startTime,
		EndTime:   endTime,
		Failure:   opCtx.Failure(),
		Result:    opCtx.Result(),
	})

	if bodyErr == nil {
		e.logger.Debug("build operation completed", "display_name", descriptor.DisplayName, "id", descriptor.ID)
	}

	state.setRunning(false)

	return ctx, bodyErr
}

// runBody calls body, recovering a panic as a failure so the envelope's
// bookkeeping (finished event, running flag, unmanaged-thread close) always
// runs even if the operation body panics instead of returning an error.
func runBody(ctx context.Context, opCtx *Context, body func(context.Context, *Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build operation panicked: %v", r)
		}
	}()
	return body(ctx, opCtx)
}

// startUnmanagedThreadOperation fabricates the synthetic parent for a
// goroutine that is neither pool-managed nor marked with [ManagedContext]
// and has no ambient current operation.
func (e *Executor) startUnmanagedThreadOperation(ctx context.Context) *unmanagedThreadState {
	id := OperationID(e.unmanagedID.Add(-1))
	workerName := workerNameFromContext(ctx)
	displayName := fmt.Sprintf("Unmanaged thread operation #%s (%s)", id, workerName)
	descriptor := Descriptor{ID: id, DisplayName: displayName}
	state := newState(descriptor, e.clock.Now())
	state.setRunning(true)

	e.logger.Debug("no operation is currently running on unmanaged goroutine", "worker", workerName)
	e.listener.Started(descriptor, StartEvent{StartTime: state.startTime})

	return &unmanagedThreadState{State: state}
}

// stopUnmanagedThreadOperation emits the deferred finished event for a
// synthetic unmanaged-thread parent once the call that fabricated it — and
// everything nested inside it — has returned.
func (e *Executor) stopUnmanagedThreadOperation(fabricated *unmanagedThreadState) {
	endTime := e.clock.Now()
	e.listener.Finished(fabricated.descriptor, FinishEvent{
		StartTime: fabricated.startTime,
		EndTime:   endTime,
	})
	fabricated.setRunning(false)
}
