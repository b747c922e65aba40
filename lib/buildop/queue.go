// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Queue is the parallel dispatcher a runAll schedule callback populates.
// Enqueue is non-blocking; jobs become eligible to run as soon as a pool
// slot frees up. Cancel drops jobs that have not yet acquired a slot —
// jobs already running are unaffected.
//
// The bounded-concurrency gate is a buffered channel used as a counting
// semaphore, the same pattern as the pack's own
// notorious-go-sync/semaphore package: a full channel blocks further
// acquires until a slot is released.
type Queue struct {
	executor *Executor
	ctx      context.Context
	worker   OperationWorker

	wg        sync.WaitGroup
	mu        sync.Mutex
	failures  []error
	cancelled atomic.Bool
}

// Enqueue submits op to run on the pool using the queue's worker — the
// default [RunnableOperation] adapter unless the queue was created through
// [Executor.RunAllWithWorker].
func (q *Queue) Enqueue(op RunnableOperation) {
	q.enqueueWithWorker(op, q.worker)
}

// EnqueueWithWorker submits op to run on the pool through an explicit
// [OperationWorker], for callers that supplied one to
// [Executor.RunAllWithWorker].
func (q *Queue) EnqueueWithWorker(op Operation, worker OperationWorker) {
	q.enqueueWithWorker(op, worker)
}

func (q *Queue) enqueueWithWorker(op Operation, worker OperationWorker) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		if q.cancelled.Load() {
			return
		}

		select {
		case q.executor.sem <- struct{}{}:
		case <-q.ctx.Done():
			return
		}
		defer func() { <-q.executor.sem }()

		if q.cancelled.Load() {
			return
		}

		if _, err := q.executor.executeOperation(q.ctx, op, op.Description(), worker); err != nil {
			q.mu.Lock()
			q.failures = append(q.failures, err)
			q.mu.Unlock()
		}
	}()
}

// Cancel marks the queue so that jobs which have not yet acquired a pool
// slot are dropped instead of started. Jobs already running continue to
// completion.
func (q *Queue) Cancel() {
	q.cancelled.Store(true)
}

// WaitForCompletion blocks until every enqueued job has either completed or
// been dropped. If any jobs failed, it returns the single failure, or a
// [MultipleFailures] aggregating all of them.
func (q *Queue) WaitForCompletion() error {
	q.wg.Wait()

	q.mu.Lock()
	failures := q.failures
	q.mu.Unlock()

	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return &MultipleFailures{Causes: failures}
	}
}

// RunAll runs a batch of [RunnableOperation]s across the executor's
// bounded pool. schedule populates the queue; RunAll returns once every
// enqueued job has finished. The current operation captured from ctx at
// call time becomes every job's default parent, regardless of which pool
// worker ends up running it.
func (e *Executor) RunAll(ctx context.Context, schedule func(*Queue) error) error {
	return e.runAllWithWorker(ctx, runnableWorker{}, schedule)
}

// RunAllWithWorker is [Executor.RunAll] with an explicit [OperationWorker]
// strategy instead of the default RunnableOperation adapter.
func (e *Executor) RunAllWithWorker(ctx context.Context, worker OperationWorker, schedule func(*Queue) error) error {
	return e.runAllWithWorker(ctx, worker, schedule)
}

func (e *Executor) runAllWithWorker(ctx context.Context, worker OperationWorker, schedule func(*Queue) error) error {
	if e.stopped.Load() {
		return ErrExecutorStopped
	}

	capturedParent := currentOperationFromContext(ctx)
	jobCtx := withCurrentOperation(ManagedContext(ctx), capturedParent)

	queue := &Queue{executor: e, ctx: jobCtx, worker: worker}

	var failures []error
	func() {
		defer func() {
			if r := recover(); r != nil {
				failures = append(failures, &QueuePopulationFailure{Err: fmt.Errorf("%v", r)})
				queue.Cancel()
			}
		}()
		if err := schedule(queue); err != nil {
			failures = append(failures, &QueuePopulationFailure{Err: err})
			queue.Cancel()
		}
	}()

	if err := queue.WaitForCompletion(); err != nil {
		if multi, ok := err.(*MultipleFailures); ok {
			failures = append(failures, multi.Causes...)
		} else {
			failures = append(failures, err)
		}
	}

	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return &MultipleFailures{Causes: failures}
	}
}
