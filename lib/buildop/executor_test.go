// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau/lib/clock"
)

type recordedStart struct {
	descriptor Descriptor
	event      StartEvent
}

type recordedFinish struct {
	descriptor Descriptor
	event      FinishEvent
}

type recordingListener struct {
	mu       sync.Mutex
	starts   []recordedStart
	finishes []recordedFinish
}

func newRecordingListener() *recordingListener {
	return &recordingListener{}
}

func (l *recordingListener) lock()   { l.mu.Lock() }
func (l *recordingListener) unlock() { l.mu.Unlock() }

func (l *recordingListener) Started(descriptor Descriptor, event StartEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, recordedStart{descriptor, event})
}

func (l *recordingListener) Finished(descriptor Descriptor, event FinishEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finishes = append(l.finishes, recordedFinish{descriptor, event})
}

func newTestExecutor(listener Listener) (*Executor, *clock.FakeClock) {
	fake := clock.Fake(time.Unix(0, 0))
	return New(listener, fake, nil, nil, 4), fake
}

// S1: a single run(op) whose body returns normally.
func TestRunSimple(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	op := NewFuncOperation("simple", func(ctx context.Context, opCtx *Context) error {
		return nil
	})

	if err := executor.Run(ManagedContext(context.Background()), op); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(listener.starts) != 1 {
		t.Fatalf("starts = %d, want 1", len(listener.starts))
	}
	if listener.starts[0].descriptor.ParentID != nil {
		t.Fatalf("parent id = %v, want nil", *listener.starts[0].descriptor.ParentID)
	}
	if len(listener.finishes) != 1 {
		t.Fatalf("finishes = %d, want 1", len(listener.finishes))
	}
	finish := listener.finishes[0]
	if finish.event.Failure != nil {
		t.Fatalf("failure = %v, want nil", finish.event.Failure)
	}
	if finish.event.EndTime.Before(finish.event.StartTime) {
		t.Fatalf("endTime %v before startTime %v", finish.event.EndTime, finish.event.StartTime)
	}
}

// S2: a call(op) whose body returns an error.
func TestCallFailurePropagates(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	wantErr := errors.New("boom")
	op := callableFunc[int]{
		builder: DisplayName("failing"),
		body: func(ctx context.Context, opCtx *Context) (int, error) {
			return 0, wantErr
		},
	}

	_, err := Call[int](ManagedContext(context.Background()), executor, op)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	if len(listener.finishes) != 1 {
		t.Fatalf("finishes = %d, want 1", len(listener.finishes))
	}
	if !errors.Is(listener.finishes[0].event.Failure, wantErr) {
		t.Fatalf("finish failure = %v, want %v", listener.finishes[0].event.Failure, wantErr)
	}
}

type callableFunc[T any] struct {
	builder *DescriptorBuilder
	body    func(ctx context.Context, opCtx *Context) (T, error)
}

func (c callableFunc[T]) Description() *DescriptorBuilder { return c.builder }
func (c callableFunc[T]) Call(ctx context.Context, opCtx *Context) (T, error) {
	return c.body(ctx, opCtx)
}

// S3: runAll preserves the caller's current operation as default parent
// for every dispatched job.
func TestRunAllPreservesParent(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	var parentID OperationID
	outer := NewFuncOperation("outer", func(ctx context.Context, opCtx *Context) error {
		current, err := executor.GetCurrentOperation(ctx)
		if err != nil {
			t.Fatalf("GetCurrentOperation: %v", err)
		}
		parentID = current.ID()

		return executor.RunAll(ctx, func(q *Queue) error {
			q.Enqueue(NewFuncOperation("a", func(context.Context, *Context) error { return nil }))
			q.Enqueue(NewFuncOperation("b", func(context.Context, *Context) error { return nil }))
			return nil
		})
	})

	if err := executor.Run(ManagedContext(context.Background()), outer); err != nil {
		t.Fatalf("Run: %v", err)
	}

	listener.lock()
	defer listener.unlock()

	var childParents []OperationID
	for _, s := range listener.starts {
		if s.descriptor.DisplayName == "a" || s.descriptor.DisplayName == "b" {
			if s.descriptor.ParentID == nil {
				t.Fatalf("child %q has nil parent", s.descriptor.DisplayName)
			}
			childParents = append(childParents, *s.descriptor.ParentID)
		}
	}
	if len(childParents) != 2 {
		t.Fatalf("found %d children, want 2", len(childParents))
	}
	for _, p := range childParents {
		if p != parentID {
			t.Fatalf("child parent = %v, want %v", p, parentID)
		}
	}
}

// S4: two jobs failing inside runAll produce a MultipleFailures whose
// message joins both causes with the AND separator.
func TestRunAllMultipleFailures(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	err1 := errors.New("first failure")
	err2 := errors.New("second failure")

	err := executor.RunAll(ManagedContext(context.Background()), func(q *Queue) error {
		q.Enqueue(NewFuncOperation("a", func(context.Context, *Context) error { return err1 }))
		q.Enqueue(NewFuncOperation("b", func(context.Context, *Context) error { return err2 }))
		return nil
	})

	var multi *MultipleFailures
	if !errors.As(err, &multi) {
		t.Fatalf("err = %v, want *MultipleFailures", err)
	}
	if len(multi.Causes) != 2 {
		t.Fatalf("causes = %d, want 2", len(multi.Causes))
	}
	message := multi.Error()
	if !strings.Contains(message, "AND") {
		t.Fatalf("message %q missing AND separator", message)
	}
	if !strings.Contains(message, "first failure") || !strings.Contains(message, "second failure") {
		t.Fatalf("message %q missing a cause", message)
	}
}

func TestRunAllSingleFailureUnwrapped(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())

	wantErr := errors.New("only failure")
	err := executor.RunAll(ManagedContext(context.Background()), func(q *Queue) error {
		q.Enqueue(NewFuncOperation("a", func(context.Context, *Context) error { return wantErr }))
		return nil
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	var multi *MultipleFailures
	if errors.As(err, &multi) {
		t.Fatalf("err should not be MultipleFailures for a single failure")
	}
}

func TestRunAllSchedulePopulationFailure(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())

	schedulingErr := errors.New("cannot populate")
	err := executor.RunAll(ManagedContext(context.Background()), func(q *Queue) error {
		q.Enqueue(NewFuncOperation("a", func(context.Context, *Context) error { return nil }))
		return schedulingErr
	})

	var populationErr *QueuePopulationFailure
	if !errors.As(err, &populationErr) {
		t.Fatalf("err = %v, want *QueuePopulationFailure", err)
	}
	if !strings.Contains(err.Error(), "there was a failure while populating the build operation queue") {
		t.Fatalf("message %q missing expected prefix", err.Error())
	}
}

// Unmanaged thread fabrication: a context with no current operation and no
// managed marker gets a synthetic negative-id parent.
func TestUnmanagedThreadFabricatesParent(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	op := NewFuncOperation("child", func(ctx context.Context, opCtx *Context) error {
		return nil
	})

	if err := executor.Run(context.Background(), op); err != nil {
		t.Fatalf("Run: %v", err)
	}

	listener.lock()
	starts := append([]recordedStart(nil), listener.starts...)
	finishes := append([]recordedFinish(nil), listener.finishes...)
	listener.unlock()

	if len(starts) != 2 {
		t.Fatalf("starts = %d, want 2 (unmanaged parent + child)", len(starts))
	}
	unmanagedDescriptor := starts[0].descriptor
	if unmanagedDescriptor.ID >= 0 {
		t.Fatalf("unmanaged id = %v, want negative", unmanagedDescriptor.ID)
	}
	if !strings.HasPrefix(unmanagedDescriptor.DisplayName, "Unmanaged thread operation #") {
		t.Fatalf("unmanaged display name = %q", unmanagedDescriptor.DisplayName)
	}
	childDescriptor := starts[1].descriptor
	if childDescriptor.ParentID == nil || *childDescriptor.ParentID != unmanagedDescriptor.ID {
		t.Fatalf("child parent = %v, want %v", childDescriptor.ParentID, unmanagedDescriptor.ID)
	}

	if len(finishes) != 2 {
		t.Fatalf("finishes = %d, want 2", len(finishes))
	}
	// The unmanaged parent's finish must be emitted after the child's.
	if finishes[1].descriptor.ID != unmanagedDescriptor.ID {
		t.Fatalf("last finish id = %v, want unmanaged id %v", finishes[1].descriptor.ID, unmanagedDescriptor.ID)
	}
}

func TestManagedContextSuppressesFabrication(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	op := NewFuncOperation("child", func(context.Context, *Context) error { return nil })
	if err := executor.Run(ManagedContext(context.Background()), op); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(listener.starts) != 1 {
		t.Fatalf("starts = %d, want 1 (no fabricated parent)", len(listener.starts))
	}
}

func TestGetCurrentOperationNoneRunning(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())
	_, err := executor.GetCurrentOperation(context.Background())
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidStateError", err)
	}
}

func TestNewRootContextPrecondition(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())

	rootCtx, err := executor.NewRootContext(context.Background())
	if err != nil {
		t.Fatalf("NewRootContext: %v", err)
	}
	current, err := executor.GetCurrentOperation(rootCtx)
	if err != nil {
		t.Fatalf("GetCurrentOperation: %v", err)
	}
	if current.ID() != RootOperationID {
		t.Fatalf("root id = %v, want %v", current.ID(), RootOperationID)
	}
	if !current.Running() {
		t.Fatalf("root operation should be running immediately")
	}

	if _, err := executor.NewRootContext(rootCtx); err == nil {
		t.Fatalf("NewRootContext on a context with an existing operation should fail")
	}
}

func TestParentNotRunningFailsFast(t *testing.T) {
	listener := newRecordingListener()
	executor, _ := newTestExecutor(listener)

	parentState := newState(Descriptor{ID: 1, DisplayName: "parent"}, time.Unix(0, 0))
	// Deliberately leave parentState not running.

	op := NewFuncOperation("child", func(context.Context, *Context) error { return nil })
	op.Builder.WithParent(parentState)

	err := executor.Run(ManagedContext(context.Background()), op)
	var notRunning *ParentNotRunningError
	if !errors.As(err, &notRunning) {
		t.Fatalf("err = %v, want *ParentNotRunningError", err)
	}
	if len(listener.starts) != 0 {
		t.Fatalf("no started event should fire when the precondition fails")
	}
}

func TestStopRejectsNewBatches(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())
	executor.Stop()

	err := executor.RunAll(ManagedContext(context.Background()), func(q *Queue) error {
		return nil
	})
	if !errors.Is(err, ErrExecutorStopped) {
		t.Fatalf("err = %v, want ErrExecutorStopped", err)
	}
}

func TestCurrentOperationSlotRestored(t *testing.T) {
	executor, _ := newTestExecutor(newRecordingListener())

	ctx := ManagedContext(context.Background())
	before, err := executor.GetCurrentOperation(ctx)
	hadBefore := err == nil

	op := NewFuncOperation("child", func(nestedCtx context.Context, opCtx *Context) error {
		nested, err := executor.GetCurrentOperation(nestedCtx)
		if err != nil {
			t.Fatalf("GetCurrentOperation inside body: %v", err)
		}
		if nested.Descriptor().DisplayName != "child" {
			t.Fatalf("nested current operation = %q, want child", nested.Descriptor().DisplayName)
		}
		return nil
	})
	if err := executor.Run(ctx, op); err != nil {
		t.Fatalf("Run: %v", err)
	}

	after, err := executor.GetCurrentOperation(ctx)
	afterHas := err == nil
	if hadBefore != afterHas {
		t.Fatalf("current operation presence changed across Run: before=%v after=%v", hadBefore, afterHas)
	}
	if hadBefore && before != after {
		t.Fatalf("current operation changed across Run: before=%v after=%v", before, after)
	}
}
