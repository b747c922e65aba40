// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import (
	"fmt"
	"runtime"
	"strings"
)

// lineSeparator follows the host platform, matching the Java original's
// own SystemProperties.getInstance().getLineSeparator() constant that the
// multi-cause message is built with.
var lineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// InvalidStateError reports a violated precondition that is a programming
// error rather than a build failure: no current operation when one is
// required, or an artificial root requested on a goroutine that already
// has one.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// ParentNotRunningError is raised when an operation's resolved parent has
// already finished by the time the operation would start.
type ParentNotRunningError struct {
	ChildDisplayName  string
	ParentDisplayName string
}

func (e *ParentNotRunningError) Error() string {
	return fmt.Sprintf("cannot start operation (%s) as parent operation (%s) has already completed",
		e.ChildDisplayName, e.ParentDisplayName)
}

// ParentCompletedEarlyError is raised when an operation's parent finished
// while the operation itself was still running.
type ParentCompletedEarlyError struct {
	ChildDisplayName  string
	ParentDisplayName string
}

func (e *ParentCompletedEarlyError) Error() string {
	return fmt.Sprintf("Parent operation (%s) completed before this operation (%s).",
		e.ParentDisplayName, e.ChildDisplayName)
}

// MultipleFailures aggregates two or more causes accrued while running a
// parallel batch. Its message joins each cause's message with the host
// line separator and the literal token AND on its own line — plain
// errors.Join cannot produce this exact shape, so the type is hand-rolled.
//
// Unwrap returns every cause, so errors.Is and errors.As see through a
// MultipleFailures the same way they would through errors.Join.
type MultipleFailures struct {
	Causes []error
}

func (e *MultipleFailures) Error() string {
	messages := make([]string, len(e.Causes))
	for i, cause := range e.Causes {
		messages[i] = cause.Error()
	}
	return strings.Join(messages, lineSeparator+"AND"+lineSeparator)
}

func (e *MultipleFailures) Unwrap() []error { return e.Causes }

// QueuePopulationFailure wraps a failure raised by a runAll schedule
// callback while it was enqueueing jobs, as opposed to a failure raised by
// one of the jobs themselves.
type QueuePopulationFailure struct {
	Err error
}

func (e *QueuePopulationFailure) Error() string {
	return fmt.Sprintf("there was a failure while populating the build operation queue: %s", e.Err)
}

func (e *QueuePopulationFailure) Unwrap() error { return e.Err }
