// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import (
	"sync/atomic"
	"time"
)

// State is the mutable record the executor owns for a build operation: its
// descriptor, when it started, and whether it is currently running. A State
// is running from just before its started event is dispatched until just
// after its finished event; nested child operations observe parent.Running
// == true for their entire lifetime, and it is a programming error for that
// to be violated.
type State struct {
	descriptor Descriptor
	startTime  time.Time
	running    atomic.Bool
}

func newState(descriptor Descriptor, startTime time.Time) *State {
	return &State{descriptor: descriptor, startTime: startTime}
}

// ID returns the operation's identifier.
func (s *State) ID() OperationID { return s.descriptor.ID }

// ParentID returns the operation's parent identifier, or nil if it has none.
func (s *State) ParentID() *OperationID { return s.descriptor.ParentID }

// Descriptor returns the operation's immutable descriptor.
func (s *State) Descriptor() Descriptor { return s.descriptor }

// StartTime returns when the operation started.
func (s *State) StartTime() time.Time { return s.startTime }

// Running reports whether the operation is currently between its started
// and finished events.
func (s *State) Running() bool { return s.running.Load() }

func (s *State) setRunning(running bool) { s.running.Store(running) }

// unmanagedThreadState is a distinct type, not a flag, for the synthetic
// parent fabricated when an unmanaged goroutine re-enters the executor with
// no ambient operation. Modeling it as a tagged variant rather than a bool
// field on State turns "is this the sentinel we're responsible for closing"
// into a type assertion instead of a field check spread across the
// executor.
type unmanagedThreadState struct {
	*State
}
