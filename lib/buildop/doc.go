// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildop tracks build operations: named, id-bearing units of work
// with a start/finish lifecycle, a parent link, and a result or failure.
//
// An [Executor] runs operations on the caller's goroutine ([Executor.Run],
// [Call]) or fans them out across a bounded pool ([Executor.RunAll]). It
// assigns each operation a stable [OperationID], maintains the "current
// operation" that lexically wraps whatever is executing, and notifies a
// [Listener] of start/finish events.
//
// Go has no thread-local storage, so the current operation is carried
// explicitly through a [context.Context] rather than through a per-thread
// slot: [context.WithValue] produces an immutable child, so the save/restore
// discipline the original design relies on falls directly out of ordinary
// Go call/return/defer semantics. See [ManagedContext] and
// [Executor.NewRootContext] for the two ways a caller marks its context as
// belonging to a build's main driver rather than an arbitrary external
// goroutine.
package buildop
