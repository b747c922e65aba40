// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

// ProgressLogger is the out-of-scope progress-logger sink named in the
// executor's design: a scope opened for the duration of an operation that
// declared a progress display name, closed when the operation's body
// returns. The executor only opens one when
// [Descriptor.ProgressDisplayName] is non-empty.
type ProgressLogger interface {
	Completed()
}

// ProgressLoggerFactory creates a [ProgressLogger] scope for an operation.
// An Executor constructed with a nil factory never opens progress scopes,
// regardless of what individual descriptors request.
type ProgressLoggerFactory interface {
	NewOperation(descriptor Descriptor) ProgressLogger
}
