// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package outputgroup reorganizes a stream of progress and log events keyed
// by build operation id so that everything produced beneath a grouping
// operation (a task or project-configuration step) is buffered and emitted
// downstream as one contiguous batch when the group completes, while
// untagged or ungroupable events pass through immediately.
//
// The pipeline shares only the notion of an operation identifier with
// package buildop; it has no dependency on an Executor being involved at
// all — any source of correctly-nested ProgressStart/ProgressComplete
// events can drive it.
package outputgroup
