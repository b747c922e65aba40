// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildrender prints operation lifecycle events and
// outputgroup.GroupingPipeline batches to a terminal: a transient spinner
// line for operations still in flight, and styled, grouped blocks once a
// task's output is ready to render as a whole. It is a concrete home for
// the corpus's terminal-styling stack, downstream of both the executor's
// and the pipeline's own invariants.
package buildrender
