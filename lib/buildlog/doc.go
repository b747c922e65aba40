// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildlog persists batches from an outputgroup.GroupingPipeline as
// compressed, content-addressed log segments — a concrete home for the
// corpus's zstd and BLAKE3 stack, downstream of the pipeline's core
// invariants rather than part of them.
package buildlog
