// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

// Type categorizes an operation for the benefit of downstream consumers —
// most importantly the grouping output pipeline in package outputgroup,
// which buffers descendant output beneath TASK and ConfigureProject
// operations.
type Type string

const (
	// Task is a build task execution.
	Task Type = "TASK"
	// ConfigureProject is a project configuration step.
	ConfigureProject Type = "CONFIGURE_PROJECT"
	// Uncategorized is the default for operations that don't trigger
	// output grouping.
	Uncategorized Type = "UNCATEGORIZED"
)

// Descriptor is the immutable metadata of a build operation: its identity,
// its parent's identity (if any), its names, and its type. A Descriptor is
// built once by the executor at operation start and never mutated.
type Descriptor struct {
	ID                  OperationID
	ParentID            *OperationID
	DisplayName         string
	ProgressDisplayName string
	Type                Type
}

// DescriptorBuilder accumulates the metadata an operation wants to report
// about itself before the executor assigns it an id and resolves its
// parent. Obtain one from [DisplayName] and chain the With* methods.
type DescriptorBuilder struct {
	displayName          string
	progressDisplayName  string
	operationType        Type
	parentOverride       *State
}

// DisplayName starts a new descriptor builder with the given human-readable
// name, defaulting to [Uncategorized].
func DisplayName(name string) *DescriptorBuilder {
	return &DescriptorBuilder{displayName: name, operationType: Uncategorized}
}

// WithProgressDisplayName sets the short name shown by a progress logger
// while the operation is running. Operations that never report progress
// should leave this unset — the executor only opens a progress-logger scope
// when it is non-empty.
func (b *DescriptorBuilder) WithProgressDisplayName(name string) *DescriptorBuilder {
	b.progressDisplayName = name
	return b
}

// OfType sets the operation's [Type]. TASK and CONFIGURE_PROJECT trigger
// output grouping; everything else does not.
func (b *DescriptorBuilder) OfType(t Type) *DescriptorBuilder {
	b.operationType = t
	return b
}

// WithParent overrides the parent resolved from the calling context. Use
// this when an operation's logical parent is not the operation lexically
// running it — for example, a queued job whose parent is a different
// branch of the operation tree.
func (b *DescriptorBuilder) WithParent(parent *State) *DescriptorBuilder {
	b.parentOverride = parent
	return b
}

// build finalizes the descriptor with the id and resolved parent id the
// executor assigned. Unexported: only the executor may mint ids.
func (b *DescriptorBuilder) build(id OperationID, parentID *OperationID) Descriptor {
	return Descriptor{
		ID:                  id,
		ParentID:            parentID,
		DisplayName:         b.displayName,
		ProgressDisplayName: b.progressDisplayName,
		Type:                b.operationType,
	}
}
