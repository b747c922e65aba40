// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import "context"

// FuncOperation adapts a plain function into a [RunnableOperation], for the
// common case of a one-off operation that doesn't warrant its own named
// type.
type FuncOperation struct {
	Builder *DescriptorBuilder
	Body    func(ctx context.Context, opCtx *Context) error
}

// NewFuncOperation returns a FuncOperation with the given display name.
// Chain WithProgressDisplayName/OfType/WithParent on the returned
// descriptor builder via [FuncOperation.Builder] before running it.
func NewFuncOperation(displayName string, body func(ctx context.Context, opCtx *Context) error) *FuncOperation {
	return &FuncOperation{Builder: DisplayName(displayName), Body: body}
}

func (f *FuncOperation) Description() *DescriptorBuilder { return f.Builder }

func (f *FuncOperation) Run(ctx context.Context, opCtx *Context) error {
	return f.Body(ctx, opCtx)
}
