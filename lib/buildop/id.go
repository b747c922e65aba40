// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import "strconv"

// OperationID identifies a build operation uniquely within a single process
// run. Positive ids are minted by a monotonically increasing counter for
// normal operations; negative ids are minted by a separate monotonically
// decreasing counter for synthetic unmanaged-thread operations. Id 0 is
// reserved for the artificial root created by [Executor.NewRootContext].
type OperationID int64

// RootOperationID is the id reserved for the artificial root operation.
const RootOperationID OperationID = 0

func (id OperationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
