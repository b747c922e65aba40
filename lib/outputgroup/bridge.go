// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outputgroup

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/bureau/lib/buildop"
)

// BatchListener adapts a [buildop.Executor]'s started/finished events into
// the pipeline's own event vocabulary, so a build operation's lifecycle
// drives grouping without the executor or its operations knowing the
// pipeline exists. Every build operation gets its own progress operation
// id, minted on Started and released once Finished emits the matching
// ProgressComplete.
type BatchListener struct {
	pipeline *GroupingPipeline

	nextProgressID atomic.Int64

	mu       sync.Mutex
	inFlight map[buildop.OperationID]ProgressOperationID
}

// NewBatchListener returns a [buildop.Listener] that feeds pipeline.
func NewBatchListener(pipeline *GroupingPipeline) *BatchListener {
	return &BatchListener{
		pipeline: pipeline,
		inFlight: make(map[buildop.OperationID]ProgressOperationID),
	}
}

// Started implements [buildop.Listener].
func (b *BatchListener) Started(descriptor buildop.Descriptor, event buildop.StartEvent) {
	progressID := ProgressOperationID(b.nextProgressID.Add(1))

	b.mu.Lock()
	b.inFlight[descriptor.ID] = progressID
	b.mu.Unlock()

	id := descriptor.ID
	b.pipeline.OnEvent(ProgressStartEvent{
		ProgressOperationID:    progressID,
		Timestamp:              event.StartTime,
		Category:               "build",
		Description:            descriptor.DisplayName,
		BuildOperationID:       &id,
		ParentBuildOperationID: descriptor.ParentID,
		OperationType:          descriptor.Type,
	})
}

// Finished implements [buildop.Listener]. A failed operation contributes a
// log line (so the failure is visible in its group's batch) before the
// completing event closes or forwards it.
func (b *BatchListener) Finished(descriptor buildop.Descriptor, event buildop.FinishEvent) {
	b.mu.Lock()
	progressID, ok := b.inFlight[descriptor.ID]
	delete(b.inFlight, descriptor.ID)
	b.mu.Unlock()
	if !ok {
		return
	}

	if event.Failure != nil {
		id := descriptor.ID
		b.pipeline.OnEvent(LogEvent{
			Timestamp:        event.EndTime,
			Category:         "build",
			Level:            LevelError,
			Message:          fmt.Sprintf("FAILED: %v", event.Failure),
			BuildOperationID: &id,
		})
	}

	b.pipeline.OnEvent(ProgressCompleteEvent{
		ProgressOperationID: progressID,
		Timestamp:           event.EndTime,
		Category:            "build",
		Description:         descriptor.DisplayName,
	})
}
