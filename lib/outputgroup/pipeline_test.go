// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outputgroup

import (
	"testing"
	"time"

	"github.com/bureau-foundation/bureau/lib/buildop"
)

type recordingDownstream struct {
	forwarded []Event
	batches   [][]Event
}

func (d *recordingDownstream) Forward(event Event)  { d.forwarded = append(d.forwarded, event) }
func (d *recordingDownstream) Batch(events []Event) { d.batches = append(d.batches, events) }

func opID(n int64) *buildop.OperationID {
	id := buildop.OperationID(n)
	return &id
}

// S5: a task with one warning log line closes into a single five-event
// batch: header, start, warn, complete, blank trailer.
func TestGroupingTask(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	start := ProgressStartEvent{
		ProgressOperationID: 10,
		Timestamp:           time.Unix(0, 0),
		Category:            "org.example",
		Description:         "Execute :foo",
		BuildOperationID:    opID(10),
		OperationType:       buildop.Task,
	}
	warn := LogEvent{Timestamp: time.Unix(1, 0), Category: "org.example", Level: LevelWarn, Message: "careful", BuildOperationID: opID(10)}
	complete := ProgressCompleteEvent{ProgressOperationID: 10, Timestamp: time.Unix(2, 0)}

	pipeline.OnEvent(start)
	pipeline.OnEvent(warn)
	pipeline.OnEvent(complete)

	if len(downstream.forwarded) != 0 {
		t.Fatalf("forwarded = %d events, want 0", len(downstream.forwarded))
	}
	if len(downstream.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(downstream.batches))
	}
	batch := downstream.batches[0]
	if len(batch) != 5 {
		t.Fatalf("batch length = %d, want 5", len(batch))
	}
	header, ok := batch[0].(LogEvent)
	if !ok || header.Message != "[Execute :foo]" {
		t.Fatalf("batch[0] = %#v, want header", batch[0])
	}
	if _, ok := batch[1].(ProgressStartEvent); !ok {
		t.Fatalf("batch[1] = %#v, want the start event", batch[1])
	}
	if gotWarn, ok := batch[2].(LogEvent); !ok || gotWarn.Message != "careful" {
		t.Fatalf("batch[2] = %#v, want the warn", batch[2])
	}
	if _, ok := batch[3].(ProgressCompleteEvent); !ok {
		t.Fatalf("batch[3] = %#v, want the complete event", batch[3])
	}
	if trailer, ok := batch[4].(LogEvent); !ok || trailer.Message != "" {
		t.Fatalf("batch[4] = %#v, want a blank trailer", batch[4])
	}
}

// S6: a subtask nested under a task is grouped under the task, preserving
// the warn's position.
func TestGroupingNestedChild(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	taskStart := ProgressStartEvent{
		ProgressOperationID: 10,
		Timestamp:           time.Unix(0, 0),
		Description:         "Execute :foo",
		BuildOperationID:    opID(10),
		OperationType:       buildop.Task,
	}
	subtaskStart := ProgressStartEvent{
		ProgressOperationID:    20,
		Timestamp:              time.Unix(1, 0),
		Description:            "Resolve dependencies",
		BuildOperationID:       opID(20),
		ParentBuildOperationID: opID(10),
		OperationType:          buildop.Uncategorized,
	}
	warn := LogEvent{Timestamp: time.Unix(2, 0), Level: LevelWarn, Message: "careful", BuildOperationID: opID(20)}
	subtaskComplete := ProgressCompleteEvent{ProgressOperationID: 20, Timestamp: time.Unix(3, 0)}
	taskComplete := ProgressCompleteEvent{ProgressOperationID: 10, Timestamp: time.Unix(4, 0)}

	pipeline.OnEvent(taskStart)
	pipeline.OnEvent(subtaskStart)
	pipeline.OnEvent(warn)
	pipeline.OnEvent(subtaskComplete)
	pipeline.OnEvent(taskComplete)

	if len(downstream.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(downstream.batches))
	}
	batch := downstream.batches[0]
	if len(batch) != 7 {
		t.Fatalf("batch length = %d, want 7", len(batch))
	}
	if gotWarn, ok := batch[3].(LogEvent); !ok || gotWarn.Message != "careful" {
		t.Fatalf("batch[3] = %#v, want the warn in its original position", batch[3])
	}
}

// S7: a task with no logs in between start and complete produces no
// downstream batch at all.
func TestGroupingEmptyGroupDropped(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	pipeline.OnEvent(ProgressStartEvent{
		ProgressOperationID: 10,
		Description:         "Execute :foo",
		BuildOperationID:    opID(10),
		OperationType:       buildop.Task,
	})
	pipeline.OnEvent(ProgressCompleteEvent{ProgressOperationID: 10})

	if len(downstream.batches) != 0 {
		t.Fatalf("batches = %d, want 0", len(downstream.batches))
	}
	if len(downstream.forwarded) != 0 {
		t.Fatalf("forwarded = %d, want 0", len(downstream.forwarded))
	}
}

// S8: a task left open at end-of-build is flushed, then EndOutput is
// forwarded separately.
func TestGroupingEndOfBuildFlush(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	pipeline.OnEvent(ProgressStartEvent{
		ProgressOperationID: 10,
		Description:         "Execute :foo",
		BuildOperationID:    opID(10),
		OperationType:       buildop.Task,
	})
	pipeline.OnEvent(LogEvent{Level: LevelLifecycle, Message: "building", BuildOperationID: opID(10)})
	pipeline.OnEvent(EndOutputEvent{})

	if len(downstream.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(downstream.batches))
	}
	if len(downstream.forwarded) != 1 {
		t.Fatalf("forwarded = %d, want 1", len(downstream.forwarded))
	}
	if _, ok := downstream.forwarded[0].(EndOutputEvent); !ok {
		t.Fatalf("forwarded[0] = %#v, want EndOutputEvent", downstream.forwarded[0])
	}

	batch := downstream.batches[0]
	foundLog := false
	for _, event := range batch {
		if log, ok := event.(LogEvent); ok && log.Message == "building" {
			foundLog = true
		}
	}
	if !foundLog {
		t.Fatalf("batch %#v missing the buffered log line", batch)
	}
}

func TestUngroupedEventsForwardImmediately(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	event := LogEvent{Message: "no group"}
	pipeline.OnEvent(event)

	if len(downstream.forwarded) != 1 {
		t.Fatalf("forwarded = %d, want 1", len(downstream.forwarded))
	}
	if len(downstream.batches) != 0 {
		t.Fatalf("batches = %d, want 0", len(downstream.batches))
	}
}

func TestProgressWithoutKnownScopeForwards(t *testing.T) {
	downstream := &recordingDownstream{}
	pipeline := NewGroupingPipeline(downstream, nil)

	pipeline.OnEvent(ProgressEvent{ProgressOperationID: 99, Status: "downloading"})

	if len(downstream.forwarded) != 1 {
		t.Fatalf("forwarded = %d, want 1", len(downstream.forwarded))
	}
}
