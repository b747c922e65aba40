// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outputgroup

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/bureau/lib/buildop"
)

// GroupingPipeline consumes events in strict arrival order under a single
// mutex, buffering everything beneath an open TASK/CONFIGURE_PROJECT
// operation until that operation completes, and forwarding everything else
// immediately. A single coarse mutex is adequate here — events are small
// and the downstream consumer is the bottleneck, not pipeline bookkeeping.
type GroupingPipeline struct {
	downstream Downstream
	logger     *slog.Logger

	mu sync.Mutex

	// forest maps a build operation id to its parent, nil if it has none.
	// Populated from every ProgressStart event that carries a build
	// operation id.
	forest map[buildop.OperationID]*buildop.OperationID

	// progressToBuildOp maps a progress scope to the build operation id it
	// was opened under — Progress and ProgressComplete events only carry
	// the former.
	progressToBuildOp map[ProgressOperationID]buildop.OperationID

	// buffers holds the events accrued so far for every still-open group,
	// keyed by the grouping operation's build operation id.
	buffers map[buildop.OperationID][]Event

	// groupOrder preserves insertion order for flush-all, independent of
	// Go's unordered map iteration.
	groupOrder []buildop.OperationID

	// lastRenderedOpID avoids a redundant blank separator when the same
	// group is the last thing rendered and is then flushed again.
	lastRenderedOpID *buildop.OperationID
}

// NewGroupingPipeline returns a pipeline that forwards ungrouped events and
// emits batches to downstream. logger may be nil.
func NewGroupingPipeline(downstream Downstream, logger *slog.Logger) *GroupingPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupingPipeline{
		downstream:        downstream,
		logger:            logger,
		forest:            make(map[buildop.OperationID]*buildop.OperationID),
		progressToBuildOp: make(map[ProgressOperationID]buildop.OperationID),
		buffers:           make(map[buildop.OperationID][]Event),
	}
}

// OnEvent dispatches a single event according to its kind. It is safe to
// call from any goroutine.
func (p *GroupingPipeline) OnEvent(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case EndOutputEvent:
		p.flushAllLocked()
		p.downstream.Forward(e)
	case ProgressStartEvent:
		p.onStartLocked(e)
	case ProgressEvent:
		p.onProgressLocked(e)
	case ProgressCompleteEvent:
		p.onCompleteLocked(e)
	case LogEvent:
		p.groupOrForwardLocked(e.BuildOperationID, e)
	case StyledTextOutputEvent:
		p.groupOrForwardLocked(e.BuildOperationID, e)
	default:
		p.downstream.Forward(e)
	}
}

func (p *GroupingPipeline) onStartLocked(event ProgressStartEvent) {
	if event.BuildOperationID == nil {
		p.downstream.Forward(event)
		return
	}

	buildOpID := *event.BuildOperationID
	p.forest[buildOpID] = event.ParentBuildOperationID
	p.progressToBuildOp[event.ProgressOperationID] = buildOpID

	if event.OperationType == buildop.Task || event.OperationType == buildop.ConfigureProject {
		header := LogEvent{
			Timestamp: event.Timestamp,
			Category:  event.Category,
			Level:     LevelQuiet,
			Message:   fmt.Sprintf("[%s]", event.Description),
		}
		p.openGroupLocked(buildOpID, []Event{header, event})
		return
	}

	p.groupOrForwardLocked(&buildOpID, event)
}

func (p *GroupingPipeline) onProgressLocked(event ProgressEvent) {
	buildOpID, ok := p.progressToBuildOp[event.ProgressOperationID]
	if !ok {
		p.downstream.Forward(event)
		return
	}
	p.groupOrForwardLocked(&buildOpID, event)
}

func (p *GroupingPipeline) onCompleteLocked(event ProgressCompleteEvent) {
	buildOpID, ok := p.progressToBuildOp[event.ProgressOperationID]
	if !ok {
		p.downstream.Forward(event)
		return
	}

	if _, isGroupKey := p.buffers[buildOpID]; isGroupKey {
		p.closeGroupLocked(buildOpID, event)
		return
	}

	if groupID, ok := p.groupIDLocked(buildOpID); ok {
		p.buffers[groupID] = append(p.buffers[groupID], event)
	} else {
		p.downstream.Forward(event)
	}
}

// groupIDLocked walks upward from id through the forest, returning the
// first ancestor (including id itself) that keys an open group. The forest
// is assumed shallow; a malformed event stream with a cycle would loop
// forever, which this implementation does not guard against, matching the
// upstream assumption that build operation ids never form a cycle.
func (p *GroupingPipeline) groupIDLocked(id buildop.OperationID) (buildop.OperationID, bool) {
	current := id
	for {
		if _, ok := p.buffers[current]; ok {
			return current, true
		}
		parent, ok := p.forest[current]
		if !ok || parent == nil {
			return 0, false
		}
		current = *parent
	}
}

func (p *GroupingPipeline) groupOrForwardLocked(id *buildop.OperationID, event Event) {
	if id == nil {
		p.downstream.Forward(event)
		return
	}
	if groupID, ok := p.groupIDLocked(*id); ok {
		p.buffers[groupID] = append(p.buffers[groupID], event)
		return
	}
	p.downstream.Forward(event)
}

func (p *GroupingPipeline) openGroupLocked(id buildop.OperationID, initial []Event) {
	if _, alreadyOpen := p.buffers[id]; alreadyOpen {
		p.logger.Warn("build operation id reused for a new group while the previous one is still open", "id", id)
	}
	p.buffers[id] = initial
	p.groupOrder = append(p.groupOrder, id)
}

// closeGroupLocked removes the group unconditionally. If its content is
// not worth rendering (the renderability test), it is dropped silently —
// no downstream call at all. Otherwise the complete event and a trailing
// blank line are appended and the whole buffer goes downstream as one
// batch.
func (p *GroupingPipeline) closeGroupLocked(id buildop.OperationID, complete ProgressCompleteEvent) {
	buffer := p.buffers[id]
	delete(p.buffers, id)

	if !hasRenderableEvents(buffer) {
		return
	}

	blank := LogEvent{Timestamp: complete.Timestamp, Category: complete.Category, Level: LevelQuiet, Message: ""}
	batch := append(buffer, complete, blank)
	p.downstream.Batch(batch)

	closedID := id
	p.lastRenderedOpID = &closedID
}

// flushAllLocked emits every still-open group's buffered content, in the
// order groups were opened, without closing them — a group flushed here
// remains open, reseeded with just its header, so that if it somehow
// receives further content it keeps rendering as a continuation.
func (p *GroupingPipeline) flushAllLocked() {
	for _, id := range p.groupOrder {
		buffer, ok := p.buffers[id]
		if !ok {
			continue // already closed via a ProgressComplete
		}
		if !hasRenderableEvents(buffer) {
			continue
		}

		batch := buffer
		if p.lastRenderedOpID == nil || *p.lastRenderedOpID != id {
			last := buffer[len(buffer)-1]
			batch = append(append([]Event{}, buffer...), blankLike(last))
		}
		p.downstream.Batch(batch)

		header := buffer[0]
		p.buffers[id] = []Event{header}

		flushedID := id
		p.lastRenderedOpID = &flushedID
	}
}

// hasRenderableEvents reports whether any event after the group's header
// (index 0) is a renderable log line rather than progress bookkeeping.
func hasRenderableEvents(events []Event) bool {
	for i, event := range events {
		if i == 0 {
			continue
		}
		if _, ok := event.(renderable); ok {
			return true
		}
	}
	return false
}

// blankLike builds a blank separator line that inherits its timestamp,
// category, and level from the last buffered event, matching whichever
// event kind happens to be last in an open group at flush time.
func blankLike(last Event) Event {
	switch e := last.(type) {
	case LogEvent:
		return LogEvent{Timestamp: e.Timestamp, Category: e.Category, Level: e.Level, Message: ""}
	case StyledTextOutputEvent:
		return LogEvent{Timestamp: e.Timestamp, Category: e.Category, Level: e.Level, Message: ""}
	case ProgressStartEvent:
		return LogEvent{Timestamp: e.Timestamp, Category: e.Category, Level: LevelQuiet, Message: ""}
	case ProgressEvent:
		return LogEvent{Timestamp: e.Timestamp, Category: e.Category, Level: LevelQuiet, Message: ""}
	case ProgressCompleteEvent:
		return LogEvent{Timestamp: e.Timestamp, Category: e.Category, Level: LevelQuiet, Message: ""}
	default:
		return LogEvent{Level: LevelQuiet, Message: ""}
	}
}
