// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outputgroup

import (
	"time"

	"github.com/bureau-foundation/bureau/lib/buildop"
)

// ProgressOperationID identifies a progress-reporting scope. It is a
// separate identity space from [buildop.OperationID]: progress events are
// keyed by a ProgressOperationID, while log lines and grouping decisions
// key off the build operation id. ProgressStart is the event that records
// the mapping between the two.
type ProgressOperationID int64

// Level mirrors a log event's severity. Only LogEvent and
// StyledTextOutputEvent carry a meaningful one; progress events leave it
// zero.
type Level string

const (
	LevelDebug     Level = "DEBUG"
	LevelInfo      Level = "INFO"
	LevelLifecycle Level = "LIFECYCLE"
	LevelWarn      Level = "WARN"
	LevelQuiet     Level = "QUIET"
	LevelError     Level = "ERROR"
)

// Event is any message flowing through the pipeline. It is a closed set —
// outputgroup dispatches on the concrete type, not on an open interface —
// so the marker method is unexported.
type Event interface {
	outputEvent()
}

// renderable is implemented by the event kinds that carry user-visible
// text. A buffered group with no renderable event beyond its synthetic
// header is dropped instead of forwarded downstream.
type renderable interface {
	Event
	isRenderable()
}

// EndOutputEvent signals the end of the build's output stream. It triggers
// a flush of every still-open group before being forwarded itself.
type EndOutputEvent struct{}

func (EndOutputEvent) outputEvent() {}

// ProgressStartEvent opens a progress-reporting scope. When it carries a
// build operation id, the pipeline records the operation's place in the
// build-operation forest and, for TASK/CONFIGURE_PROJECT operations, opens
// a new buffered group keyed by that id.
type ProgressStartEvent struct {
	ProgressOperationID       ProgressOperationID
	ParentProgressOperationID *ProgressOperationID
	Timestamp                 time.Time
	Category                  string
	Description               string
	ShortDescription          string
	LoggingHeader             string
	Status                    string

	// BuildOperationID is nil for progress scopes not associated with any
	// build operation (e.g. a download progress bar with no owning task).
	BuildOperationID       *buildop.OperationID
	ParentBuildOperationID *buildop.OperationID
	OperationType          buildop.Type
}

func (ProgressStartEvent) outputEvent() {}

// ProgressEvent reports an update (typically a status string) within an
// already-open progress scope.
type ProgressEvent struct {
	ProgressOperationID ProgressOperationID
	Timestamp           time.Time
	Category            string
	Status              string
}

func (ProgressEvent) outputEvent() {}

// ProgressCompleteEvent closes a progress scope. If the scope's build
// operation id is itself a group key, this closes the group; if it is a
// descendant of an open group, it is appended there; otherwise it is
// forwarded unchanged.
type ProgressCompleteEvent struct {
	ProgressOperationID ProgressOperationID
	Timestamp           time.Time
	Category            string
	Description         string
	Status              string
}

func (ProgressCompleteEvent) outputEvent() {}

// LogEvent is a single rendered log line, optionally tagged with the build
// operation that produced it.
type LogEvent struct {
	Timestamp        time.Time
	Category         string
	Level            Level
	Message          string
	Throwable        error
	BuildOperationID *buildop.OperationID
}

func (LogEvent) outputEvent() {}
func (LogEvent) isRenderable() {}

// StyledTextOutputEvent is a rendered span carrying terminal styling
// information rather than a plain message — e.g. a highlighted command
// echo. Spans is the ordered list of styled fragments making up the line.
type StyledTextOutputEvent struct {
	Timestamp        time.Time
	Category         string
	Level            Level
	Spans            []StyledSpan
	BuildOperationID *buildop.OperationID
}

func (StyledTextOutputEvent) outputEvent() {}
func (StyledTextOutputEvent) isRenderable() {}

// StyledSpan is one run of text sharing a single style within a
// [StyledTextOutputEvent].
type StyledSpan struct {
	Style string
	Text  string
}

// PassthroughEvent carries any other event kind the pipeline does not
// interpret — it is forwarded unchanged, exactly like every other kind the
// grouping rules don't name.
type PassthroughEvent struct {
	Payload any
}

func (PassthroughEvent) outputEvent() {}
