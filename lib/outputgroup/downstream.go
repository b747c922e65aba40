// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outputgroup

// Downstream is the batch event consumer the pipeline feeds — a terminal
// renderer or file logger. Forward and Batch may be called from within the
// pipeline's own locked section; implementations must not call back into
// the pipeline that is invoking them.
type Downstream interface {
	// Forward delivers a single event that either isn't part of any group
	// or was never grouped in the first place.
	Forward(event Event)

	// Batch delivers every event belonging to one group, in arrival order,
	// as a single unit — either because the group just closed or because
	// it was flushed at end of build.
	Batch(events []Event)
}

// DownstreamFunc adapts two plain functions into a [Downstream], for
// consumers that don't need a dedicated type.
type DownstreamFunc struct {
	ForwardFunc func(event Event)
	BatchFunc   func(events []Event)
}

func (d DownstreamFunc) Forward(event Event)  { d.ForwardFunc(event) }
func (d DownstreamFunc) Batch(events []Event) { d.BatchFunc(events) }

// Tee fans every call out to each of downstreams in order, so a single
// pipeline can drive a terminal renderer and a log segment writer at once.
func Tee(downstreams ...Downstream) Downstream {
	return teeDownstream{downstreams}
}

type teeDownstream struct {
	downstreams []Downstream
}

func (t teeDownstream) Forward(event Event) {
	for _, d := range t.downstreams {
		d.Forward(event)
	}
}

func (t teeDownstream) Batch(events []Event) {
	for _, d := range t.downstreams {
		d.Batch(events)
	}
}
