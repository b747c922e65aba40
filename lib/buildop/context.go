// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildop

import "sync"

// Context is handed to an operation's body. The body may call Failed and/or
// SetResult at most once each; both are observed by the listener through
// the subsequent finished event. Calling either more than once keeps only
// the most recent value — the executor does not enforce the "at most once"
// contract, it is a discipline the operation body must follow.
type Context struct {
	mu      sync.Mutex
	failure error
	result  any
}

// Failed records the operation's failure. The executor calls this itself
// when the operation's body returns a non-nil error; operation bodies that
// want to report a result alongside a recoverable problem can call it
// directly instead of returning an error.
func (c *Context) Failed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

// SetResult records the operation's result, surfaced to the listener's
// finished event.
func (c *Context) SetResult(result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
}

// Failure returns the recorded failure, if any.
func (c *Context) Failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Result returns the recorded result, if any.
func (c *Context) Result() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}
