/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package frame deduplicates redraw requests: any number of Request calls
// between two frames results in a single callback.
package frame

import "sync"

// Scheduler accepts redraw requests.
type Scheduler interface {
	Request()
}

// Coalescer is a dirty flag in front of a callback. The host calls Flush
// once per frame (or hands Request a post function via NewPosting).
type Coalescer struct {
	mu      sync.Mutex
	dirty   bool
	fn      func()
	post    func(func())
	flushes int
}

// New returns a coalescer that runs fn on Flush when dirty.
func New(fn func()) *Coalescer { return &Coalescer{fn: fn} }

// NewPosting returns a coalescer that hands a single flush to post on the
// first Request of each frame, the way a host would queue an animation
// frame callback.
func NewPosting(fn func(), post func(func())) *Coalescer {
	return &Coalescer{fn: fn, post: post}
}

// Request marks the coalescer dirty. Only the first request after a flush
// schedules work.
func (c *Coalescer) Request() {
	c.mu.Lock()
	if c.dirty {
		c.mu.Unlock()
		return
	}
	c.dirty = true
	post := c.post
	c.mu.Unlock()
	if post != nil {
		post(func() { c.Flush() })
	}
}

// Flush runs the callback if a request is pending. It reports whether it ran.
func (c *Coalescer) Flush() bool {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return false
	}
	c.dirty = false
	c.flushes++
	fn := c.fn
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

func (c *Coalescer) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Flushes counts callbacks run so far.
func (c *Coalescer) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Nop discards requests.
type Nop struct{}

func (Nop) Request() {}
