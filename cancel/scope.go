// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cancel

import (
	"sync"
	"time"
)

// Scope is a node in a cancellation tree (spec.md §4.4). Each Scope carries
// an optional absolute deadline and an optional default timeout used by
// operations inside it that don't supply their own. Cancelling a Scope
// cancels it and, implicitly, every Scope nested under it: IsCancelled walks
// up to the root rather than pushing state down, so cancellation is visible
// to descendants the instant the ancestor is cancelled, with no fan-out.
//
// Go has no per-goroutine ambient storage, so unlike a thread-local
// implementation, the active Scope is threaded explicitly: Run hands the
// child Scope to its body, and callers pass that Scope on to whatever they
// call next (AsyncTimeout.Enter takes it as an explicit parameter).
type Scope struct {
	parent         *Scope
	deadline       time.Time // zero means "no deadline of its own"
	defaultTimeout time.Duration

	mu        sync.Mutex
	cancelled bool
	cause     error
}

// Run opens a root Scope with the given deadline (zero Time means none) and
// runs body with it, returning body's error. If the Scope was cancelled
// while body ran and body itself didn't already return a more specific
// error, Run surfaces Cancelled.
func Run(deadline time.Time, body func(*Scope) error) error {
	return (*Scope)(nil).Run(deadline, body)
}

// Run opens a Scope nested under s (s may be nil, meaning "new root") and
// runs body with it.
func (s *Scope) Run(deadline time.Time, body func(*Scope) error) error {
	child := &Scope{parent: s, deadline: deadline}
	err := body(child)
	if err == nil && child.IsCancelled() {
		return Cancelled
	}
	return err
}

// WithDefaultTimeout sets the duration AsyncTimeout.Enter falls back to when
// its caller doesn't supply a defaultNanos of its own. Must be called before
// any concurrent use of the Scope.
func (s *Scope) WithDefaultTimeout(d time.Duration) *Scope {
	s.defaultTimeout = d
	return s
}

// Cancel marks s (and so, implicitly, every Scope nested under it) as
// cancelled. Cancellation is monotonic: once cancelled, a Scope cannot be
// un-cancelled, and a second Cancel call is a no-op that keeps the first
// cause.
func (s *Scope) Cancel(cause error) {
	if s == nil {
		return
	}
	if cause == nil {
		cause = Cancelled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled {
		s.cancelled = true
		s.cause = cause
	}
}

// IsCancelled reports whether s or any ancestor of s has been cancelled, or
// the deadline of s or of any ancestor has passed.
func (s *Scope) IsCancelled() bool {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cancelled := cur.cancelled
		cur.mu.Unlock()
		if cancelled {
			return true
		}
		if !cur.deadline.IsZero() && !time.Now().Before(cur.deadline) {
			return true
		}
	}
	return false
}

// Cause returns the cause recorded by Cancel on s or, failing that, on its
// nearest cancelled ancestor, or nil if none of them was cancelled through
// Cancel. A deadline expiry records no cause, so Cause stays nil then.
func (s *Scope) Cause() error {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cancelled, cause := cur.cancelled, cur.cause
		cur.mu.Unlock()
		if cancelled {
			return cause
		}
	}
	return nil
}

// EffectiveDeadline returns the nearest (soonest) deadline in effect across
// s and all of its ancestors, if any.
func (s *Scope) EffectiveDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for cur := s; cur != nil; cur = cur.parent {
		if cur.deadline.IsZero() {
			continue
		}
		if !found || cur.deadline.Before(best) {
			best, found = cur.deadline, true
		}
	}
	return best, found
}

// defaultTimeoutFor returns the nearest ancestor-defined default timeout,
// searching s outward, or 0 if none of them set one.
func (s *Scope) defaultTimeoutFor() time.Duration {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.defaultTimeout > 0 {
			return cur.defaultTimeout
		}
	}
	return 0
}
