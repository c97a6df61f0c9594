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

// AsyncTimeout is an opaque token a single subsystem (a Reader, a Writer, a
// connection) owns across its lifetime. Each blocking operation brackets
// itself with Enter/Exit; between those calls the watchdog may invoke
// onFire exactly once, which the subsystem uses to interrupt whatever it is
// blocked on (closing a socket, cancelling a context, etc).
type AsyncTimeout struct {
	onFire func()

	mu      sync.Mutex
	entered bool
}

// NewAsyncTimeout builds an AsyncTimeout whose watchdog-fired callback is
// onFire. onFire must not block and must be safe to call from the watchdog
// goroutine.
func NewAsyncTimeout(onFire func()) *AsyncTimeout {
	return &AsyncTimeout{onFire: onFire}
}

// Enter computes the effective deadline for the upcoming blocking operation
// as the minimum of: scope's effective deadline (if any), and a default
// timeout of defaultNanos (if > 0) — or, when defaultNanos is 0, the
// nearest ancestor-defined default timeout on scope. If neither yields a
// deadline, Enter returns a no-op Node whose Exit always reports
// fired=false.
//
// Enter fails with a ProgrammingError if called again before the Node from
// a previous Enter on this same AsyncTimeout has been Exited or has fired
// (firing clears the entered flag, see fire) — timeouts are
// not reentrant, matching the teacher's one-watcher-per-connection
// invariant in common/socket/ttlcache.go.
func (t *AsyncTimeout) Enter(scope *Scope, defaultNanos int64) (*Node, error) {
	return t.EnterAt(scope, defaultNanos, time.Time{})
}

// EnterAt is Enter with an additional explicit per-call deadline, combined
// with the same minimum-of rule.
func (t *AsyncTimeout) EnterAt(scope *Scope, defaultNanos int64, explicit time.Time) (*Node, error) {
	if defaultNanos < 0 {
		return nil, newProgrammingError("negative default timeout")
	}

	t.mu.Lock()
	if t.entered {
		t.mu.Unlock()
		return nil, newProgrammingError("Enter called before a prior Node was Exited")
	}
	t.entered = true
	t.mu.Unlock()

	deadline, ok := t.effectiveDeadline(scope, defaultNanos, explicit)
	if !ok {
		return &Node{noop: true}, nil
	}

	n := &Node{expiry: deadline, callback: t.fire}
	defaultWatchdog.insert(n)
	return n, nil
}

// fire clears entered (so a subsequent Enter is legal) and then forwards to
// the subsystem-supplied callback.
func (t *AsyncTimeout) fire() {
	t.mu.Lock()
	t.entered = false
	t.mu.Unlock()
	if t.onFire != nil {
		t.onFire()
	}
}

// ExitNode releases Node n, clearing the entered flag so a subsequent Enter
// is legal, and reports whether n had already fired.
func (t *AsyncTimeout) ExitNode(n *Node) (fired bool) {
	fired = n.Exit()
	if !fired {
		t.mu.Lock()
		t.entered = false
		t.mu.Unlock()
	}
	return fired
}

func (t *AsyncTimeout) effectiveDeadline(scope *Scope, defaultNanos int64, explicit time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(d time.Time) {
		if d.IsZero() {
			return
		}
		if !found || d.Before(best) {
			best, found = d, true
		}
	}

	if scope != nil {
		if d, ok := scope.EffectiveDeadline(); ok {
			consider(d)
		}
	}
	consider(explicit)

	eff := defaultNanos
	if eff == 0 && scope != nil {
		eff = int64(scope.defaultTimeoutFor())
	}
	if eff > 0 {
		consider(time.Now().Add(time.Duration(eff)))
	}

	return best, found
}
