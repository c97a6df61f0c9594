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

	"go.uber.org/zap"

	"github.com/jayo-projects/jayo/logging"
)

// idleShutdown is how long the watchdog goroutine waits on an empty queue
// before exiting, mirroring common/socket/ttlcache.go's gc() goroutine: no
// point keeping a goroutine parked forever once nothing is being watched.
const idleShutdown = 30 * time.Second

const (
	statePending int8 = iota
	stateFired
	stateExited
)

// Node is a single registered deadline, returned by AsyncTimeout.Enter.
type Node struct {
	noop     bool
	expiry   time.Time
	callback func()
	state    int8
	prev     *Node
	next     *Node
}

// Exit cancels n's watch if it hasn't already fired, reporting whether it
// had already fired by the time Exit ran (spec.md §8 "timeout fires at most
// once" / "Exit after fire reports fired=true without double-invoking the
// callback").
func (n *Node) Exit() (fired bool) {
	if n == nil || n.noop {
		return false
	}
	wd := defaultWatchdog
	wd.mu.Lock()
	defer wd.mu.Unlock()
	switch n.state {
	case stateFired:
		return true
	case statePending:
		wd.unlink(n)
		n.state = stateExited
		return false
	default:
		return false
	}
}

// watchdog is a process-wide, deadline-ordered list of pending Nodes
// serviced by a single lazily-started goroutine. Grounded on
// common/socket/ttlcache.go's background-goroutine-with-done-channel shape,
// adapted from a fixed ticker to a timer reset to the current head's expiry.
type watchdog struct {
	mu      sync.Mutex
	head    *Node
	wake    chan struct{}
	running bool

	metrics *watchdogMetrics
}

var defaultWatchdog = newWatchdog(nil)

func newWatchdog(metrics *watchdogMetrics) *watchdog {
	if metrics == nil {
		metrics = newWatchdogMetrics(nil)
	}
	return &watchdog{wake: make(chan struct{}, 1), metrics: metrics}
}

// linkSorted inserts n into the list ordered by ascending expiry. Caller
// holds wd.mu.
func (wd *watchdog) linkSorted(n *Node) {
	if wd.head == nil || n.expiry.Before(wd.head.expiry) {
		n.next = wd.head
		if wd.head != nil {
			wd.head.prev = n
		}
		n.prev = nil
		wd.head = n
		return
	}
	cur := wd.head
	for cur.next != nil && !n.expiry.Before(cur.next.expiry) {
		cur = cur.next
	}
	n.next = cur.next
	n.prev = cur
	if cur.next != nil {
		cur.next.prev = n
	}
	cur.next = n
}

// unlink removes n from the list. Caller holds wd.mu. Safe to call even if n
// is no longer linked (e.g. was never inserted, or already removed).
func (wd *watchdog) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if wd.head == n {
		wd.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev, n.next = nil, nil
}

func (wd *watchdog) insert(n *Node) {
	wd.mu.Lock()
	wd.linkSorted(n)
	becameHead := wd.head == n
	startNeeded := !wd.running
	if startNeeded {
		wd.running = true
	}
	wd.mu.Unlock()

	if startNeeded {
		go wd.run()
	}
	if becameHead {
		wd.poke()
	}
}

func (wd *watchdog) poke() {
	select {
	case wd.wake <- struct{}{}:
	default:
	}
}

func (wd *watchdog) run() {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("cancel: watchdog goroutine panicked", zap.Any("panic", r))
			wd.mu.Lock()
			wd.running = false
			wd.mu.Unlock()
		}
	}()

	for {
		wd.mu.Lock()
		head := wd.head
		if head == nil {
			wd.mu.Unlock()
			select {
			case <-wd.wake:
				continue
			case <-time.After(idleShutdown):
				wd.mu.Lock()
				if wd.head == nil {
					wd.running = false
					wd.mu.Unlock()
					return
				}
				wd.mu.Unlock()
				continue
			}
		}
		wait := time.Until(head.expiry)
		wd.mu.Unlock()

		if wait <= 0 {
			wd.fire(head)
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			wd.fire(head)
		case <-wd.wake:
			timer.Stop()
		}
	}
}

func (wd *watchdog) fire(n *Node) {
	wd.mu.Lock()
	if n.state != statePending || wd.head != n {
		wd.mu.Unlock()
		return
	}
	wd.unlink(n)
	n.state = stateFired
	wd.mu.Unlock()

	wd.metrics.fired.Inc()
	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.L().Error("cancel: timeout callback panicked", zap.Any("panic", r))
			}
		}()
		n.callback()
	}()
}
