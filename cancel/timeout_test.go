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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncTimeoutNoopWhenNoDeadline(t *testing.T) {
	var fired int32
	to := NewAsyncTimeout(func() { atomic.AddInt32(&fired, 1) })

	n, err := to.Enter(nil, 0)
	require.NoError(t, err)
	assert.False(t, to.ExitNode(n))
	assert.Zero(t, atomic.LoadInt32(&fired))
}

func TestAsyncTimeoutFiresOnce(t *testing.T) {
	var fired int32
	done := make(chan struct{})
	to := NewAsyncTimeout(func() {
		atomic.AddInt32(&fired, 1)
		close(done)
	})

	n, err := to.Enter(nil, int64(10*time.Millisecond))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	assert.True(t, to.ExitNode(n), "Exit after fire must report fired=true")
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestAsyncTimeoutExitBeforeFireCancelsIt(t *testing.T) {
	var fired int32
	to := NewAsyncTimeout(func() { atomic.AddInt32(&fired, 1) })

	n, err := to.Enter(nil, int64(50*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, to.ExitNode(n))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&fired), "Exit before expiry must prevent the callback from ever running")
}

func TestAsyncTimeoutRejectsOverlappingEnter(t *testing.T) {
	to := NewAsyncTimeout(func() {})
	n, err := to.Enter(nil, int64(time.Second))
	require.NoError(t, err)

	_, err = to.Enter(nil, int64(time.Second))
	var progErr *ProgrammingError
	assert.ErrorAs(t, err, &progErr)

	to.ExitNode(n)
}

func TestAsyncTimeoutRejectsNegativeDefault(t *testing.T) {
	to := NewAsyncTimeout(func() {})
	_, err := to.Enter(nil, -1)
	var progErr *ProgrammingError
	assert.ErrorAs(t, err, &progErr)
}

// TestAsyncTimeoutHonorsScopeDeadline exercises spec.md §8's "nested
// deadline is the minimum" property: a tight Scope deadline must fire
// before a generous per-call default.
func TestAsyncTimeoutHonorsScopeDeadline(t *testing.T) {
	done := make(chan struct{})
	to := NewAsyncTimeout(func() { close(done) })

	err := Run(time.Now().Add(20*time.Millisecond), func(s *Scope) error {
		n, enterErr := to.Enter(s, int64(time.Hour))
		require.NoError(t, enterErr)
		defer to.ExitNode(n)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scope deadline never fired the timeout")
		}
		return nil
	})
	// The scope's own deadline has necessarily passed by the time body
	// returns (the watchdog fired because of it), so Run reports Cancelled.
	assert.ErrorIs(t, err, Cancelled)
}
