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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeCancelPropagatesToChildren(t *testing.T) {
	var child *Scope
	err := Run(time.Time{}, func(root *Scope) error {
		return root.Run(time.Time{}, func(c *Scope) error {
			child = c
			root.Cancel(nil)
			return nil
		})
	})
	require.ErrorIs(t, err, Cancelled)
	assert.True(t, child.IsCancelled(), "cancelling the parent must be visible from the child")
}

func TestScopeCancelIsMonotonic(t *testing.T) {
	s := &Scope{}
	first := errNamed("first")
	second := errNamed("second")
	s.Cancel(first)
	s.Cancel(second)
	assert.Same(t, first, s.Cause(), "a later Cancel must not override the first cause")
}

func TestScopeDeadlineExpiryCancels(t *testing.T) {
	s := &Scope{deadline: time.Now().Add(-time.Millisecond)}
	assert.True(t, s.IsCancelled())
}

func TestScopeEffectiveDeadlineIsNearestAncestor(t *testing.T) {
	far := time.Now().Add(time.Hour)
	near := time.Now().Add(time.Minute)
	parent := &Scope{deadline: far}
	child := &Scope{parent: parent, deadline: near}

	d, ok := child.EffectiveDeadline()
	require.True(t, ok)
	assert.Equal(t, near, d)
}

func TestScopeEffectiveDeadlineWithNoDeadlineOnChild(t *testing.T) {
	far := time.Now().Add(time.Hour)
	parent := &Scope{deadline: far}
	child := &Scope{parent: parent}

	d, ok := child.EffectiveDeadline()
	require.True(t, ok)
	assert.Equal(t, far, d)
}

type namedErr struct{ s string }

func (e *namedErr) Error() string { return e.s }

func errNamed(s string) error { return &namedErr{s} }
