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

package buffer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/internal/segment"
)

// TestBufferRoundTrip is spec.md §8 property 1.
func TestBufferRoundTrip(t *testing.T) {
	cases := []string{"", "a", "hello, world", strings.Repeat("x", 100_000)}
	for _, s := range cases {
		b := New()
		_, err := b.WriteString(s)
		require.NoError(t, err)
		got, err := b.ReadString(len(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Equal(t, 0, b.Len())
	}
}

func TestBufferReadRequiresEnoughBytes(t *testing.T) {
	b := New()
	_, _ = b.WriteString("ab")
	_, err := b.ReadString(3)
	assert.ErrorIs(t, err, EndOfInput)
}

// TestBufferTransferConservesBytes is spec.md §8 property 2.
func TestBufferTransferConservesBytes(t *testing.T) {
	a := New()
	b := New()
	_, _ = a.WriteString("hello ")
	_, _ = b.WriteString("world")

	b.TransferFrom(a)
	assert.Equal(t, 0, a.Len())

	got, err := b.ReadString(b.Len())
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

// TestBufferCloneIsolation is spec.md §8 property 3 and the S5 scenario.
func TestBufferCloneIsolation(t *testing.T) {
	original := New()
	_, _ = original.WriteString("abc")

	clone := original.Clone()
	_, _ = original.WriteString("de")

	cloneStr, err := clone.ReadString(clone.Len())
	require.NoError(t, err)
	assert.Equal(t, "abc", cloneStr)

	originalStr, err := original.ReadString(original.Len())
	require.NoError(t, err)
	assert.Equal(t, "abcde", originalStr)
}

func TestBufferCloneAcrossManySegments(t *testing.T) {
	payload := strings.Repeat("0123456789", 5000) // several segments worth
	original := New()
	_, _ = original.WriteString(payload)

	clone := original.Clone()
	_, _ = original.WriteString("tail-on-original-only")

	cloneStr, err := clone.ReadString(clone.Len())
	require.NoError(t, err)
	assert.Equal(t, payload, cloneStr)
}

func TestBufferWriteFromBufferExactCount(t *testing.T) {
	src := New()
	_, _ = src.WriteString("hello world")
	dst := New()

	err := dst.WriteFromBuffer(src, 5)
	require.NoError(t, err)

	got, err := dst.ReadString(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	remaining, err := src.ReadString(src.Len())
	require.NoError(t, err)
	assert.Equal(t, " world", remaining)
}

func TestBufferCopyToDoesNotConsume(t *testing.T) {
	src := New()
	_, _ = src.WriteString("0123456789")
	dst := New()

	err := src.CopyTo(dst, 2, 3)
	require.NoError(t, err)

	got, err := dst.ReadString(3)
	require.NoError(t, err)
	assert.Equal(t, "234", got)
	assert.Equal(t, 10, src.Len(), "CopyTo must not consume the source")
}

func TestBufferIndexOf(t *testing.T) {
	b := New()
	_, _ = b.WriteString("hello world")
	assert.Equal(t, 4, b.IndexOf('o', 0, -1))
	assert.Equal(t, 7, b.IndexOf('o', 5, -1))
	assert.Equal(t, -1, b.IndexOf('z', 0, -1))
}

func TestBufferSnapshotDoesNotConsume(t *testing.T) {
	b := New()
	_, _ = b.WriteString("snapshot me")

	bs, err := b.Snapshot(8)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", bs.String())
	assert.Equal(t, 11, b.Len())
}

// TestBufferNoZeroLengthSegmentsRemain is spec.md §8 property 4.
func TestBufferNoZeroLengthSegmentsRemain(t *testing.T) {
	b := New()
	_, _ = b.WriteString(strings.Repeat("a", 20000))
	_, err := b.ReadString(19999)
	require.NoError(t, err)

	if b.head != nil {
		s := b.head
		for {
			assert.NotEqual(t, s.Pos, s.Limit, "drained segment left in chain")
			s = s.Next
			if s == b.head {
				break
			}
		}
	}
}

func TestBufferClearRecyclesSegments(t *testing.T) {
	b := NewWithPool(segment.New(nil))
	_, _ = b.WriteString(strings.Repeat("a", 20000))
	last := b.tail()
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.head)
	assert.Same(t, last, b.pool.Take(b.token), "a cleared segment must be served back by the pool")
}

func TestBufferReadAtMostToAndWriteFromRawAPI(t *testing.T) {
	src := New()
	_, _ = src.WriteString("payload")
	dst := New()

	n, err := src.ReadAtMostTo(dst, 1024)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = src.ReadAtMostTo(dst, 1024)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}
