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

package streamio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/buffer"
)

func TestReaderRequireAndPeek(t *testing.T) {
	src := buffer.New()
	_, _ = src.WriteString("hello")

	r := New(src)
	require.NoError(t, r.Require(5))

	b, err := r.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte('h'), b)

	s, err := r.ReadUTF8(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestReaderRequireFailsAtEndOfInput(t *testing.T) {
	src := buffer.New()
	_, _ = src.WriteString("ab")
	r := New(src)

	err := r.Require(5)
	assert.ErrorIs(t, err, buffer.EndOfInput)
}

func TestReaderFixedWidthInts(t *testing.T) {
	src := buffer.New()
	_, _ = src.Write([]byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x03})

	r := New(src)
	v16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	v32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00000003), v32)
}

func TestWriterVarintRoundTrip(t *testing.T) {
	buf := buffer.New()
	w := NewWriter(bufferSink{buf})
	require.NoError(t, w.WriteVarint(300))
	require.NoError(t, w.Flush())

	r := New(bufferSink{buf})
	v, err := r.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
}

func TestReaderLine(t *testing.T) {
	src := buffer.New()
	_, _ = src.WriteString("line one\nline two\nno newline")

	r := New(src)

	l1, ok, err := r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "line one\n", string(l1))

	l2, ok, err := r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "line two\n", string(l2))

	l3, ok, err := r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "no newline", string(l3))
}

func TestWriterAutoFlushOnHighWaterMark(t *testing.T) {
	sink := &recordingSink{}
	w := NewWriter(sink)
	w.SetHighWaterMark(4)

	_, err := w.WriteString("hello")
	require.NoError(t, err)
	assert.True(t, sink.flushedOnce, "expected auto-flush once the high-water mark was crossed")
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	w := NewWriter(sink)
	_, _ = w.WriteString("x")

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, sink.closes)
}

// bufferSink adapts a *buffer.Buffer to buffer.RawWriter/RawReader for tests
// that want to write then immediately read back staged bytes.
type bufferSink struct{ b *buffer.Buffer }

func (s bufferSink) WriteFrom(src *buffer.Buffer, n int) error {
	return s.b.WriteFromBuffer(src, n)
}
func (s bufferSink) Flush() error { return nil }
func (s bufferSink) Close() error { return nil }
func (s bufferSink) ReadAtMostTo(dst *buffer.Buffer, n int) (int, error) {
	return s.b.ReadAtMostTo(dst, n)
}

type recordingSink struct {
	flushedOnce bool
	closes      int
}

func (s *recordingSink) WriteFrom(src *buffer.Buffer, n int) error {
	s.flushedOnce = true
	src.Clear()
	return nil
}
func (s *recordingSink) Flush() error { return nil }
func (s *recordingSink) Close() error { s.closes++; return nil }
