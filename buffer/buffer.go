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

// Package buffer implements the segmented, in-memory byte buffer described
// in spec.md §4.2: an ordered chain of internal/segment.Segments supporting
// zero-copy transfer between buffers, segment-aligned sharing, and
// clone-on-write isolation.
package buffer

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/jayo-projects/jayo/internal/segment"
)

// EndOfInput is returned by a required read that found fewer bytes than
// requested (spec.md §7).
var EndOfInput = errors.New("buffer: end of input")

// RawReader is the abstract transport read primitive the core consumes
// (spec.md §6). readAtMostTo fills buf with at most byteCount bytes,
// reporting -1 at end of input.
type RawReader interface {
	ReadAtMostTo(buf *Buffer, byteCount int) (int, error)
	Close() error
}

// RawWriter is the abstract transport write primitive the core consumes.
type RawWriter interface {
	WriteFrom(buf *Buffer, byteCount int) error
	Flush() error
	Close() error
}

// Buffer is a circular chain of segments representing a contiguous byte
// sequence. It implements both RawReader and RawWriter for in-memory data
// and is never safe for concurrent use: a Buffer is single-owner (spec.md
// §5).
type Buffer struct {
	pool  *segment.Pool
	token uintptr

	head *segment.Segment // nil when empty; head.Prev is the tail
	size int
}

var defaultPool = segment.Default()

// Default returns the package-wide segment pool Buffers use unless
// constructed with NewWithPool.
func Default() *segment.Pool { return defaultPool }

// New creates an empty Buffer backed by the default segment pool.
func New() *Buffer {
	return NewWithPool(defaultPool)
}

// NewWithPool creates an empty Buffer backed by pool, with its own pool
// affinity token (spec.md §4.1's "successive take/recycle by the same
// thread" property, scoped to this Buffer's lifetime).
func NewWithPool(pool *segment.Pool) *Buffer {
	return &Buffer{pool: pool, token: segment.NewLocalToken()}
}

// Len returns the number of unread bytes currently held.
func (b *Buffer) Len() int { return b.size }

func (b *Buffer) IsEmpty() bool { return b.size == 0 }

// --- chain manipulation -----------------------------------------------

// tail returns the buffer's last segment, or nil if empty.
func (b *Buffer) tail() *segment.Segment {
	if b.head == nil {
		return nil
	}
	return b.head.Prev
}

// appendSegment links s as the new tail with no byte copy and no
// compaction attempt; used by the fast Write path where s is a segment this
// Buffer just took from the pool.
func (b *Buffer) appendSegment(s *segment.Segment) {
	if b.head == nil {
		s.Prev = s
		s.Next = s
		b.head = s
		return
	}
	t := b.head.Prev
	t.Next = s
	s.Prev = t
	s.Next = b.head
	b.head.Prev = s
}

// unlinkHead detaches and returns the current head segment without
// recycling it, adjusting size. Panics if the buffer is empty.
func (b *Buffer) unlinkHead() *segment.Segment {
	s := b.head
	n := s.Len()
	if s.Next == s {
		b.head = nil
	} else {
		s.Prev.Next = s.Next
		s.Next.Prev = s.Prev
		b.head = s.Next
	}
	s.Prev = nil
	s.Next = nil
	b.size -= n
	return s
}

// linkTail appends s as the new tail, attempting best-effort compaction
// into the current tail first (spec.md §4.1 "Compaction"). Used by transfer
// paths that move whole or split segments from another Buffer.
func (b *Buffer) linkTail(s *segment.Segment) {
	n := s.Len()
	if n == 0 {
		b.maybeRecycle(s)
		return
	}

	if t := b.tail(); t != nil && segment.TryCompact(t, s) {
		b.size += n
		b.maybeRecycle(s)
		return
	}

	b.appendSegment(s)
	b.size += n
}

// maybeRecycle returns s to the pool if it is safe to (unshared, owned, and
// already unlinked); otherwise s is simply dropped for the garbage
// collector, matching spec.md §4.1's Pool.recycle precondition.
func (b *Buffer) maybeRecycle(s *segment.Segment) {
	if s.Prev != nil || s.Next != nil {
		return
	}
	if s.Shared || !s.Owner {
		return
	}
	b.pool.Recycle(b.token, s)
}

// drainHead unlinks and recycles every fully-read segment at the head of
// the chain, maintaining the invariant that no segment with pos==limit
// remains in the chain after a public call returns (spec.md §4.2).
func (b *Buffer) drainHead() {
	for b.head != nil && b.head.Pos == b.head.Limit {
		s := b.unlinkHead()
		b.maybeRecycle(s)
	}
}

// writableTail returns a segment with room for at least one more byte,
// allocating a fresh one from the pool when the current tail is absent,
// full, or shared (spec.md §4.1: "appending to a shared tail allocates a
// fresh segment").
func (b *Buffer) writableTail() *segment.Segment {
	t := b.tail()
	if t != nil && !t.Shared && t.WriteCap() > 0 {
		return t
	}
	s := b.pool.Take(b.token)
	b.appendSegment(s)
	return s
}

// --- writes -------------------------------------------------------------

// Write appends p to the tail.
func (b *Buffer) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		t := b.writableTail()
		n := min(len(p), t.WriteCap())
		t.Append(p[:n])
		b.size += n
		p = p[n:]
	}
	return total, nil
}

// WriteString appends s to the tail.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

func (b *Buffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// --- reads ---------------------------------------------------------------

// require fails with EndOfInput unless at least n bytes are available. A
// plain in-memory Buffer never fills further, so require is simply a bound
// check here; Reader.Require (streamio package) is the version that pulls
// from an underlying RawReader.
func (b *Buffer) require(n int) error {
	if b.size < n {
		return errors.Wrapf(EndOfInput, "need %d bytes, have %d", n, b.size)
	}
	return nil
}

// ReadByteString consumes exactly n bytes and returns them as an immutable
// ByteString.
func (b *Buffer) ReadByteString(n int) (ByteString, error) {
	if err := b.require(n); err != nil {
		return ByteString{}, err
	}
	out := make([]byte, 0, n)
	remaining := n
	for remaining > 0 {
		s := b.head
		take := min(remaining, s.Len())
		out = append(out, s.ReadSlice()[:take]...)
		s.Pos += take
		b.size -= take
		remaining -= take
		b.drainHead()
	}
	return ByteString{b: out}, nil
}

// ReadString consumes exactly n bytes and decodes them as UTF-8.
func (b *Buffer) ReadString(n int) (string, error) {
	bs, err := b.ReadByteString(n)
	if err != nil {
		return "", err
	}
	return bs.String(), nil
}

// ReadUTF8All consumes every remaining byte and decodes it as UTF-8.
func (b *Buffer) ReadUTF8All() (string, error) {
	return b.ReadString(b.size)
}

// ReadByte consumes a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	s := b.head
	c := s.ReadSlice()[0]
	s.Pos++
	b.size--
	b.drainHead()
	return c, nil
}

// Snapshot returns an immutable, non-consuming view over the first n bytes
// (spec.md §4.2 "snapshot(n)"); the underlying bytes are copied, not
// mutated, so further writes or reads on b never affect it.
func (b *Buffer) Snapshot(n int) (ByteString, error) {
	if err := b.require(n); err != nil {
		return ByteString{}, err
	}
	out := make([]byte, 0, n)
	remaining := n
	for s := b.head; remaining > 0; s = s.Next {
		take := min(remaining, s.Len())
		out = append(out, s.ReadSlice()[:take]...)
		remaining -= take
	}
	return ByteString{b: out}, nil
}

// Peek returns the byte at offset without consuming it.
func (b *Buffer) Peek(offset int) (byte, error) {
	if err := b.require(offset + 1); err != nil {
		return 0, err
	}
	s := b.head
	left := offset
	for left >= s.Len() {
		left -= s.Len()
		s = s.Next
	}
	return s.ReadSlice()[left], nil
}

// IndexOf scans for the first occurrence of c in [from,to), or -1.
func (b *Buffer) IndexOf(c byte, from, to int) int {
	if to < 0 || to > b.size {
		to = b.size
	}
	if from < 0 {
		from = 0
	}
	if from >= to || b.head == nil {
		return -1
	}

	pos := 0
	s := b.head
	for pos+s.Len() <= from {
		pos += s.Len()
		s = s.Next
		if s == b.head {
			return -1
		}
	}

	for pos < to {
		data := s.ReadSlice()
		start := 0
		if from > pos {
			start = from - pos
		}
		end := len(data)
		if pos+end > to {
			end = to - pos
		}
		for i := start; i < end; i++ {
			if data[i] == c {
				return pos + i
			}
		}
		pos += s.Len()
		s = s.Next
	}
	return -1
}

// --- transfer -------------------------------------------------------------

// TransferFrom moves every byte from src into b. Segment-aligned portions
// move by relinking pointers, never copying bytes (spec.md §4.2).
func (b *Buffer) TransferFrom(src *Buffer) {
	for src.head != nil {
		s := src.unlinkHead()
		b.linkTail(s)
	}
}

// TransferTo moves every byte from b into sink's buffer via WriteFrom.
func (b *Buffer) TransferTo(sink RawWriter) error {
	return sink.WriteFrom(b, b.size)
}

// WriteFromBuffer moves exactly byteCount bytes from other into b, splitting
// other's head segment if byteCount lands mid-segment (spec.md §4.2
// "write(other, n)").
func (b *Buffer) WriteFromBuffer(other *Buffer, byteCount int) error {
	if err := other.require(byteCount); err != nil {
		return err
	}

	remaining := byteCount
	for remaining > 0 {
		head := other.head
		segLen := head.Len()

		if segLen <= remaining {
			s := other.unlinkHead()
			b.linkTail(s)
			remaining -= segLen
			continue
		}

		if segment.ShouldCopyPrefix(remaining) {
			if _, err := b.Write(head.ReadSlice()[:remaining]); err != nil {
				return err
			}
			head.Pos += remaining
			other.size -= remaining
		} else {
			prefix, _ := head.Split(remaining)
			b.linkTail(prefix)
			other.size -= remaining
		}
		remaining = 0
	}
	other.drainHead()
	return nil
}

// CopyTo copies (without consuming) byteCount bytes starting at offset into
// sink.
func (b *Buffer) CopyTo(sink *Buffer, offset, byteCount int) error {
	if err := b.require(offset + byteCount); err != nil {
		return err
	}

	s := b.head
	pos := 0
	for pos+s.Len() <= offset {
		pos += s.Len()
		s = s.Next
	}

	remaining := byteCount
	start := offset - pos
	for remaining > 0 {
		data := s.ReadSlice()[start:]
		n := min(remaining, len(data))
		if _, err := sink.Write(data[:n]); err != nil {
			return err
		}
		remaining -= n
		start = 0
		s = s.Next
	}
	return nil
}

// Clone produces an independent Buffer sharing segment storage: subsequent
// writes or reads on either buffer never observe the other (spec.md §4.2,
// property 3 in §8).
func (b *Buffer) Clone() *Buffer {
	c := NewWithPool(b.pool)
	if b.head == nil {
		return c
	}

	s := b.head
	for {
		c.appendSegment(s.Share())
		s = s.Next
		if s == b.head {
			break
		}
	}
	c.size = b.size
	return c
}

// Clear discards all bytes, recycling every segment that can be recycled.
func (b *Buffer) Clear() {
	for b.head != nil {
		s := b.unlinkHead()
		b.maybeRecycle(s)
	}
}

// Close is an idempotent alias for Clear, satisfying io.Closer-shaped
// embedders that hold a Buffer as their internal staging area.
func (b *Buffer) Close() error {
	b.Clear()
	return nil
}

// ReadAtMostTo implements RawReader by draining up to byteCount bytes of b
// into dst, or reporting -1 when b is empty (spec.md §6 "RawReader").
func (b *Buffer) ReadAtMostTo(dst *Buffer, byteCount int) (int, error) {
	if b.size == 0 {
		return -1, nil
	}
	n := min(byteCount, b.size)
	if err := dst.WriteFromBuffer(b, n); err != nil {
		return 0, err
	}
	return n, nil
}

// WriteFrom implements RawWriter by moving byteCount bytes from src into b.
func (b *Buffer) WriteFrom(src *Buffer, byteCount int) error {
	return b.WriteFromBuffer(src, byteCount)
}

// Flush is a no-op: an in-memory Buffer has nothing to flush downstream.
func (b *Buffer) Flush() error { return nil }

// ValidUTF8 reports whether the unread bytes are well-formed UTF-8, without
// consuming them.
func (b *Buffer) ValidUTF8() (bool, error) {
	bs, err := b.Snapshot(b.size)
	if err != nil {
		return false, err
	}
	return utf8.Valid(bs.Bytes()), nil
}
