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

// Package segment implements the fixed-capacity byte chunks that back
// buffer.Buffer, and the thread-partitioned pool that recycles them.
package segment

// Size is the capacity of every Segment allocated by Pool. 8 KiB keeps a
// single Segment inside a lot of transports' typical write size while still
// amortizing allocation over many bytes.
const Size = 8 * 1024

// splitCopyThreshold is the cutoff used by ShouldCopyPrefix (see §4.1):
// below it, a prefix is copied into the receiver's tail; at or above it, the
// segment is split and shared instead.
const splitCopyThreshold = Size / 2

// Segment is a fixed-capacity byte chunk and the unit of ownership transfer
// between Buffers. It is never safe for concurrent use; a Buffer owns its
// segments exclusively (see buffer.Buffer).
type Segment struct {
	data []byte

	// Pos is the read cursor, Limit the write cursor: 0 <= Pos <= Limit <= cap(data).
	Pos, Limit int

	// Shared marks that data is referenced by more than one Segment (after a
	// Split or a Buffer clone). A shared Segment's bytes must never be
	// mutated in place, and nothing is appended to it: WriteCap reports zero
	// for a Shared segment, even one that is also the Owner.
	Shared bool

	// Owner marks that this Segment may be appended to (have bytes written
	// past Limit, up to cap(data)). A non-owner Segment produced by Split
	// must never grow.
	Owner bool

	// Prev/Next form the doubly linked cyclic chain inside the owning Buffer.
	Prev, Next *Segment
}

func newSegment() *Segment {
	return &Segment{data: make([]byte, Size)}
}

func (s *Segment) reset() {
	s.Pos = 0
	s.Limit = 0
	s.Shared = false
	s.Owner = true
	s.Prev = nil
	s.Next = nil
}

// Len returns the number of unread bytes held by the segment.
func (s *Segment) Len() int {
	return s.Limit - s.Pos
}

// ReadSlice returns the unread portion of the segment. Callers must treat it
// as read-only: the backing array may be Shared with another Segment.
func (s *Segment) ReadSlice() []byte {
	return s.data[s.Pos:s.Limit]
}

// WriteCap returns how many more bytes may be appended without reallocating,
// i.e. the room left between Limit and the backing array's capacity. A
// Shared segment always reports zero: the contract in spec.md §4.1 is that a
// shared tail is never appended to, a fresh Segment is allocated instead.
func (s *Segment) WriteCap() int {
	if s.Shared {
		return 0
	}
	return cap(s.data) - s.Limit
}

// Append copies p into the segment's free tail space. The caller must ensure
// len(p) <= WriteCap().
func (s *Segment) Append(p []byte) {
	n := copy(s.data[s.Limit:cap(s.data)], p)
	s.Limit += n
}

// Split produces two Segments sharing this segment's backing array with
// disjoint [pos,limit) ranges: one holding the first byteCount unread bytes,
// one holding the rest. Both returned segments are marked Shared. byteCount
// must be in [1, s.Len()).
func (s *Segment) Split(byteCount int) (head, tail *Segment) {
	if byteCount <= 0 || byteCount >= s.Len() {
		panic("segment: split out of range")
	}

	prefix := &Segment{
		data:   s.data,
		Pos:    s.Pos,
		Limit:  s.Pos + byteCount,
		Shared: true,
	}
	s.Pos += byteCount
	s.Shared = true
	return prefix, s
}

// Share returns a new Segment over the same backing array, covering the
// same unread range as s, for use by Buffer.Clone: both the receiver and the
// returned Segment are marked Shared, so neither may be written to in place
// afterwards (a write path must allocate a fresh segment instead).
func (s *Segment) Share() *Segment {
	s.Shared = true
	return &Segment{
		data:   s.data,
		Pos:    s.Pos,
		Limit:  s.Limit,
		Shared: true,
	}
}

// ShouldCopyPrefix reports whether writing the first byteCount bytes of s
// into another buffer's tail should copy (true) rather than split+share
// (false), per the ~half-capacity threshold in spec.md §4.1.
func ShouldCopyPrefix(byteCount int) bool {
	return byteCount < splitCopyThreshold
}

// TryCompact coalesces tail's unread bytes into prev's backing array if prev
// still has room and is an Owner, non-Shared segment. Returns true if the
// merge happened, in which case tail is now empty (Pos == Limit) and should
// be unlinked by the caller. Compaction is best-effort: callers must not
// assume it always succeeds.
func TryCompact(prev, tail *Segment) bool {
	if prev.Shared || !prev.Owner {
		return false
	}
	n := tail.Len()
	if n > prev.WriteCap() {
		return false
	}
	prev.Append(tail.ReadSlice())
	tail.Pos = tail.Limit
	return true
}
