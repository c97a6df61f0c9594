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

package segment

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs" // adjusts GOMAXPROCS to the container's CPU quota before bucketCount is read
)

// bucketCap is the per-bucket byte budget (spec.md §4.1: "64 KiB per
// bucket"). Segments recycled beyond the cap are left for GC.
const bucketCap = 64 * 1024

// bucket is a mutex-guarded singly-linked LIFO stack of detached Segments,
// bounded by bucketCap bytes. It is not lock-free: push and pop each take
// the bucket's mutex.
type bucket struct {
	mu    sync.Mutex // contention is already reduced by partitioning; a mutex per bucket keeps this simple and correct
	top   *Segment
	bytes int
}

func (b *bucket) push(s *Segment) (recycled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bytes+Size > bucketCap {
		return false
	}
	s.Next = b.top
	b.top = s
	b.bytes += Size
	return true
}

func (b *bucket) pop() *Segment {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.top
	if s == nil {
		return nil
	}
	b.top = s.Next
	b.bytes -= Size
	s.Next = nil
	return s
}

// Pool is a process-wide free list of detached Segments, partitioned by a
// bucket id hashed from a caller-supplied affinity token (see bucketFor) to
// minimize contention (spec.md §4.1).
type Pool struct {
	buckets []bucket
	metrics poolMetrics
}

var defaultPool = New(prometheus.DefaultRegisterer)

// Default returns the process-wide Pool used by buffer.Buffer unless an
// embedder supplies its own.
func Default() *Pool { return defaultPool }

// New creates a Pool registering its counters against reg. A nil reg skips
// metrics registration entirely (useful in tests that construct many Pools).
func New(reg prometheus.Registerer) *Pool {
	p := &Pool{
		buckets: make([]bucket, bucketCount()),
	}
	p.metrics = newPoolMetrics(reg)
	return p
}

func bucketCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// bucketFor hashes a caller-supplied affinity token into a bucket index. Go
// exposes no public goroutine/thread id, so callers that want stable bucket
// affinity across a Take/Recycle pair obtain one token via NewLocalToken and
// reuse it; the hash (not the raw token) decides the bucket, which is what
// lets two different tokens collide into the same bucket exactly when their
// hashes do, as spec.md §4.1 requires.
func (p *Pool) bucketFor(token uintptr) *bucket {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(token >> (8 * i))
	}
	h := xxhash.Sum64(buf[:])
	return &p.buckets[h%uint64(len(p.buckets))]
}

// Take returns a freshly reset Segment: pos=limit=0, shared=false,
// owner=true, pointers nil. It is served from the bucket selected by token,
// falling back to a fresh allocation on an empty bucket.
func (p *Pool) Take(token uintptr) *Segment {
	if s := p.bucketFor(token).pop(); s != nil {
		s.reset()
		p.metrics.hits.Inc()
		return s
	}
	p.metrics.misses.Inc()
	s := newSegment()
	s.reset()
	return s
}

// Recycle returns s to the pool bucket selected by token. s must be
// unlinked (Prev == Next == nil), non-shared, and owner; violating that is a
// programming error and Recycle panics rather than silently corrupting a
// bucket's shared storage.
func (p *Pool) Recycle(token uintptr, s *Segment) {
	if s.Prev != nil || s.Next != nil {
		panic("segment: recycle of a linked segment")
	}
	if s.Shared || !s.Owner {
		panic("segment: recycle of a shared or non-owner segment")
	}

	if p.bucketFor(token).push(s) {
		p.metrics.recycled.Inc()
	} else {
		p.metrics.discarded.Inc()
	}
}

// localTokenSeq is incremented once per call to NewLocalToken, whose result
// is meant to be stashed by a caller (e.g. a per-goroutine Reader/Writer) so that its
// own take/recycle pairs consistently land in the same bucket — this is the
// "successive take/recycle by the same thread return the same instance"
// behavior spec.md §4.1 tests, implemented via an explicit affinity token
// instead of a real thread id (Go has none) plus memoized stack-address
// hashing (too unstable across calls to rely on alone).
var localTokenSeq uint64

// NewLocalToken returns a token a single logical owner (a goroutine, a
// connection, a Reader) should reuse for every Take/Recycle call it makes,
// giving it a stable pool bucket for the lifetime of that owner.
func NewLocalToken() uintptr {
	return uintptr(atomic.AddUint64(&localTokenSeq, 1))
}

type poolMetrics struct {
	hits, misses, recycled, discarded prometheus.Counter
}

func newPoolMetrics(reg prometheus.Registerer) poolMetrics {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jayo",
			Subsystem: "segment_pool",
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}
	return poolMetrics{
		hits:      mk("take_hits_total", "segment.Take calls served from a bucket"),
		misses:    mk("take_misses_total", "segment.Take calls that allocated fresh"),
		recycled:  mk("recycle_total", "segment.Recycle calls accepted by a bucket"),
		discarded: mk("discard_total", "segment.Recycle calls dropped because the bucket was at capacity"),
	}
}
