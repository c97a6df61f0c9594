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
	"encoding/binary"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jayo-projects/jayo/buffer"
)

// highWaterMark is the default threshold past which Writer flushes
// automatically (spec.md §4.3), mirroring the teacher's chunked-write sizing
// in connstream/stream.go's chunkWriter.
const highWaterMark = 64 * 1024

// Writer batches typed writes into an internal buffer.Buffer, flushing to
// sink either on demand or once highWaterMark bytes have accumulated.
type Writer struct {
	sink          buffer.RawWriter
	buf           *buffer.Buffer
	highWaterMark int
	closed        bool
}

func NewWriter(sink buffer.RawWriter) *Writer {
	return &Writer{sink: sink, buf: buffer.New(), highWaterMark: highWaterMark}
}

// SetHighWaterMark overrides the auto-flush threshold.
func (w *Writer) SetHighWaterMark(n int) { w.highWaterMark = n }

func (w *Writer) maybeFlush() error {
	if w.buf.Len() >= w.highWaterMark {
		return w.Flush()
	}
	return nil
}

func (w *Writer) Write(p []byte) (int, error) {
	n, _ := w.buf.Write(p)
	if err := w.maybeFlush(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *Writer) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}

func (w *Writer) WriteUint16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) WriteUint24(v uint32) error {
	b := [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteVarint writes x as a little-endian base-128 unsigned varint.
func (w *Writer) WriteVarint(x uint64) error {
	var b []byte
	for x >= 0x80 {
		b = append(b, byte(x)|0x80)
		x >>= 7
	}
	b = append(b, byte(x))
	_, err := w.Write(b)
	return err
}

// Flush pushes any batched bytes to the sink. Per spec.md §7, an error here
// may leave partial data in sink: the batched buffer has already been
// handed to sink.WriteFrom by the time a flush error surfaces, so retrying
// Flush would resend already-written bytes. Callers needing exactly-once
// semantics must not retry a failed Flush.
func (w *Writer) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if err := w.sink.WriteFrom(w.buf, w.buf.Len()); err != nil {
		return errors.Wrap(err, "streamio: flush")
	}
	return w.sink.Flush()
}

// Close flushes remaining bytes and closes the sink, aggregating any
// failures from either step (spec.md §5 "Close is idempotent").
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.sink.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	w.buf.Clear()
	return result.ErrorOrNil()
}
