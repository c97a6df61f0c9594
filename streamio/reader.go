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

// Package streamio implements the buffered, typed Reader/Writer pipeline
// described in spec.md §4.3: a Reader fills an internal buffer.Buffer from a
// raw byte source on demand and offers typed decoding with lookahead; a
// Writer is the dual, batching typed encodes before flushing to a sink.
package streamio

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/jayo-projects/jayo/buffer"
)

// fillChunk is how many bytes Reader.fill asks the underlying source for on
// each pull, matching the teacher's ReadWriteBlockSize sizing rationale for
// a "compromise" transfer unit (common/const.go).
const fillChunk = 8192

// Reader wraps a buffer.RawReader (or a bare *buffer.Buffer) and offers
// buffered, typed reads.
type Reader struct {
	src    buffer.RawReader
	buf    *buffer.Buffer
	closed bool
}

// New wraps src.
func New(src buffer.RawReader) *Reader {
	return &Reader{src: src, buf: buffer.New()}
}

// NewFromBuffer adapts a Buffer directly as the source, for composing
// Readers over already-materialized data.
func NewFromBuffer(b *buffer.Buffer) *Reader {
	return &Reader{src: nil, buf: b}
}

// fill pulls from src until at least n bytes are buffered or the source is
// exhausted. Returns the number of bytes now available (may be < n at EOF).
func (r *Reader) fill(n int) (int, error) {
	for r.buf.Len() < n {
		if r.src == nil {
			break // buffer-backed Reader: nothing more will ever arrive
		}
		got, err := r.src.ReadAtMostTo(r.buf, fillChunk)
		if err != nil {
			return r.buf.Len(), err
		}
		if got == -1 {
			break
		}
	}
	return r.buf.Len(), nil
}

// Require fills the internal buffer until at least n bytes are available,
// failing with buffer.EndOfInput otherwise (spec.md §4.3).
func (r *Reader) Require(n int) error {
	have, err := r.fill(n)
	if err != nil {
		return errors.Wrap(err, "streamio: require")
	}
	if have < n {
		return errors.Wrapf(buffer.EndOfInput, "require(%d): only %d available", n, have)
	}
	return nil
}

// Exhausted reports whether there is nothing left to read.
func (r *Reader) Exhausted() (bool, error) {
	have, err := r.fill(1)
	if err != nil {
		return false, err
	}
	return have == 0, nil
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (byte, error) {
	if err := r.Require(1); err != nil {
		return 0, err
	}
	return r.buf.Peek(0)
}

// PeekBytes fills the internal buffer until n bytes are available and
// returns a copy of the first n bytes without consuming them, so a
// subsequent Read* call (or another PeekBytes) observes the same bytes
// (spec.md §4.6 "parsing a ClientHello does not consume bytes").
func (r *Reader) PeekBytes(n int) ([]byte, error) {
	if err := r.Require(n); err != nil {
		return nil, err
	}
	bs, err := r.buf.Snapshot(n)
	if err != nil {
		return nil, err
	}
	return bs.Bytes(), nil
}

// ReadByte consumes and returns one byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.Require(1); err != nil {
		return 0, err
	}
	return r.buf.ReadByte()
}

// ReadByteString consumes exactly n bytes.
func (r *Reader) ReadByteString(n int) (buffer.ByteString, error) {
	if err := r.Require(n); err != nil {
		return buffer.ByteString{}, err
	}
	return r.buf.ReadByteString(n)
}

// ReadUTF8 consumes exactly n bytes and decodes them as UTF-8.
func (r *Reader) ReadUTF8(n int) (string, error) {
	if err := r.Require(n); err != nil {
		return "", err
	}
	return r.buf.ReadString(n)
}

// ReadUint8 / ReadUint16 / ReadUint32 / ReadUint64 read fixed-width
// big-endian unsigned integers, the encoding DER headers and TLS records
// both use.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.ReadByte()
	return b, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	bs, err := r.ReadByteString(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(bs.Bytes()), nil
}

func (r *Reader) ReadUint24() (uint32, error) {
	bs, err := r.ReadByteString(3)
	if err != nil {
		return 0, err
	}
	b := bs.Bytes()
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	bs, err := r.ReadByteString(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(bs.Bytes()), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	bs, err := r.ReadByteString(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(bs.Bytes()), nil
}

// ReadVarint reads a little-endian base-128 unsigned varint (as used by
// protobuf-style wire formats; DER's multi-byte tag form is big-endian and
// is decoded by der.Reader itself).
func (r *Reader) ReadVarint() (uint64, error) {
	var x uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		x |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return x, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("streamio: varint too long")
		}
	}
}

// ReadLine reads up to (and including) the next '\n', matching the
// teacher's internal/splitio.Scanner contract (§4.3 "line reading"). ok is
// false at end of input with no trailing newline in the remaining bytes.
func (r *Reader) ReadLine() (line []byte, ok bool, err error) {
	// Grow the window until a newline is found or the source is exhausted.
	for {
		idx := r.buf.IndexOf('\n', 0, -1)
		if idx >= 0 {
			bs, rerr := r.buf.ReadByteString(idx + 1)
			if rerr != nil {
				return nil, false, rerr
			}
			return bs.Bytes(), true, nil
		}

		before := r.buf.Len()
		have, ferr := r.fill(before + 1)
		if ferr != nil {
			return nil, false, ferr
		}
		if have == before {
			// source exhausted with no newline; return whatever is left.
			if r.buf.Len() == 0 {
				return nil, false, nil
			}
			bs, rerr := r.buf.ReadByteString(r.buf.Len())
			if rerr != nil {
				return nil, false, rerr
			}
			return bs.Bytes(), false, nil
		}
	}
}

// Close releases the Reader's internal buffer and, if present, the
// underlying source. Idempotent (spec.md §5).
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var srcErr error
	if r.src != nil {
		srcErr = r.src.Close()
	}
	r.buf.Clear()
	if srcErr != nil {
		return errors.Wrap(srcErr, "streamio: close source")
	}
	return nil
}
