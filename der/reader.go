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

package der

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/streamio"
)

// Reader is a streaming DER decoder over a byte source. It tracks, per
// nesting level, how many payload bytes remain to be consumed inside the
// currently open element (so Read can verify its body consumed exactly the
// declared length), a path stack of field names for diagnostics, and a
// type-hint stack so an earlier field (e.g. an extension's OID) can steer
// how a later field is decoded.
type Reader struct {
	src *streamio.Reader

	path   []string
	limits []int64 // remaining bytes per open element, outermost first
	hints  []any

	cached   *Header
	hasCache bool
}

// NewReader wraps src for DER decoding.
func NewReader(src buffer.RawReader) *Reader {
	return &Reader{src: streamio.New(src)}
}

// NewReaderFromBuffer adapts an already-materialized Buffer.
func NewReaderFromBuffer(b *buffer.Buffer) *Reader {
	return &Reader{src: streamio.NewFromBuffer(b)}
}

// consume charges n bytes against every currently open element's remaining
// budget, failing if any of them would go negative.
func (r *Reader) consume(n int64) error {
	for i, lim := range r.limits {
		if lim < n {
			return protocolErrorf(r.path, "element exceeds enclosing length by %d bytes", n-lim)
		}
		r.limits[i] = lim - n
	}
	return nil
}

func (r *Reader) readRawByte() (byte, error) {
	b, err := r.src.ReadByte()
	if err != nil {
		return 0, err
	}
	if err := r.consume(1); err != nil {
		return 0, err
	}
	return b, nil
}

func (r *Reader) readRawBytes(n int) ([]byte, error) {
	bs, err := r.src.ReadByteString(n)
	if err != nil {
		return nil, err
	}
	if err := r.consume(int64(n)); err != nil {
		return nil, err
	}
	return bs.Bytes(), nil
}

// atEnd reports whether the innermost open element has no bytes left, or —
// with no element open — whether the underlying source has nothing left.
func (r *Reader) atEnd() (bool, error) {
	if len(r.limits) > 0 {
		return r.limits[len(r.limits)-1] == 0, nil
	}
	return r.src.Exhausted()
}

// PeekHeader returns the next element's header without consuming its
// payload, caching it for the following Read call. ok is false at a clean
// end of data (either the source is exhausted at top level, or the
// enclosing element's declared length has been fully consumed).
func (r *Reader) PeekHeader() (h Header, ok bool, err error) {
	if r.hasCache {
		return *r.cached, true, nil
	}
	end, err := r.atEnd()
	if err != nil {
		return Header{}, false, err
	}
	if end {
		return Header{}, false, nil
	}
	hdr, err := r.readHeader()
	if err != nil {
		return Header{}, false, err
	}
	r.cached, r.hasCache = &hdr, true
	return hdr, true, nil
}

// readHeader decodes one identifier+length pair per X.690, enforcing
// strict DER: no indefinite length, shortest-form length encoding, at most
// 8 length octets, and a value that fits signed 64 bits.
func (r *Reader) readHeader() (Header, error) {
	first, err := r.readRawByte()
	if err != nil {
		return Header{}, err
	}
	class := TagClass(first >> 6)
	constructed := first&0x20 != 0
	tag := uint64(first & 0x1f)
	if tag == 0x1f {
		tag = 0
		for {
			b, err := r.readRawByte()
			if err != nil {
				return Header{}, err
			}
			tag = tag<<7 | uint64(b&0x7f)
			if b&0x80 == 0 {
				break
			}
		}
	}

	lenByte, err := r.readRawByte()
	if err != nil {
		return Header{}, err
	}

	var length int64
	switch {
	case lenByte == 0x80:
		return Header{}, protocolErrorf(r.path, "indefinite length is not permitted in DER")
	case lenByte&0x80 == 0:
		length = int64(lenByte)
	default:
		n := int(lenByte & 0x7f)
		if n > 8 {
			return Header{}, protocolErrorf(r.path, "length encoded in %d octets exceeds the 8 allowed", n)
		}
		lb, err := r.readRawBytes(n)
		if err != nil {
			return Header{}, err
		}
		if lb[0] == 0 {
			return Header{}, protocolErrorf(r.path, "length is not in shortest form")
		}
		var v uint64
		for _, b := range lb {
			v = v<<8 | uint64(b)
		}
		if v > 1<<63-1 {
			return Header{}, protocolErrorf(r.path, "length %d overflows a signed 64-bit integer", v)
		}
		length = int64(v)
		if n == 1 && length < 0x80 {
			return Header{}, protocolErrorf(r.path, "length is not in shortest form")
		}
	}

	return Header{TagClass: class, Tag: tag, Constructed: constructed, Length: length}, nil
}

// Read consumes the current header (from PeekHeader's cache if primed),
// pushes a new budget of header.Length bytes, runs body, and fails unless
// body consumed exactly that many bytes.
func (r *Reader) Read(name string, body func(h Header) error) (Header, error) {
	var h Header
	if r.hasCache {
		h = *r.cached
		r.cached, r.hasCache = nil, false
	} else {
		var err error
		h, err = r.readHeader()
		if err != nil {
			return Header{}, err
		}
	}

	r.path = append(r.path, name)
	r.limits = append(r.limits, h.Length)
	defer func() {
		r.limits = r.limits[:len(r.limits)-1]
		r.path = r.path[:len(r.path)-1]
	}()

	if err := body(h); err != nil {
		return h, err
	}
	if remaining := r.limits[len(r.limits)-1]; remaining != 0 {
		return h, protocolErrorf(r.path, "body consumed %d of %d declared bytes", h.Length-remaining, h.Length)
	}
	return h, nil
}

// PushHint publishes v as the current scope's type hint, consumed by a
// usingTypeHint adapter decoding a later sibling field.
func (r *Reader) PushHint(v any) { r.hints = append(r.hints, v) }

// Hint returns the innermost published hint, if any.
func (r *Reader) Hint() (any, bool) {
	if len(r.hints) == 0 {
		return nil, false
	}
	return r.hints[len(r.hints)-1], true
}

// PopHint discards the innermost published hint, mirroring a sequence
// combinator's frame on exit.
func (r *Reader) PopHint() {
	if len(r.hints) > 0 {
		r.hints = r.hints[:len(r.hints)-1]
	}
}

// HintDepth returns the current size of the hint stack, for a sequence
// decoder to snapshot before decoding its members.
func (r *Reader) HintDepth() int { return len(r.hints) }

// TruncateHints pops the hint stack back to depth n, the way a sequence
// combinator's frame pops on exit (spec.md §9 "type-hint ambient state ...
// each sequence combinator pushes a frame on entry and pops on exit").
func (r *Reader) TruncateHints(n int) { r.hints = r.hints[:n] }

// ReadBoolean reads a single-byte BOOLEAN: DER requires 0x00 for false and
// 0xff for true, but this decoder follows X.690's permissive reading rule
// (any non-zero byte is true) since it only needs to interoperate, not
// re-validate encoder strictness on read.
func (r *Reader) ReadBoolean(h Header) (bool, error) {
	if h.Length != 1 {
		return false, protocolErrorf(r.path, "BOOLEAN must be 1 byte, got %d", h.Length)
	}
	b, err := r.readRawBytes(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadLong reads a big-endian two's-complement signed integer of 1..8
// bytes.
func (r *Reader) ReadLong(h Header) (int64, error) {
	if h.Length < 1 || h.Length > 8 {
		return 0, protocolErrorf(r.path, "INTEGER of %d bytes does not fit a 64-bit long", h.Length)
	}
	b, err := r.readRawBytes(int(h.Length))
	if err != nil {
		return 0, err
	}
	var v int64
	if b[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v, nil
}

// ReadBigInteger reads an arbitrary-length two's-complement signed integer.
func (r *Reader) ReadBigInteger(h Header) (*big.Int, error) {
	b, err := r.readRawBytes(int(h.Length))
	if err != nil {
		return nil, err
	}
	v := new(big.Int)
	if len(b) == 0 {
		return v, nil
	}
	if b[0]&0x80 == 0 {
		v.SetBytes(b)
		return v, nil
	}
	// Two's complement negative: invert and add one over the raw bytes.
	inv := make([]byte, len(b))
	for i, c := range b {
		inv[i] = ^c
	}
	v.SetBytes(inv)
	v.Add(v, big.NewInt(1))
	v.Neg(v)
	return v, nil
}

// ReadBitString reads a BIT STRING: one leading "unused bits" octet
// followed by the payload.
func (r *Reader) ReadBitString(h Header) (bits []byte, unused int, err error) {
	if h.Length < 1 {
		return nil, 0, protocolErrorf(r.path, "BIT STRING must carry at least the unused-bits octet")
	}
	b, err := r.readRawBytes(int(h.Length))
	if err != nil {
		return nil, 0, err
	}
	if b[0] > 7 {
		return nil, 0, protocolErrorf(r.path, "BIT STRING unused-bit count %d out of range", b[0])
	}
	return b[1:], int(b[0]), nil
}

// ReadOctetString reads an OCTET STRING's raw payload.
func (r *Reader) ReadOctetString(h Header) ([]byte, error) {
	return r.readRawBytes(int(h.Length))
}

// ReadString reads h.Length bytes as UTF-8 text.
func (r *Reader) ReadString(h Header) (string, error) {
	b, err := r.readRawBytes(int(h.Length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadObjectIdentifier decodes an OBJECT IDENTIFIER's X.690 subidentifier
// encoding: the first subidentifier packs the first two arc numbers as
// X*40+Y.
func (r *Reader) ReadObjectIdentifier(h Header) ([]uint64, error) {
	b, err := r.readRawBytes(int(h.Length))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, protocolErrorf(r.path, "OBJECT IDENTIFIER has no content")
	}

	var arcs []uint64
	var cur uint64
	for i, c := range b {
		cur = cur<<7 | uint64(c&0x7f)
		if c&0x80 == 0 {
			arcs = append(arcs, cur)
			cur = 0
		} else if i == len(b)-1 {
			return nil, protocolErrorf(r.path, "OBJECT IDENTIFIER truncated mid-subidentifier")
		}
	}
	if len(arcs) == 0 {
		return nil, protocolErrorf(r.path, "OBJECT IDENTIFIER decoded no arcs")
	}

	first := arcs[0]
	var x, y uint64
	if first < 80 {
		x, y = first/40, first%40
	} else {
		x, y = 2, first-80
	}
	return append([]uint64{x, y}, arcs[1:]...), nil
}

// ReadUnknown reads h.Length raw bytes verbatim, for fields whose schema
// isn't known ahead of time (opaque OCTET STRING fallback).
func (r *Reader) ReadUnknown(h Header) ([]byte, error) {
	return r.readRawBytes(int(h.Length))
}

// SmallUint converts a decoded INTEGER (e.g. a X.509 Version field) to a
// plain non-negative int, rejecting negative values.
func SmallUint(v int64) (int, error) {
	if v < 0 {
		return 0, errors.New("der: expected a non-negative INTEGER")
	}
	return cast.ToIntE(v)
}
