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

	"github.com/valyala/bytebufferpool"
)

// Writer mirrors Reader: Write pushes a fresh staging buffer, runs body
// (which emits either raw primitive bytes or further nested Write calls),
// then frames the accumulated payload with its identifier and length
// octets into the enclosing buffer. Staging buffers come from
// bytebufferpool, the same pooled-buffer approach the teacher reaches for
// anywhere it assembles a payload before a single write (protocol/pool.go's
// sibling pools).
type Writer struct {
	top    *bytebufferpool.ByteBuffer
	frames []*wframe
	hints  []any
}

type wframe struct {
	buf         *bytebufferpool.ByteBuffer
	constructed bool
}

func NewWriter() *Writer {
	return &Writer{top: bytebufferpool.Get()}
}

func (w *Writer) currentDest() *bytebufferpool.ByteBuffer {
	if len(w.frames) > 0 {
		return w.frames[len(w.frames)-1].buf
	}
	return w.top
}

// WriteRaw appends primitive payload bytes to the element currently being
// assembled, without affecting its constructed/primitive classification.
func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.currentDest().Write(b)
	return err
}

// Write frames one DER element: tag class/number, a forced
// constructed/primitive bit (nil defers to whether body issued any nested
// Write), and a body that emits the element's payload.
func (w *Writer) Write(class TagClass, tag uint64, forceConstructed *bool, body func() error) error {
	frame := &wframe{buf: bytebufferpool.Get()}
	w.frames = append(w.frames, frame)

	err := body()
	w.frames = w.frames[:len(w.frames)-1]
	if err != nil {
		bytebufferpool.Put(frame.buf)
		return err
	}

	constructed := frame.constructed
	if forceConstructed != nil {
		constructed = *forceConstructed
	}

	dest := w.currentDest()
	writeIdentifier(dest, class, tag, constructed)
	writeLength(dest, int64(frame.buf.Len()))
	_, err = dest.Write(frame.buf.B)
	bytebufferpool.Put(frame.buf)
	if err != nil {
		return err
	}

	if len(w.frames) > 0 {
		w.frames[len(w.frames)-1].constructed = true
	}
	return nil
}

// Bytes returns the fully assembled top-level encoding. Only meaningful
// after every Write call has returned.
func (w *Writer) Bytes() []byte {
	b := append([]byte(nil), w.top.B...)
	return b
}

// Release returns the Writer's pooled staging buffers. Call once the
// result of Bytes has been copied out.
func (w *Writer) Release() {
	bytebufferpool.Put(w.top)
}

func (w *Writer) PushHint(v any) { w.hints = append(w.hints, v) }
func (w *Writer) Hint() (any, bool) {
	if len(w.hints) == 0 {
		return nil, false
	}
	return w.hints[len(w.hints)-1], true
}
func (w *Writer) PopHint() {
	if len(w.hints) > 0 {
		w.hints = w.hints[:len(w.hints)-1]
	}
}

func (w *Writer) HintDepth() int      { return len(w.hints) }
func (w *Writer) TruncateHints(n int) { w.hints = w.hints[:n] }

func writeIdentifier(dst *bytebufferpool.ByteBuffer, class TagClass, tag uint64, constructed bool) {
	b := byte(class) << 6
	if constructed {
		b |= 0x20
	}
	if tag < 0x1f {
		b |= byte(tag)
		_ = dst.WriteByte(b)
		return
	}
	b |= 0x1f
	_ = dst.WriteByte(b)

	// Multi-byte tag number, base-128, most significant group first, every
	// group but the last with its continuation bit set.
	var groups []byte
	groups = append(groups, byte(tag&0x7f))
	tag >>= 7
	for tag > 0 {
		groups = append(groups, byte(tag&0x7f)|0x80)
		tag >>= 7
	}
	for i := len(groups) - 1; i >= 0; i-- {
		_ = dst.WriteByte(groups[i])
	}
}

func writeLength(dst *bytebufferpool.ByteBuffer, n int64) {
	if n < 0x80 {
		_ = dst.WriteByte(byte(n))
		return
	}
	var b []byte
	for v := n; v > 0; v >>= 8 {
		b = append(b, byte(v))
	}
	// b is little-endian; emit big-endian after the length-of-length octet.
	_ = dst.WriteByte(byte(0x80 | len(b)))
	for i := len(b) - 1; i >= 0; i-- {
		_ = dst.WriteByte(b[i])
	}
}

// WriteBoolean emits DER's canonical single-byte BOOLEAN encoding: 0x00 or
// 0xff.
func (w *Writer) WriteBoolean(v bool) error {
	if v {
		return w.WriteRaw([]byte{0xff})
	}
	return w.WriteRaw([]byte{0x00})
}

// WriteLong emits v as the shortest two's-complement big-endian encoding.
func (w *Writer) WriteLong(v int64) error {
	return w.WriteBigInteger(big.NewInt(v))
}

// WriteBigInteger emits v as a minimal two's-complement big-endian INTEGER
// body (including the single leading 0x00 needed when the magnitude's top
// bit would otherwise be mistaken for a sign bit).
func (w *Writer) WriteBigInteger(v *big.Int) error {
	if v.Sign() == 0 {
		return w.WriteRaw([]byte{0x00})
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return w.WriteRaw(b)
	}

	// Negative: encode the magnitude's two's complement over the smallest
	// byte count that keeps the sign bit set. The minimal length is the
	// smallest L with -2^(8L-1) <= v, i.e. (mag-1).BitLen()/8 + 1; using
	// mag.BitLen() directly over-counts by one whenever mag is an exact
	// power of two (e.g. mag=128 would give 2 bytes instead of 1).
	mag := new(big.Int).Neg(v)
	magMinus1 := new(big.Int).Sub(mag, big.NewInt(1))
	nbytes := magMinus1.BitLen()/8 + 1
	buf := make([]byte, nbytes)
	mag.FillBytes(buf)
	// two's complement: invert magnitude bytes, add one.
	carry := byte(1)
	for i := nbytes - 1; i >= 0; i-- {
		buf[i] = ^buf[i] + carry
		if buf[i] != 0 || carry == 0 {
			carry = 0
		}
	}
	if buf[0]&0x80 == 0 {
		buf = append([]byte{0xff}, buf...)
	}
	return w.WriteRaw(buf)
}

// WriteBitString emits the leading unused-bits octet followed by bits.
func (w *Writer) WriteBitString(bits []byte, unused int) error {
	return w.WriteRaw(append([]byte{byte(unused)}, bits...))
}

func (w *Writer) WriteOctetString(b []byte) error { return w.WriteRaw(b) }
func (w *Writer) WriteString(s string) error       { return w.WriteRaw([]byte(s)) }

// WriteObjectIdentifier emits arcs (already expanded, first two arcs
// un-packed) in X.690 subidentifier form.
func (w *Writer) WriteObjectIdentifier(arcs []uint64) error {
	if len(arcs) < 2 {
		return protocolErrorf(nil, "OBJECT IDENTIFIER needs at least 2 arcs")
	}
	first := arcs[0]*40 + arcs[1]
	out := encodeSubidentifier(first)
	for _, a := range arcs[2:] {
		out = append(out, encodeSubidentifier(a)...)
	}
	return w.WriteRaw(out)
}

func encodeSubidentifier(v uint64) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	var groups []byte
	for v > 0 {
		groups = append(groups, byte(v&0x7f))
		v >>= 7
	}
	for i := 1; i < len(groups); i++ {
		groups[i] |= 0x80
	}
	// groups was built least-significant-group-first; reverse to emit
	// most-significant-group-first.
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[len(groups)-1-i] = g
	}
	return out
}
