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
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// ByteString is an immutable view over a run of bytes. Unlike Buffer it
// carries no segment chain: constructing one (including via
// Buffer.Snapshot) always copies a fixed run, never a live, growable one.
type ByteString struct {
	b []byte
}

// Of copies b into a new ByteString.
func Of(b []byte) ByteString {
	return ByteString{b: append([]byte(nil), b...)}
}

// OfString copies s into a new ByteString.
func OfString(s string) ByteString {
	return ByteString{b: []byte(s)}
}

// ReadFrom reads exactly n bytes from r into a new ByteString.
func ReadFrom(r RawReader, n int) (ByteString, error) {
	buf := New()
	defer buf.Close()

	for buf.Len() < n {
		got, err := r.ReadAtMostTo(buf, n-buf.Len())
		if err != nil {
			return ByteString{}, err
		}
		if got == -1 {
			return ByteString{}, errors.Wrapf(EndOfInput, "need %d bytes, have %d", n, buf.Len())
		}
	}
	return buf.ReadByteString(n)
}

func (b ByteString) Len() int { return len(b.b) }

// Bytes returns the underlying bytes. Callers must not mutate the returned
// slice: ByteString promises immutability to anyone else holding it.
func (b ByteString) Bytes() []byte { return b.b }

func (b ByteString) String() string { return string(b.b) }

func (b ByteString) Substring(from, to int) ByteString {
	return Of(b.b[from:to])
}

func (b ByteString) HasPrefix(prefix ByteString) bool {
	return bytes.HasPrefix(b.b, prefix.b)
}

func (b ByteString) HasSuffix(suffix ByteString) bool {
	return bytes.HasSuffix(b.b, suffix.b)
}

func (b ByteString) IndexOf(sub ByteString, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(b.b) {
		return -1
	}
	i := bytes.Index(b.b[from:], sub.b)
	if i < 0 {
		return -1
	}
	return i + from
}

func (b ByteString) LastIndexOf(sub ByteString) int {
	return bytes.LastIndex(b.b, sub.b)
}

func (b ByteString) Equal(other ByteString) bool {
	return bytes.Equal(b.b, other.b)
}

func (b ByteString) Base64() string {
	return base64.StdEncoding.EncodeToString(b.b)
}

func (b ByteString) Base64Url() string {
	return base64.URLEncoding.EncodeToString(b.b)
}

func (b ByteString) Hex() string {
	return hex.EncodeToString(b.b)
}

func (b ByteString) ToAsciiLowercase() ByteString {
	return Of(bytes.ToLower(b.b))
}

func (b ByteString) ToAsciiUppercase() ByteString {
	return Of(bytes.ToUpper(b.b))
}

// DecodeHex decodes a hex string, rejecting odd length and non-hex
// characters (spec.md §6).
func DecodeHex(s string) (ByteString, bool) {
	if len(s)%2 != 0 {
		return ByteString{}, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ByteString{}, false
	}
	return ByteString{b: b}, true
}

// DecodeBase64 decodes standard or URL-safe base64, tolerating embedded
// whitespace (spec.md §6, S8), and returns ok=false when the input cannot
// decode to a whole byte sequence.
func DecodeBase64(s string) (ByteString, bool) {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '-':
			sb.WriteRune('+')
		case '_':
			sb.WriteRune('/')
		default:
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()

	// base64.StdEncoding requires padding; reconstruct it if missing.
	if n := len(cleaned) % 4; n != 0 {
		cleaned += strings.Repeat("=", 4-n)
	}

	b, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return ByteString{}, false
	}
	return ByteString{b: b}, true
}
