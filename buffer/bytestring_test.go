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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteStringHexRoundTrip(t *testing.T) {
	bs := OfString("hello")
	assert.Equal(t, "68656c6c6f", bs.Hex())

	decoded, ok := DecodeHex("68656c6c6f")
	require.True(t, ok)
	assert.Equal(t, "hello", decoded.String())
}

func TestDecodeHexRejectsOddLengthOrNonHex(t *testing.T) {
	_, ok := DecodeHex("abc")
	assert.False(t, ok)

	_, ok = DecodeHex("zz")
	assert.False(t, ok)
}

// TestDecodeBase64Whitespace is spec.md §8 scenario S8.
func TestDecodeBase64Whitespace(t *testing.T) {
	bs, ok := DecodeBase64(" AA A\r\nA ")
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0}, bs.Bytes())
}

func TestDecodeBase64UrlSafe(t *testing.T) {
	bs := OfString("a>??b")
	url := bs.Base64Url()

	decoded, ok := DecodeBase64(url)
	require.True(t, ok)
	assert.Equal(t, "a>??b", decoded.String())
}

func TestByteStringIndexOfAndAffixes(t *testing.T) {
	bs := OfString("hello world")
	assert.True(t, bs.HasPrefix(OfString("hello")))
	assert.True(t, bs.HasSuffix(OfString("world")))
	assert.Equal(t, 6, bs.IndexOf(OfString("world"), 0))
	assert.Equal(t, -1, bs.IndexOf(OfString("xyz"), 0))
}

func TestByteStringAsciiCase(t *testing.T) {
	bs := OfString("MiXeD")
	assert.Equal(t, "mixed", bs.ToAsciiLowercase().String())
	assert.Equal(t, "MIXED", bs.ToAsciiUppercase().String())
}
