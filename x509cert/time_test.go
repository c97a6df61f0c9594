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

package x509cert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/der"
)

func TestDecodeUTCTimeAppliesRFCCutoff(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"500101000000Z", time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"680101000000Z", time.Date(1968, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"690101000000Z", time.Date(1969, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"000101000000Z", time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"490101000000Z", time.Date(2049, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		w := der.NewWriter()
		require.NoError(t, w.Write(der.Universal, der.TagUTCTime, nil, func() error { return w.WriteString(c.raw) }))
		b := w.Bytes()
		w.Release()

		r := der.NewReaderFromBuffer(bufFromBytes(b))
		got, err := utcTimeAdapter.DecodeFrom(r)
		require.NoError(t, err, "decoding %q", c.raw)
		assert.True(t, c.want.Equal(got), "decode(%q) = %v, want %v", c.raw, got, c.want)
	}
}
