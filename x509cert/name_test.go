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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/der"
)

func TestNameRoundTripAndString(t *testing.T) {
	name := NewName("C", "US", "O", "Acme Co", "CN", "example.com")

	w := der.NewWriter()
	require.NoError(t, encodeName(w, name))
	b := w.Bytes()
	w.Release()

	r := der.NewReaderFromBuffer(bufFromBytes(b))
	got, err := decodeName(r)
	require.NoError(t, err)

	cn, ok := got.CommonName()
	require.True(t, ok)
	assert.Equal(t, "example.com", cn)
	assert.Equal(t, "CN=example.com,O=Acme Co,C=US", got.String())
}

func TestAttributeLabelFallsBackToOID(t *testing.T) {
	unknown := oidOf(1, 2, 3, 4)
	assert.Equal(t, "1.2.3.4", attributeLabel(unknown))
}
