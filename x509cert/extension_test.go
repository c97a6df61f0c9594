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
)

func TestBasicConstraintsRoundTrip(t *testing.T) {
	b, err := EncodeBasicConstraints(BasicConstraints{IsCA: true, PathLen: 2, HasPathLen: true})
	require.NoError(t, err)

	got, err := DecodeBasicConstraints(b)
	require.NoError(t, err)
	assert.True(t, got.IsCA)
	assert.True(t, got.HasPathLen)
	assert.Equal(t, 2, got.PathLen)
}

func TestBasicConstraintsOmitsDefaults(t *testing.T) {
	b, err := EncodeBasicConstraints(BasicConstraints{})
	require.NoError(t, err)

	got, err := DecodeBasicConstraints(b)
	require.NoError(t, err)
	assert.False(t, got.IsCA)
	assert.False(t, got.HasPathLen)
}

func TestSubjectAltNamesRoundTrip(t *testing.T) {
	names := []GeneralName{
		{DNSName: "example.com"},
		{IPAddress: []byte{127, 0, 0, 1}},
	}
	b, err := EncodeSubjectAltNames(names)
	require.NoError(t, err)

	got, err := DecodeSubjectAltNames(b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "example.com", got[0].DNSName)
	assert.Equal(t, []byte{127, 0, 0, 1}, got[1].IPAddress)
}
