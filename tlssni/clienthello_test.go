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

package tlssni

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/streamio"
)

// buildClientHello assembles a minimal but wire-accurate TLS record carrying
// a ClientHello whose only extension is server_name, with host as the lone
// host_name entry.
func buildClientHello(t *testing.T, host string) []byte {
	t.Helper()

	var serverNameEntry []byte
	serverNameEntry = append(serverNameEntry, HostName.byteValue())
	serverNameEntry = append(serverNameEntry, u16(uint16(len(host)))...)
	serverNameEntry = append(serverNameEntry, host...)

	serverNameList := append(u16(uint16(len(serverNameEntry))), serverNameEntry...)

	var extServerNameBytes []byte
	extServerNameBytes = append(extServerNameBytes, u16(extServerName)...)
	extServerNameBytes = append(extServerNameBytes, u16(uint16(len(serverNameList)))...)
	extServerNameBytes = append(extServerNameBytes, serverNameList...)

	extensions := extServerNameBytes

	var body []byte
	body = append(body, 0x03, 0x03) // client version (TLS 1.2 wire value)
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00)       // session id length
	body = append(body, u16(2)...)  // cipher suites length
	body = append(body, 0x00, 0x00) // one cipher suite
	body = append(body, 0x01, 0x00) // compression methods: length 1, null
	body = append(body, u16(uint16(len(extensions)))...)
	body = append(body, extensions...)

	var handshake []byte
	handshake = append(handshake, handshakeTypeClientHello)
	handshake = append(handshake, u24(uint32(len(body)))...)
	handshake = append(handshake, body...)

	var record []byte
	record = append(record, contentTypeHandshake)
	record = append(record, 0x03, 0x03) // legacy record version
	record = append(record, u16(uint16(len(handshake)))...)
	record = append(record, handshake...)
	return record
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u24(v uint32) []byte {
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func (t NameType) byteValue() byte { return byte(t) }

func TestParseClientHelloExtractsServerName(t *testing.T) {
	record := buildClientHello(t, "example.com")

	src := buffer.New()
	_, _ = src.Write(record)
	r := streamio.New(src)

	names, err := ParseClientHello(r)
	require.NoError(t, err)

	host, ok := names.HostName()
	require.True(t, ok)
	assert.Equal(t, "example.com", host)
}

func TestParseClientHelloDoesNotConsumeBytes(t *testing.T) {
	record := buildClientHello(t, "example.com")

	src := buffer.New()
	_, _ = src.Write(record)
	r := streamio.New(src)

	_, err := ParseClientHello(r)
	require.NoError(t, err)

	// a subsequent full read must see every byte of the original record.
	got, err := r.ReadByteString(len(record))
	require.NoError(t, err)
	assert.Equal(t, record, got.Bytes())
}

func TestParseClientHelloRejectsWrongContentType(t *testing.T) {
	record := buildClientHello(t, "example.com")
	record[0] = 23 // application_data instead of handshake

	src := buffer.New()
	_, _ = src.Write(record)
	r := streamio.New(src)

	_, err := ParseClientHello(r)
	assert.Error(t, err)
}

func TestParseClientHelloEmptyAfterFixedFieldsYieldsNoSNI(t *testing.T) {
	var body []byte
	body = append(body, 0x03, 0x03)
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00)
	body = append(body, u16(2)...)
	body = append(body, 0x00, 0x00)
	body = append(body, 0x01, 0x00)

	var handshake []byte
	handshake = append(handshake, handshakeTypeClientHello)
	handshake = append(handshake, u24(uint32(len(body)))...)
	handshake = append(handshake, body...)

	var record []byte
	record = append(record, contentTypeHandshake)
	record = append(record, 0x03, 0x03)
	record = append(record, u16(uint16(len(handshake)))...)
	record = append(record, handshake...)

	src := buffer.New()
	_, _ = src.Write(record)
	r := streamio.New(src)

	names, err := ParseClientHello(r)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseClientHelloRejectsDuplicateNameType(t *testing.T) {
	var entry []byte
	entry = append(entry, HostName.byteValue())
	entry = append(entry, u16(uint16(len("a.com")))...)
	entry = append(entry, "a.com"...)

	serverNameList := append(entry, entry...) // same host_name type twice
	listWithLen := append(u16(uint16(len(serverNameList))), serverNameList...)

	var ext []byte
	ext = append(ext, u16(extServerName)...)
	ext = append(ext, u16(uint16(len(listWithLen)))...)
	ext = append(ext, listWithLen...)

	var body []byte
	body = append(body, 0x03, 0x03)
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00)
	body = append(body, u16(2)...)
	body = append(body, 0x00, 0x00)
	body = append(body, 0x01, 0x00)
	body = append(body, u16(uint16(len(ext)))...)
	body = append(body, ext...)

	var handshake []byte
	handshake = append(handshake, handshakeTypeClientHello)
	handshake = append(handshake, u24(uint32(len(body)))...)
	handshake = append(handshake, body...)

	var record []byte
	record = append(record, contentTypeHandshake)
	record = append(record, 0x03, 0x03)
	record = append(record, u16(uint16(len(handshake)))...)
	record = append(record, handshake...)

	src := buffer.New()
	_, _ = src.Write(record)
	r := streamio.New(src)

	_, err := ParseClientHello(r)
	assert.Error(t, err)
}
