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

// Package tlssni parses a TLS ClientHello record bit-exactly to extract the
// server_name extension, so an inbound connection can be routed before the
// handshake itself is touched. Parsing never consumes bytes from the
// caller's reader: it runs entirely against a non-consuming peek of the
// record, the same bytes the eventual handshake will read again.
package tlssni

import (
	"github.com/jayo-projects/jayo/der"
)

const (
	contentTypeHandshake    = 22
	handshakeTypeClientHello = 1

	recordHeaderLen    = 5 // content type(1) + legacy version(2) + length(2)
	handshakeHeaderLen = 4 // handshake type(1) + length(3)

	// extServerName is the server_name extension's assigned type (RFC 6066 §3).
	extServerName = 0x00
)

// NameType is a server_name extension list entry's name type byte.
// HostName (0) is the only type TLS defines; others are carried opaque.
type NameType uint8

// HostName is the only NameType TLS 1.2/1.3 define (RFC 6066 §3).
const HostName NameType = 0

// ServerName is one entry of a ClientHello's server_name extension list.
type ServerName struct {
	Type NameType
	// HostName holds the decoded ASCII host name when Type == HostName.
	HostName string
	// Opaque holds the raw name bytes for any other NameType.
	Opaque []byte
}

// PeekReader is the non-consuming read contract ParseClientHello requires:
// PeekBytes returns the first n bytes of the underlying stream without
// advancing it, so a later full read replays the same bytes. *streamio.Reader
// satisfies this via its PeekBytes method.
type PeekReader interface {
	PeekBytes(n int) ([]byte, error)
}

// cursor is a bounds-checked, read-only walk over an already-peeked byte
// slice; it never touches the PeekReader again once constructed.
type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) path() []string { return []string{"tls-client-hello"} }

func (c *cursor) remaining() int { return len(c.b) - c.pos }

func (c *cursor) take(n int, field string) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, der.NewProtocolError(c.path(), "%s: need %d bytes, have %d", field, n, c.remaining())
	}
	out := c.b[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) skip(n int, field string) error {
	_, err := c.take(n, field)
	return err
}

func (c *cursor) u8(field string) (uint8, error) {
	b, err := c.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16(field string) (uint16, error) {
	b, err := c.take(2, field)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (c *cursor) u24(field string) (uint32, error) {
	b, err := c.take(3, field)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ParseClientHello parses a single TLS record carrying a ClientHello
// handshake message and returns its server_name extension entries keyed by
// NameType. A ClientHello with no server_name extension (or one exhausted
// before reaching the extensions block) yields an empty, non-nil map.
func ParseClientHello(r PeekReader) (ServerNameMap, error) {
	header, err := r.PeekBytes(recordHeaderLen)
	if err != nil {
		return nil, err
	}

	hc := &cursor{b: header}
	contentType, err := hc.u8("content-type")
	if err != nil {
		return nil, err
	}
	if contentType != contentTypeHandshake {
		return nil, der.NewProtocolError(hc.path(), "unexpected content type %d, want handshake(22)", contentType)
	}
	if err := hc.skip(2, "legacy-version"); err != nil {
		return nil, err
	}
	recordLength, err := hc.u16("record-length")
	if err != nil {
		return nil, err
	}

	full, err := r.PeekBytes(recordHeaderLen + int(recordLength))
	if err != nil {
		return nil, err
	}

	c := &cursor{b: full[recordHeaderLen:]}
	handshakeType, err := c.u8("handshake-type")
	if err != nil {
		return nil, err
	}
	if handshakeType != handshakeTypeClientHello {
		return nil, der.NewProtocolError(c.path(), "unexpected handshake type %d, want client-hello(1)", handshakeType)
	}
	handshakeLength, err := c.u24("handshake-length")
	if err != nil {
		return nil, err
	}
	if int(handshakeLength) > int(recordLength)-handshakeHeaderLen {
		return nil, der.NewProtocolError(c.path(), "handshake length %d exceeds record capacity %d", handshakeLength, int(recordLength)-handshakeHeaderLen)
	}

	if err := c.skip(2, "client-version"); err != nil {
		return nil, err
	}
	if err := c.skip(32, "random"); err != nil {
		return nil, err
	}

	sessionIDLen, err := c.u8("session-id-length")
	if err != nil {
		return nil, err
	}
	if err := c.skip(int(sessionIDLen), "session-id"); err != nil {
		return nil, err
	}

	cipherSuitesLen, err := c.u16("cipher-suites-length")
	if err != nil {
		return nil, err
	}
	if err := c.skip(int(cipherSuitesLen), "cipher-suites"); err != nil {
		return nil, err
	}

	compressionLen, err := c.u8("compression-methods-length")
	if err != nil {
		return nil, err
	}
	if err := c.skip(int(compressionLen), "compression-methods"); err != nil {
		return nil, err
	}

	if c.remaining() == 0 {
		return ServerNameMap{}, nil
	}

	extensionsLen, err := c.u16("extensions-length")
	if err != nil {
		return nil, err
	}
	extBytes, err := c.take(int(extensionsLen), "extensions")
	if err != nil {
		return nil, err
	}

	return parseExtensions(extBytes)
}

func parseExtensions(b []byte) (ServerNameMap, error) {
	names := ServerNameMap{}
	c := &cursor{b: b}
	for c.remaining() > 0 {
		extType, err := c.u16("extension-type")
		if err != nil {
			return nil, err
		}
		extLen, err := c.u16("extension-length")
		if err != nil {
			return nil, err
		}
		body, err := c.take(int(extLen), "extension-body")
		if err != nil {
			return nil, err
		}

		if extType != extServerName {
			continue
		}
		if err := parseServerNameList(body, names); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func parseServerNameList(b []byte, out ServerNameMap) error {
	c := &cursor{b: b}
	listLen, err := c.u16("server-name-list-length")
	if err != nil {
		return err
	}
	listBytes, err := c.take(int(listLen), "server-name-list")
	if err != nil {
		return err
	}

	lc := &cursor{b: listBytes}
	for lc.remaining() > 0 {
		nameType, err := lc.u8("server-name-type")
		if err != nil {
			return err
		}
		nameLen, err := lc.u16("server-name-length")
		if err != nil {
			return err
		}
		nameBytes, err := lc.take(int(nameLen), "server-name")
		if err != nil {
			return err
		}

		t := NameType(nameType)
		if _, dup := out[t]; dup {
			return der.NewProtocolError(lc.path(), "duplicate server name type %d", nameType)
		}

		if t == HostName {
			if len(nameBytes) == 0 {
				return der.NewProtocolError(lc.path(), "zero-length host_name")
			}
			host, err := normalizeHostName(nameBytes)
			if err != nil {
				return err
			}
			out[t] = ServerName{Type: t, HostName: host}
			continue
		}
		out[t] = ServerName{Type: t, Opaque: append([]byte(nil), nameBytes...)}
	}
	return nil
}
