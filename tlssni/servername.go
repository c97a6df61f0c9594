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
	"strconv"

	json "github.com/goccy/go-json"
	"golang.org/x/net/idna"

	"github.com/jayo-projects/jayo/der"
)

// ServerNameMap is the result of ParseClientHello: a server_name extension's
// entries keyed by NameType, host_name(0) being the only type TLS defines.
type ServerNameMap map[NameType]ServerName

// MarshalJSON renders the map with decimal NameType keys for log/debug
// output; ServerNameMap is never sent over the wire itself.
func (m ServerNameMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]ServerName, len(m))
	for t, n := range m {
		out[strconv.Itoa(int(t))] = n
	}
	return json.Marshal(out)
}

// HostName, if present, returns the normalized host_name entry.
func (m ServerNameMap) HostName() (string, bool) {
	n, ok := m[HostName]
	if !ok {
		return "", false
	}
	return n.HostName, true
}

// normalizeHostName applies IDNA's Lookup profile (ToASCII with UTS #46
// mapping, which lowercases) to the raw server_name bytes, so "EXAMPLE.com" and a
// punycode-equivalent label both map to the same routing key.
func normalizeHostName(raw []byte) (string, error) {
	ascii, err := idna.Lookup.ToASCII(string(raw))
	if err != nil {
		return "", der.NewProtocolError([]string{"server-name"}, "invalid host name %q: %v", raw, err)
	}
	return ascii, nil
}
