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

// Package boundary routes an inbound TLS connection to a handshake
// strategy by its ClientHello's server_name, without touching the
// handshake itself: the exact boundary spec.md §1 carves out ("higher-level
// TLS session management... covered only at the boundary").
package boundary

import (
	"github.com/jayo-projects/jayo/tlssni"
)

// DefaultStrategyKey is the fallback strategy looked up when no entry in the
// strategies map matches the ClientHello's host name, mirroring the
// teacher's protocol.Register/Get factory-map pattern's "unknown name"
// handling but without failing the route outright.
const DefaultStrategyKey = "*"

// HandshakeStrategy is the opaque handoff target once the server name is
// known; this package only selects one, it never constructs or drives it.
type HandshakeStrategy interface {
	Name() string
}

// RouteClientHello peeks conn for a ClientHello, extracts its server_name
// extension, and resolves the matching entry of strategies (falling back to
// DefaultStrategyKey). The returned ServerNameMap is handed back so a caller
// can log or re-route on it without re-parsing. conn's bytes are left
// untouched for the eventual handshake to read.
func RouteClientHello(peek tlssni.PeekReader, strategies map[string]HandshakeStrategy) (HandshakeStrategy, tlssni.ServerNameMap, error) {
	names, err := tlssni.ParseClientHello(peek)
	if err != nil {
		return nil, nil, err
	}

	host, _ := names.HostName()
	if strategy, ok := strategies[host]; ok {
		return strategy, names, nil
	}
	if strategy, ok := strategies[DefaultStrategyKey]; ok {
		return strategy, names, nil
	}
	return nil, names, nil
}
