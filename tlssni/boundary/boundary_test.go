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

package boundary

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/streamio"
)

// buildClientHelloRecord assembles a minimal TLS record carrying a
// ClientHello whose server_name extension names host.
func buildClientHelloRecord(host string) []byte {
	var entry []byte
	entry = append(entry, 0x00) // host_name
	entry = append(entry, u16(uint16(len(host)))...)
	entry = append(entry, host...)
	list := append(u16(uint16(len(entry))), entry...)

	var ext []byte
	ext = append(ext, u16(0x00)...) // server_name extension type
	ext = append(ext, u16(uint16(len(list)))...)
	ext = append(ext, list...)

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
	handshake = append(handshake, 0x01) // client_hello
	handshake = append(handshake, byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	handshake = append(handshake, body...)

	var record []byte
	record = append(record, 22) // handshake content type
	record = append(record, 0x03, 0x03)
	record = append(record, u16(uint16(len(handshake)))...)
	record = append(record, handshake...)
	return record
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

type stubStrategy struct{ name string }

func (s stubStrategy) Name() string { return s.name }

// TestRouteClientHelloFromSyntheticFrame builds a synthetic Ethernet/IPv4/TCP
// frame carrying a ClientHello, decodes it the way the sniffer's decode
// pipeline would, and checks RouteClientHello resolves the right strategy
// from the frame's TCP payload without consuming it.
func TestRouteClientHelloFromSyntheticFrame(t *testing.T) {
	tlsRecord := buildClientHelloRecord("sni.example.com")

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := &layers.TCP{
		SrcPort: 54321,
		DstPort: 443,
		Seq:     1,
		Window:  65535,
		PSH:     true,
		ACK:     true,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(tlsRecord)))

	var decodedEth layers.Ethernet
	require.NoError(t, decodedEth.DecodeFromBytes(buf.Bytes(), gopacket.NilDecodeFeedback))

	var decodedIP layers.IPv4
	require.NoError(t, decodedIP.DecodeFromBytes(decodedEth.Payload, gopacket.NilDecodeFeedback))

	var decodedTCP layers.TCP
	require.NoError(t, decodedTCP.DecodeFromBytes(decodedIP.Payload, gopacket.NilDecodeFeedback))

	src := buffer.New()
	_, _ = src.Write(decodedTCP.Payload)
	peek := streamio.New(src)

	strategies := map[string]HandshakeStrategy{
		"sni.example.com": stubStrategy{name: "leaf-service"},
		DefaultStrategyKey: stubStrategy{name: "fallback"},
	}

	strategy, names, err := RouteClientHello(peek, strategies)
	require.NoError(t, err)
	require.NotNil(t, strategy)
	assert.Equal(t, "leaf-service", strategy.Name())

	host, ok := names.HostName()
	require.True(t, ok)
	assert.Equal(t, "sni.example.com", host)

	// the handshake replay must still see every byte of the TLS record.
	replay, err := peek.ReadByteString(len(decodedTCP.Payload))
	require.NoError(t, err)
	assert.Equal(t, decodedTCP.Payload, replay.Bytes())
}

func TestRouteClientHelloFallsBackToDefaultStrategy(t *testing.T) {
	record := buildClientHelloRecord("unknown.example.com")

	src := buffer.New()
	_, _ = src.Write(record)
	peek := streamio.New(src)

	strategies := map[string]HandshakeStrategy{
		DefaultStrategyKey: stubStrategy{name: "fallback"},
	}

	strategy, _, err := RouteClientHello(peek, strategies)
	require.NoError(t, err)
	require.NotNil(t, strategy)
	assert.Equal(t, "fallback", strategy.Name())
}
