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
	"crypto/tls"
	"crypto/x509"

	"github.com/mitchellh/mapstructure"

	"github.com/jayo-projects/jayo/der"
)

// HandshakeCertificatesConfig describes everything NewHandshakeCertificates
// needs to assemble a standard-library *tls.Config: the presented identity,
// any intermediates to serve alongside it, the trust roots for verifying
// peers, and a host allowlist for deliberately-insecure test setups.
type HandshakeCertificatesConfig struct {
	HeldCertificate     *HeldCertificate
	IntermediateChain   []Certificate
	TrustedRoots        []Certificate
	InsecureHostAllowed []string
}

// NewHandshakeCertificatesConfigFromMap is the map-based constructor
// counterpart to NewHeldCertificateConfigFromMap, for embedders that wire
// this config up from a dynamically loaded map rather than Go literals.
// HeldCertificate/certificate fields are expected to already be decoded
// (mapstructure has no business parsing DER) — this only wires scalar
// fields such as InsecureHostAllowed.
func NewHandshakeCertificatesConfigFromMap(m map[string]any) (HandshakeCertificatesConfig, error) {
	var cfg HandshakeCertificatesConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	err = decoder.Decode(m)
	return cfg, err
}

// NewHandshakeCertificates assembles a *tls.Config from cfg: the host
// certificate (and any intermediates) for presentation and a root pool built
// from TrustedRoots. When InsecureHostAllowed is non-empty,
// InsecureSkipVerify is set for every peer and VerifyPeerCertificate accepts
// a peer only if its certificate's CommonName or a DNS name is on the list,
// without chain verification; every other peer is rejected, not verified
// against the root pool. This is the
// last stop before handing off to crypto/tls, not a handshake
// reimplementation (spec.md §1's boundary with "higher-level TLS session
// management").
func NewHandshakeCertificates(cfg HandshakeCertificatesConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.HeldCertificate != nil {
		leafDER, err := EncodeCertificate(cfg.HeldCertificate.Certificate)
		if err != nil {
			return nil, err
		}
		chain := [][]byte{leafDER}
		for _, c := range cfg.IntermediateChain {
			b, err := EncodeCertificate(c)
			if err != nil {
				return nil, err
			}
			chain = append(chain, b)
		}
		tlsCfg.Certificates = []tls.Certificate{{
			Certificate: chain,
			PrivateKey:  cfg.HeldCertificate.PrivateKey,
		}}
	}

	if len(cfg.TrustedRoots) > 0 {
		pool := x509.NewCertPool()
		for _, root := range cfg.TrustedRoots {
			rootDER, err := EncodeCertificate(root)
			if err != nil {
				return nil, err
			}
			parsed, err := x509.ParseCertificate(rootDER)
			if err != nil {
				return nil, der.WrapCrypto("parse trusted root for pool", err)
			}
			pool.AddCert(parsed)
		}
		tlsCfg.RootCAs = pool
		tlsCfg.ClientCAs = pool
	}

	if len(cfg.InsecureHostAllowed) > 0 {
		allowed := make(map[string]bool, len(cfg.InsecureHostAllowed))
		for _, h := range cfg.InsecureHostAllowed {
			allowed[h] = true
		}
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return der.NewProtocolError(nil, "no peer certificate presented")
			}
			peer, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return der.WrapCrypto("parse peer certificate", err)
			}
			if allowed[peer.Subject.CommonName] {
				return nil
			}
			for _, name := range peer.DNSNames {
				if allowed[name] {
					return nil
				}
			}
			return der.NewProtocolError(nil, "peer %s not in insecure allowlist", peer.Subject.CommonName)
		}
	}

	return tlsCfg, nil
}
