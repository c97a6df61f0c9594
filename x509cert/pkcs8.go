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
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/der"
)

// PrivateKeyInfo is PKCS#8's PrivateKeyInfo SEQUENCE: a version, the key's
// algorithm, and the key material itself as an OCTET STRING whose content
// is the algorithm-specific private key encoding (RSAPrivateKey,
// ECPrivateKey, or for Ed25519 an OCTET STRING wrapping the 32-byte seed).
type PrivateKeyInfo struct {
	Version    int
	Algorithm  AlgorithmIdentifier
	PrivateKey []byte
}

var pkcs8VersionAdapter = der.Basic[int64]("version", der.Universal, der.TagInteger,
	func(r *der.Reader, h der.Header) (int64, error) { return r.ReadLong(h) },
	func(w *der.Writer, v int64) error { return w.WriteLong(v) })

var privateKeyOctetsAdapter = der.Basic[[]byte]("privateKey", der.Universal, der.TagOctetString,
	func(r *der.Reader, h der.Header) ([]byte, error) { return r.ReadOctetString(h) },
	func(w *der.Writer, v []byte) error { return w.WriteOctetString(v) })

func decodePrivateKeyInfo(r *der.Reader) (PrivateKeyInfo, error) {
	var pki PrivateKeyInfo
	_, err := r.Read("PrivateKeyInfo", func(der.Header) error {
		version, err := pkcs8VersionAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		alg, err := decodeAlgorithmIdentifier(r)
		if err != nil {
			return err
		}
		key, err := privateKeyOctetsAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		pki = PrivateKeyInfo{Version: int(version), Algorithm: alg, PrivateKey: key}
		return nil
	})
	return pki, err
}

func encodePrivateKeyInfo(w *der.Writer, pki PrivateKeyInfo) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := pkcs8VersionAdapter.EncodeTo(w, int64(pki.Version)); err != nil {
			return err
		}
		if err := encodeAlgorithmIdentifier(w, pki.Algorithm); err != nil {
			return err
		}
		return privateKeyOctetsAdapter.EncodeTo(w, pki.PrivateKey)
	})
}

// ParsePrivateKeyInfo decodes a DER-encoded PKCS#8 PrivateKeyInfo envelope
// without interpreting the nested algorithm-specific key bytes.
func ParsePrivateKeyInfo(raw []byte) (PrivateKeyInfo, error) {
	buf := buffer.New()
	if _, err := buf.Write(raw); err != nil {
		return PrivateKeyInfo{}, err
	}
	r := der.NewReaderFromBuffer(buf)
	return decodePrivateKeyInfo(r)
}

// EncodePrivateKeyInfo renders pki as PKCS#8 DER bytes.
func EncodePrivateKeyInfo(pki PrivateKeyInfo) ([]byte, error) {
	w := der.NewWriter()
	defer w.Release()
	if err := encodePrivateKeyInfo(w, pki); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ParsePrivateKey decodes a PKCS#8 DER envelope and further parses the
// nested key material into a crypto.Signer, dispatching on the envelope's
// Algorithm OID to the matching stdlib parser — the decoding here is
// purely structural (der package); turning the bytes into usable key
// material is delegated to the host crypto provider, same as signing and
// verification elsewhere in this package.
func ParsePrivateKey(raw []byte) (key crypto.Signer, err error) {
	_, span := tracer.Start(context.Background(), "x509cert.ParsePrivateKey",
		trace.WithAttributes(attribute.Int("x509cert.bytes", len(raw))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pki, err := ParsePrivateKeyInfo(raw)
	if err != nil {
		return nil, err
	}

	switch {
	case pki.Algorithm.Algorithm.Equal(oidRSAEncryption):
		k, perr := x509.ParsePKCS1PrivateKey(pki.PrivateKey)
		if perr != nil {
			return nil, der.WrapCrypto("parse RSA private key", perr)
		}
		return k, nil
	case pki.Algorithm.Algorithm.Equal(oidECPublicKey):
		k, perr := x509.ParseECPrivateKey(pki.PrivateKey)
		if perr != nil {
			return nil, der.WrapCrypto("parse EC private key", perr)
		}
		return k, nil
	case pki.Algorithm.Algorithm.Equal(oidEd25519):
		return parseEd25519Seed(pki.PrivateKey)
	default:
		return nil, der.NewProtocolError(nil, "unsupported private key algorithm OID %s", pki.Algorithm.Algorithm)
	}
}

// parseEd25519Seed unwraps the CurvePrivateKey OCTET STRING PKCS#8 nests
// an Ed25519 seed in (RFC 8410 §7): PrivateKey itself is the DER encoding
// of an OCTET STRING holding the 32-byte seed, not the seed directly.
func parseEd25519Seed(privateKeyOctets []byte) (crypto.Signer, error) {
	buf := buffer.New()
	if _, err := buf.Write(privateKeyOctets); err != nil {
		return nil, err
	}
	r := der.NewReaderFromBuffer(buf)
	seed, err := privateKeyOctetsAdapter.DecodeFrom(r)
	if err != nil {
		return nil, der.WrapCrypto("parse Ed25519 seed", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, der.WrapCrypto("parse Ed25519 seed", fmt.Errorf("want %d bytes, got %d", ed25519.SeedSize, len(seed)))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
