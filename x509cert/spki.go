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

import "github.com/jayo-projects/jayo/der"

// SubjectPublicKeyInfo is RFC 5280's SPKI SEQUENCE: the key's algorithm
// plus the key material itself, bit-packed as a BIT STRING whose contents
// are algorithm-specific (an RSAPublicKey SEQUENCE, an uncompressed EC
// point, a raw Ed25519 key, ...) and left undecoded here.
type SubjectPublicKeyInfo struct {
	Algorithm AlgorithmIdentifier
	PublicKey []byte
}

var publicKeyBitStringAdapter = der.Basic[[]byte]("subjectPublicKey", der.Universal, der.TagBitString,
	func(r *der.Reader, h der.Header) ([]byte, error) {
		bits, unused, err := r.ReadBitString(h)
		if err != nil {
			return nil, err
		}
		if unused != 0 {
			return nil, der.NewProtocolError(nil, "SubjectPublicKeyInfo key must be byte-aligned, got %d unused bits", unused)
		}
		return bits, nil
	},
	func(w *der.Writer, v []byte) error { return w.WriteBitString(v, 0) })

func decodeSubjectPublicKeyInfo(r *der.Reader) (SubjectPublicKeyInfo, error) {
	var spki SubjectPublicKeyInfo
	_, err := r.Read("SubjectPublicKeyInfo", func(der.Header) error {
		alg, err := decodeAlgorithmIdentifier(r)
		if err != nil {
			return err
		}
		key, err := publicKeyBitStringAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		spki = SubjectPublicKeyInfo{Algorithm: alg, PublicKey: key}
		return nil
	})
	return spki, err
}

func encodeSubjectPublicKeyInfo(w *der.Writer, spki SubjectPublicKeyInfo) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := encodeAlgorithmIdentifier(w, spki.Algorithm); err != nil {
			return err
		}
		return publicKeyBitStringAdapter.EncodeTo(w, spki.PublicKey)
	})
}
