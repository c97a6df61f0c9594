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

// AlgorithmIdentifier is the AlgorithmIdentifier SEQUENCE shared by
// TBSCertificate's signature field, SubjectPublicKeyInfo, and PKCS#8's
// PrivateKeyInfo: an OID naming the algorithm plus algorithm-specific
// parameters whose shape depends on that OID.
type AlgorithmIdentifier struct {
	Algorithm  OID
	Parameters AlgorithmParameters
}

// AlgorithmParameters is the decoded form of AlgorithmIdentifier's
// parameters field, resolved by the published Algorithm hint: absent for
// the RSA signature/key family (NULL is still present on the wire but
// carries no information), a named curve OID for EC keys, and an opaque
// captured element for anything this schema doesn't special-case.
type AlgorithmParameters struct {
	Curve  OID
	Opaque *der.RawElement
}

var nullParamsAdapter = der.Basic[AlgorithmParameters]("null", der.Universal, der.TagNull,
	func(r *der.Reader, h der.Header) (AlgorithmParameters, error) {
		if h.Length != 0 {
			return AlgorithmParameters{}, der.NewProtocolError(nil, "NULL parameters must have zero length")
		}
		return AlgorithmParameters{}, nil
	},
	func(w *der.Writer, _ AlgorithmParameters) error { return nil },
)

var curveParamsAdapter = der.Basic[AlgorithmParameters]("curve", der.Universal, der.TagObjectID,
	func(r *der.Reader, h der.Header) (AlgorithmParameters, error) {
		oid, err := decodeOIDBody(r, h)
		if err != nil {
			return AlgorithmParameters{}, err
		}
		return AlgorithmParameters{Curve: oid}, nil
	},
	func(w *der.Writer, v AlgorithmParameters) error { return encodeOIDBody(w, v.Curve) },
)

var opaqueParamsAdapter = der.Any[AlgorithmParameters]("opaque-params",
	func(r *der.Reader, h der.Header) (AlgorithmParameters, error) {
		raw, err := der.Opaque.DecodeBody(r, h)
		if err != nil {
			return AlgorithmParameters{}, err
		}
		return AlgorithmParameters{Opaque: &raw}, nil
	},
	func(w *der.Writer, v AlgorithmParameters) error {
		if v.Opaque == nil {
			return der.NewProtocolError(nil, "opaque algorithm parameters missing raw element")
		}
		return der.Opaque.EncodeBody(w, *v.Opaque)
	},
)

// parametersAdapter dispatches on the Algorithm OID that
// decodeAlgorithmIdentifier and encodeAlgorithmIdentifier (below) publish as
// a type hint through der.AsTypeHint.
var parametersAdapter = der.UsingTypeHint[AlgorithmParameters]("parameters",
	func(hint any, ok bool) (der.Adapter[AlgorithmParameters], bool) {
		if !ok {
			return der.Adapter[AlgorithmParameters]{}, false
		}
		oid, ok := hint.(OID)
		if !ok {
			return der.Adapter[AlgorithmParameters]{}, false
		}
		switch {
		case oid.Equal(oidRSAEncryption),
			oid.Equal(oidSHA256WithRSAEncryption),
			oid.Equal(oidSHA384WithRSAEncryption),
			oid.Equal(oidSHA512WithRSAEncryption):
			return nullParamsAdapter, true
		case oid.Equal(oidECPublicKey):
			return curveParamsAdapter, true
		case oid.Equal(oidECDSAWithSHA256),
			oid.Equal(oidECDSAWithSHA384),
			oid.Equal(oidECDSAWithSHA512),
			oid.Equal(oidEd25519):
			// these signature algorithms carry no parameters at all (absent,
			// not even NULL); handled specially in decode/encode below.
			return der.Adapter[AlgorithmParameters]{}, false
		}
		return der.Adapter[AlgorithmParameters]{}, false
	},
	opaqueParamsAdapter,
)

func decodeAlgorithmIdentifier(r *der.Reader) (AlgorithmIdentifier, error) {
	var id AlgorithmIdentifier
	_, err := r.Read("AlgorithmIdentifier", func(der.Header) error {
		alg, err := der.AsTypeHint(oidAdapter).DecodeFrom(r)
		if err != nil {
			return err
		}
		id.Algorithm = alg

		if noParamsAlgorithm(alg) {
			id.Parameters = AlgorithmParameters{}
			return nil
		}
		params, err := parametersAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		id.Parameters = params
		return nil
	})
	return id, err
}

func encodeAlgorithmIdentifier(w *der.Writer, id AlgorithmIdentifier) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := der.AsTypeHint(oidAdapter).EncodeTo(w, id.Algorithm); err != nil {
			return err
		}
		if noParamsAlgorithm(id.Algorithm) {
			return nil
		}
		return parametersAdapter.EncodeTo(w, id.Parameters)
	})
}

func noParamsAlgorithm(oid OID) bool {
	return oid.Equal(oidECDSAWithSHA256) || oid.Equal(oidECDSAWithSHA384) ||
		oid.Equal(oidECDSAWithSHA512) || oid.Equal(oidEd25519)
}
