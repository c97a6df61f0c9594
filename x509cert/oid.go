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

// Package x509cert implements the RFC 5280 X.509 certificate and PKCS#8
// private-key schema on top of package der, plus HeldCertificate utilities
// (spec.md §4.5, §9) for building and composing certificate chains for
// tests and tooling.
package x509cert

import (
	"strconv"
	"strings"

	"github.com/jayo-projects/jayo/der"
)

// OID is an ASN.1 OBJECT IDENTIFIER, arcs in declared order (already
// unpacked: the first two arcs are the literal X, Y values, not the
// combined X*40+Y subidentifier der.Reader/Writer work with internally).
type OID []uint64

func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

func (o OID) String() string {
	parts := make([]string, len(o))
	for i, a := range o {
		parts[i] = strconv.FormatUint(a, 10)
	}
	return strings.Join(parts, ".")
}

func oidOf(arcs ...uint64) OID { return OID(arcs) }

// Well-known OIDs the certificate/PKCS8 schema and its extensions need.
var (
	oidRSAEncryption           = oidOf(1, 2, 840, 113549, 1, 1, 1)
	oidSHA256WithRSAEncryption = oidOf(1, 2, 840, 113549, 1, 1, 11)
	oidSHA384WithRSAEncryption = oidOf(1, 2, 840, 113549, 1, 1, 12)
	oidSHA512WithRSAEncryption = oidOf(1, 2, 840, 113549, 1, 1, 13)
	oidECPublicKey             = oidOf(1, 2, 840, 10045, 2, 1)
	oidECDSAWithSHA256         = oidOf(1, 2, 840, 10045, 4, 3, 2)
	oidECDSAWithSHA384         = oidOf(1, 2, 840, 10045, 4, 3, 3)
	oidECDSAWithSHA512         = oidOf(1, 2, 840, 10045, 4, 3, 4)
	oidEd25519                 = oidOf(1, 3, 101, 112)

	oidNamedCurveP256 = oidOf(1, 2, 840, 10045, 3, 1, 7)
	oidNamedCurveP384 = oidOf(1, 3, 132, 0, 34)
	oidNamedCurveP521 = oidOf(1, 3, 132, 0, 35)

	oidCommonName         = oidOf(2, 5, 4, 3)
	oidCountryName        = oidOf(2, 5, 4, 6)
	oidOrganizationName   = oidOf(2, 5, 4, 10)
	oidOrganizationalUnit = oidOf(2, 5, 4, 11)
	oidLocalityName       = oidOf(2, 5, 4, 7)
	oidStateOrProvince    = oidOf(2, 5, 4, 8)

	oidExtBasicConstraints = oidOf(2, 5, 29, 19)
	oidExtKeyUsage         = oidOf(2, 5, 29, 15)
	oidExtSubjectAltName   = oidOf(2, 5, 29, 17)
)

var attributeNames = map[string]OID{
	"CN": oidCommonName,
	"C":  oidCountryName,
	"O":  oidOrganizationName,
	"OU": oidOrganizationalUnit,
	"L":  oidLocalityName,
	"ST": oidStateOrProvince,
}

func attributeLabel(oid OID) string {
	for label, o := range attributeNames {
		if o.Equal(oid) {
			return label
		}
	}
	return oid.String()
}

func decodeOIDBody(r *der.Reader, h der.Header) (OID, error) {
	arcs, err := r.ReadObjectIdentifier(h)
	if err != nil {
		return nil, err
	}
	return OID(arcs), nil
}

func encodeOIDBody(w *der.Writer, v OID) error {
	return w.WriteObjectIdentifier([]uint64(v))
}

// oidAdapter is the base OBJECT IDENTIFIER adapter, reused (re-tagged via
// der.WithTag where an IMPLICIT context tag applies) throughout the schema.
var oidAdapter = der.Basic[OID]("oid", der.Universal, der.TagObjectID, decodeOIDBody, encodeOIDBody)
