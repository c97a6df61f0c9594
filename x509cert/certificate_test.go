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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayo-projects/jayo/der"
)

func TestGenerateHeldCertificateSelfSignedRoundTrip(t *testing.T) {
	held, err := GenerateHeldCertificate(HeldCertificateConfig{
		CommonName: "example.com",
		Hostnames:  []string{"example.com", "www.example.com"},
		IsCA:       true,
	})
	require.NoError(t, err)

	pemText, err := held.CertificatePem()
	require.NoError(t, err)
	assert.Contains(t, pemText, "BEGIN CERTIFICATE")

	parsed, err := DecodeCertificatePem(pemText)
	require.NoError(t, err)

	cn, ok := parsed.TBSCertificate.Subject.CommonName()
	require.True(t, ok)
	assert.Equal(t, "example.com", cn)

	san, err := DecodeSubjectAltNames(findExtension(t, parsed, oidExtSubjectAltName).Value)
	require.NoError(t, err)
	var names []string
	for _, n := range san {
		names = append(names, n.DNSName)
	}
	assert.ElementsMatch(t, []string{"example.com", "www.example.com"}, names)

	bc, err := DecodeBasicConstraints(findExtension(t, parsed, oidExtBasicConstraints).Value)
	require.NoError(t, err)
	assert.True(t, bc.IsCA)
}

func TestGenerateHeldCertificateSignedByCA(t *testing.T) {
	ca, err := GenerateHeldCertificate(HeldCertificateConfig{CommonName: "root CA", IsCA: true})
	require.NoError(t, err)

	leaf, err := GenerateHeldCertificate(HeldCertificateConfig{
		CommonName: "leaf.example.com",
		SignedBy:   ca,
	})
	require.NoError(t, err)

	assert.Equal(t, "root CA", commonNameOrFail(t, leaf.Certificate.TBSCertificate.Issuer))
	assert.Equal(t, "leaf.example.com", commonNameOrFail(t, leaf.Certificate.TBSCertificate.Subject))
}

func TestPrivateKeyInfoRoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	keyBytes, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	pki := PrivateKeyInfo{
		Version:    0,
		Algorithm:  AlgorithmIdentifier{Algorithm: oidECPublicKey, Parameters: AlgorithmParameters{Curve: oidNamedCurveP256}},
		PrivateKey: keyBytes,
	}

	out, err := EncodePrivateKeyInfo(pki)
	require.NoError(t, err)

	got, err := ParsePrivateKeyInfo(out)
	require.NoError(t, err)
	assert.Equal(t, pki.Version, got.Version)
	assert.True(t, pki.Algorithm.Algorithm.Equal(got.Algorithm.Algorithm))
	assert.Equal(t, pki.PrivateKey, got.PrivateKey)

	signer, err := ParsePrivateKey(out)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), signer.Public())
}

func TestUTCTimeCutoff(t *testing.T) {
	before := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2060, time.June, 1, 0, 0, 0, 0, time.UTC)

	w := der.NewWriter()
	require.NoError(t, timeAdapter.EncodeTo(w, before))
	encodedBefore := w.Bytes()
	w.Release()

	w2 := der.NewWriter()
	require.NoError(t, timeAdapter.EncodeTo(w2, after))
	encodedAfter := w2.Bytes()
	w2.Release()

	assert.Equal(t, byte(0x17), encodedBefore[0], "UTCTime tag expected before cutoff")
	assert.Equal(t, byte(0x18), encodedAfter[0], "GeneralizedTime tag expected at/after cutoff")
}

func findExtension(t *testing.T, cert Certificate, id OID) Extension {
	t.Helper()
	for _, ext := range cert.TBSCertificate.Extensions {
		if ext.ID.Equal(id) {
			return ext
		}
	}
	t.Fatalf("extension %s not found", id)
	return Extension{}
}

func commonNameOrFail(t *testing.T, n Name) string {
	t.Helper()
	cn, ok := n.CommonName()
	require.True(t, ok)
	return cn
}
