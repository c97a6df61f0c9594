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

// CertificateChainCleaner walks a leaf certificate's issuer chain through
// a pool of candidate intermediates (and itself, for self-signed roots),
// producing the minimal ordered chain from leaf to the first
// self-signed (or unresolvable) certificate — a small utility alongside
// PEM decode/encode that spec.md's Non-goals (no general ASN.1 toolkit, no
// BER) do not exclude.
type CertificateChainCleaner struct {
	TrustedRoots []Certificate
}

// Clean returns chain starting at leaf, followed by each issuer found
// among candidates (and TrustedRoots), stopping at the first
// self-signed certificate or when no issuer can be found.
func (c CertificateChainCleaner) Clean(leaf Certificate, candidates []Certificate) []Certificate {
	pool := append(append([]Certificate(nil), candidates...), c.TrustedRoots...)

	result := []Certificate{leaf}
	current := leaf
	seen := map[string]bool{chainKey(leaf): true}

	for {
		if isSelfSigned(current) {
			return result
		}
		issuer, ok := findIssuer(current, pool)
		if !ok {
			return result
		}
		key := chainKey(issuer)
		if seen[key] {
			return result // cycle guard
		}
		seen[key] = true
		result = append(result, issuer)
		current = issuer
	}
}

func isSelfSigned(cert Certificate) bool {
	return cert.TBSCertificate.Issuer.String() == cert.TBSCertificate.Subject.String()
}

func findIssuer(cert Certificate, candidates []Certificate) (Certificate, bool) {
	issuerName := cert.TBSCertificate.Issuer.String()
	for _, cand := range candidates {
		if cand.TBSCertificate.Subject.String() == issuerName && chainKey(cand) != chainKey(cert) {
			return cand, true
		}
	}
	return Certificate{}, false
}

func chainKey(cert Certificate) string {
	if cert.TBSCertificate.SerialNumber == nil {
		return cert.TBSCertificate.Subject.String()
	}
	return cert.TBSCertificate.Issuer.String() + "|" + cert.TBSCertificate.SerialNumber.String()
}
