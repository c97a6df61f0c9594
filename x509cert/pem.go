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
	"encoding/pem"

	"github.com/hashicorp/go-multierror"

	"github.com/jayo-projects/jayo/der"
)

const (
	pemCertificateType = "CERTIFICATE"
	pemPrivateKeyType  = "PRIVATE KEY"
)

// EncodeCertificatePem renders cert as a PEM-armored DER Certificate.
func EncodeCertificatePem(cert Certificate) (string, error) {
	derBytes, err := EncodeCertificate(cert)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemCertificateType, Bytes: derBytes})), nil
}

// DecodeCertificatePem parses a single PEM-armored Certificate block.
func DecodeCertificatePem(text string) (Certificate, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil || block.Type != pemCertificateType {
		return Certificate{}, der.NewProtocolError(nil, "no PEM %s block found", pemCertificateType)
	}
	return ParseCertificate(block.Bytes)
}

// DecodeCertificateChainPem parses every CERTIFICATE block in text, in
// the order they appear (leaf first, by PEM convention).
func DecodeCertificateChainPem(text string) ([]Certificate, error) {
	var certs []Certificate
	var merr *multierror.Error
	rest := []byte(text)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != pemCertificateType {
			continue
		}
		cert, err := ParseCertificate(block.Bytes)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		certs = append(certs, cert)
	}
	if merr != nil {
		return certs, merr.ErrorOrNil()
	}
	return certs, nil
}

// EncodePrivateKeyPkcs8Pem renders pki as a PEM-armored PKCS#8 PrivateKeyInfo.
func EncodePrivateKeyPkcs8Pem(pki PrivateKeyInfo) (string, error) {
	derBytes, err := EncodePrivateKeyInfo(pki)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: derBytes})), nil
}

// DecodePrivateKeyPkcs8Pem parses a single PEM-armored PKCS#8 PrivateKeyInfo
// block. The nested key bytes are returned undecoded; ParsePrivateKey turns
// the block's DER into a crypto.Signer.
func DecodePrivateKeyPkcs8Pem(text string) (PrivateKeyInfo, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil || block.Type != pemPrivateKeyType {
		return PrivateKeyInfo{}, der.NewProtocolError(nil, "no PEM %s block found", pemPrivateKeyType)
	}
	return ParsePrivateKeyInfo(block.Bytes)
}
