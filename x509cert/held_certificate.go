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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"math/big"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/der"
)

// KeyFormat selects the key algorithm GenerateHeldCertificate creates.
type KeyFormat string

const (
	KeyFormatECDSAP256 KeyFormat = "ecdsa_p256"
	KeyFormatRSA2048   KeyFormat = "rsa_2048"
)

// HeldCertificateConfig mirrors a certificate-builder's field set as a
// plain struct rather than a fluent Builder (this library's config surface
// is data, per spec.md §6: no persisted state, nothing stateful to build
// up across calls).
type HeldCertificateConfig struct {
	CommonName   string
	Organization string
	Hostnames    []string
	IPAddresses  []net.IP
	SerialNumber *big.Int
	KeyFormat    KeyFormat
	NotBefore    time.Time
	NotAfter     time.Time
	IsCA         bool
	MaxPathLen   int
	SignedBy     *HeldCertificate // nil means self-signed
}

// NewHeldCertificateConfigFromMap decodes cfg from a loosely-typed map
// (e.g. parsed YAML/JSON), the convenience path embedders assembling
// config dynamically use instead of building HeldCertificateConfig by hand.
func NewHeldCertificateConfigFromMap(m map[string]any) (HeldCertificateConfig, error) {
	var cfg HeldCertificateConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(m); err != nil {
		return cfg, err
	}
	if serial, ok := m["serialNumber"]; ok {
		n, err := cast.ToInt64E(serial)
		if err != nil {
			return cfg, err
		}
		cfg.SerialNumber = big.NewInt(n)
	}
	return cfg, nil
}

func (cfg HeldCertificateConfig) withDefaults() HeldCertificateConfig {
	out := cfg
	if out.KeyFormat == "" {
		out.KeyFormat = KeyFormatECDSAP256
	}
	if out.SerialNumber == nil {
		id := uuid.New()
		out.SerialNumber = new(big.Int).SetBytes(id[:])
	}
	if out.NotBefore.IsZero() {
		out.NotBefore = time.Now().Add(-time.Hour)
	}
	if out.NotAfter.IsZero() {
		out.NotAfter = out.NotBefore.Add(365 * 24 * time.Hour)
	}
	return out
}

// HeldCertificate is a certificate together with the private key that
// signs it, the pairing tooling and tests need to actually use a
// generated certificate (present it in a TLS handshake, sign another
// certificate with it, ...).
type HeldCertificate struct {
	Certificate Certificate
	PrivateKey  crypto.Signer
}

// CertificatePem renders the held certificate as a PEM-armored DER document.
func (h *HeldCertificate) CertificatePem() (string, error) {
	return EncodeCertificatePem(h.Certificate)
}

// PrivateKeyPkcs8Pem renders pki (the PKCS#8 envelope matching h's private
// key) as a PEM-armored document. Callers hold onto the PrivateKeyInfo
// GenerateHeldCertificate doesn't retain one itself since signing only
// needs the crypto.Signer, not its own DER encoding.
func (h *HeldCertificate) PrivateKeyPkcs8Pem(pki PrivateKeyInfo) (string, error) {
	return EncodePrivateKeyPkcs8Pem(pki)
}

func sigAlgorithmForFormat(format KeyFormat) (AlgorithmIdentifier, error) {
	switch format {
	case "", KeyFormatECDSAP256:
		return AlgorithmIdentifier{Algorithm: oidECDSAWithSHA256}, nil
	case KeyFormatRSA2048:
		return AlgorithmIdentifier{Algorithm: oidSHA256WithRSAEncryption}, nil
	default:
		return AlgorithmIdentifier{}, der.NewProtocolError(nil, "unsupported key format %q", format)
	}
}

func generateKeyPair(format KeyFormat) (crypto.Signer, SubjectPublicKeyInfo, error) {
	switch format {
	case "", KeyFormatECDSAP256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, SubjectPublicKeyInfo{}, der.WrapCrypto("generate ECDSA key", err)
		}
		spki, err := marshalPublicKey(&key.PublicKey)
		if err != nil {
			return nil, SubjectPublicKeyInfo{}, err
		}
		return key, spki, nil
	case KeyFormatRSA2048:
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, SubjectPublicKeyInfo{}, der.WrapCrypto("generate RSA key", err)
		}
		spki, err := marshalPublicKey(&key.PublicKey)
		if err != nil {
			return nil, SubjectPublicKeyInfo{}, err
		}
		return key, spki, nil
	default:
		return nil, SubjectPublicKeyInfo{}, der.NewProtocolError(nil, "unsupported key format %q", format)
	}
}

// marshalPublicKey delegates the algorithm-specific public key encoding to
// the host crypto provider (crypto/x509.MarshalPKIXPublicKey) and then
// re-parses the result with this package's own SubjectPublicKeyInfo
// decoder, so the only ASN.1 this package writes for the key by hand is
// what decodeSubjectPublicKeyInfo/encodeSubjectPublicKeyInfo already cover.
func marshalPublicKey(pub crypto.PublicKey) (SubjectPublicKeyInfo, error) {
	spkiDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return SubjectPublicKeyInfo{}, der.WrapCrypto("marshal public key", err)
	}
	buf := buffer.New()
	if _, err := buf.Write(spkiDER); err != nil {
		return SubjectPublicKeyInfo{}, err
	}
	r := der.NewReaderFromBuffer(buf)
	return decodeSubjectPublicKeyInfo(r)
}

func keyFormatOf(alg AlgorithmIdentifier) KeyFormat {
	if alg.Algorithm.Equal(oidRSAEncryption) {
		return KeyFormatRSA2048
	}
	return KeyFormatECDSAP256
}

// GenerateHeldCertificate builds a fresh key pair, assembles a
// TBSCertificate from cfg, signs it (self-signed unless cfg.SignedBy is
// set), and returns the resulting HeldCertificate.
func GenerateHeldCertificate(cfg HeldCertificateConfig) (*HeldCertificate, error) {
	cfg = cfg.withDefaults()

	key, spki, err := generateKeyPair(cfg.KeyFormat)
	if err != nil {
		return nil, err
	}

	subject := NewName("CN", cfg.CommonName)
	if cfg.Organization != "" {
		subject = append(Name{{{Type: oidOrganizationName, Value: cfg.Organization}}}, subject...)
	}

	issuer := subject
	signer := key
	issuerFormat := cfg.KeyFormat
	if cfg.SignedBy != nil {
		issuer = cfg.SignedBy.Certificate.TBSCertificate.Subject
		signer = cfg.SignedBy.PrivateKey
		issuerFormat = keyFormatOf(cfg.SignedBy.Certificate.TBSCertificate.SubjectPublicKeyInfo.Algorithm)
	}
	sigAlg, err := sigAlgorithmForFormat(issuerFormat)
	if err != nil {
		return nil, err
	}

	var extensions []Extension
	if cfg.IsCA {
		bc, err := EncodeBasicConstraints(BasicConstraints{IsCA: true, PathLen: cfg.MaxPathLen, HasPathLen: cfg.MaxPathLen > 0})
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, Extension{ID: oidExtBasicConstraints, Critical: true, Value: bc})
	}
	if len(cfg.Hostnames) > 0 || len(cfg.IPAddresses) > 0 {
		var names []GeneralName
		for _, h := range cfg.Hostnames {
			names = append(names, GeneralName{DNSName: h})
		}
		for _, ip := range cfg.IPAddresses {
			names = append(names, GeneralName{IPAddress: ip})
		}
		san, err := EncodeSubjectAltNames(names)
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, Extension{ID: oidExtSubjectAltName, Value: san})
	}

	tbs := TBSCertificate{
		Version:              2, // v3: extensions require it
		SerialNumber:         cfg.SerialNumber,
		Signature:            sigAlg,
		Issuer:               issuer,
		Validity:             Validity{NotBefore: cfg.NotBefore, NotAfter: cfg.NotAfter},
		Subject:              subject,
		SubjectPublicKeyInfo: spki,
		Extensions:           extensions,
	}

	w := der.NewWriter()
	if err := encodeTBSCertificate(w, tbs); err != nil {
		w.Release()
		return nil, err
	}
	tbsDER := w.Bytes()
	w.Release()

	digest := sha256.Sum256(tbsDER)
	signature, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return nil, der.WrapCrypto("sign certificate", err)
	}

	cert := Certificate{
		TBSCertificate:     tbs,
		SignatureAlgorithm: sigAlg,
		SignatureValue:     signature,
	}
	return &HeldCertificate{Certificate: cert, PrivateKey: key}, nil
}
