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
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayo-projects/jayo/buffer"
	"github.com/jayo-projects/jayo/der"
)

var tracer = otel.Tracer("github.com/jayo-projects/jayo/x509cert")

// Validity is TBSCertificate's validity SEQUENCE.
type Validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// TBSCertificate is the "to be signed" body of a Certificate: everything
// the signature in the enclosing Certificate actually covers.
type TBSCertificate struct {
	Version              int // 0, 1, or 2 meaning v1/v2/v3
	SerialNumber         *big.Int
	Signature            AlgorithmIdentifier
	Issuer               Name
	Validity             Validity
	Subject              Name
	SubjectPublicKeyInfo SubjectPublicKeyInfo
	IssuerUniqueID       []byte // raw BIT STRING bits, [1] IMPLICIT, v2/v3 only
	SubjectUniqueID      []byte // raw BIT STRING bits, [2] IMPLICIT, v2/v3 only
	Extensions           []Extension
}

// Certificate is the outermost Certificate SEQUENCE: the signed body plus
// the signature itself.
type Certificate struct {
	TBSCertificate     TBSCertificate
	SignatureAlgorithm AlgorithmIdentifier
	SignatureValue     []byte // raw BIT STRING bits
}

var versionAdapter = der.Optional(
	der.WithExplicitBox(
		der.Basic[int64]("version", der.Universal, der.TagInteger,
			func(r *der.Reader, h der.Header) (int64, error) { return r.ReadLong(h) },
			func(w *der.Writer, v int64) error { return w.WriteLong(v) }),
		der.ContextSpecific, 0, true,
	),
	0,
	func(v int64) bool { return v == 0 },
)

var serialNumberAdapter = der.Basic[*big.Int]("serialNumber", der.Universal, der.TagInteger,
	func(r *der.Reader, h der.Header) (*big.Int, error) { return r.ReadBigInteger(h) },
	func(w *der.Writer, v *big.Int) error { return w.WriteBigInteger(v) })

func optionalUniqueIDAdapter(tag uint64) der.Adapter[[]byte] {
	return der.Optional(
		der.WithTag(
			der.Basic[[]byte]("uniqueID", der.Universal, der.TagBitString,
				func(r *der.Reader, h der.Header) ([]byte, error) {
					bits, _, err := r.ReadBitString(h)
					return bits, err
				},
				func(w *der.Writer, v []byte) error { return w.WriteBitString(v, 0) }),
			der.ContextSpecific, tag,
		),
		nil,
		func(v []byte) bool { return v == nil },
	)
}

var issuerUniqueIDAdapter = optionalUniqueIDAdapter(1)
var subjectUniqueIDAdapter = optionalUniqueIDAdapter(2)

var extensionsBoxAdapter = der.Optional(
	der.WithExplicitBox(extensionsAdapter, der.ContextSpecific, 3, true),
	[]Extension(nil),
	func(v []Extension) bool { return len(v) == 0 },
)

func decodeValidity(r *der.Reader) (Validity, error) {
	var v Validity
	_, err := r.Read("Validity", func(der.Header) error {
		nb, err := timeAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		na, err := timeAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		v = Validity{NotBefore: nb, NotAfter: na}
		return nil
	})
	return v, err
}

func encodeValidity(w *der.Writer, v Validity) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := timeAdapter.EncodeTo(w, v.NotBefore); err != nil {
			return err
		}
		return timeAdapter.EncodeTo(w, v.NotAfter)
	})
}

func decodeTBSCertificate(r *der.Reader) (TBSCertificate, error) {
	var tbs TBSCertificate
	_, err := r.Read("TBSCertificate", func(der.Header) error {
		version, err := versionAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		serial, err := serialNumberAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		sig, err := decodeAlgorithmIdentifier(r)
		if err != nil {
			return err
		}
		issuer, err := decodeName(r)
		if err != nil {
			return err
		}
		validity, err := decodeValidity(r)
		if err != nil {
			return err
		}
		subject, err := decodeName(r)
		if err != nil {
			return err
		}
		spki, err := decodeSubjectPublicKeyInfo(r)
		if err != nil {
			return err
		}
		issuerUID, err := issuerUniqueIDAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		subjectUID, err := subjectUniqueIDAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		extensions, err := extensionsBoxAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		tbs = TBSCertificate{
			Version:              int(version),
			SerialNumber:         serial,
			Signature:            sig,
			Issuer:               issuer,
			Validity:             validity,
			Subject:              subject,
			SubjectPublicKeyInfo: spki,
			IssuerUniqueID:       issuerUID,
			SubjectUniqueID:      subjectUID,
			Extensions:           extensions,
		}
		return nil
	})
	return tbs, err
}

func encodeTBSCertificate(w *der.Writer, tbs TBSCertificate) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := versionAdapter.EncodeTo(w, int64(tbs.Version)); err != nil {
			return err
		}
		if err := serialNumberAdapter.EncodeTo(w, tbs.SerialNumber); err != nil {
			return err
		}
		if err := encodeAlgorithmIdentifier(w, tbs.Signature); err != nil {
			return err
		}
		if err := encodeName(w, tbs.Issuer); err != nil {
			return err
		}
		if err := encodeValidity(w, tbs.Validity); err != nil {
			return err
		}
		if err := encodeName(w, tbs.Subject); err != nil {
			return err
		}
		if err := encodeSubjectPublicKeyInfo(w, tbs.SubjectPublicKeyInfo); err != nil {
			return err
		}
		if err := issuerUniqueIDAdapter.EncodeTo(w, tbs.IssuerUniqueID); err != nil {
			return err
		}
		if err := subjectUniqueIDAdapter.EncodeTo(w, tbs.SubjectUniqueID); err != nil {
			return err
		}
		return extensionsBoxAdapter.EncodeTo(w, tbs.Extensions)
	})
}

func decodeCertificate(r *der.Reader) (Certificate, error) {
	var cert Certificate
	_, err := r.Read("Certificate", func(der.Header) error {
		tbs, err := decodeTBSCertificate(r)
		if err != nil {
			return err
		}
		sigAlg, err := decodeAlgorithmIdentifier(r)
		if err != nil {
			return err
		}
		sigVal, err := publicKeyBitStringAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		cert = Certificate{TBSCertificate: tbs, SignatureAlgorithm: sigAlg, SignatureValue: sigVal}
		return nil
	})
	return cert, err
}

func encodeCertificate(w *der.Writer, cert Certificate) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := encodeTBSCertificate(w, cert.TBSCertificate); err != nil {
			return err
		}
		if err := encodeAlgorithmIdentifier(w, cert.SignatureAlgorithm); err != nil {
			return err
		}
		return publicKeyBitStringAdapter.EncodeTo(w, cert.SignatureValue)
	})
}

// ParseCertificate decodes a DER-encoded X.509 Certificate. One span
// covers the whole document parse; per-field decode is too fine-grained
// to be worth tracing on its own (der.Reader.Read runs once per field).
func ParseCertificate(raw []byte) (cert Certificate, err error) {
	_, span := tracer.Start(context.Background(), "x509cert.ParseCertificate",
		trace.WithAttributes(attribute.Int("x509cert.bytes", len(raw))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	buf := buffer.New()
	if _, werr := buf.Write(raw); werr != nil {
		return Certificate{}, werr
	}
	r := der.NewReaderFromBuffer(buf)
	return decodeCertificate(r)
}

// EncodeCertificate renders cert as DER bytes.
func EncodeCertificate(cert Certificate) ([]byte, error) {
	w := der.NewWriter()
	defer w.Release()
	if err := encodeCertificate(w, cert); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
