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

// Extension is one entry of TBSCertificate's extensions SEQUENCE: an OID
// naming the extension, a criticality flag (default false, omitted from
// the wire when false), and the DER encoding of the extension's own value
// type, itself wrapped in an OCTET STRING.
type Extension struct {
	ID       OID
	Critical bool
	Value    []byte
}

var extensionCriticalAdapter = der.Optional(
	der.Basic[bool]("critical", der.Universal, der.TagBoolean,
		func(r *der.Reader, h der.Header) (bool, error) { return r.ReadBoolean(h) },
		func(w *der.Writer, v bool) error { return w.WriteBoolean(v) }),
	false,
	func(v bool) bool { return !v },
)

var extensionValueAdapter = der.Basic[[]byte]("extnValue", der.Universal, der.TagOctetString,
	func(r *der.Reader, h der.Header) ([]byte, error) { return r.ReadOctetString(h) },
	func(w *der.Writer, v []byte) error { return w.WriteOctetString(v) })

var extensionsAdapter = der.AsSequenceOf(der.Adapter[Extension]{
	Name: "Extension", Class: der.Universal, Tag: der.TagSequence,
	DecodeBody: func(r *der.Reader, _ der.Header) (Extension, error) { return decodeExtensionBody(r) },
	EncodeBody: func(w *der.Writer, v Extension) error { return encodeExtensionBody(w, v) },
})

func decodeExtensionBody(r *der.Reader) (Extension, error) {
	var ext Extension
	id, err := oidAdapter.DecodeFrom(r)
	if err != nil {
		return ext, err
	}
	critical, err := extensionCriticalAdapter.DecodeFrom(r)
	if err != nil {
		return ext, err
	}
	value, err := extensionValueAdapter.DecodeFrom(r)
	if err != nil {
		return ext, err
	}
	return Extension{ID: id, Critical: critical, Value: value}, nil
}

func encodeExtensionBody(w *der.Writer, ext Extension) error {
	if err := oidAdapter.EncodeTo(w, ext.ID); err != nil {
		return err
	}
	if err := extensionCriticalAdapter.EncodeTo(w, ext.Critical); err != nil {
		return err
	}
	return extensionValueAdapter.EncodeTo(w, ext.Value)
}

// BasicConstraints is the decoded value of the basicConstraints extension
// (id-ce-basicConstraints, critical in any CA certificate).
type BasicConstraints struct {
	IsCA       bool
	PathLen    int
	HasPathLen bool
}

var basicConstraintsCAAdapter = der.Optional(
	der.Basic[bool]("cA", der.Universal, der.TagBoolean,
		func(r *der.Reader, h der.Header) (bool, error) { return r.ReadBoolean(h) },
		func(w *der.Writer, v bool) error { return w.WriteBoolean(v) }),
	false,
	func(v bool) bool { return !v },
)

var basicConstraintsPathLenAdapter = der.Optional(
	der.Basic[int64]("pathLenConstraint", der.Universal, der.TagInteger,
		func(r *der.Reader, h der.Header) (int64, error) { return r.ReadLong(h) },
		func(w *der.Writer, v int64) error { return w.WriteLong(v) }),
	-1,
	func(v int64) bool { return v < 0 },
)

// DecodeBasicConstraints parses the raw extnValue bytes of a
// basicConstraints extension: the DER encoding of the BasicConstraints
// SEQUENCE nested inside Extension.Value's OCTET STRING.
func DecodeBasicConstraints(buf []byte) (BasicConstraints, error) {
	r := der.NewReaderFromBuffer(bufFromBytes(buf))
	var bc BasicConstraints
	_, err := r.Read("BasicConstraints", func(der.Header) error {
		ca, err := basicConstraintsCAAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		pathLen, err := basicConstraintsPathLenAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		bc = BasicConstraints{IsCA: ca, PathLen: int(max64(pathLen, 0)), HasPathLen: pathLen >= 0}
		return nil
	})
	return bc, err
}

// EncodeBasicConstraints renders bc as the DER bytes that belong inside a
// basicConstraints extension's OCTET STRING.
func EncodeBasicConstraints(bc BasicConstraints) ([]byte, error) {
	w := der.NewWriter()
	defer w.Release()
	err := w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := basicConstraintsCAAdapter.EncodeTo(w, bc.IsCA); err != nil {
			return err
		}
		pathLen := int64(-1)
		if bc.HasPathLen {
			pathLen = int64(bc.PathLen)
		}
		return basicConstraintsPathLenAdapter.EncodeTo(w, pathLen)
	})
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// GeneralName is one alternative of the GeneralName CHOICE this schema
// recognizes: dNSName [2] IA5String and iPAddress [7] OCTET STRING. Other
// alternatives round-trip through the Opaque fallback.
type GeneralName struct {
	DNSName   string
	IPAddress []byte
	Opaque    *der.RawElement
}

var dnsNameAdapter = der.WithTag(
	der.Basic[GeneralName]("dNSName", der.Universal, der.TagIA5String,
		func(r *der.Reader, h der.Header) (GeneralName, error) {
			s, err := r.ReadString(h)
			return GeneralName{DNSName: s}, err
		},
		func(w *der.Writer, v GeneralName) error { return w.WriteString(v.DNSName) }),
	der.ContextSpecific, 2,
)

var ipAddressAdapter = der.WithTag(
	der.Basic[GeneralName]("iPAddress", der.Universal, der.TagOctetString,
		func(r *der.Reader, h der.Header) (GeneralName, error) {
			b, err := r.ReadOctetString(h)
			return GeneralName{IPAddress: b}, err
		},
		func(w *der.Writer, v GeneralName) error { return w.WriteOctetString(v.IPAddress) }),
	der.ContextSpecific, 7,
)

var generalNameOpaqueAdapter = der.Any[GeneralName]("generalName",
	func(r *der.Reader, h der.Header) (GeneralName, error) {
		raw, err := der.Opaque.DecodeBody(r, h)
		if err != nil {
			return GeneralName{}, err
		}
		return GeneralName{Opaque: &raw}, nil
	},
	func(w *der.Writer, v GeneralName) error {
		if v.Opaque == nil {
			return der.NewProtocolError(nil, "opaque GeneralName missing raw element")
		}
		return der.Opaque.EncodeBody(w, *v.Opaque)
	},
)

var generalNameAdapter = der.Choice[GeneralName]("GeneralName",
	func(v GeneralName) der.Adapter[GeneralName] {
		switch {
		case v.DNSName != "":
			return dnsNameAdapter
		case v.IPAddress != nil:
			return ipAddressAdapter
		default:
			return generalNameOpaqueAdapter
		}
	},
	dnsNameAdapter, ipAddressAdapter, generalNameOpaqueAdapter,
)

var generalNamesAdapter = der.AsSequenceOf(generalNameAdapter)

// DecodeSubjectAltNames parses a subjectAltName extension's extnValue
// bytes into its GeneralNames list.
func DecodeSubjectAltNames(buf []byte) ([]GeneralName, error) {
	r := der.NewReaderFromBuffer(bufFromBytes(buf))
	return generalNamesAdapter.DecodeFrom(r)
}

// EncodeSubjectAltNames renders names as the DER bytes that belong inside
// a subjectAltName extension's OCTET STRING.
func EncodeSubjectAltNames(names []GeneralName) ([]byte, error) {
	w := der.NewWriter()
	defer w.Release()
	if err := generalNamesAdapter.EncodeTo(w, names); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
