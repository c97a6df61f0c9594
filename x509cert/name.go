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
	"strings"

	"github.com/jayo-projects/jayo/der"
)

// AttributeTypeAndValue is one RDN component, e.g. CN=example.com.
type AttributeTypeAndValue struct {
	Type  OID
	Value string
}

func (a AttributeTypeAndValue) String() string {
	return attributeLabel(a.Type) + "=" + a.Value
}

var attributeValueAdapter = der.Basic[string]("value", der.Universal, der.TagUTF8String,
	func(r *der.Reader, h der.Header) (string, error) { return r.ReadString(h) },
	func(w *der.Writer, v string) error { return w.WriteString(v) })

func decodeAttributeTypeAndValue(r *der.Reader) (AttributeTypeAndValue, error) {
	var atv AttributeTypeAndValue
	_, err := r.Read("AttributeTypeAndValue", func(der.Header) error {
		t, err := oidAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		v, err := attributeValueAdapter.DecodeFrom(r)
		if err != nil {
			return err
		}
		atv = AttributeTypeAndValue{Type: t, Value: v}
		return nil
	})
	return atv, err
}

func encodeAttributeTypeAndValue(w *der.Writer, atv AttributeTypeAndValue) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		if err := oidAdapter.EncodeTo(w, atv.Type); err != nil {
			return err
		}
		return attributeValueAdapter.EncodeTo(w, atv.Value)
	})
}

// RelativeDistinguishedName is a SET OF AttributeTypeAndValue. RFC 5280
// almost always carries exactly one, but the grammar allows more.
type RelativeDistinguishedName []AttributeTypeAndValue

func (rdn RelativeDistinguishedName) String() string {
	parts := make([]string, len(rdn))
	for i, a := range rdn {
		parts[i] = a.String()
	}
	return strings.Join(parts, "+")
}

// Name is an RDNSequence: the structure behind both Issuer and Subject.
type Name []RelativeDistinguishedName

// String renders Name the conventional most-specific-first way (CN, then
// O, then C), matching how certificate tooling usually prints a DN.
func (n Name) String() string {
	parts := make([]string, len(n))
	for i, rdn := range n {
		parts[len(n)-1-i] = rdn.String()
	}
	return strings.Join(parts, ",")
}

// CommonName returns the first commonName attribute's value, if present.
func (n Name) CommonName() (string, bool) {
	for _, rdn := range n {
		for _, atv := range rdn {
			if atv.Type.Equal(oidCommonName) {
				return atv.Value, true
			}
		}
	}
	return "", false
}

// NewName builds a single-valued-RDN Name from label=value pairs in the
// order given, e.g. NewName("CN", "example.com", "O", "Acme Co").
func NewName(pairs ...string) Name {
	var n Name
	for i := 0; i+1 < len(pairs); i += 2 {
		oid, ok := attributeNames[pairs[i]]
		if !ok {
			continue
		}
		n = append(n, RelativeDistinguishedName{{Type: oid, Value: pairs[i+1]}})
	}
	return n
}

func decodeName(r *der.Reader) (Name, error) {
	var name Name
	_, err := r.Read("Name", func(der.Header) error {
		for {
			_, ok, err := r.PeekHeader()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			var rdn RelativeDistinguishedName
			_, err = r.Read("RDN", func(der.Header) error {
				for {
					_, ok, err := r.PeekHeader()
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					atv, err := decodeAttributeTypeAndValue(r)
					if err != nil {
						return err
					}
					rdn = append(rdn, atv)
				}
				return nil
			})
			if err != nil {
				return err
			}
			name = append(name, rdn)
		}
		return nil
	})
	return name, err
}

func encodeName(w *der.Writer, n Name) error {
	return w.Write(der.Universal, der.TagSequence, nil, func() error {
		for _, rdn := range n {
			if err := w.Write(der.Universal, der.TagSet, nil, func() error {
				for _, atv := range rdn {
					if err := encodeAttributeTypeAndValue(w, atv); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
