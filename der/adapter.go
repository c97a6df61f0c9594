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

package der

import "sort"

// Adapter is a declarative description of how to decode/encode one DER
// element as a Go value of type T: its expected tag, the primitive or
// composite codec bound to it, and the optional/default and type-hint
// behavior combinators attach. Adapters compose by value — each combinator
// below takes an Adapter and returns a new, independent one.
//
// Go has no heterogeneous product type the way the source library's
// per-field-typed `sequence(members...)` combinator assumes, so a
// multi-field SEQUENCE (Certificate, TBSCertificate, ...) is not expressed
// as a generic Adapter composition here; x509cert decodes those directly
// with a sequence of named Reader.Read/Adapter.DecodeFrom calls, the same
// shape protocol/pdns/decoder.go uses for its own fixed section order.
// Adapter composition here covers the homogeneous cases: a single field's
// tagging/optionality/repetition/choice/hint-dispatch.
type Adapter[T any] struct {
	Name             string
	Class            TagClass
	Tag              uint64
	ForceConstructed *bool

	DecodeBody func(r *Reader, h Header) (T, error)
	EncodeBody func(w *Writer, v T) error

	PublishHint bool

	Optional  bool
	Default   T
	IsDefault func(T) bool

	// Choices, when non-empty, makes this a choice adapter: Decode picks
	// the first choice whose Matches reports true for the peeked header;
	// Encode asks ChooseForEncode which alternative v belongs to.
	Choices         []Adapter[T]
	ChooseForEncode func(T) Adapter[T]

	// AcceptAnyTag, when set, makes this an `any()`-style adapter: decode
	// accepts whatever header is peeked (DecodeBody switches on h itself),
	// and encode bypasses the (Class, Tag) framing entirely — EncodeBody is
	// trusted to call Writer.Write with whatever tag fits v's runtime shape.
	AcceptAnyTag bool

	// HintChooser, when set, makes this a type-hint-dispatched adapter:
	// Decode/Encode look up the reader/writer's current hint and delegate
	// to whatever Adapter the chooser returns, falling back to Opaque on an
	// unrecognized hint.
	HintChooser func(hint any, ok bool) (Adapter[T], bool)
	Opaque      *Adapter[T]
}

// Matches reports whether h is the header this adapter (or, for a choice
// adapter, any of its alternatives) expects.
func (a Adapter[T]) Matches(h Header) bool {
	if len(a.Choices) > 0 {
		for _, c := range a.Choices {
			if c.Matches(h) {
				return true
			}
		}
		return false
	}
	if a.AcceptAnyTag {
		return true
	}
	return h.matches(a.Class, a.Tag)
}

// DecodeFrom decodes one value of type T from r at the current position.
// Presence (is there anything left to decode at all) is resolved once,
// uniformly, before delegating to a hint- or choice-based alternative:
// otherwise an Optional field built on top of UsingTypeHint or Choice would
// never fall back to its default, since those branches don't carry their
// own single (class, tag) to check against the end of input.
func (a Adapter[T]) DecodeFrom(r *Reader) (T, error) {
	var zero T

	h, ok, err := r.PeekHeader()
	if err != nil {
		return zero, err
	}
	if !ok {
		if a.Optional {
			return a.Default, nil
		}
		return zero, protocolErrorf(r.path, "missing required field %q", a.Name)
	}

	if a.HintChooser != nil {
		hint, hok := r.Hint()
		chosen, found := a.HintChooser(hint, hok)
		if !found {
			chosen = *a.Opaque
		}
		return chosen.DecodeFrom(r)
	}

	if len(a.Choices) > 0 {
		for _, c := range a.Choices {
			if c.Matches(h) {
				return c.DecodeFrom(r)
			}
		}
		if a.Optional {
			return a.Default, nil
		}
		return zero, protocolErrorf(r.path, "%s: no alternative matches the next element", a.Name)
	}

	if !a.AcceptAnyTag && !h.matches(a.Class, a.Tag) {
		if a.Optional {
			return a.Default, nil
		}
		return zero, protocolErrorf(r.path, "field %q: expected tag (class=%d,tag=%d), got (class=%d,tag=%d)",
			a.Name, a.Class, a.Tag, h.TagClass, h.Tag)
	}

	var result T
	_, err = r.Read(a.Name, func(hdr Header) error {
		v, derr := a.DecodeBody(r, hdr)
		if derr != nil {
			return derr
		}
		result = v
		return nil
	})
	if err != nil {
		return zero, err
	}
	if a.PublishHint {
		r.PushHint(result)
	}
	return result, nil
}

// EncodeTo encodes v as one DER element into w.
func (a Adapter[T]) EncodeTo(w *Writer, v T) error {
	if a.Optional && a.IsDefault != nil && a.IsDefault(v) {
		return nil
	}

	if a.HintChooser != nil {
		hint, ok := w.Hint()
		chosen, found := a.HintChooser(hint, ok)
		if !found {
			chosen = *a.Opaque
		}
		return chosen.EncodeTo(w, v)
	}

	if len(a.Choices) > 0 {
		return a.ChooseForEncode(v).EncodeTo(w, v)
	}

	if a.AcceptAnyTag {
		return a.EncodeBody(w, v)
	}

	if err := w.Write(a.Class, a.Tag, a.ForceConstructed, func() error {
		return a.EncodeBody(w, v)
	}); err != nil {
		return err
	}
	if a.PublishHint {
		w.PushHint(v)
	}
	return nil
}

// Basic builds a leaf Adapter from a primitive decode/encode pair (e.g.
// Reader.ReadOctetString / Writer.WriteOctetString).
func Basic[T any](name string, class TagClass, tag uint64,
	decode func(r *Reader, h Header) (T, error), encode func(w *Writer, v T) error) Adapter[T] {
	return Adapter[T]{Name: name, Class: class, Tag: tag, DecodeBody: decode, EncodeBody: encode}
}

// WithTag returns a copy of a re-tagged for IMPLICIT tagging: the same
// codec, a different expected (class, tag).
func WithTag[T any](a Adapter[T], class TagClass, tag uint64) Adapter[T] {
	a.Class, a.Tag = class, tag
	return a
}

// WithExplicitBox wraps a in an outer EXPLICIT element: the outer tag
// frames a single nested element encoded/decoded by a itself.
func WithExplicitBox[T any](a Adapter[T], class TagClass, tag uint64, forceConstructed bool) Adapter[T] {
	inner := a
	fc := forceConstructed
	return Adapter[T]{
		Name:             a.Name,
		Class:            class,
		Tag:              tag,
		ForceConstructed: &fc,
		DecodeBody:       func(r *Reader, _ Header) (T, error) { return inner.DecodeFrom(r) },
		EncodeBody:       func(w *Writer, v T) error { return inner.EncodeTo(w, v) },
	}
}

// Optional marks a as omittable: decode falls back to def when the peeked
// header doesn't match; encode skips emitting the element when isDefault
// reports true for the value being encoded.
func Optional[T any](a Adapter[T], def T, isDefault func(T) bool) Adapter[T] {
	a.Optional, a.Default, a.IsDefault = true, def, isDefault
	return a
}

// AsTypeHint marks a's decoded/encoded value as the scope's published hint
// for later sibling fields to consume via UsingTypeHint.
func AsTypeHint[T any](a Adapter[T]) Adapter[T] {
	a.PublishHint = true
	return a
}

// AsSequenceOf builds a SEQUENCE OF elem list codec that consumes children
// until the enclosing element's declared length is exhausted.
func AsSequenceOf[T any](elem Adapter[T]) Adapter[[]T] {
	return asRepeatedOf(elem, Universal, TagSequence, false)
}

// AsSetOf is AsSequenceOf tagged SET instead of SEQUENCE, with its encode
// side sorting elements into X.690 §11.6 canonical order.
func AsSetOf[T any](elem Adapter[T]) Adapter[[]T] {
	return asRepeatedOf(elem, Universal, TagSet, true)
}

func asRepeatedOf[T any](elem Adapter[T], class TagClass, tag uint64, sortElements bool) Adapter[[]T] {
	forceConstructed := true
	return Adapter[[]T]{
		Name:             elem.Name + "[]",
		Class:            class,
		Tag:              tag,
		ForceConstructed: &forceConstructed,
		DecodeBody: func(r *Reader, _ Header) ([]T, error) {
			var out []T
			for {
				_, ok, err := r.PeekHeader()
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				v, err := elem.DecodeFrom(r)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		},
		EncodeBody: func(w *Writer, vs []T) error {
			if !sortElements {
				for _, v := range vs {
					if err := elem.EncodeTo(w, v); err != nil {
						return err
					}
				}
				return nil
			}

			// SET OF canonical order (X.690 §11.6): encode each element into
			// its own staging buffer, then emit the buffers sorted
			// lexicographically by their encoded bytes, not by input order.
			encoded := make([][]byte, len(vs))
			for i, v := range vs {
				sub := NewWriter()
				if err := elem.EncodeTo(sub, v); err != nil {
					sub.Release()
					return err
				}
				encoded[i] = sub.Bytes()
				sub.Release()
			}
			sort.Slice(encoded, func(i, j int) bool {
				return string(encoded[i]) < string(encoded[j])
			})
			for _, b := range encoded {
				if err := w.WriteRaw(b); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Choice picks, on decode, the first of choices whose Matches accepts the
// peeked header; on encode, chooseForEncode selects which alternative v
// belongs to.
func Choice[T any](name string, chooseForEncode func(T) Adapter[T], choices ...Adapter[T]) Adapter[T] {
	return Adapter[T]{Name: name, Choices: choices, ChooseForEncode: chooseForEncode}
}

// Any builds an `any()`-style adapter: decode is handed whatever header was
// actually peeked (classChoices, in the source library's terms, become
// whatever switch DecodeBody itself performs on h.Tag/h.TagClass); encode
// is trusted to call Writer.Write itself, choosing the tag that fits v's
// runtime shape.
func Any[T any](name string, decode func(r *Reader, h Header) (T, error), encode func(w *Writer, v T) error) Adapter[T] {
	return Adapter[T]{Name: name, AcceptAnyTag: true, DecodeBody: decode, EncodeBody: encode}
}

// RawElement is a fully generic, verbatim capture of one DER element: its
// header plus undecoded payload bytes. Opaque uses it as the universal
// fallback adapter for "no schema recognized this tag/hint" branches.
type RawElement struct {
	Header Header
	Bytes  []byte
}

// Opaque decodes/encodes any single element verbatim, the catch-all
// UsingTypeHint and Choice reach for when nothing more specific matches.
var Opaque = Any[RawElement]("opaque",
	func(r *Reader, h Header) (RawElement, error) {
		b, err := r.ReadUnknown(h)
		if err != nil {
			return RawElement{}, err
		}
		return RawElement{Header: h, Bytes: b}, nil
	},
	func(w *Writer, v RawElement) error {
		return w.Write(v.Header.TagClass, v.Header.Tag, nil, func() error {
			return w.WriteRaw(v.Bytes)
		})
	},
)

// UsingTypeHint dispatches entirely on the reader/writer's currently
// published hint (e.g. an extension's OID) rather than the element's own
// tag, falling back to opaque for an unrecognized hint.
func UsingTypeHint[T any](name string, chooser func(hint any, ok bool) (Adapter[T], bool), opaque Adapter[T]) Adapter[T] {
	return Adapter[T]{Name: name, HintChooser: chooser, Opaque: &opaque}
}
