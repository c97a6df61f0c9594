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

import (
	"fmt"
	"strings"
)

// ProtocolError reports a structural DER violation: length overflow, an
// unexpected tag, truncation, or a non-shortest-form encoding. Path records
// the nested field names (outermost first) active when the violation was
// detected, the way the teacher's decoders annotate errors with the field
// under decode (protocol/pdns/decoder.go's errors.Wrapf(err, "...: %s",
// field) calls).
type ProtocolError struct {
	Path []string
	Msg  string
}

func (e *ProtocolError) Error() string {
	if len(e.Path) == 0 {
		return "der: " + e.Msg
	}
	return fmt.Sprintf("der: %s: %s", strings.Join(e.Path, "/"), e.Msg)
}

func protocolErrorf(path []string, format string, args ...any) error {
	return &ProtocolError{Path: append([]string(nil), path...), Msg: fmt.Sprintf(format, args...)}
}

// NewProtocolError builds a ProtocolError for callers outside package der
// (schema packages like x509cert) that need to report a structural
// violation their own validation catches, e.g. a NULL element carrying a
// non-zero length.
func NewProtocolError(path []string, format string, args ...any) error {
	return protocolErrorf(path, format, args...)
}

// CryptoError wraps a failure delegated to the host crypto provider:
// signature verification, key generation, or key (de)serialization. Kept
// distinct from ProtocolError so callers can tell a malformed certificate
// apart from, say, an unsupported curve.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string { return "der: crypto: " + e.Op + ": " + e.Err.Error() }
func (e *CryptoError) Unwrap() error { return e.Err }

func WrapCrypto(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CryptoError{Op: op, Err: err}
}
