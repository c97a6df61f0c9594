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

import "github.com/jayo-projects/jayo/buffer"

// bufFromBytes wraps a byte slice in a buffer.Buffer for der.NewReaderFromBuffer,
// used by the extension sub-decoders that parse an extnValue's OCTET STRING
// payload as its own independent DER document.
func bufFromBytes(b []byte) *buffer.Buffer {
	buf := buffer.New()
	_, _ = buf.Write(b)
	return buf
}
