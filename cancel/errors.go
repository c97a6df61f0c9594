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

// Package cancel implements the scoped cancellation tree and deadline
// watchdog described in spec.md §4.4: CancelScope nests a tree of
// deadlines, AsyncTimeout registers a single blocking operation with a
// lazily-started watchdog goroutine that fires a transport-specific
// interrupt callback when the operation overruns its effective deadline.
package cancel

import "github.com/pkg/errors"

// Cancelled is returned by any operation that observed cancellation at a
// suspension point, including a timeout-triggered cancellation (spec.md §7:
// "the timeout becomes a cancellation at the scope level").
var Cancelled = errors.New("cancel: operation cancelled")

// ProgrammingError reports a contract violation: overlapping enter/exit on
// one AsyncTimeout, or a negative default timeout passed to Enter.
type ProgrammingError struct {
	msg string
}

func (e *ProgrammingError) Error() string { return "cancel: programming error: " + e.msg }

func newProgrammingError(msg string) error {
	return errors.WithStack(&ProgrammingError{msg: msg})
}
