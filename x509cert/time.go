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
	"time"

	"github.com/jayo-projects/jayo/der"
)

// utcTimeCutoff is the RFC 5280 §4.1.2.5 boundary: validity instants
// before 2050-01-01 UTC are encoded as UTCTime (2-digit year), and
// instants at or after it as GeneralizedTime (4-digit year).
var utcTimeCutoff = time.Date(2050, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	utcTimeLayout         = "060102150405Z"
	generalizedTimeLayout = "20060102150405Z"
)

func decodeUTCTime(r *der.Reader, h der.Header) (time.Time, error) {
	s, err := r.ReadString(h)
	if err != nil {
		return time.Time{}, err
	}
	t, perr := time.Parse(utcTimeLayout, s)
	if perr != nil {
		return time.Time{}, der.NewProtocolError(nil, "malformed UTCTime %q: %v", s, perr)
	}
	// RFC 5280 §4.1.2.5: two-digit years 50-99 mean 1950-1999, 00-49 mean
	// 2000-2049. Go's own YY pivot for "06" is 69 (00-68 -> 20YY, 69-99 ->
	// 19YY), so it already agrees with the RFC everywhere except YY 50-68,
	// which it maps to 2050-2068 instead of 1950-1968; correct just that
	// range rather than relying on Go's different cutoff.
	if y := t.Year(); y >= 2050 && y <= 2068 {
		t = t.AddDate(-100, 0, 0)
	}
	return t, nil
}

func encodeUTCTime(w *der.Writer, t time.Time) error {
	return w.WriteString(t.UTC().Format(utcTimeLayout))
}

func decodeGeneralizedTime(r *der.Reader, h der.Header) (time.Time, error) {
	s, err := r.ReadString(h)
	if err != nil {
		return time.Time{}, err
	}
	t, perr := time.Parse(generalizedTimeLayout, s)
	if perr != nil {
		return time.Time{}, der.NewProtocolError(nil, "malformed GeneralizedTime %q: %v", s, perr)
	}
	return t, nil
}

func encodeGeneralizedTime(w *der.Writer, t time.Time) error {
	return w.WriteString(t.UTC().Format(generalizedTimeLayout))
}

var utcTimeAdapter = der.Basic[time.Time]("utcTime", der.Universal, der.TagUTCTime, decodeUTCTime, encodeUTCTime)
var generalizedTimeAdapter = der.Basic[time.Time]("generalizedTime", der.Universal, der.TagGeneralizedTime,
	decodeGeneralizedTime, encodeGeneralizedTime)

// timeAdapter codes RFC 5280's Time CHOICE { utcTime UTCTime,
// generalTime GeneralizedTime }, encoding side picking the alternative
// per the 2050 cutoff.
var timeAdapter = der.Choice[time.Time]("Time",
	func(t time.Time) der.Adapter[time.Time] {
		if t.UTC().Before(utcTimeCutoff) {
			return utcTimeAdapter
		}
		return generalizedTimeAdapter
	},
	utcTimeAdapter, generalizedTimeAdapter,
)
