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

package cancel

import "github.com/prometheus/client_golang/prometheus"

// watchdogMetrics mirrors the counters the teacher's protocol decoders
// register per-instance (protocol/pool.go), scoped here to the single
// process-wide watchdog.
type watchdogMetrics struct {
	fired prometheus.Counter
}

func newWatchdogMetrics(reg prometheus.Registerer) *watchdogMetrics {
	m := &watchdogMetrics{
		fired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jayo",
			Subsystem: "cancel_watchdog",
			Name:      "timeouts_fired_total",
			Help:      "Number of AsyncTimeout deadlines the watchdog fired.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fired)
	}
	return m
}
