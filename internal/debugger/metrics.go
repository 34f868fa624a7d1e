// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package debugger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// commandsTotal tracks agent commands by name and outcome
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdbg_commands_total",
			Help: "Total debugger commands by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	// eventsTotal tracks translated debugger events
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdbg_events_total",
			Help: "Total debugger events received by event type",
		},
		[]string{"type"},
	)

	// observerPanics tracks recovered observer panics
	observerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdbg_observer_panics_total",
			Help: "Total observer callbacks that panicked, by callback",
		},
		[]string{"callback"},
	)

	// forcedDisconnects tracks remote-initiated teardowns
	forcedDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdbg_forced_disconnects_total",
			Help: "Total sessions torn down because the agent closed them, by reason",
		},
		[]string{"reason"},
	)

	// sessionConnected is 1 while a session is attached
	sessionConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rdbg_session_connected",
			Help: "Whether a debug session is currently attached",
		},
	)
)

// Command outcome labels.
const (
	outcomeSuccess     = "success"
	outcomeError       = "error"
	outcomeNotAttached = "not_attached"
	outcomeRejected    = "rejected"
)

func recordCommand(command, outcome string) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

func recordEvent(t EventType) {
	eventsTotal.WithLabelValues(t.String()).Inc()
}

func recordObserverPanic(callback string) {
	observerPanics.WithLabelValues(callback).Inc()
}

func recordForcedDisconnect(reason string) {
	forcedDisconnects.WithLabelValues(reason).Inc()
}

func recordConnected(connected bool) {
	if connected {
		sessionConnected.Set(1)
		return
	}
	sessionConnected.Set(0)
}
