// Copyright (C) 2026 waveline-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesSent tracks outgoing frames by payload kind
	FramesSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Total number of frames sent",
		},
		[]string{"kind"}, // json, binary
	)

	// FramesReceived tracks inbound frames by payload kind
	FramesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Total number of frames received",
		},
		[]string{"kind"}, // json, binary, empty, pong
	)

	// Reconnects tracks connection attempts
	Reconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "attempts_total",
			Help:      "Total number of connection attempts",
		},
	)

	// KeepAliveProbes tracks keep-alive probes sent after idle periods
	KeepAliveProbes = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "keepalive_probes_total",
			Help:      "Total number of keep-alive probes sent",
		},
	)

	// DeathlineExpiries tracks sockets closed by the liveness deadline
	DeathlineExpiries = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "deathline_expiries_total",
			Help:      "Total number of sockets closed by the liveness deadline",
		},
	)

	// CryptoFailures tracks inbound frames dropped for integrity failures
	CryptoFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "crypto_failures_total",
			Help:      "Total number of inbound frames failing HMAC verification or decryption",
		},
	)

	// PendingRequests tracks outstanding request completions
	PendingRequests = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "pending",
			Help:      "Number of outstanding request completions",
		},
	)

	// SessionState tracks the session lifecycle state
	SessionState = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0 uninitialized, 1 connected, 2 disconnecting, 3 reconnecting)",
		},
	)
)
