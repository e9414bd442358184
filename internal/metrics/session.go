// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks sessions that have reached the Encrypted phase
	// and not yet Terminated.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently active sessions",
		},
	)

	// SessionsTerminated tracks sessions that reached Terminated, by cause.
	SessionsTerminated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "terminated_total",
			Help:      "Total number of sessions terminated",
		},
		[]string{"cause"}, // peer_disconnect, cancelled, transport_error
	)

	// FrameErrors tracks frame-decode and envelope failures.
	FrameErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "errors_total",
			Help:      "Total number of frame codec or envelope errors",
		},
		[]string{"kind"}, // too_large, truncated, signature_mismatch, sequence_mismatch, malformed
	)

	// PayloadBytesSent tracks the total body bytes sent via SendPayload.
	PayloadBytesSent = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payloads",
			Name:      "bytes_sent_total",
			Help:      "Total number of payload body bytes sent",
		},
	)
)
