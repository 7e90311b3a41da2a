// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts local login attempts by outcome.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authn_login_attempts_total",
			Help: "Total number of local login attempts",
		},
		[]string{"outcome"},
	)

	// ExternalLoginsTotal counts external provider flows by provider and
	// outcome.
	ExternalLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authn_external_logins_total",
			Help: "Total number of external provider login flows",
		},
		[]string{"provider", "outcome"},
	)

	// PartialLoginsTotal counts partial logins by phase (started, resumed).
	PartialLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authn_partial_logins_total",
			Help: "Total number of partial login suspensions and resumptions",
		},
		[]string{"phase"},
	)

	// LogoutsTotal counts completed sign-outs.
	LogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authn_logouts_total",
			Help: "Total number of completed sign-outs",
		},
	)

	// EndpointFailuresTotal counts requests that ended on the generic error
	// page.
	EndpointFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authn_endpoint_failures_total",
			Help: "Total number of authentication endpoint failures",
		},
		[]string{"handler"},
	)

	// FlowDuration tracks handler latency across the authentication
	// endpoint.
	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authn_flow_duration_seconds",
			Help:    "Duration of authentication endpoint handlers in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"handler"},
	)
)

// Metric label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
	OutcomePartial = "partial"

	PhaseStarted = "started"
	PhaseResumed = "resumed"
)
