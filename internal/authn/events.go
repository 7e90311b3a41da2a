// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"time"

	"github.com/signetd/signetd/internal/logging"
)

// Event names raised by the interactive authentication endpoint.
const (
	EventPreLoginSuccess      = "pre_login_success"
	EventPreLoginFailure      = "pre_login_failure"
	EventLocalLoginSuccess    = "local_login_success"
	EventLocalLoginFailure    = "local_login_failure"
	EventExternalLoginSuccess = "external_login_success"
	EventExternalLoginFailure = "external_login_failure"
	EventExternalLoginError   = "external_login_error"
	EventPartialLoginComplete = "partial_login_complete"
	EventLogout               = "logout"
	EventEndpointFailure      = "endpoint_failure"
)

// EndpointAuthenticate tags endpoint-failure events from this subsystem.
const EndpointAuthenticate = "authenticate"

// Event is a single auditable occurrence in a login or logout flow.
// Details carries failure messages or the failing endpoint name; it never
// contains credentials.
type Event struct {
	Name      string    `json:"name"`
	Time      time.Time `json:"time"`
	SubjectID string    `json:"subject_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	SignInID  string    `json:"sign_in_id,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// EventService receives flow events. Implementations must be safe for
// concurrent use and should not block the request path; slow sinks buffer or
// drop.
type EventService interface {
	Raise(ctx context.Context, ev Event)
}

// LogEventService writes events to the structured log. The default sink.
type LogEventService struct{}

// Raise logs the event.
func (LogEventService) Raise(ctx context.Context, ev Event) {
	logging.Ctx(ctx).Info().
		Str("event", ev.Name).
		Str("subject", ev.SubjectID).
		Str("username", ev.Username).
		Str("provider", ev.Provider).
		Str("client", ev.ClientID).
		Str("details", ev.Details).
		Msg("auth event")
}

// NullEventService discards events. Test helper.
type NullEventService struct{}

// Raise discards the event.
func (NullEventService) Raise(context.Context, Event) {}
