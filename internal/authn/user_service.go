// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import "context"

// UserService is the pluggable credential and identity-mapping policy the
// flow controller drives. Every method may block on I/O and must honor
// context cancellation.
//
// Result conventions: a nil *AuthenticateResult with a nil error means the
// credentials were rejected; a non-nil error means the service itself failed
// and the flow surfaces a generic error page.
type UserService interface {
	// PreAuthenticate runs before the login page renders, letting the policy
	// short-circuit the flow (device trust, SSO bridging, kiosk logins).
	PreAuthenticate(ctx context.Context, msg *SignInMessage) (*AuthenticateResult, error)

	// AuthenticateLocal validates a username/password pair.
	AuthenticateLocal(ctx context.Context, username, password string, msg *SignInMessage) (*AuthenticateResult, error)

	// AuthenticateExternal maps an external identity to a subject. It may
	// return Partial to send new users through registration.
	AuthenticateExternal(ctx context.Context, external *ExternalIdentity, msg *SignInMessage) (*AuthenticateResult, error)

	// SignOut notifies the policy that the subject signed out.
	SignOut(ctx context.Context, principal *ClaimsPrincipal) error
}
