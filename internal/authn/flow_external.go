// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"net/http"
	"time"

	"github.com/signetd/signetd/internal/logging"
)

// handleExternal is GET /external?signin={id}&provider={name}: start the
// external provider round trip.
func (c *Controller) handleExternal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	signInID, ok := boundedQuery(r, "signin")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	provider, ok := boundedQuery(r, "provider")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	if signInID == "" || provider == "" {
		c.renderErrorPage(w, r, MessageNoSignInCookie)
		return
	}

	msg, ok := c.readSignInMessage(w, r, signInID)
	if !ok {
		return
	}

	allowed, err := c.deps.Clients.IsValidIdentityProvider(ctx, msg.ClientID, provider)
	if err != nil {
		c.endpointFailure(w, r, "external", "client store error")
		return
	}
	if !allowed {
		logging.Ctx(ctx).Warn().Str("client_id", msg.ClientID).Str("provider", provider).Msg("client forbids external provider")
		c.endpointFailure(w, r, "external", "provider not allowed for client")
		return
	}
	if !c.deps.Catalog.Has(provider) {
		logging.Ctx(ctx).Warn().Str("provider", provider).Msg("external provider not configured")
		c.endpointFailure(w, r, "external", "provider not configured")
		return
	}

	if err := c.deps.Bridge.Challenge(w, r, provider, ChallengeProperties{SignInID: signInID}); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("provider", provider).Msg("external challenge failed")
		c.endpointFailure(w, r, "external", "challenge error")
		return
	}
}

// handleCallback is GET /callback: the external provider returned.
func (c *Controller) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// A provider-side failure comes back as ?error=. The token is bounded by
	// truncation rather than rejection because the provider, not the user,
	// chose it.
	if providerError := r.URL.Query().Get("error"); providerError != "" {
		if len(providerError) > MaxInputParamLength {
			providerError = providerError[:MaxInputParamLength]
		}
		ExternalLoginsTotal.WithLabelValues("unknown", OutcomeError).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:    EventExternalLoginError,
			Time:    time.Now(),
			Details: providerError,
		})
		c.renderErrorPage(w, r, ExternalProviderErrorText(providerError))
		return
	}

	props, err := c.deps.Bridge.CallbackProperties(r)
	if err != nil {
		logging.Ctx(ctx).Info().Err(err).Msg("callback without challenge state")
		c.renderErrorPage(w, r, MessageNoSignInCookie)
		return
	}

	msg, ok := c.readSignInMessage(w, r, props.SignInID)
	if !ok {
		return
	}

	principal, err := c.deps.Bridge.CallbackIdentity(ctx, w, r)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("provider", props.Provider).Msg("callback identity exchange failed")
		c.endpointFailure(w, r, "callback", "callback exchange error")
		return
	}

	external, ok := ExternalIdentityFromCallback(principal)
	if !ok {
		logging.Ctx(ctx).Warn().Str("provider", props.Provider).Msg("callback identity has no subject claim")
		ExternalLoginsTotal.WithLabelValues(props.Provider, OutcomeFailure).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:     EventExternalLoginFailure,
			Time:     time.Now(),
			Provider: props.Provider,
			ClientID: msg.ClientID,
			SignInID: props.SignInID,
			Details:  "no subject claim from provider",
		})
		c.renderLoginPage(w, r, props.SignInID, msg, loginPageState{ErrorID: MessageNoMatchingExternalAccount})
		return
	}

	c.completeExternal(w, r, props.SignInID, msg, external)
}

// completeExternal runs AuthenticateExternal and dispatches on the result. It
// is shared between the callback handler and the resume handler's
// re-authentication path.
func (c *Controller) completeExternal(w http.ResponseWriter, r *http.Request, signInID string, msg *SignInMessage, external *ExternalIdentity) {
	ctx := r.Context()

	result, err := c.deps.Users.AuthenticateExternal(ctx, external, msg)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("provider", external.Provider).Msg("external authentication failed")
		c.endpointFailure(w, r, "callback", "user service error")
		return
	}

	if result == nil {
		ExternalLoginsTotal.WithLabelValues(external.Provider, OutcomeFailure).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:     EventExternalLoginFailure,
			Time:     time.Now(),
			Provider: external.Provider,
			ClientID: msg.ClientID,
			SignInID: signInID,
			Details:  "external identity not associated with an account",
		})
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: MessageNoMatchingExternalAccount})
		return
	}
	if result.IsError() {
		ExternalLoginsTotal.WithLabelValues(external.Provider, OutcomeError).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:     EventExternalLoginFailure,
			Time:     time.Now(),
			Provider: external.Provider,
			ClientID: msg.ClientID,
			SignInID: signInID,
			Details:  result.ErrorMessage(),
		})
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: result.ErrorMessage()})
		return
	}

	outcome := OutcomeSuccess
	if result.IsPartial() {
		outcome = OutcomePartial
	}
	ExternalLoginsTotal.WithLabelValues(external.Provider, outcome).Inc()
	c.deps.Events.Raise(ctx, Event{
		Name:      EventExternalLoginSuccess,
		Time:      time.Now(),
		SubjectID: result.Principal().Subject(),
		Provider:  external.Provider,
		ClientID:  msg.ClientID,
		SignInID:  signInID,
	})

	c.signInAndRedirect(w, r, signInID, msg, result, nil)
}
