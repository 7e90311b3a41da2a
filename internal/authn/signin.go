// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"net/http"

	"github.com/signetd/signetd/internal/logging"
)

// signInAndRedirect finishes a successful authentication: it issues the
// cookie state for the result and sends the browser onward. rememberMe is nil
// when the user was not prompted.
func (c *Controller) signInAndRedirect(w http.ResponseWriter, r *http.Request, signInID string, msg *SignInMessage, result *AuthenticateResult, rememberMe *bool) {
	redirectURL, err := c.issueAuthenticationCookie(w, r, signInID, result, rememberMe)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("issue authentication cookie failed")
		c.endpointFailure(w, r, "signin", "cookie issuance error")
		return
	}

	// A fresh session id on every transition also rotates away any fixated
	// value.
	c.deps.Session.Issue(w)

	if redirectURL == "" {
		redirectURL = msg.ReturnURL
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// issueAuthenticationCookie moves the browser's cookie state to exactly the
// result's scheme. It returns the redirect URL for partial results and ""
// for full ones (the caller falls back to the message's return URL).
func (c *Controller) issueAuthenticationCookie(w http.ResponseWriter, r *http.Request, signInID string, result *AuthenticateResult, rememberMe *bool) (string, error) {
	principal := result.Principal()

	if result.IsPartial() {
		// The resume id both names the bookkeeping claim and parametrizes
		// the resume URL; the two must be minted together.
		resumeID := generateID()
		resumeURL := c.resumeURL(resumeID)
		principal.AddClaim(ClaimPartialLoginReturnURL, resumeURL)
		principal.AddClaim(PartialLoginResumeClaimType(resumeID), signInID)

		// The sign-in message stays: resume needs it.
		c.deps.Bridge.SignOut(w, SchemePrimary, SchemeExternal, SchemePartial)
		if err := c.deps.Bridge.SignIn(w, SchemePartial, principal, SignInOptions{}); err != nil {
			return "", err
		}
		PartialLoginsTotal.WithLabelValues(PhaseStarted).Inc()
		return c.resolvePath(result.PartialRedirectPath()), nil
	}

	// Full sign-in consumes the message; the flow is over.
	if err := c.deps.Messages.SignInStore(w, r).Clear(r.Context(), signInID); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("signin_id", signInID).Msg("clear sign-in message failed")
	}

	opts := SignInOptions{}
	switch {
	case rememberMe != nil && *rememberMe:
		opts.Persistent = true
		opts.Expiry = c.opts.RememberMeDuration
	case rememberMe != nil:
		// Explicit opt-out overrides the server default.
	default:
		opts.Persistent = c.opts.IsPersistent
	}

	c.deps.Bridge.SignOut(w, SchemePrimary, SchemeExternal, SchemePartial)
	if err := c.deps.Bridge.SignIn(w, SchemePrimary, principal, opts); err != nil {
		return "", err
	}
	return "", nil
}
