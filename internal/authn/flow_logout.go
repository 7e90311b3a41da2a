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

// handleLogoutGet is GET /logout?id={signOutId}: the sign-out prompt. The
// prompt is skipped for anonymous callers, client-initiated sign-outs, and
// when the prompt is disabled server-wide; those go straight to the sign-out
// path.
func (c *Controller) handleLogoutGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	signOutID, ok := boundedQuery(r, "id")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}

	if _, err := c.deps.Bridge.AuthenticatedIdentity(r); err != nil {
		// Nothing to confirm; just clean up.
		c.signOutAndRender(w, r, signOutID)
		return
	}

	if signOutID != "" {
		msg, err := c.deps.Messages.SignOutStore(w, r).Read(ctx, signOutID)
		if err == nil && msg.ClientID != "" {
			// A client asked for this sign-out; no prompt.
			c.signOutAndRender(w, r, signOutID)
			return
		}
	}

	if !c.opts.EnableSignOutPrompt {
		c.signOutAndRender(w, r, signOutID)
		return
	}

	model := &LogoutViewModel{
		CommonViewModel: c.common(r),
		LogoutURL:       c.logoutURL(signOutID),
		AntiForgery:     c.deps.AntiForgery.Token(w, r),
	}
	if err := c.deps.Views.Logout(w, r, model); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("render logout page")
	}
}

// handleLogoutPost is POST /logout?id={signOutId}. The anti-forgery gate has
// already run.
func (c *Controller) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	signOutID, ok := boundedQuery(r, "id")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	c.signOutAndRender(w, r, signOutID)
}

// signOutAndRender tears down every piece of browser state, notifies the
// user service, and renders the logged-out page.
func (c *Controller) signOutAndRender(w http.ResponseWriter, r *http.Request, signOutID string) {
	ctx := r.Context()

	principal, authErr := c.deps.Bridge.AuthenticatedIdentity(r)

	c.deps.Session.Clear(w)

	var signOutMsg *SignOutMessage
	if signOutID != "" {
		store := c.deps.Messages.SignOutStore(w, r)
		if msg, err := store.Read(ctx, signOutID); err == nil {
			signOutMsg = &msg
		}
		if err := store.Clear(ctx, signOutID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("signout_id", signOutID).Msg("clear sign-out message failed")
		}
	}

	c.deps.Bridge.SignOut(w, SchemePrimary, SchemeExternal, SchemePartial)

	if authErr == nil {
		// An externally authenticated subject may hold provider-scheme state
		// too; clear it by the provider's name.
		if idp := principal.IdentityProvider(); idp != "" && idp != BuiltInIdentityProvider {
			c.deps.Bridge.SignOut(w, AuthScheme(idp))
		}

		if err := c.deps.Users.SignOut(ctx, principal); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("user service sign-out failed")
		}
		LogoutsTotal.Inc()
		ev := Event{
			Name:      EventLogout,
			Time:      time.Now(),
			SubjectID: principal.Subject(),
		}
		if signOutMsg != nil {
			ev.ClientID = signOutMsg.ClientID
		}
		c.deps.Events.Raise(ctx, ev)
	}

	model := &LoggedOutViewModel{
		CommonViewModel: c.common(r),
	}
	// The caller is signed out regardless of what the stale request
	// principal said.
	model.CurrentUser = ""
	if signOutMsg != nil {
		model.RedirectURL = signOutMsg.ReturnURL
		if client, err := c.deps.Clients.FindClientByID(ctx, signOutMsg.ClientID); err == nil && client != nil {
			model.ClientName = client.ClientName
			if client.LogoutURI != "" {
				model.IFrameURLs = append(model.IFrameURLs, client.LogoutURI)
			}
		}
	}
	if err := c.deps.Views.LoggedOut(w, r, model); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("render logged-out page")
	}
}
