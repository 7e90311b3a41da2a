// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"net/http"
	"strings"
	"time"

	"github.com/signetd/signetd/internal/logging"
)

// loginForm is the parsed and normalized POST /login body. RememberMe is nil
// when the user was not prompted.
type loginForm struct {
	Username   string
	Password   string
	RememberMe *bool
}

func (c *Controller) parseLoginForm(r *http.Request) loginForm {
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	// The remember-me choice only exists when the checkbox was offered; an
	// unprompted user carries nil so the server default can decide.
	if c.opts.AllowRememberMe {
		checked := r.PostFormValue("rememberMe") == "true" || r.PostFormValue("rememberMe") == "on"
		form.RememberMe = &checked
	}
	return form
}

// handleLoginGet is GET /login?signin={id}: pre-authenticate, idp shortcut,
// or render the login page.
func (c *Controller) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	signInID, ok := boundedQuery(r, "signin")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	if signInID == "" {
		logging.Ctx(ctx).Info().Msg("no signin id passed to login")
		c.renderErrorPage(w, r, MessageNoSignInCookie)
		return
	}

	msg, ok := c.readSignInMessage(w, r, signInID)
	if !ok {
		return
	}

	result, err := c.deps.Users.PreAuthenticate(ctx, msg)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("pre-authenticate failed")
		c.endpointFailure(w, r, "login_get", "pre-authenticate error")
		return
	}
	if result != nil {
		if result.IsError() {
			c.deps.Events.Raise(ctx, Event{
				Name:     EventPreLoginFailure,
				Time:     time.Now(),
				ClientID: msg.ClientID,
				SignInID: signInID,
				Details:  result.ErrorMessage(),
			})
			c.renderErrorPage(w, r, result.ErrorMessage())
			return
		}
		c.deps.Events.Raise(ctx, Event{
			Name:      EventPreLoginSuccess,
			Time:      time.Now(),
			SubjectID: result.Principal().Subject(),
			ClientID:  msg.ClientID,
			SignInID:  signInID,
		})
		c.signInAndRedirect(w, r, signInID, msg, result, nil)
		return
	}

	// The authorize request may pin a provider; if the client allows it and
	// the host carries it, skip the login page entirely.
	if msg.IdP != "" {
		allowed, err := c.deps.Clients.IsValidIdentityProvider(ctx, msg.ClientID, msg.IdP)
		if err != nil {
			c.endpointFailure(w, r, "login_get", "client store error")
			return
		}
		if allowed && c.deps.Catalog.Has(msg.IdP) {
			http.Redirect(w, r, c.externalURL(signInID, msg.IdP), http.StatusFound)
			return
		}
	}

	c.renderLoginPage(w, r, signInID, msg, loginPageState{})
}

// handleLoginPost is POST /login?signin={id}: local credential validation.
// The anti-forgery gate has already run.
func (c *Controller) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !c.opts.EnableLocalLogin {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	signInID, ok := boundedQuery(r, "signin")
	if !ok {
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}
	if signInID == "" {
		c.renderErrorPage(w, r, MessageNoSignInCookie)
		return
	}

	msg, ok := c.readSignInMessage(w, r, signInID)
	if !ok {
		return
	}

	allowed, err := c.isLocalLoginAllowed(ctx, msg)
	if err != nil {
		c.endpointFailure(w, r, "login_post", "client store error")
		return
	}
	if !allowed {
		logging.Ctx(ctx).Warn().Str("client_id", msg.ClientID).Msg("local login posted but not allowed for client")
		c.renderErrorPage(w, r, MessageUnexpectedError)
		return
	}

	form := c.parseLoginForm(r)
	if form.Username == "" && form.Password == "" {
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: MessageInvalidUsernameOrPassword, RememberMe: form.RememberMe})
		return
	}
	if form.Username == "" {
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: MessageUsernameRequired, RememberMe: form.RememberMe})
		return
	}
	if form.Password == "" {
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: MessagePasswordRequired, Username: form.Username, RememberMe: form.RememberMe})
		return
	}
	// Overlong credentials re-render without error text instead of hitting
	// the generic error page, so a prober learns nothing about the bound.
	if len(form.Username) > MaxInputParamLength || len(form.Password) > MaxInputParamLength {
		c.renderLoginPage(w, r, signInID, msg, loginPageState{RememberMe: form.RememberMe})
		return
	}

	result, err := c.deps.Users.AuthenticateLocal(ctx, form.Username, form.Password, msg)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("local authentication failed")
		c.endpointFailure(w, r, "login_post", "user service error")
		return
	}

	if result == nil {
		LoginAttemptsTotal.WithLabelValues(OutcomeFailure).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:     EventLocalLoginFailure,
			Time:     time.Now(),
			Username: form.Username,
			ClientID: msg.ClientID,
			SignInID: signInID,
			Details:  "invalid credentials",
		})
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: MessageInvalidUsernameOrPassword, Username: form.Username, RememberMe: form.RememberMe})
		return
	}
	if result.IsError() {
		LoginAttemptsTotal.WithLabelValues(OutcomeError).Inc()
		c.deps.Events.Raise(ctx, Event{
			Name:     EventLocalLoginFailure,
			Time:     time.Now(),
			Username: form.Username,
			ClientID: msg.ClientID,
			SignInID: signInID,
			Details:  result.ErrorMessage(),
		})
		c.renderLoginPage(w, r, signInID, msg, loginPageState{ErrorID: result.ErrorMessage(), Username: form.Username, RememberMe: form.RememberMe})
		return
	}

	// Always written on success, even when it matches the previous value.
	c.deps.LastUser.Set(w, form.Username)

	outcome := OutcomeSuccess
	if result.IsPartial() {
		outcome = OutcomePartial
	}
	LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	c.deps.Events.Raise(ctx, Event{
		Name:      EventLocalLoginSuccess,
		Time:      time.Now(),
		SubjectID: result.Principal().Subject(),
		Username:  form.Username,
		ClientID:  msg.ClientID,
		SignInID:  signInID,
	})

	c.signInAndRedirect(w, r, signInID, msg, result, form.RememberMe)
}

// loginPageState carries what a re-render must preserve from the failed
// submission.
type loginPageState struct {
	ErrorID    string
	Username   string
	RememberMe *bool
}

// renderLoginPage assembles and renders the login page, or short-circuits
// when local login is off: a single eligible provider is challenged directly,
// zero eligible providers is a dead end.
func (c *Controller) renderLoginPage(w http.ResponseWriter, r *http.Request, signInID string, msg *SignInMessage, state loginPageState) {
	ctx := r.Context()

	localAllowed, err := c.isLocalLoginAllowed(ctx, msg)
	if err != nil {
		c.endpointFailure(w, r, "login_page", "client store error")
		return
	}
	providers, err := c.eligibleProviders(ctx, msg)
	if err != nil {
		c.endpointFailure(w, r, "login_page", "client store error")
		return
	}

	if !localAllowed {
		switch len(providers) {
		case 0:
			logging.Ctx(ctx).Warn().Str("client_id", msg.ClientID).Msg("local login disabled and no eligible external providers")
			c.renderErrorPage(w, r, MessageUnexpectedError)
			return
		case 1:
			http.Redirect(w, r, c.externalURL(signInID, providers[0].Name), http.StatusFound)
			return
		}
	}

	links := make([]ExternalProviderLink, 0, len(providers))
	for _, p := range providers {
		caption := p.Caption
		if caption == "" {
			caption = p.Name
		}
		links = append(links, ExternalProviderLink{
			Text: caption,
			Href: c.externalURL(signInID, p.Name),
		})
	}

	username := state.Username
	if username == "" && c.opts.EnableLoginHint {
		username = msg.LoginHint
	}
	if username == "" {
		username = c.deps.LastUser.Get(r)
	}

	var clientName string
	if msg.ClientID != "" {
		if client, err := c.deps.Clients.FindClientByID(ctx, msg.ClientID); err == nil && client != nil {
			clientName = client.ClientName
		}
	}

	model := &LoginViewModel{
		CommonViewModel:   c.common(r),
		AntiForgery:       c.deps.AntiForgery.Token(w, r),
		Username:          username,
		AllowRememberMe:   c.opts.AllowRememberMe,
		ExternalProviders: links,
		Links:             c.pageLinks(signInID),
		ErrorMessage:      MessageText(state.ErrorID),
		ClientName:        clientName,
	}
	if state.ErrorID == "" {
		model.ErrorMessage = ""
	}
	if state.RememberMe != nil {
		model.RememberMe = *state.RememberMe
	}
	if localAllowed {
		model.LoginURL = c.loginURL(signInID)
	}

	if err := c.deps.Views.Login(w, r, model); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("render login page")
	}
}

// pageLinks resolves the configured login-page links for the sign-in id.
func (c *Controller) pageLinks(signInID string) []PageLink {
	if len(c.opts.PageLinks) == 0 {
		return nil
	}
	links := make([]PageLink, 0, len(c.opts.PageLinks))
	for _, l := range c.opts.PageLinks {
		href := strings.ReplaceAll(c.resolvePath(l.Href), "{signinId}", signInID)
		links = append(links, PageLink{Text: l.Text, Href: href})
	}
	return links
}
