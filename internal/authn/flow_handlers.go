// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signetd/signetd/internal/logging"
)

// MaxInputParamLength bounds every user-controlled string parameter. Overlong
// values short-circuit to the generic error page without being echoed,
// logged, or passed to any service.
const MaxInputParamLength = 100

// Route paths within the authentication endpoint.
const (
	PathLogin    = "/login"
	PathExternal = "/external"
	PathCallback = "/callback"
	PathResume   = "/resume"
	PathLogout   = "/logout"
)

// Options is the interactive-login policy the controller enforces. It is a
// plain value so tests can construct it without the config package.
type Options struct {
	// SiteName and SiteURL brand rendered pages.
	SiteName string
	SiteURL  string

	// PublicOrigin is the externally visible origin, e.g.
	// "https://idsvr.test". Combined with BasePath to build absolute URLs.
	PublicOrigin string

	// BasePath is the mount prefix of the authentication endpoint.
	BasePath string

	// EnableLocalLogin enables username/password login server-wide.
	EnableLocalLogin bool

	// EnableLoginHint prefills the username from the sign-in message.
	EnableLoginHint bool

	// EnableSignOutPrompt shows a confirmation page before signing out.
	EnableSignOutPrompt bool

	// AllowRememberMe offers the remember-me checkbox.
	AllowRememberMe bool

	// IsPersistent is the default persistence when the user was not
	// prompted for remember-me.
	IsPersistent bool

	// RememberMeDuration is the explicit expiry for remember-me sign-ins.
	RememberMeDuration time.Duration

	// PageLinks are extra links rendered on the login page. A "~/" href is
	// resolved against the endpoint base; a {signinId} placeholder is
	// replaced with the current sign-in id.
	PageLinks []PageLink
}

// Dependencies are the collaborators the controller drives. All of them must
// be non-nil.
type Dependencies struct {
	Bridge      HostBridge
	Users       UserService
	Clients     ClientStore
	Views       ViewService
	Events      EventService
	Messages    MessageStoreFactory
	Catalog     ProviderCatalog
	AntiForgery *AntiForgery
	Session     *SessionCookie
	LastUser    *LastUserNameCookie
}

// Controller is the interactive authentication endpoint: login, external
// provider round trips, partial-login resumption, and logout. It holds no
// per-request state; everything that survives between requests lives in
// signed cookies or behind the injected services, so concurrent requests
// need no controller-level locking.
type Controller struct {
	opts Options
	deps Dependencies
}

// NewController creates the flow controller.
func NewController(opts Options, deps Dependencies) *Controller {
	return &Controller{opts: opts, deps: deps}
}

// Routes mounts the authentication endpoint handlers. POST routes sit behind
// the anti-forgery gate, so no user-service call can happen without a valid
// token.
func (c *Controller) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get(PathLogin, c.instrument("login_get", c.handleLoginGet))
	r.With(c.deps.AntiForgery.Require).Post(PathLogin, c.instrument("login_post", c.handleLoginPost))
	r.Get(PathExternal, c.instrument("external", c.handleExternal))
	r.Get(PathCallback, c.instrument("callback", c.handleCallback))
	r.Get(PathResume, c.instrument("resume", c.handleResume))
	r.Get(PathLogout, c.instrument("logout_get", c.handleLogoutGet))
	r.With(c.deps.AntiForgery.Require).Post(PathLogout, c.instrument("logout_post", c.handleLogoutPost))
	return r
}

func (c *Controller) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		FlowDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// baseURL is the absolute URL of the endpoint mount, without a trailing
// slash.
func (c *Controller) baseURL() string {
	base := strings.TrimRight(c.opts.PublicOrigin, "/")
	path := strings.Trim(c.opts.BasePath, "/")
	if path != "" {
		base += "/" + path
	}
	return base
}

func (c *Controller) loginURL(signInID string) string {
	return c.baseURL() + PathLogin + "?signin=" + signInID
}

func (c *Controller) externalURL(signInID, provider string) string {
	return c.baseURL() + PathExternal + "?signin=" + signInID + "&provider=" + provider
}

func (c *Controller) resumeURL(resumeID string) string {
	return c.baseURL() + PathResume + "?resume=" + resumeID
}

func (c *Controller) logoutURL(signOutID string) string {
	url := c.baseURL() + PathLogout
	if signOutID != "" {
		url += "?id=" + signOutID
	}
	return url
}

// resolvePath turns a "~/"-relative path into an absolute URL against the
// endpoint base. Anything else passes through verbatim.
func (c *Controller) resolvePath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return c.baseURL() + "/" + rest
	}
	return path
}

// boundedQuery returns the named query parameter, reporting false when it
// exceeds the input bound. The overlong value is not returned.
func boundedQuery(r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if len(value) > MaxInputParamLength {
		return "", false
	}
	return value, true
}

func (c *Controller) common(r *http.Request) CommonViewModel {
	vm := CommonViewModel{SiteName: c.opts.SiteName, SiteURL: c.opts.SiteURL}
	if principal, err := c.deps.Bridge.AuthenticatedIdentity(r); err == nil {
		vm.CurrentUser = principal.DisplayName()
	}
	return vm
}

// renderErrorPage renders the generic error page. messageID may be a message
// id or already-resolved display text.
func (c *Controller) renderErrorPage(w http.ResponseWriter, r *http.Request, messageID string) {
	model := &ErrorViewModel{
		CommonViewModel: c.common(r),
		ErrorMessage:    MessageText(messageID),
		RequestID:       logging.RequestIDFromContext(r.Context()),
	}
	if err := c.deps.Views.Error(w, r, model); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render error page")
	}
}

// endpointFailure records a hard failure of a handler and renders the generic
// error page.
func (c *Controller) endpointFailure(w http.ResponseWriter, r *http.Request, handler, details string) {
	EndpointFailuresTotal.WithLabelValues(handler).Inc()
	c.deps.Events.Raise(r.Context(), Event{
		Name:    EventEndpointFailure,
		Time:    time.Now(),
		Details: EndpointAuthenticate + ": " + details,
	})
	c.renderErrorPage(w, r, MessageUnexpectedError)
}

// readSignInMessage loads the sign-in message for the id, rendering the
// no-sign-in-cookie error page when it cannot be found.
func (c *Controller) readSignInMessage(w http.ResponseWriter, r *http.Request, signInID string) (*SignInMessage, bool) {
	msg, err := c.deps.Messages.SignInStore(w, r).Read(r.Context(), signInID)
	if err != nil {
		logging.Ctx(r.Context()).Info().Str("signin_id", signInID).Msg("no sign-in message for id")
		c.renderErrorPage(w, r, MessageNoSignInCookie)
		return nil, false
	}
	return &msg, true
}

// isLocalLoginAllowed combines the server-wide flag with the client's.
func (c *Controller) isLocalLoginAllowed(ctx context.Context, msg *SignInMessage) (bool, error) {
	if !c.opts.EnableLocalLogin {
		return false, nil
	}
	if msg.ClientID == "" {
		return true, nil
	}
	client, err := c.deps.Clients.FindClientByID(ctx, msg.ClientID)
	if err != nil {
		return false, err
	}
	if client == nil {
		return true, nil
	}
	return client.EnableLocalLogin, nil
}

// eligibleProviders returns the providers the client may use, visible ones
// first-class and hidden ones excluded.
func (c *Controller) eligibleProviders(ctx context.Context, msg *SignInMessage) ([]ProviderInfo, error) {
	var client *Client
	if msg.ClientID != "" {
		var err error
		client, err = c.deps.Clients.FindClientByID(ctx, msg.ClientID)
		if err != nil {
			return nil, err
		}
	}

	var eligible []ProviderInfo
	for _, p := range c.deps.Catalog.Providers(ctx) {
		if p.Hidden {
			continue
		}
		if client != nil && !client.AllowsIdentityProvider(p.Name) {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible, nil
}
