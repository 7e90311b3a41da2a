// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// AuthScheme names one of the three cookie-backed authentication scopes the
// flow controller juggles. They are mutually exclusive on a well-behaved
// browser; sign-in clears all of them before issuing.
type AuthScheme string

const (
	// SchemePrimary is the fully signed-in session.
	SchemePrimary AuthScheme = "primary"

	// SchemeExternal holds the provider callback identity between the
	// external redirect and the callback handler.
	SchemeExternal AuthScheme = "external"

	// SchemePartial holds a suspended login while the subject completes an
	// additional step.
	SchemePartial AuthScheme = "partial"
)

// Host bridge errors.
var (
	// ErrNoAuthenticatedIdentity indicates the requested scheme has no valid
	// cookie. Callers branch on it; any other error is a hard failure.
	ErrNoAuthenticatedIdentity = errors.New("no authenticated identity")

	// ErrNoChallengeState indicates a callback arrived without a usable
	// challenge-state cookie (expired, missing, or state mismatch).
	ErrNoChallengeState = errors.New("no challenge state")

	// ErrUnknownProvider indicates a challenge named a provider the catalog
	// does not carry.
	ErrUnknownProvider = errors.New("unknown external provider")
)

// ProviderInfo describes a configured external provider for display.
type ProviderInfo struct {
	// Name is the scheme name used in challenge URLs.
	Name string

	// Caption is the display text for the login page button.
	Caption string

	// Hidden providers are challengeable but not listed.
	Hidden bool
}

// ProviderCatalog is the outbound federation surface: the configured external
// providers and the OIDC legwork of building authorization URLs and
// exchanging callback codes. Implemented by internal/providers.
type ProviderCatalog interface {
	// Providers lists the configured providers.
	Providers(ctx context.Context) []ProviderInfo

	// Has reports whether the named provider is configured.
	Has(name string) bool

	// AuthURL builds the provider's authorization URL for a challenge. The
	// verifier is the PKCE code verifier; implementations derive the S256
	// challenge from it.
	AuthURL(ctx context.Context, provider, state, verifier string) (string, error)

	// Exchange redeems the callback authorization code. The returned
	// principal carries the provider's asserted claims with Issuer set to
	// the provider name on each.
	Exchange(ctx context.Context, provider, code, verifier string) (*ClaimsPrincipal, error)
}

// ChallengeProperties rides the challenge round trip: written into the
// challenge-state cookie on the way out, recovered in the callback.
type ChallengeProperties struct {
	// Provider is the external scheme being challenged.
	Provider string `json:"provider"`

	// SignInID correlates the callback with its originating sign-in
	// message.
	SignInID string `json:"signin_id"`
}

// SignInOptions controls cookie issuance for a sign-in.
type SignInOptions struct {
	// Persistent survives browser restarts (remember me).
	Persistent bool

	// Expiry overrides the configured lifetime when non-zero. Only honored
	// for persistent sign-ins.
	Expiry time.Duration
}

// HostBridge is the capability surface between the flow controller and the
// hosting layer's authentication cookies. The controller never touches
// identity cookies directly; everything goes through here.
type HostBridge interface {
	// Challenge starts an external-provider round trip: it stashes the
	// properties in a state cookie and responds 401 with the provider's
	// authorization URL in the Location header.
	Challenge(w http.ResponseWriter, r *http.Request, provider string, props ChallengeProperties) error

	// CallbackProperties recovers the challenge properties on the callback
	// without consuming the state.
	CallbackProperties(r *http.Request) (ChallengeProperties, error)

	// CallbackIdentity redeems the callback code for the provider's
	// principal and consumes the challenge state.
	CallbackIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) (*ClaimsPrincipal, error)

	// AuthenticatedIdentity returns the primary-scheme principal, or
	// ErrNoAuthenticatedIdentity.
	AuthenticatedIdentity(r *http.Request) (*ClaimsPrincipal, error)

	// PartialIdentity returns the partial-scheme principal, or
	// ErrNoAuthenticatedIdentity.
	PartialIdentity(r *http.Request) (*ClaimsPrincipal, error)

	// SignIn issues the principal under the scheme.
	SignIn(w http.ResponseWriter, scheme AuthScheme, principal *ClaimsPrincipal, opts SignInOptions) error

	// SignOut clears the cookies of the given schemes.
	SignOut(w http.ResponseWriter, schemes ...AuthScheme)
}

// challengeState is the challenge-state cookie payload. The envelope is bound
// to the state parameter, so a callback with a forged or stale state cannot
// open it.
type challengeState struct {
	ChallengeProperties
	Verifier string `json:"verifier"`
}

// challengeTTL bounds how long an outbound challenge may stay in flight.
const challengeTTL = 10 * time.Minute

// CookieHostBridge is the production HostBridge: signed cookie envelopes for
// the three schemes plus a short-lived state cookie for challenges.
type CookieHostBridge struct {
	codec      *CookieCodec
	catalog    ProviderCatalog
	sessionTTL time.Duration
	rememberMe time.Duration
}

var _ HostBridge = (*CookieHostBridge)(nil)

// NewCookieHostBridge creates the bridge. sessionTTL bounds non-persistent
// envelope validity; rememberMe is the default persistent lifetime.
func NewCookieHostBridge(codec *CookieCodec, catalog ProviderCatalog, sessionTTL, rememberMe time.Duration) *CookieHostBridge {
	return &CookieHostBridge{
		codec:      codec,
		catalog:    catalog,
		sessionTTL: sessionTTL,
		rememberMe: rememberMe,
	}
}

func (b *CookieHostBridge) schemeCookie(scheme AuthScheme) string {
	return b.codec.CookieName("auth", string(scheme))
}

func (b *CookieHostBridge) stateCookie() string {
	return b.codec.CookieName("auth", "state")
}

// Challenge starts the external round trip.
func (b *CookieHostBridge) Challenge(w http.ResponseWriter, r *http.Request, provider string, props ChallengeProperties) error {
	if !b.catalog.Has(provider) {
		return ErrUnknownProvider
	}

	state := generateID()
	verifier := generateID() + generateID()

	url, err := b.catalog.AuthURL(r.Context(), provider, state, verifier)
	if err != nil {
		return err
	}

	props.Provider = provider
	token, err := b.codec.Encode(state, challengeState{ChallengeProperties: props, Verifier: verifier}, challengeTTL)
	if err != nil {
		return err
	}
	b.codec.Write(w, b.stateCookie(), token, challengeTTL)

	// 401 with Location: the hosting layer treats an unauthenticated
	// response carrying a redirect as an external challenge.
	w.Header().Set("Location", url)
	w.WriteHeader(http.StatusUnauthorized)
	return nil
}

func (b *CookieHostBridge) readChallengeState(r *http.Request) (challengeState, error) {
	state := r.URL.Query().Get("state")
	if state == "" {
		return challengeState{}, ErrNoChallengeState
	}
	cookie, err := r.Cookie(b.stateCookie())
	if err != nil {
		return challengeState{}, ErrNoChallengeState
	}
	var cs challengeState
	if err := b.codec.Decode(cookie.Value, state, &cs); err != nil {
		return challengeState{}, ErrNoChallengeState
	}
	return cs, nil
}

// CallbackProperties recovers the challenge properties.
func (b *CookieHostBridge) CallbackProperties(r *http.Request) (ChallengeProperties, error) {
	cs, err := b.readChallengeState(r)
	if err != nil {
		return ChallengeProperties{}, err
	}
	return cs.ChallengeProperties, nil
}

// CallbackIdentity exchanges the callback code and consumes the state.
func (b *CookieHostBridge) CallbackIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) (*ClaimsPrincipal, error) {
	cs, err := b.readChallengeState(r)
	if err != nil {
		return nil, err
	}
	b.codec.Clear(w, b.stateCookie())

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, ErrNoChallengeState
	}

	principal, err := b.catalog.Exchange(ctx, cs.Provider, code, cs.Verifier)
	if err != nil {
		return nil, err
	}
	principal.AuthenticationType = string(SchemeExternal)
	return principal, nil
}

func (b *CookieHostBridge) readScheme(r *http.Request, scheme AuthScheme) (*ClaimsPrincipal, error) {
	cookie, err := r.Cookie(b.schemeCookie(scheme))
	if err != nil {
		return nil, ErrNoAuthenticatedIdentity
	}
	principal := &ClaimsPrincipal{}
	if err := b.codec.Decode(cookie.Value, string(scheme), principal); err != nil {
		return nil, ErrNoAuthenticatedIdentity
	}
	return principal, nil
}

// AuthenticatedIdentity returns the primary principal.
func (b *CookieHostBridge) AuthenticatedIdentity(r *http.Request) (*ClaimsPrincipal, error) {
	return b.readScheme(r, SchemePrimary)
}

// PartialIdentity returns the partial principal.
func (b *CookieHostBridge) PartialIdentity(r *http.Request) (*ClaimsPrincipal, error) {
	return b.readScheme(r, SchemePartial)
}

// SignIn issues the principal under the scheme. Non-persistent sign-ins get a
// browser-session cookie whose envelope still expires after sessionTTL.
func (b *CookieHostBridge) SignIn(w http.ResponseWriter, scheme AuthScheme, principal *ClaimsPrincipal, opts SignInOptions) error {
	principal.AuthenticationType = string(scheme)

	envelopeTTL := b.sessionTTL
	cookieTTL := time.Duration(0)
	if opts.Persistent {
		envelopeTTL = b.rememberMe
		if opts.Expiry > 0 {
			envelopeTTL = opts.Expiry
		}
		cookieTTL = envelopeTTL
	}

	token, err := b.codec.Encode(string(scheme), principal, envelopeTTL)
	if err != nil {
		return err
	}
	b.codec.Write(w, b.schemeCookie(scheme), token, cookieTTL)
	return nil
}

// SignOut clears the cookies of the given schemes.
func (b *CookieHostBridge) SignOut(w http.ResponseWriter, schemes ...AuthScheme) {
	for _, scheme := range schemes {
		b.codec.Clear(w, b.schemeCookie(scheme))
	}
}
