// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package providers implements the outbound federation catalog: the external
// OIDC providers signetd can challenge, built on the certified zitadel/oidc
// relying-party client (automatic discovery, JWKS caching, PKCE, token
// validation).
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/signetd/signetd/internal/authn"
	"github.com/signetd/signetd/internal/config"
	"github.com/signetd/signetd/internal/logging"
)

// provider is one configured upstream, with its discovered relying party.
type provider struct {
	info authn.ProviderInfo
	rp   rp.RelyingParty
}

// Catalog is the authn.ProviderCatalog implementation. It is immutable after
// construction, so lookups need no locking.
type Catalog struct {
	providers map[string]*provider
	order     []string
}

var _ authn.ProviderCatalog = (*Catalog)(nil)

// NewCatalog discovers every configured provider. callbackURL is the shared
// redirect URI of the callback handler; it must be registered with each
// upstream. Discovery failures abort startup rather than leaving a provider
// silently unchallengeable.
func NewCatalog(ctx context.Context, callbackURL string, cfgs []config.ProviderConfig) (*Catalog, error) {
	c := &Catalog{providers: make(map[string]*provider, len(cfgs))}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	for _, cfg := range cfgs {
		scopes := cfg.Scopes
		if len(scopes) == 0 {
			scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
		}

		relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
			cfg.Issuer,
			cfg.ClientID,
			cfg.ClientSecret,
			callbackURL,
			scopes,
			rp.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("discover provider %q: %w", cfg.Name, err)
		}

		caption := cfg.Caption
		if caption == "" {
			caption = cfg.Name
		}
		c.providers[cfg.Name] = &provider{
			info: authn.ProviderInfo{Name: cfg.Name, Caption: caption, Hidden: cfg.Hidden},
			rp:   relyingParty,
		}
		c.order = append(c.order, cfg.Name)

		logging.Info().
			Str("provider", cfg.Name).
			Str("issuer", cfg.Issuer).
			Msg("external provider discovered")
	}

	return c, nil
}

// Providers lists the configured providers in configuration order.
func (c *Catalog) Providers(context.Context) []authn.ProviderInfo {
	infos := make([]authn.ProviderInfo, 0, len(c.order))
	for _, name := range c.order {
		infos = append(infos, c.providers[name].info)
	}
	return infos
}

// Has reports whether the named provider is configured.
func (c *Catalog) Has(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// AuthURL builds the provider's authorization URL carrying the state and the
// S256 challenge derived from the verifier.
func (c *Catalog) AuthURL(_ context.Context, name, state, verifier string) (string, error) {
	p, ok := c.providers[name]
	if !ok {
		return "", authn.ErrUnknownProvider
	}
	return rp.AuthURL(state, p.rp, rp.WithCodeChallenge(oidc.NewSHACodeChallenge(verifier))), nil
}

// Exchange redeems the callback code and maps the validated ID token claims
// to a principal. Every claim carries the provider name as its issuer, which
// is how the flow later reconstructs the external identity.
func (c *Catalog) Exchange(ctx context.Context, name, code, verifier string) (*authn.ClaimsPrincipal, error) {
	p, ok := c.providers[name]
	if !ok {
		return nil, authn.ErrUnknownProvider
	}

	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, p.rp, rp.WithCodeVerifier(verifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange with %q: %w", name, err)
	}
	if tokens.IDTokenClaims == nil {
		return nil, fmt.Errorf("provider %q returned no id token claims", name)
	}

	return principalFromClaims(name, tokens.IDTokenClaims), nil
}

// principalFromClaims maps the typed ID token claims to flow claims.
func principalFromClaims(name string, claims *oidc.IDTokenClaims) *authn.ClaimsPrincipal {
	principal := &authn.ClaimsPrincipal{}
	add := func(claimType, value string) {
		if value != "" {
			principal.Claims = append(principal.Claims, authn.Claim{Type: claimType, Value: value, Issuer: name})
		}
	}

	add(authn.ClaimSubject, claims.Subject)

	displayName := claims.Name
	if displayName == "" {
		displayName = claims.PreferredUsername
	}
	if displayName == "" {
		displayName = claims.Email
	}
	add(authn.ClaimName, displayName)

	add("given_name", claims.GivenName)
	add("family_name", claims.FamilyName)
	add("preferred_username", claims.PreferredUsername)
	add("email", claims.Email)

	return principal
}
