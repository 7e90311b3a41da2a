// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import "strings"

// Claim types carried on authenticated principals.
const (
	// ClaimSubject is the unique subject identifier.
	ClaimSubject = "sub"

	// ClaimName is the display name.
	ClaimName = "name"

	// ClaimAuthenticationMethod records how the subject authenticated
	// ("password", "external", ...).
	ClaimAuthenticationMethod = "amr"

	// ClaimAuthenticationTime is the unix time of authentication.
	ClaimAuthenticationTime = "auth_time"

	// ClaimIdentityProvider names the provider that authenticated the
	// subject. BuiltInIdentityProvider for local logins.
	ClaimIdentityProvider = "idp"
)

// Bookkeeping claim types used during a suspended (partial) login. All three
// are stripped before the final principal is issued.
const (
	// ClaimPartialLoginReturnURL is the absolute URL the partial flow
	// resumes at.
	ClaimPartialLoginReturnURL = "partial_login_return_url"

	// ClaimExternalProviderUserID records the external provider's subject
	// id; the claim issuer is the provider name.
	ClaimExternalProviderUserID = "external_provider_user_id"

	// partialLoginResumePrefix prefixes the resume-id claim type. The full
	// type is produced by PartialLoginResumeClaimType.
	partialLoginResumePrefix = "partial_login_resume_id:"
)

// BuiltInIdentityProvider is the idp claim value for local logins.
const BuiltInIdentityProvider = "local"

// Authentication method values.
const (
	AuthenticationMethodPassword = "password"
	AuthenticationMethodExternal = "external"
)

// PartialLoginResumeClaimType formats the resume-id claim type for a given
// resume id. The same id also parametrizes the resume URL, so the formatting
// here and in the URL must stay in lockstep.
func PartialLoginResumeClaimType(resumeID string) string {
	return partialLoginResumePrefix + resumeID
}

// IsPartialLoginResumeClaimType reports whether the claim type belongs to the
// resume-id family.
func IsPartialLoginResumeClaimType(claimType string) bool {
	return strings.HasPrefix(claimType, partialLoginResumePrefix)
}

// AuthenticateResultClaimTypes is the claim set every fully authenticated
// principal carries. A partial principal may miss some of them; resume
// promotes to full once they are all present.
var AuthenticateResultClaimTypes = []string{
	ClaimSubject,
	ClaimName,
	ClaimAuthenticationMethod,
	ClaimAuthenticationTime,
	ClaimIdentityProvider,
}

// Claim is a single typed statement about a subject. Issuer identifies who
// made the statement; external provider claims carry the provider name.
type Claim struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Issuer string `json:"issuer,omitempty"`
}

// ClaimsPrincipal is the authenticated identity the flow controller works
// with. It is produced by the user service or the host bridge, mutated by the
// controller during a handler, and handed back to the bridge for issuance.
// It must never be retained past the response.
type ClaimsPrincipal struct {
	// AuthenticationType names the scheme the principal was issued under.
	AuthenticationType string `json:"authentication_type,omitempty"`

	Claims []Claim `json:"claims"`
}

// NewPrincipal creates a principal from a list of claims.
func NewPrincipal(claims ...Claim) *ClaimsPrincipal {
	return &ClaimsPrincipal{Claims: claims}
}

// FindFirst returns the first claim with the given type.
func (p *ClaimsPrincipal) FindFirst(claimType string) (Claim, bool) {
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// HasClaim reports whether any claim of the given type exists.
func (p *ClaimsPrincipal) HasClaim(claimType string) bool {
	_, ok := p.FindFirst(claimType)
	return ok
}

// HasAllClaims reports whether every listed claim type is present.
func (p *ClaimsPrincipal) HasAllClaims(claimTypes []string) bool {
	for _, t := range claimTypes {
		if !p.HasClaim(t) {
			return false
		}
	}
	return true
}

// ClaimValue returns the value of the first claim of the given type, or "".
func (p *ClaimsPrincipal) ClaimValue(claimType string) string {
	if c, ok := p.FindFirst(claimType); ok {
		return c.Value
	}
	return ""
}

// Subject returns the subject claim value.
func (p *ClaimsPrincipal) Subject() string {
	return p.ClaimValue(ClaimSubject)
}

// DisplayName returns the name claim value, falling back to the subject.
func (p *ClaimsPrincipal) DisplayName() string {
	if name := p.ClaimValue(ClaimName); name != "" {
		return name
	}
	return p.Subject()
}

// IdentityProvider returns the idp claim value.
func (p *ClaimsPrincipal) IdentityProvider() string {
	return p.ClaimValue(ClaimIdentityProvider)
}

// AddClaim appends a claim.
func (p *ClaimsPrincipal) AddClaim(claimType, value string) {
	p.Claims = append(p.Claims, Claim{Type: claimType, Value: value})
}

// RemoveClaims deletes every claim whose type is in the given set.
func (p *ClaimsPrincipal) RemoveClaims(claimTypes ...string) {
	drop := make(map[string]bool, len(claimTypes))
	for _, t := range claimTypes {
		drop[t] = true
	}
	kept := p.Claims[:0]
	for _, c := range p.Claims {
		if !drop[c.Type] {
			kept = append(kept, c)
		}
	}
	p.Claims = kept
}

// FindResumeClaim locates the resume-id claim for the given resume id.
// Its value is the originating sign-in id.
func (p *ClaimsPrincipal) FindResumeClaim(resumeID string) (Claim, bool) {
	return p.FindFirst(PartialLoginResumeClaimType(resumeID))
}
