// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

type resultKind int

const (
	resultFull resultKind = iota
	resultPartial
	resultError
)

// AuthenticateResult is the outcome of a user-service authentication call.
// It is a tagged variant: exactly one of full, partial, or error. A nil
// *AuthenticateResult means the credentials were rejected with no further
// detail.
type AuthenticateResult struct {
	kind                resultKind
	principal           *ClaimsPrincipal
	partialRedirectPath string
	message             string
}

// FullLogin creates a completed authentication result. The principal must
// carry every claim in AuthenticateResultClaimTypes.
func FullLogin(principal *ClaimsPrincipal) *AuthenticateResult {
	return &AuthenticateResult{kind: resultFull, principal: principal}
}

// PartialLogin creates a suspended authentication result. The subject must
// complete an additional step at redirectPath ("~/"-relative paths resolve
// against the identity server base) before the login can finish.
func PartialLogin(principal *ClaimsPrincipal, redirectPath string) *AuthenticateResult {
	return &AuthenticateResult{kind: resultPartial, principal: principal, partialRedirectPath: redirectPath}
}

// LoginError creates an error result. The message is treated as
// already-localized text suitable for display.
func LoginError(message string) *AuthenticateResult {
	return &AuthenticateResult{kind: resultError, message: message}
}

// IsError reports whether the result is an error.
func (r *AuthenticateResult) IsError() bool { return r.kind == resultError }

// IsPartial reports whether authentication is suspended.
func (r *AuthenticateResult) IsPartial() bool { return r.kind == resultPartial }

// ErrorMessage returns the display message of an error result.
func (r *AuthenticateResult) ErrorMessage() string { return r.message }

// Principal returns the authenticated principal (nil for error results).
func (r *AuthenticateResult) Principal() *ClaimsPrincipal { return r.principal }

// PartialRedirectPath returns the additional-step path of a partial result.
func (r *AuthenticateResult) PartialRedirectPath() string { return r.partialRedirectPath }

// ExternalIdentity is the reduced identity produced after an external
// provider callback: the provider scheme name, the provider's unique id for
// the subject, and the full claim set the provider asserted.
type ExternalIdentity struct {
	Provider   string  `json:"provider"`
	ProviderID string  `json:"provider_id"`
	Claims     []Claim `json:"claims"`
}

// ExternalIdentityFromCallback reduces a callback principal to an
// ExternalIdentity by selecting the subject claim. The claim's issuer is the
// provider name and its value the provider's subject id. Returns false when
// no subject claim is present.
func ExternalIdentityFromCallback(principal *ClaimsPrincipal) (*ExternalIdentity, bool) {
	sub, ok := principal.FindFirst(ClaimSubject)
	if !ok || sub.Value == "" {
		return nil, false
	}
	return &ExternalIdentity{
		Provider:   sub.Issuer,
		ProviderID: sub.Value,
		Claims:     principal.Claims,
	}, true
}

// ExternalIdentityFromPartial reconstructs an ExternalIdentity from a partial
// principal at resume time. The external-provider-user-id claim supplies
// provider (issuer) and provider id (value); the principal's claim set rides
// along. Returns false when the claim is absent.
func ExternalIdentityFromPartial(principal *ClaimsPrincipal) (*ExternalIdentity, bool) {
	c, ok := principal.FindFirst(ClaimExternalProviderUserID)
	if !ok {
		return nil, false
	}
	return &ExternalIdentity{
		Provider:   c.Issuer,
		ProviderID: c.Value,
		Claims:     principal.Claims,
	}, true
}
