// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"strings"
	"testing"
)

// partialTestPrincipal builds a suspended principal: the given claims plus the
// resume bookkeeping pointing at the sign-in id.
func partialTestPrincipal(resumeID, signInID string, claims ...Claim) *ClaimsPrincipal {
	p := NewPrincipal(claims...)
	p.AddClaim(ClaimPartialLoginReturnURL, testOrigin+"/resume?resume="+resumeID)
	p.AddClaim(PartialLoginResumeClaimType(resumeID), signInID)
	return p
}

func TestResumePromotesCompletedPartial(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	// Registration filled in the full claim set; the bookkeeping claims are
	// still attached.
	partial := partialTestPrincipal("r1", "abc",
		Claim{Type: ClaimSubject, Value: "22"},
		Claim{Type: ClaimName, Value: "New User"},
		Claim{Type: ClaimAuthenticationMethod, Value: AuthenticationMethodExternal},
		Claim{Type: ClaimAuthenticationTime, Value: "1700000000"},
		Claim{Type: ClaimIdentityProvider, Value: "goog"},
		Claim{Type: ClaimExternalProviderUserID, Value: "g-999", Issuer: "goog"},
	)

	rec := e.get("/resume?resume=r1", e.authCookie(SchemePartial, partial))

	wantRedirect(t, rec, testReturnURL)

	// The issued primary principal must shed every bookkeeping claim.
	primary := e.decodeScheme(rec, SchemePrimary)
	if primary.Subject() != "22" {
		t.Errorf("promoted subject = %q, want %q", primary.Subject(), "22")
	}
	for _, claimType := range []string{
		ClaimPartialLoginReturnURL,
		ClaimExternalProviderUserID,
		PartialLoginResumeClaimType("r1"),
	} {
		if primary.HasClaim(claimType) {
			t.Errorf("primary principal still carries %q", claimType)
		}
	}

	if e.messages.SignIn.Has("abc") {
		t.Error("sign-in message retained after promotion")
	}
	if !e.events.has(EventPartialLoginComplete) {
		t.Error("no partial login complete event")
	}

	// The partial cookie is torn down with the transition.
	if cookie := issuedCookie(t, rec, testPrefix+".auth.partial"); cookie == nil || cookie.MaxAge >= 0 {
		t.Error("partial cookie not cleared on promotion")
	}
}

func TestResumeReauthenticatesIncompletePartial(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.authenticateExternal = func(_ context.Context, external *ExternalIdentity, _ *SignInMessage) (*AuthenticateResult, error) {
			if external.Provider != "goog" || external.ProviderID != "g-999" {
				return nil, nil
			}
			return FullLogin(fullTestPrincipal("22")), nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	partial := partialTestPrincipal("r1", "abc",
		Claim{Type: ClaimExternalProviderUserID, Value: "g-999", Issuer: "goog"},
	)

	rec := e.get("/resume?resume=r1", e.authCookie(SchemePartial, partial))

	wantRedirect(t, rec, testReturnURL)
	if e.users.externalCalls != 1 {
		t.Errorf("external authentication calls = %d, want 1", e.users.externalCalls)
	}
	if got := e.decodeScheme(rec, SchemePrimary).Subject(); got != "22" {
		t.Errorf("issued subject = %q, want %q", got, "22")
	}
}

func TestResumeWithoutPartialCookie(t *testing.T) {
	e := newTestEnv(t)

	e.get("/resume?resume=r1")

	wantPage(t, e.views, "error")
}

func TestResumeMissingResumeClaim(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	// The cookie was minted for a different resume id.
	partial := partialTestPrincipal("other", "abc",
		Claim{Type: ClaimExternalProviderUserID, Value: "g-999", Issuer: "goog"},
	)

	e.get("/resume?resume=r1", e.authCookie(SchemePartial, partial))

	wantPage(t, e.views, "error")
	if e.users.externalCalls != 0 {
		t.Error("user service called without a matching resume claim")
	}
}

func TestResumeUnrecoverablePartial(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	// Neither the full claim set nor an external identity claim.
	partial := partialTestPrincipal("r1", "abc")

	e.get("/resume?resume=r1", e.authCookie(SchemePartial, partial))

	wantPage(t, e.views, "error")
}

func TestResumeParamValidation(t *testing.T) {
	for name, target := range map[string]string{
		"missing":  "/resume",
		"empty":    "/resume?resume=",
		"oversize": "/resume?resume=" + strings.Repeat("r", MaxInputParamLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t)

			e.get(target)

			wantPage(t, e.views, "error")
		})
	}
}
