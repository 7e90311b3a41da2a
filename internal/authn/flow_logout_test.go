// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// wantCleared asserts that the named cookie was expired in the response.
func wantCleared(t *testing.T, rec *httptest.ResponseRecorder, name string) {
	t.Helper()
	cookie := issuedCookie(t, rec, name)
	if cookie == nil {
		t.Errorf("cookie %s not touched, want it cleared", name)
		return
	}
	if cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("cookie %s not expired: MaxAge=%d Value=%q", name, cookie.MaxAge, cookie.Value)
	}
}

func TestLogoutPromptRendered(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get("/logout", e.authCookie(SchemePrimary, fullTestPrincipal("11")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	wantPage(t, e.views, "logout")
	if e.views.logout.LogoutURL != testOrigin+"/logout" {
		t.Errorf("LogoutURL = %q, want %q", e.views.logout.LogoutURL, testOrigin+"/logout")
	}
	if e.views.logout.AntiForgery.Value == "" {
		t.Error("AntiForgery token empty")
	}

	// The prompt must not sign anyone out.
	if e.users.signOutCalls != 0 {
		t.Error("user service signed out on prompt render")
	}
	if issuedCookie(t, rec, testPrefix+".auth.primary") != nil {
		t.Error("primary cookie touched on prompt render")
	}
}

func TestLogoutAnonymousSkipsPrompt(t *testing.T) {
	e := newTestEnv(t)

	e.get("/logout")

	wantPage(t, e.views, "logged_out")
	if e.users.signOutCalls != 0 {
		t.Error("user service signed out for anonymous caller")
	}
	if e.events.has(EventLogout) {
		t.Error("logout event raised for anonymous caller")
	}
}

func TestLogoutClientInitiatedSkipsPrompt(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignOut("z", SignOutMessage{ClientID: testClientID, ReturnURL: "https://rp/post-logout"})

	rec := e.get("/logout?id=z",
		e.authCookie(SchemePrimary, fullTestPrincipal("11")),
		&http.Cookie{Name: testPrefix + ".session_id", Value: "s1"},
	)

	wantPage(t, e.views, "logged_out")
	m := e.views.loggedOut
	if m.RedirectURL != "https://rp/post-logout" {
		t.Errorf("RedirectURL = %q, want the sign-out message's return url", m.RedirectURL)
	}
	if m.ClientName != "Client One" {
		t.Errorf("ClientName = %q, want %q", m.ClientName, "Client One")
	}
	if m.CurrentUser != "" {
		t.Errorf("CurrentUser = %q, want empty after sign-out", m.CurrentUser)
	}

	wantCleared(t, rec, testPrefix+".auth.primary")
	wantCleared(t, rec, testPrefix+".auth.external")
	wantCleared(t, rec, testPrefix+".auth.partial")
	wantCleared(t, rec, testPrefix+".session_id")

	if e.messages.SignOut.Has("z") {
		t.Error("sign-out message retained")
	}
	if e.users.signOutCalls != 1 {
		t.Errorf("user service sign-out calls = %d, want 1", e.users.signOutCalls)
	}
	if e.users.signedOut == nil || e.users.signedOut.Subject() != "11" {
		t.Error("user service did not receive the signed-out principal")
	}
	if !e.events.has(EventLogout) {
		t.Error("no logout event")
	}
}

func TestLogoutPromptDisabled(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.opts.EnableSignOutPrompt = false
	})

	rec := e.get("/logout", e.authCookie(SchemePrimary, fullTestPrincipal("11")))

	wantPage(t, e.views, "logged_out")
	wantCleared(t, rec, testPrefix+".auth.primary")
	if e.users.signOutCalls != 1 {
		t.Errorf("user service sign-out calls = %d, want 1", e.users.signOutCalls)
	}
}

func TestLogoutPostSignsOut(t *testing.T) {
	e := newTestEnv(t)

	xsrfCookie, token := e.xsrf()
	rec := e.post("/logout", url.Values{AntiForgeryFieldName: {token}},
		xsrfCookie,
		e.authCookie(SchemePrimary, fullTestPrincipal("11")),
	)

	wantPage(t, e.views, "logged_out")
	wantCleared(t, rec, testPrefix+".auth.primary")
	if !e.events.has(EventLogout) {
		t.Error("no logout event")
	}
}

func TestLogoutPostWithoutAntiForgery(t *testing.T) {
	e := newTestEnv(t)

	rec := e.post("/logout", url.Values{}, e.authCookie(SchemePrimary, fullTestPrincipal("11")))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if e.users.signOutCalls != 0 {
		t.Error("user service signed out despite anti-forgery rejection")
	}
}

func TestLogoutClearsExternalProviderScheme(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.opts.EnableSignOutPrompt = false
	})

	principal := NewPrincipal(
		Claim{Type: ClaimSubject, Value: "11"},
		Claim{Type: ClaimName, Value: "alice"},
		Claim{Type: ClaimAuthenticationMethod, Value: AuthenticationMethodExternal},
		Claim{Type: ClaimAuthenticationTime, Value: "1700000000"},
		Claim{Type: ClaimIdentityProvider, Value: "goog"},
	)
	rec := e.get("/logout", e.authCookie(SchemePrimary, principal))

	wantCleared(t, rec, testPrefix+".auth.goog")
}

func TestLogoutOversizeID(t *testing.T) {
	e := newTestEnv(t)

	e.get("/logout?id=" + strings.Repeat("x", MaxInputParamLength+1))

	wantPage(t, e.views, "error")
	if e.users.signOutCalls != 0 {
		t.Error("sign-out ran on oversize input")
	}
}

func TestLogoutRendersClientSignOutIFrame(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.clients = NewMemoryClientStore(&Client{
			ClientID:   testClientID,
			ClientName: "Client One",
			LogoutURI:  "https://rp/signout-cleanup",
		})
	})
	e.seedSignOut("z", SignOutMessage{ClientID: testClientID, ReturnURL: "https://rp/post-logout"})

	e.get("/logout?id=z", e.authCookie(SchemePrimary, fullTestPrincipal("11")))

	wantPage(t, e.views, "logged_out")
	m := e.views.loggedOut
	if len(m.IFrameURLs) != 1 || m.IFrameURLs[0] != "https://rp/signout-cleanup" {
		t.Errorf("IFrameURLs = %v, want the client's logout uri", m.IFrameURLs)
	}
}
