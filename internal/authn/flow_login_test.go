// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestLoginGetRendersPage(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL, LoginHint: "alice"})

	rec := e.get("/login?signin=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	wantPage(t, e.views, "login")

	m := e.views.login
	if m.Username != "alice" {
		t.Errorf("Username = %q, want login hint %q", m.Username, "alice")
	}
	if m.LoginURL == "" {
		t.Error("LoginURL empty, want POST target")
	}
	if m.ClientName != "Client One" {
		t.Errorf("ClientName = %q, want %q", m.ClientName, "Client One")
	}
	if len(m.ExternalProviders) != 1 || m.ExternalProviders[0].Text != "Google" {
		t.Errorf("ExternalProviders = %+v, want single visible Google link", m.ExternalProviders)
	}
	if m.AntiForgery.Value == "" {
		t.Error("AntiForgery token empty")
	}
}

func TestLoginGetMissingSignin(t *testing.T) {
	e := newTestEnv(t)

	e.get("/login")

	wantPage(t, e.views, "error")
	if e.views.errModel.ErrorMessage != MessageText(MessageNoSignInCookie) {
		t.Errorf("ErrorMessage = %q, want no-sign-in-cookie text", e.views.errModel.ErrorMessage)
	}
}

func TestLoginGetUnknownSignin(t *testing.T) {
	e := newTestEnv(t)

	e.get("/login?signin=nope")

	wantPage(t, e.views, "error")
	if e.views.errModel.ErrorMessage != MessageText(MessageNoSignInCookie) {
		t.Errorf("ErrorMessage = %q, want no-sign-in-cookie text", e.views.errModel.ErrorMessage)
	}
}

func TestLoginGetOversizeSignin(t *testing.T) {
	e := newTestEnv(t)
	oversize := strings.Repeat("a", MaxInputParamLength+1)

	rec := e.get("/login?signin=" + oversize)

	wantPage(t, e.views, "error")
	if strings.Contains(e.views.errModel.ErrorMessage, oversize) {
		t.Error("oversize value echoed in error page")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Errorf("cookies written on oversize input: %v", rec.Result().Cookies())
	}
	if len(e.events.events) != 0 {
		t.Errorf("events emitted on oversize input: %v", e.events.events)
	}
	if e.users.localCalls+e.users.externalCalls != 0 {
		t.Error("user service called on oversize input")
	}
}

func TestLoginGetPreAuthenticateFull(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.preAuthenticate = func(context.Context, *SignInMessage) (*AuthenticateResult, error) {
			return FullLogin(fullTestPrincipal("11")), nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	rec := e.get("/login?signin=abc")

	wantRedirect(t, rec, testReturnURL)
	if e.messages.SignIn.Has("abc") {
		t.Error("sign-in message retained after full pre-authenticate")
	}
	if !e.events.has(EventPreLoginSuccess) {
		t.Error("no pre-login success event")
	}
}

func TestLoginGetPreAuthenticateError(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.preAuthenticate = func(context.Context, *SignInMessage) (*AuthenticateResult, error) {
			return LoginError("device not trusted"), nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	e.get("/login?signin=abc")

	wantPage(t, e.views, "error")
	if e.views.errModel.ErrorMessage != "device not trusted" {
		t.Errorf("ErrorMessage = %q, want user service message", e.views.errModel.ErrorMessage)
	}
	if !e.events.has(EventPreLoginFailure) {
		t.Error("no pre-login failure event")
	}
}

func TestLoginGetIdPShortcut(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL, IdP: "goog"})

	rec := e.get("/login?signin=abc")

	wantRedirect(t, rec, testOrigin+"/external?signin=abc&provider=goog")
}

func TestLoginGetIdPUnknownFallsThroughToPage(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL, IdP: "nope"})

	e.get("/login?signin=abc")

	wantPage(t, e.views, "login")
}

func TestLoginPostHappy(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.authenticateLocal = func(_ context.Context, username, password string, _ *SignInMessage) (*AuthenticateResult, error) {
			if username == "alice" && password == "pw" {
				return FullLogin(fullTestPrincipal("11")), nil
			}
			return nil, nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	xsrfCookie, token := e.xsrf()
	rec := e.post("/login?signin=abc", url.Values{
		"username":           {"alice"},
		"password":           {"pw"},
		"rememberMe":         {"true"},
		AntiForgeryFieldName: {token},
	}, xsrfCookie)

	wantRedirect(t, rec, testReturnURL)

	if e.messages.SignIn.Has("abc") {
		t.Error("sign-in message retained after full sign-in")
	}

	// Persistent primary cookie with the remember-me lifetime.
	primary := issuedCookie(t, rec, testPrefix+".auth.primary")
	if primary == nil {
		t.Fatal("no primary cookie issued")
	}
	if want := int(e.opts.RememberMeDuration.Seconds()); primary.MaxAge != want {
		t.Errorf("primary cookie MaxAge = %d, want %d", primary.MaxAge, want)
	}
	if got := e.decodeScheme(rec, SchemePrimary).Subject(); got != "11" {
		t.Errorf("issued subject = %q, want %q", got, "11")
	}

	if issuedCookie(t, rec, testPrefix+".session_id") == nil {
		t.Error("no session id issued")
	}

	lastUser := issuedCookie(t, rec, testPrefix+".last_username")
	if lastUser == nil {
		t.Fatal("no last-username cookie issued")
	}
	var username string
	if err := e.codec.Decode(lastUser.Value, "last_username", &username); err != nil || username != "alice" {
		t.Errorf("last username = %q (err %v), want %q", username, err, "alice")
	}

	if !e.events.has(EventLocalLoginSuccess) {
		t.Error("no local login success event")
	}
}

func TestLoginPostClearsAllSchemesBeforeIssuing(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.authenticateLocal = func(context.Context, string, string, *SignInMessage) (*AuthenticateResult, error) {
			return FullLogin(fullTestPrincipal("11")), nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	xsrfCookie, token := e.xsrf()
	rec := e.post("/login?signin=abc", url.Values{
		"username":           {"alice"},
		"password":           {"pw"},
		AntiForgeryFieldName: {token},
	}, xsrfCookie)

	for _, scheme := range []AuthScheme{SchemeExternal, SchemePartial} {
		cookie := issuedCookie(t, rec, testPrefix+".auth."+string(scheme))
		if cookie == nil {
			t.Errorf("%s scheme not cleared on sign-in", scheme)
			continue
		}
		if cookie.MaxAge >= 0 {
			t.Errorf("%s scheme cookie not expired: MaxAge=%d", scheme, cookie.MaxAge)
		}
	}
}

func TestLoginPostWithoutAntiForgery(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	rec := e.post("/login?signin=abc", url.Values{
		"username": {"alice"},
		"password": {"pw"},
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if e.users.localCalls != 0 {
		t.Error("user service called despite anti-forgery rejection")
	}
}

func TestLoginPostLocalLoginDisabled(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.opts.EnableLocalLogin = false
	})

	xsrfCookie, token := e.xsrf()
	rec := e.post("/login?signin=abc", url.Values{AntiForgeryFieldName: {token}}, xsrfCookie)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestLoginPostFieldValidation(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantMsg  string
		wantUser string
	}{
		{
			name:    "empty body",
			form:    url.Values{},
			wantMsg: MessageText(MessageInvalidUsernameOrPassword),
		},
		{
			name:    "missing username",
			form:    url.Values{"password": {"pw"}},
			wantMsg: MessageText(MessageUsernameRequired),
		},
		{
			name:     "missing password",
			form:     url.Values{"username": {"alice"}},
			wantMsg:  MessageText(MessagePasswordRequired),
			wantUser: "alice",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

			xsrfCookie, token := e.xsrf()
			form := tc.form
			form.Set(AntiForgeryFieldName, token)
			e.post("/login?signin=abc", form, xsrfCookie)

			wantPage(t, e.views, "login")
			if e.views.login.ErrorMessage != tc.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", e.views.login.ErrorMessage, tc.wantMsg)
			}
			if e.views.login.Username != tc.wantUser && tc.wantUser != "" {
				t.Errorf("Username = %q, want %q preserved", e.views.login.Username, tc.wantUser)
			}
			if e.users.localCalls != 0 {
				t.Error("user service called for invalid form")
			}
		})
	}
}

func TestLoginPostOverlongCredentialsRerenderWithoutError(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	xsrfCookie, token := e.xsrf()
	e.post("/login?signin=abc", url.Values{
		"username":           {strings.Repeat("a", MaxInputParamLength+1)},
		"password":           {"pw"},
		AntiForgeryFieldName: {token},
	}, xsrfCookie)

	wantPage(t, e.views, "login")
	if e.views.login.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty for overlong credentials", e.views.login.ErrorMessage)
	}
	if e.users.localCalls != 0 {
		t.Error("user service called for overlong credentials")
	}
}

func TestLoginPostInvalidCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	xsrfCookie, token := e.xsrf()
	e.post("/login?signin=abc", url.Values{
		"username":           {"alice"},
		"password":           {"wrong"},
		"rememberMe":         {"true"},
		AntiForgeryFieldName: {token},
	}, xsrfCookie)

	wantPage(t, e.views, "login")
	m := e.views.login
	if m.ErrorMessage != MessageText(MessageInvalidUsernameOrPassword) {
		t.Errorf("ErrorMessage = %q, want invalid-credentials text", m.ErrorMessage)
	}
	if m.Username != "alice" {
		t.Errorf("Username = %q, want preserved %q", m.Username, "alice")
	}
	if !m.RememberMe {
		t.Error("RememberMe choice not preserved on re-render")
	}
	if !e.events.has(EventLocalLoginFailure) {
		t.Error("no local login failure event")
	}
}

func TestLoginPostUserServiceErrorResult(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.users.authenticateLocal = func(context.Context, string, string, *SignInMessage) (*AuthenticateResult, error) {
			return LoginError("account locked"), nil
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	xsrfCookie, token := e.xsrf()
	e.post("/login?signin=abc", url.Values{
		"username":           {"alice"},
		"password":           {"pw"},
		AntiForgeryFieldName: {token},
	}, xsrfCookie)

	wantPage(t, e.views, "login")
	if e.views.login.ErrorMessage != "account locked" {
		t.Errorf("ErrorMessage = %q, want user service message", e.views.login.ErrorMessage)
	}
}

func TestRememberMePersistence(t *testing.T) {
	tests := []struct {
		name          string
		allowed       bool
		formValue     string
		serverDefault bool
		wantMaxAgeSet bool
	}{
		{name: "checked", allowed: true, formValue: "true", wantMaxAgeSet: true},
		{name: "unchecked", allowed: true, formValue: "", wantMaxAgeSet: false},
		{name: "unchecked overrides server default", allowed: true, formValue: "", serverDefault: true, wantMaxAgeSet: false},
		{name: "not prompted server default persistent", allowed: false, serverDefault: true, wantMaxAgeSet: true},
		{name: "not prompted server default session", allowed: false, serverDefault: false, wantMaxAgeSet: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t, func(e *testEnv) {
				e.opts.AllowRememberMe = tc.allowed
				e.opts.IsPersistent = tc.serverDefault
				e.users.authenticateLocal = func(context.Context, string, string, *SignInMessage) (*AuthenticateResult, error) {
					return FullLogin(fullTestPrincipal("11")), nil
				}
			})
			e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

			xsrfCookie, token := e.xsrf()
			form := url.Values{
				"username":           {"alice"},
				"password":           {"pw"},
				AntiForgeryFieldName: {token},
			}
			if tc.formValue != "" {
				form.Set("rememberMe", tc.formValue)
			}
			rec := e.post("/login?signin=abc", form, xsrfCookie)

			primary := issuedCookie(t, rec, testPrefix+".auth.primary")
			if primary == nil {
				t.Fatal("no primary cookie issued")
			}
			if tc.wantMaxAgeSet && primary.MaxAge <= 0 {
				t.Errorf("MaxAge = %d, want persistent cookie", primary.MaxAge)
			}
			if !tc.wantMaxAgeSet && primary.MaxAge != 0 {
				t.Errorf("MaxAge = %d, want session cookie", primary.MaxAge)
			}
		})
	}
}

func TestLoginPageLocalDisabledProviderShortcuts(t *testing.T) {
	t.Run("single eligible provider redirects", func(t *testing.T) {
		e := newTestEnv(t, func(e *testEnv) {
			e.opts.EnableLocalLogin = false
		})
		e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

		rec := e.get("/login?signin=abc")

		wantRedirect(t, rec, testOrigin+"/external?signin=abc&provider=goog")
	})

	t.Run("no eligible providers errors", func(t *testing.T) {
		e := newTestEnv(t, func(e *testEnv) {
			e.opts.EnableLocalLogin = false
			e.catalog.infos = nil
		})
		e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

		e.get("/login?signin=abc")

		wantPage(t, e.views, "error")
	})
}

func TestLoginPagePrefillsLastUsername(t *testing.T) {
	e := newTestEnv(t)
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	token, err := e.codec.Encode("last_username", "bob", time.Hour)
	if err != nil {
		t.Fatalf("encode last username: %v", err)
	}
	e.get("/login?signin=abc", &http.Cookie{Name: testPrefix + ".last_username", Value: token})

	wantPage(t, e.views, "login")
	if e.views.login.Username != "bob" {
		t.Errorf("Username = %q, want remembered %q", e.views.login.Username, "bob")
	}
}

func TestLoginPageRendersConfiguredLinks(t *testing.T) {
	e := newTestEnv(t, func(e *testEnv) {
		e.opts.PageLinks = []PageLink{
			{Text: "Forgot password", Href: "~/forgot?signin={signinId}"},
			{Text: "Help", Href: "https://help.test/"},
		}
	})
	e.seedSignIn("abc", SignInMessage{ClientID: testClientID, ReturnURL: testReturnURL})

	e.get("/login?signin=abc")

	wantPage(t, e.views, "login")
	links := e.views.login.Links
	if len(links) != 2 {
		t.Fatalf("links = %+v, want 2", links)
	}
	if want := testOrigin + "/forgot?signin=abc"; links[0].Href != want {
		t.Errorf("link href = %q, want %q", links[0].Href, want)
	}
	if links[0].Text != "Forgot password" {
		t.Errorf("link text = %q", links[0].Text)
	}
	if links[1].Href != "https://help.test/" {
		t.Errorf("absolute link href = %q, want it passed through", links[1].Href)
	}
}
