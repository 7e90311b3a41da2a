// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// Shared fixtures. The flow tests run against the real cookie host bridge and
// cookie codec; only the outward-facing services (users, views, events,
// provider catalog) are stubbed.

const (
	testOrigin    = "https://idsvr.test"
	testSecret    = "0123456789abcdef0123456789abcdef"
	testPrefix    = "signetd"
	testClientID  = "c1"
	testReturnURL = "https://rp/cb"
)

type stubUserService struct {
	preAuthenticate      func(ctx context.Context, msg *SignInMessage) (*AuthenticateResult, error)
	authenticateLocal    func(ctx context.Context, username, password string, msg *SignInMessage) (*AuthenticateResult, error)
	authenticateExternal func(ctx context.Context, external *ExternalIdentity, msg *SignInMessage) (*AuthenticateResult, error)

	localCalls    int
	externalCalls int
	signOutCalls  int
	signedOut     *ClaimsPrincipal
}

func (s *stubUserService) PreAuthenticate(ctx context.Context, msg *SignInMessage) (*AuthenticateResult, error) {
	if s.preAuthenticate != nil {
		return s.preAuthenticate(ctx, msg)
	}
	return nil, nil
}

func (s *stubUserService) AuthenticateLocal(ctx context.Context, username, password string, msg *SignInMessage) (*AuthenticateResult, error) {
	s.localCalls++
	if s.authenticateLocal != nil {
		return s.authenticateLocal(ctx, username, password, msg)
	}
	return nil, nil
}

func (s *stubUserService) AuthenticateExternal(ctx context.Context, external *ExternalIdentity, msg *SignInMessage) (*AuthenticateResult, error) {
	s.externalCalls++
	if s.authenticateExternal != nil {
		return s.authenticateExternal(ctx, external, msg)
	}
	return nil, nil
}

func (s *stubUserService) SignOut(_ context.Context, principal *ClaimsPrincipal) error {
	s.signOutCalls++
	s.signedOut = principal
	return nil
}

type stubCatalog struct {
	infos    []ProviderInfo
	exchange func(provider, code, verifier string) (*ClaimsPrincipal, error)
}

func (s *stubCatalog) Providers(context.Context) []ProviderInfo { return s.infos }

func (s *stubCatalog) Has(name string) bool {
	for _, p := range s.infos {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (s *stubCatalog) AuthURL(_ context.Context, provider, state, _ string) (string, error) {
	return fmt.Sprintf("https://%s.test/auth?state=%s", provider, state), nil
}

func (s *stubCatalog) Exchange(_ context.Context, provider, code, verifier string) (*ClaimsPrincipal, error) {
	if s.exchange != nil {
		return s.exchange(provider, code, verifier)
	}
	return nil, errors.New("no exchange stub")
}

// viewRecorder records which page was rendered with which model.
type viewRecorder struct {
	page      string
	login     *LoginViewModel
	logout    *LogoutViewModel
	loggedOut *LoggedOutViewModel
	errModel  *ErrorViewModel
}

func (v *viewRecorder) Login(w http.ResponseWriter, _ *http.Request, m *LoginViewModel) error {
	v.page, v.login = "login", m
	_, err := w.Write([]byte("login page"))
	return err
}

func (v *viewRecorder) Logout(w http.ResponseWriter, _ *http.Request, m *LogoutViewModel) error {
	v.page, v.logout = "logout", m
	_, err := w.Write([]byte("logout page"))
	return err
}

func (v *viewRecorder) LoggedOut(w http.ResponseWriter, _ *http.Request, m *LoggedOutViewModel) error {
	v.page, v.loggedOut = "logged_out", m
	_, err := w.Write([]byte("logged out page"))
	return err
}

func (v *viewRecorder) Error(w http.ResponseWriter, _ *http.Request, m *ErrorViewModel) error {
	v.page, v.errModel = "error", m
	_, err := w.Write([]byte("error page"))
	return err
}

type eventRecorder struct {
	events []Event
}

func (e *eventRecorder) Raise(_ context.Context, ev Event) {
	e.events = append(e.events, ev)
}

func (e *eventRecorder) has(name string) bool {
	for _, ev := range e.events {
		if ev.Name == name {
			return true
		}
	}
	return false
}

type testEnv struct {
	t        *testing.T
	opts     Options
	handler  http.Handler
	codec    *CookieCodec
	bridge   *CookieHostBridge
	messages *MemoryMessageStoreFactory
	users    *stubUserService
	catalog  *stubCatalog
	views    *viewRecorder
	events   *eventRecorder
	clients  *MemoryClientStore
}

func newTestEnv(t *testing.T, mutate ...func(*testEnv)) *testEnv {
	t.Helper()

	e := &testEnv{
		t: t,
		opts: Options{
			SiteName:            "signetd",
			SiteURL:             "/",
			PublicOrigin:        testOrigin,
			BasePath:            "/",
			EnableLocalLogin:    true,
			EnableLoginHint:     true,
			EnableSignOutPrompt: true,
			AllowRememberMe:     true,
			IsPersistent:        false,
			RememberMeDuration:  720 * time.Hour,
		},
		messages: NewMemoryMessageStoreFactory(),
		users:    &stubUserService{},
		views:    &viewRecorder{},
		events:   &eventRecorder{},
		catalog: &stubCatalog{infos: []ProviderInfo{
			{Name: "goog", Caption: "Google"},
			{Name: "backdoor", Caption: "Backdoor", Hidden: true},
		}},
		clients: NewMemoryClientStore(&Client{
			ClientID:         testClientID,
			ClientName:       "Client One",
			EnableLocalLogin: true,
		}),
	}
	e.codec = NewCookieCodec([]byte(testSecret), testPrefix, "/", false)
	e.bridge = NewCookieHostBridge(e.codec, e.catalog, 10*time.Hour, e.opts.RememberMeDuration)

	for _, m := range mutate {
		m(e)
	}

	ctrl := NewController(e.opts, Dependencies{
		Bridge:      e.bridge,
		Users:       e.users,
		Clients:     e.clients,
		Views:       e.views,
		Events:      e.events,
		Messages:    e.messages,
		Catalog:     e.catalog,
		AntiForgery: NewAntiForgery(e.codec),
		Session:     NewSessionCookie(e.codec, 10*time.Hour),
		LastUser:    NewLastUserNameCookie(e.codec, e.opts.RememberMeDuration),
	})
	e.handler = ctrl.Routes()
	return e
}

func (e *testEnv) seedSignIn(id string, msg SignInMessage) {
	e.t.Helper()
	if err := e.messages.SignIn.Put(context.Background(), id, msg); err != nil {
		e.t.Fatalf("seed sign-in message: %v", err)
	}
}

func (e *testEnv) seedSignOut(id string, msg SignOutMessage) {
	e.t.Helper()
	if err := e.messages.SignOut.Put(context.Background(), id, msg); err != nil {
		e.t.Fatalf("seed sign-out message: %v", err)
	}
}

func (e *testEnv) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) post(target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// xsrf returns a matching anti-forgery cookie and form value.
func (e *testEnv) xsrf() (*http.Cookie, string) {
	const token = "test-xsrf-token"
	return &http.Cookie{Name: testPrefix + ".xsrf", Value: token}, token
}

// authCookie encodes a principal under the given scheme.
func (e *testEnv) authCookie(scheme AuthScheme, principal *ClaimsPrincipal) *http.Cookie {
	e.t.Helper()
	token, err := e.codec.Encode(string(scheme), principal, time.Hour)
	if err != nil {
		e.t.Fatalf("encode %s principal: %v", scheme, err)
	}
	return &http.Cookie{Name: testPrefix + ".auth." + string(scheme), Value: token}
}

// issuedCookie finds a cookie set in the response. Sign-in responses clear a
// scheme before reissuing it, so the last Set-Cookie for a name wins.
func issuedCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

// decodeScheme decodes the principal issued under the given scheme.
func (e *testEnv) decodeScheme(rec *httptest.ResponseRecorder, scheme AuthScheme) *ClaimsPrincipal {
	e.t.Helper()
	cookie := issuedCookie(e.t, rec, testPrefix+".auth."+string(scheme))
	if cookie == nil || cookie.Value == "" {
		e.t.Fatalf("no %s cookie issued", scheme)
	}
	principal := &ClaimsPrincipal{}
	if err := e.codec.Decode(cookie.Value, string(scheme), principal); err != nil {
		e.t.Fatalf("decode %s cookie: %v", scheme, err)
	}
	return principal
}

// fullTestPrincipal carries the complete claim set.
func fullTestPrincipal(sub string) *ClaimsPrincipal {
	return NewPrincipal(
		Claim{Type: ClaimSubject, Value: sub},
		Claim{Type: ClaimName, Value: sub},
		Claim{Type: ClaimAuthenticationMethod, Value: AuthenticationMethodPassword},
		Claim{Type: ClaimAuthenticationTime, Value: "1700000000"},
		Claim{Type: ClaimIdentityProvider, Value: BuiltInIdentityProvider},
	)
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusFound, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func wantPage(t *testing.T, views *viewRecorder, page string) {
	t.Helper()
	if views.page != page {
		t.Fatalf("rendered page = %q, want %q", views.page, page)
	}
}
