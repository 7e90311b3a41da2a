// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/signetd/signetd/internal/logging"
)

// Anti-forgery errors.
var (
	// ErrAntiForgeryTokenMissing indicates no token was provided.
	ErrAntiForgeryTokenMissing = errors.New("anti-forgery token missing")

	// ErrAntiForgeryTokenInvalid indicates the cookie and form tokens do
	// not match.
	ErrAntiForgeryTokenInvalid = errors.New("anti-forgery token invalid")
)

// AntiForgeryFieldName is the hidden form field carrying the token.
const AntiForgeryFieldName = "xsrf_token"

// antiForgeryTokenLength is the byte length of minted tokens.
const antiForgeryTokenLength = 32

// AntiForgeryToken is the token pair rendered into a form.
type AntiForgeryToken struct {
	Name  string
	Value string
}

// AntiForgery implements double-submit anti-forgery: the token lives in a
// cookie and must be resubmitted in a matching hidden form field. The
// controller is request-scoped so no server-side token state is kept.
type AntiForgery struct {
	codec *CookieCodec
}

// NewAntiForgery creates the anti-forgery gate.
func NewAntiForgery(codec *CookieCodec) *AntiForgery {
	return &AntiForgery{codec: codec}
}

func (a *AntiForgery) cookieName() string { return a.codec.CookieName("xsrf") }

// Token returns the token for a rendered form, minting and setting the
// cookie when absent.
func (a *AntiForgery) Token(w http.ResponseWriter, r *http.Request) AntiForgeryToken {
	if cookie, err := r.Cookie(a.cookieName()); err == nil && cookie.Value != "" {
		return AntiForgeryToken{Name: AntiForgeryFieldName, Value: cookie.Value}
	}

	bytes := make([]byte, antiForgeryTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		logging.Error().Err(err).Msg("anti-forgery: failed to generate token")
		return AntiForgeryToken{Name: AntiForgeryFieldName}
	}
	token := base64.RawURLEncoding.EncodeToString(bytes)

	// The cookie stays HttpOnly: the token reaches the form server-side.
	a.codec.Write(w, a.cookieName(), token, 0)
	return AntiForgeryToken{Name: AntiForgeryFieldName, Value: token}
}

// Validate checks the double-submit pair on a POST.
func (a *AntiForgery) Validate(r *http.Request) error {
	cookie, err := r.Cookie(a.cookieName())
	if err != nil || cookie.Value == "" {
		return ErrAntiForgeryTokenMissing
	}

	if r.PostForm == nil {
		//nolint:errcheck // best effort form parsing; a missing field fails below
		r.ParseForm()
	}
	formToken := r.PostFormValue(AntiForgeryFieldName)
	if formToken == "" {
		return ErrAntiForgeryTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(formToken)) != 1 {
		return ErrAntiForgeryTokenInvalid
	}
	return nil
}

// Require is middleware that rejects POSTs without a valid token before the
// handler (and therefore before any user-service call) runs.
func (a *AntiForgery) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Validate(r); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("anti-forgery rejection")
			http.Error(w, "invalid anti-forgery token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
