// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"net/http"
	"time"
)

// Cookie name segments for the two message kinds.
const (
	signInMessageKind  = "signin"
	signOutMessageKind = "signout"
)

// CookieMessageStore is the browser-cookie MessageStore backend. Each message
// lives in its own signed envelope cookie addressed by id, so a browser can
// run several flows at once. The store is request-scoped: it is created per
// request and bound to that request's writer.
type CookieMessageStore[T any] struct {
	codec *CookieCodec
	kind  string
	ttl   time.Duration
	w     http.ResponseWriter
	r     *http.Request
}

// Put writes the message envelope cookie.
func (s *CookieMessageStore[T]) Put(_ context.Context, id string, msg T) error {
	token, err := s.codec.Encode(id, msg, s.ttl)
	if err != nil {
		return err
	}
	s.codec.Write(s.w, s.cookieName(id), token, s.ttl)
	return nil
}

// Read loads and verifies the envelope for the id. A missing cookie, a bad
// signature, or an id mismatch all surface as ErrMessageNotFound; the
// distinction is logged, never shown.
func (s *CookieMessageStore[T]) Read(_ context.Context, id string) (T, error) {
	var msg T
	cookie, err := s.r.Cookie(s.cookieName(id))
	if err != nil {
		return msg, ErrMessageNotFound
	}
	if err := s.codec.Decode(cookie.Value, id, &msg); err != nil {
		return msg, ErrMessageNotFound
	}
	return msg, nil
}

// Clear expires the envelope cookie. Idempotent.
func (s *CookieMessageStore[T]) Clear(_ context.Context, id string) error {
	s.codec.Clear(s.w, s.cookieName(id))
	return nil
}

func (s *CookieMessageStore[T]) cookieName(id string) string {
	return s.codec.CookieName(s.kind, id)
}

// CookieMessageStoreFactory creates request-scoped cookie stores.
type CookieMessageStoreFactory struct {
	codec *CookieCodec
	ttl   time.Duration
}

// NewCookieMessageStoreFactory creates the factory. ttl bounds every message
// envelope; flows older than that restart from the authorize endpoint.
func NewCookieMessageStoreFactory(codec *CookieCodec, ttl time.Duration) *CookieMessageStoreFactory {
	return &CookieMessageStoreFactory{codec: codec, ttl: ttl}
}

// SignInStore returns the sign-in message store bound to this request.
func (f *CookieMessageStoreFactory) SignInStore(w http.ResponseWriter, r *http.Request) MessageStore[SignInMessage] {
	return &CookieMessageStore[SignInMessage]{codec: f.codec, kind: signInMessageKind, ttl: f.ttl, w: w, r: r}
}

// SignOutStore returns the sign-out message store bound to this request.
func (f *CookieMessageStoreFactory) SignOutStore(w http.ResponseWriter, r *http.Request) MessageStore[SignOutMessage] {
	return &CookieMessageStore[SignOutMessage]{codec: f.codec, kind: signOutMessageKind, ttl: f.ttl, w: w, r: r}
}
