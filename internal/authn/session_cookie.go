// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// generateID creates a cryptographically random 32-hex-char identifier.
// Used for sign-in ids, resume ids, and session ids.
func generateID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failure means the process is in no state to mint
		// identifiers at all.
		panic("authn: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

// SessionCookie holds the opaque per-session identifier other endpoints
// (check-session, front-channel logout) correlate browser state with. A fresh
// id is minted on every full sign-in and cleared on sign-out.
type SessionCookie struct {
	codec *CookieCodec
	ttl   time.Duration
}

// NewSessionCookie creates the session-id cookie accessor.
func NewSessionCookie(codec *CookieCodec, ttl time.Duration) *SessionCookie {
	return &SessionCookie{codec: codec, ttl: ttl}
}

func (s *SessionCookie) name() string { return s.codec.CookieName("session_id") }

// Issue mints and writes a fresh session id, returning it. Reissuing on
// every sign-in also defeats session fixation.
func (s *SessionCookie) Issue(w http.ResponseWriter) string {
	id := generateID()
	s.codec.Write(w, s.name(), id, s.ttl)
	return id
}

// Read returns the current session id, or "".
func (s *SessionCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(s.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Clear expires the session-id cookie.
func (s *SessionCookie) Clear(w http.ResponseWriter) {
	s.codec.Clear(w, s.name())
}

// lastUserNameEnvelopeID binds the last-username envelope; the cookie is a
// singleton, not per-flow.
const lastUserNameEnvelopeID = "last_username"

// LastUserNameCookie remembers the last successfully used local username so
// the login page can prefill it. Signed to keep it tamper-evident; written
// on every local success regardless of the previous value.
type LastUserNameCookie struct {
	codec *CookieCodec
	ttl   time.Duration
}

// NewLastUserNameCookie creates the last-username cookie accessor.
func NewLastUserNameCookie(codec *CookieCodec, ttl time.Duration) *LastUserNameCookie {
	return &LastUserNameCookie{codec: codec, ttl: ttl}
}

func (c *LastUserNameCookie) name() string { return c.codec.CookieName("last_username") }

// Set stores the username.
func (c *LastUserNameCookie) Set(w http.ResponseWriter, username string) {
	token, err := c.codec.Encode(lastUserNameEnvelopeID, username, c.ttl)
	if err != nil {
		return
	}
	c.codec.Write(w, c.name(), token, c.ttl)
}

// Get returns the remembered username, or "".
func (c *LastUserNameCookie) Get(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	var username string
	if err := c.codec.Decode(cookie.Value, lastUserNameEnvelopeID, &username); err != nil {
		return ""
	}
	return username
}
