// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Envelope errors.
var (
	// ErrEnvelopeInvalid is returned when an envelope fails signature or
	// claim validation.
	ErrEnvelopeInvalid = errors.New("cookie envelope invalid")

	// ErrEnvelopeIDMismatch is returned when an envelope's bound id does not
	// match the id it was read with. This is the cross-flow confusion guard.
	ErrEnvelopeIDMismatch = errors.New("cookie envelope id mismatch")
)

// envelopeClaims is the JWS payload of every signed cookie: the binding id
// plus the serialized message.
type envelopeClaims struct {
	jwt.RegisteredClaims
	EnvelopeID string          `json:"env_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// CookieCodec signs and verifies opaque cookie envelopes (compact JWS,
// HS256). Every envelope is bound to a short identifier; reading with a
// different id fails.
type CookieCodec struct {
	secret []byte
	prefix string
	path   string
	secure bool
}

// NewCookieCodec creates a codec. The secret must be at least 32 bytes;
// config validation enforces that before we get here.
func NewCookieCodec(secret []byte, prefix, path string, secure bool) *CookieCodec {
	if path == "" {
		path = "/"
	}
	return &CookieCodec{secret: secret, prefix: prefix, path: path, secure: secure}
}

// CookieName builds a namespaced cookie name.
func (c *CookieCodec) CookieName(parts ...string) string {
	name := c.prefix
	for _, p := range parts {
		name += "." + p
	}
	return name
}

// Encode signs a payload bound to id, valid for ttl.
func (c *CookieCodec) Encode(id string, payload any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal envelope payload: %w", err)
	}

	now := time.Now()
	claims := envelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		EnvelopeID: id,
		Payload:    raw,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return token, nil
}

// Decode verifies an envelope, checks the id binding, and unmarshals the
// payload into out.
func (c *CookieCodec) Decode(token, id string, out any) error {
	claims := &envelopeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrEnvelopeInvalid
	}
	if claims.EnvelopeID != id {
		return ErrEnvelopeIDMismatch
	}
	if out != nil && len(claims.Payload) > 0 {
		if err := json.Unmarshal(claims.Payload, out); err != nil {
			return ErrEnvelopeInvalid
		}
	}
	return nil
}

// Write sets a cookie. maxAge zero means a session cookie.
func (c *CookieCodec) Write(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.path,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, cookie)
}

// Clear expires a cookie. Clearing an absent cookie is harmless, so every
// transition can clear unconditionally.
func (c *CookieCodec) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     c.path,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
