// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package config provides layered configuration loading for signetd:
// struct defaults, then an optional YAML file, then SIGNETD_* environment
// variables, validated before use.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the signetd server.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Login     LoginConfig      `koanf:"login"`
	Cookies   CookieConfig     `koanf:"cookies"`
	Messages  MessagesConfig   `koanf:"messages"`
	Providers []ProviderConfig `koanf:"providers"`
	Clients   []ClientConfig   `koanf:"clients"`
	Users     []UserConfig     `koanf:"users"`
	Events    EventsConfig     `koanf:"events"`
	Logging   LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port" validate:"min=1,max=65535"`

	// PublicOrigin is the externally visible origin of this server,
	// e.g. "https://idsvr.example.com". Used to build absolute URLs
	// (partial-login resume, provider callbacks).
	PublicOrigin string `koanf:"public_origin" validate:"required,url"`

	// BasePath is the path prefix the authentication endpoints mount under.
	BasePath string `koanf:"base_path"`

	// Timeout is the per-request read/write timeout.
	Timeout time.Duration `koanf:"timeout"`
}

// LoginConfig holds server-wide interactive login policy.
type LoginConfig struct {
	// SiteName is shown on rendered pages.
	SiteName string `koanf:"site_name"`

	// SiteURL is the link target for the site name on rendered pages.
	SiteURL string `koanf:"site_url"`

	// EnableLocalLogin enables username/password login server-wide.
	// Clients may further restrict it per-client.
	EnableLocalLogin bool `koanf:"enable_local_login"`

	// EnableLoginHint prefills the username field from the protocol
	// login_hint parameter.
	EnableLoginHint bool `koanf:"enable_login_hint"`

	// EnableSignOutPrompt shows a confirmation page before signing out.
	// When disabled, GET /logout signs out immediately.
	EnableSignOutPrompt bool `koanf:"enable_sign_out_prompt"`

	// AllowRememberMe offers the remember-me checkbox on the login page.
	AllowRememberMe bool `koanf:"allow_remember_me"`

	// PageLinks are extra links shown on the login page. An href starting
	// with "~/" is resolved against the endpoint base; a {signinId}
	// placeholder is replaced with the current sign-in id.
	PageLinks []PageLinkConfig `koanf:"page_links"`
}

// PageLinkConfig is one host-configured login-page link.
type PageLinkConfig struct {
	Text string `koanf:"text" validate:"required"`
	Href string `koanf:"href" validate:"required"`
}

// CookieConfig holds cookie envelope and persistence policy.
type CookieConfig struct {
	// SigningSecret signs every cookie envelope (HS256). Minimum 32 bytes.
	SigningSecret string `koanf:"signing_secret" validate:"required,min=32"`

	// Prefix is prepended to every cookie name.
	Prefix string `koanf:"prefix"`

	// Path restricts cookies to the identity server base path.
	Path string `koanf:"path"`

	// Secure marks cookies Secure. Disable only for local development.
	Secure bool `koanf:"secure"`

	// IsPersistent is the server default when the user was not prompted
	// for remember-me.
	IsPersistent bool `koanf:"is_persistent"`

	// RememberMeDuration is the explicit expiry applied when the user
	// checked remember-me.
	RememberMeDuration time.Duration `koanf:"remember_me_duration"`

	// SessionDuration bounds the non-persistent authentication cookie.
	SessionDuration time.Duration `koanf:"session_duration"`

	// MessageTTL bounds the short-lived sign-in/sign-out message envelopes.
	MessageTTL time.Duration `koanf:"message_ttl"`
}

// MessagesConfig selects the message store backend.
type MessagesConfig struct {
	// Store is the backend: "cookie" (signed client-side envelopes) or
	// "badger" (server-side, survives restarts).
	Store string `koanf:"store" validate:"oneof=cookie badger"`

	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string `koanf:"badger_path"`
}

// ProviderConfig describes one external identity provider.
type ProviderConfig struct {
	// Name is the scheme name used in URLs and the idp claim, e.g. "goog".
	Name string `koanf:"name" validate:"required"`

	// Caption is the human-readable label on the login page.
	Caption string `koanf:"caption"`

	// Type is the provider protocol. Only "oidc" is supported.
	Type string `koanf:"type" validate:"oneof=oidc"`

	// Issuer is the provider's OIDC issuer URL.
	Issuer string `koanf:"issuer" validate:"required,url"`

	ClientID     string   `koanf:"client_id" validate:"required"`
	ClientSecret string   `koanf:"client_secret"`
	Scopes       []string `koanf:"scopes"`

	// Hidden providers are challengeable but not listed on the login page.
	Hidden bool `koanf:"hidden"`
}

// ClientConfig describes one registered OAuth2 client.
type ClientConfig struct {
	ClientID   string `koanf:"client_id" validate:"required"`
	ClientName string `koanf:"client_name"`
	ClientURI  string `koanf:"client_uri"`

	// EnableLocalLogin allows username/password login for this client.
	EnableLocalLogin bool `koanf:"enable_local_login"`

	// IdentityProviderRestrictions whitelists external providers. Empty
	// means all.
	IdentityProviderRestrictions []string `koanf:"identity_provider_restrictions"`

	// LogoutURI is the client's sign-out notification endpoint. When set it
	// is loaded as a hidden iframe on the logged-out page.
	LogoutURI string `koanf:"logout_uri" validate:"omitempty,url"`
}

// UserConfig describes one local user for the built-in user service.
type UserConfig struct {
	Subject  string `koanf:"subject" validate:"required"`
	Username string `koanf:"username" validate:"required"`

	// PasswordHash is a bcrypt hash of the user's password.
	PasswordHash string `koanf:"password_hash" validate:"required"`

	// Name is the display name; defaults to the username.
	Name string `koanf:"name"`

	// ProviderIDs maps external provider names to the provider's subject id
	// for this user, enabling external login.
	ProviderIDs map[string]string `koanf:"provider_ids"`
}

// EventsConfig selects the event sink.
type EventsConfig struct {
	// Sink is "log", "channel" (in-process watermill pub/sub) or "nats".
	Sink string `koanf:"sink" validate:"oneof=log channel nats"`

	// URL is the NATS server URL for the nats sink.
	URL string `koanf:"url"`

	// Topic is the event topic events are published to.
	Topic string `koanf:"topic"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3407,
			PublicOrigin: "http://localhost:3407",
			BasePath:     "/",
			Timeout:      30 * time.Second,
		},
		Login: LoginConfig{
			SiteName:            "signetd",
			SiteURL:             "/",
			EnableLocalLogin:    true,
			EnableLoginHint:     true,
			EnableSignOutPrompt: true,
			AllowRememberMe:     true,
		},
		Cookies: CookieConfig{
			Prefix:             "signetd",
			Path:               "/",
			Secure:             true,
			IsPersistent:       false,
			RememberMeDuration: 30 * 24 * time.Hour,
			SessionDuration:    10 * time.Hour,
			MessageTTL:         time.Hour,
		},
		Messages: MessagesConfig{
			Store:      "cookie",
			BadgerPath: "/data/signetd/messages",
		},
		Events: EventsConfig{
			Sink:  "log",
			URL:   "nats://127.0.0.1:4222",
			Topic: "signetd.auth.events",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration with validator struct tags plus
// cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Messages.Store == "badger" && c.Messages.BadgerPath == "" {
		return fmt.Errorf("messages.badger_path is required for the badger store")
	}
	if c.Events.Sink == "nats" && c.Events.URL == "" {
		return fmt.Errorf("events.url is required for the nats sink")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}

	seenClients := make(map[string]bool, len(c.Clients))
	for _, client := range c.Clients {
		if seenClients[client.ClientID] {
			return fmt.Errorf("duplicate client id %q", client.ClientID)
		}
		seenClients[client.ClientID] = true
	}

	seenUsers := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if seenUsers[u.Username] {
			return fmt.Errorf("duplicate username %q", u.Username)
		}
		seenUsers[u.Username] = true
	}

	return nil
}
