// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"sync"
)

// Client is the metadata the flow controller needs about an OAuth2 client.
type Client struct {
	// ClientID is the unique client identifier.
	ClientID string `json:"client_id"`

	// ClientName is the friendly name shown on logout pages.
	ClientName string `json:"client_name"`

	// ClientURI links the friendly name.
	ClientURI string `json:"client_uri,omitempty"`

	// EnableLocalLogin allows username/password login for this client. The
	// server-wide flag still gates it.
	EnableLocalLogin bool `json:"enable_local_login"`

	// IdentityProviderRestrictions whitelists external providers for this
	// client. Empty means all configured providers are allowed.
	IdentityProviderRestrictions []string `json:"identity_provider_restrictions,omitempty"`

	// LogoutURI is the client's sign-out notification endpoint, loaded as a
	// hidden iframe on the logged-out page.
	LogoutURI string `json:"logout_uri,omitempty"`
}

// AllowsIdentityProvider reports whether the client permits the provider.
func (c *Client) AllowsIdentityProvider(provider string) bool {
	if len(c.IdentityProviderRestrictions) == 0 {
		return true
	}
	for _, p := range c.IdentityProviderRestrictions {
		if p == provider {
			return true
		}
	}
	return false
}

// ClientStore looks up client metadata. Implementations own their
// concurrency control; calls may block on I/O.
type ClientStore interface {
	// FindClientByID returns the client, or nil when unknown.
	FindClientByID(ctx context.Context, clientID string) (*Client, error)

	// IsValidIdentityProvider reports whether the client permits the
	// external provider. Unknown clients permit nothing.
	IsValidIdentityProvider(ctx context.Context, clientID, provider string) (bool, error)
}

// MemoryClientStore is a map-backed ClientStore seeded from configuration.
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewMemoryClientStore creates a store with the given clients.
func NewMemoryClientStore(clients ...*Client) *MemoryClientStore {
	s := &MemoryClientStore{clients: make(map[string]*Client, len(clients))}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

// FindClientByID returns the client, or nil when unknown.
func (s *MemoryClientStore) FindClientByID(_ context.Context, clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[clientID], nil
}

// IsValidIdentityProvider checks the client's provider whitelist.
func (s *MemoryClientStore) IsValidIdentityProvider(ctx context.Context, clientID, provider string) (bool, error) {
	client, err := s.FindClientByID(ctx, clientID)
	if err != nil {
		return false, err
	}
	if client == nil {
		return false, nil
	}
	return client.AllowsIdentityProvider(provider), nil
}
