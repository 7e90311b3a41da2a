// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// Message store errors.
var (
	// ErrMessageNotFound is returned when no message exists for the id, the
	// envelope is unreadable, or its stored id does not match the requested
	// one.
	ErrMessageNotFound = errors.New("message not found")
)

// SignInMessage is created by the authorize endpoint when it starts an
// interactive sign-in and consumed here. It is immutable for the life of a
// flow and addressed by a random sign-in id, so concurrent flows in one
// browser never collide.
type SignInMessage struct {
	// ClientID is the OAuth2 client that initiated the authorize request.
	ClientID string `json:"client_id"`

	// ReturnURL is where the browser goes after a full sign-in.
	ReturnURL string `json:"return_url"`

	// IdP requests a specific external provider, skipping the login page.
	IdP string `json:"idp,omitempty"`

	// LoginHint prefills the username field.
	LoginHint string `json:"login_hint,omitempty"`

	// AcrValues are authentication context class references passed through
	// to the user service policy.
	AcrValues []string `json:"acr_values,omitempty"`

	// Tenant is a policy passthrough for multi-tenant user services.
	Tenant string `json:"tenant,omitempty"`

	// DisplayMode and UILocales are protocol passthroughs for the view layer.
	DisplayMode string `json:"display_mode,omitempty"`
	UILocales   string `json:"ui_locales,omitempty"`
}

// SignOutMessage describes an in-progress client-initiated logout.
type SignOutMessage struct {
	ClientID  string `json:"client_id"`
	ReturnURL string `json:"return_url"`
}

// MessageStore is the capability for per-id message envelopes. The
// cookie-backed implementation is request-scoped; the badger and memory
// implementations are shared. Read must fail with ErrMessageNotFound when the
// stored envelope's id does not match the requested id.
type MessageStore[T any] interface {
	Put(ctx context.Context, id string, msg T) error
	Read(ctx context.Context, id string) (T, error)
	Clear(ctx context.Context, id string) error
}

// MessageStoreFactory hands out the sign-in and sign-out stores for a
// request. Cookie-backed factories bind the stores to the response writer;
// server-side factories ignore it.
type MessageStoreFactory interface {
	SignInStore(w http.ResponseWriter, r *http.Request) MessageStore[SignInMessage]
	SignOutStore(w http.ResponseWriter, r *http.Request) MessageStore[SignOutMessage]
}

// MemoryMessageStore is an in-memory MessageStore. It is the test seam for
// the flow tests and usable for single-node development.
type MemoryMessageStore[T any] struct {
	mu       sync.RWMutex
	messages map[string]T
}

// NewMemoryMessageStore creates an empty in-memory store.
func NewMemoryMessageStore[T any]() *MemoryMessageStore[T] {
	return &MemoryMessageStore[T]{messages: make(map[string]T)}
}

// Put stores a message under the id.
func (s *MemoryMessageStore[T]) Put(_ context.Context, id string, msg T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = msg
	return nil
}

// Read retrieves the message for the id.
func (s *MemoryMessageStore[T]) Read(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		var zero T
		return zero, ErrMessageNotFound
	}
	return msg, nil
}

// Clear removes the message. Clearing an absent id is not an error.
func (s *MemoryMessageStore[T]) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

// Has reports whether a message exists for the id. Test helper.
func (s *MemoryMessageStore[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[id]
	return ok
}

// MemoryMessageStoreFactory bundles in-memory sign-in and sign-out stores.
type MemoryMessageStoreFactory struct {
	SignIn  *MemoryMessageStore[SignInMessage]
	SignOut *MemoryMessageStore[SignOutMessage]
}

// NewMemoryMessageStoreFactory creates a factory with fresh stores.
func NewMemoryMessageStoreFactory() *MemoryMessageStoreFactory {
	return &MemoryMessageStoreFactory{
		SignIn:  NewMemoryMessageStore[SignInMessage](),
		SignOut: NewMemoryMessageStore[SignOutMessage](),
	}
}

// SignInStore returns the shared sign-in store.
func (f *MemoryMessageStoreFactory) SignInStore(http.ResponseWriter, *http.Request) MessageStore[SignInMessage] {
	return f.SignIn
}

// SignOutStore returns the shared sign-out store.
func (f *MemoryMessageStoreFactory) SignOutStore(http.ResponseWriter, *http.Request) MessageStore[SignOutMessage] {
	return f.SignOut
}
