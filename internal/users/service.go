// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package users provides the built-in user service: a configuration-seeded
// credential store with bcrypt password verification and external-account
// mapping. Deployments with a real directory implement authn.UserService
// themselves.
package users

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/signetd/signetd/internal/authn"
	"github.com/signetd/signetd/internal/config"
	"github.com/signetd/signetd/internal/logging"
)

// User is one local account.
type User struct {
	Subject  string
	Username string

	// PasswordHash is a bcrypt hash; empty disables local login for the
	// account.
	PasswordHash string

	// Name is the display name.
	Name string

	// ProviderIDs maps provider name to the provider's subject id.
	ProviderIDs map[string]string
}

// Service is an in-memory authn.UserService.
type Service struct {
	mu      sync.RWMutex
	byName  map[string]*User
	byExtID map[string]*User // provider + "\x00" + providerID

	// registrationPath, when set, suspends unknown external identities into
	// a partial login pointing at it instead of rejecting them.
	registrationPath string
}

var _ authn.UserService = (*Service)(nil)

// NewService creates a service with the given users.
func NewService(users ...*User) *Service {
	s := &Service{
		byName:  make(map[string]*User, len(users)),
		byExtID: make(map[string]*User),
	}
	for _, u := range users {
		s.add(u)
	}
	return s
}

// FromConfig builds the service from configuration.
func FromConfig(cfgs []config.UserConfig) *Service {
	users := make([]*User, 0, len(cfgs))
	for _, cfg := range cfgs {
		name := cfg.Name
		if name == "" {
			name = cfg.Username
		}
		users = append(users, &User{
			Subject:      cfg.Subject,
			Username:     cfg.Username,
			PasswordHash: cfg.PasswordHash,
			Name:         name,
			ProviderIDs:  cfg.ProviderIDs,
		})
	}
	return NewService(users...)
}

// EnableRegistration makes unknown external identities suspend into a partial
// login at path ("~/"-relative paths resolve against the server base).
func (s *Service) EnableRegistration(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrationPath = path
}

func extKey(provider, providerID string) string {
	return provider + "\x00" + providerID
}

func (s *Service) add(u *User) {
	s.byName[strings.ToLower(u.Username)] = u
	for provider, id := range u.ProviderIDs {
		s.byExtID[extKey(provider, id)] = u
	}
}

// Add registers a user. Used by registration flows and tests.
func (s *Service) Add(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(u)
}

// PreAuthenticate never short-circuits for the built-in service.
func (s *Service) PreAuthenticate(context.Context, *authn.SignInMessage) (*authn.AuthenticateResult, error) {
	return nil, nil
}

// AuthenticateLocal verifies the password against the stored bcrypt hash.
func (s *Service) AuthenticateLocal(ctx context.Context, username, password string, _ *authn.SignInMessage) (*authn.AuthenticateResult, error) {
	s.mu.RLock()
	u := s.byName[strings.ToLower(username)]
	s.mu.RUnlock()

	if u == nil || u.PasswordHash == "" {
		// Burn a comparison anyway so unknown usernames cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password))
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}

	return authn.FullLogin(fullPrincipal(u, authn.AuthenticationMethodPassword, authn.BuiltInIdentityProvider)), nil
}

// AuthenticateExternal maps the external identity to a local account, or
// suspends it into registration when enabled.
func (s *Service) AuthenticateExternal(ctx context.Context, external *authn.ExternalIdentity, _ *authn.SignInMessage) (*authn.AuthenticateResult, error) {
	s.mu.RLock()
	u := s.byExtID[extKey(external.Provider, external.ProviderID)]
	registrationPath := s.registrationPath
	s.mu.RUnlock()

	if u != nil {
		return authn.FullLogin(fullPrincipal(u, authn.AuthenticationMethodExternal, external.Provider)), nil
	}

	if registrationPath == "" {
		return nil, nil
	}

	// Unknown account: carry the provider identity into a partial login so
	// the registration page can finish the job.
	principal := authn.NewPrincipal(authn.Claim{
		Type:   authn.ClaimExternalProviderUserID,
		Value:  external.ProviderID,
		Issuer: external.Provider,
	})
	for _, c := range external.Claims {
		if c.Type == authn.ClaimSubject {
			continue
		}
		principal.Claims = append(principal.Claims, c)
	}
	return authn.PartialLogin(principal, registrationPath), nil
}

// SignOut is a no-op for the built-in service.
func (s *Service) SignOut(ctx context.Context, principal *authn.ClaimsPrincipal) error {
	logging.Ctx(ctx).Debug().Str("subject", principal.Subject()).Msg("user signed out")
	return nil
}

// HashPassword produces a bcrypt hash for configuration seeding.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func fullPrincipal(u *User, method, idp string) *authn.ClaimsPrincipal {
	return authn.NewPrincipal(
		authn.Claim{Type: authn.ClaimSubject, Value: u.Subject},
		authn.Claim{Type: authn.ClaimName, Value: u.Name},
		authn.Claim{Type: authn.ClaimAuthenticationMethod, Value: method},
		authn.Claim{Type: authn.ClaimAuthenticationTime, Value: strconv.FormatInt(time.Now().Unix(), 10)},
		authn.Claim{Type: authn.ClaimIdentityProvider, Value: idp},
	)
}
