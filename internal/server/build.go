// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/signetd/signetd/internal/authn"
	"github.com/signetd/signetd/internal/config"
	"github.com/signetd/signetd/internal/events"
	"github.com/signetd/signetd/internal/logging"
	"github.com/signetd/signetd/internal/providers"
	"github.com/signetd/signetd/internal/users"
	"github.com/signetd/signetd/internal/views"
)

// Build wires the whole process from configuration: cookie codec, message
// stores, provider catalog, user and client stores, views, events, the flow
// controller, and the HTTP server around it. The returned closer releases
// everything Build opened.
func Build(ctx context.Context, cfg *config.Config) (*Server, func() error, error) {
	closers := []func() error{}
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	codec := authn.NewCookieCodec(
		[]byte(cfg.Cookies.SigningSecret),
		cfg.Cookies.Prefix,
		cfg.Cookies.Path,
		cfg.Cookies.Secure,
	)

	var messages authn.MessageStoreFactory
	switch cfg.Messages.Store {
	case "badger":
		db, err := badger.Open(badger.DefaultOptions(cfg.Messages.BadgerPath))
		if err != nil {
			return nil, nil, fmt.Errorf("open message store: %w", err)
		}
		closers = append(closers, db.Close)
		messages = authn.NewBadgerMessageStoreFactory(db, cfg.Cookies.MessageTTL)
	default:
		messages = authn.NewCookieMessageStoreFactory(codec, cfg.Cookies.MessageTTL)
	}

	callbackURL := strings.TrimRight(cfg.Server.PublicOrigin, "/") + basePathPrefix(cfg.Server.BasePath) + authn.PathCallback
	catalog, err := providers.NewCatalog(ctx, callbackURL, cfg.Providers)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}

	eventService, closeEvents, err := events.FromConfig(cfg.Events)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	closers = append(closers, closeEvents)

	viewService, err := views.NewService()
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}

	clients := make([]*authn.Client, 0, len(cfg.Clients))
	for _, c := range cfg.Clients {
		clients = append(clients, &authn.Client{
			ClientID:                     c.ClientID,
			ClientName:                   c.ClientName,
			ClientURI:                    c.ClientURI,
			EnableLocalLogin:             c.EnableLocalLogin,
			IdentityProviderRestrictions: c.IdentityProviderRestrictions,
			LogoutURI:                    c.LogoutURI,
		})
	}

	pageLinks := make([]authn.PageLink, 0, len(cfg.Login.PageLinks))
	for _, l := range cfg.Login.PageLinks {
		pageLinks = append(pageLinks, authn.PageLink{Text: l.Text, Href: l.Href})
	}

	bridge := authn.NewCookieHostBridge(codec, catalog, cfg.Cookies.SessionDuration, cfg.Cookies.RememberMeDuration)

	ctrl := authn.NewController(
		authn.Options{
			SiteName:            cfg.Login.SiteName,
			SiteURL:             cfg.Login.SiteURL,
			PublicOrigin:        cfg.Server.PublicOrigin,
			BasePath:            cfg.Server.BasePath,
			EnableLocalLogin:    cfg.Login.EnableLocalLogin,
			EnableLoginHint:     cfg.Login.EnableLoginHint,
			EnableSignOutPrompt: cfg.Login.EnableSignOutPrompt,
			AllowRememberMe:     cfg.Login.AllowRememberMe,
			IsPersistent:        cfg.Cookies.IsPersistent,
			RememberMeDuration:  cfg.Cookies.RememberMeDuration,
			PageLinks:           pageLinks,
		},
		authn.Dependencies{
			Bridge:      bridge,
			Users:       users.FromConfig(cfg.Users),
			Clients:     authn.NewMemoryClientStore(clients...),
			Views:       viewService,
			Events:      eventService,
			Messages:    messages,
			Catalog:     catalog,
			AntiForgery: authn.NewAntiForgery(codec),
			Session:     authn.NewSessionCookie(codec, cfg.Cookies.SessionDuration),
			LastUser:    authn.NewLastUserNameCookie(codec, cfg.Cookies.RememberMeDuration),
		},
	)

	logging.Info().
		Int("providers", len(cfg.Providers)).
		Int("clients", len(cfg.Clients)).
		Str("message_store", cfg.Messages.Store).
		Msg("signetd wired")

	return New(cfg.Server, ctrl), closeAll, nil
}

func basePathPrefix(basePath string) string {
	trimmed := strings.Trim(basePath, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
