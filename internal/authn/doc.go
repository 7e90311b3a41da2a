// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package authn implements the interactive authentication endpoint: local
// login, external provider round trips, partial-login resumption, and
// sign-out.
//
// The flow state machine lives in the Controller; everything that survives
// between requests is carried in signed cookie envelopes (CookieCodec) or
// behind the injected services (UserService, ClientStore, EventService,
// ViewService). The HostBridge capability isolates the controller from the
// hosting layer's authentication cookies so flows can be tested in-process.
package authn
