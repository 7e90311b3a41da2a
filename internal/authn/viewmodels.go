// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"fmt"
	"net/http"
)

// Message ids for user-visible flow text. Views render the resolved text;
// the ids keep the controller free of display strings.
const (
	MessageInvalidUsernameOrPassword = "invalid_username_or_password"
	MessageUsernameRequired          = "username_required"
	MessagePasswordRequired          = "password_required"
	MessageNoSignInCookie            = "no_signin_cookie"
	MessageNoMatchingExternalAccount = "no_matching_external_account"
	MessageUnexpectedError           = "unexpected_error"
)

// messages is the default text catalog.
var messages = map[string]string{
	MessageInvalidUsernameOrPassword: "Invalid username or password",
	MessageUsernameRequired:          "Username is required",
	MessagePasswordRequired:          "Password is required",
	MessageNoSignInCookie:            "There is an error determining which application you are signing into. Return to the application and try again.",
	MessageNoMatchingExternalAccount: "The external login provider was not associated with a valid account.",
	MessageUnexpectedError:           "There was an unexpected error",
}

// MessageText resolves a message id to display text. Unknown ids come back
// verbatim so user-service supplied messages pass through.
func MessageText(id string) string {
	if text, ok := messages[id]; ok {
		return text
	}
	return id
}

// ExternalProviderErrorText formats the error page text for a provider-side
// failure relayed through the callback.
func ExternalProviderErrorText(providerError string) string {
	return fmt.Sprintf("There was an error logging into the external provider. The error message is: %s", providerError)
}

// CommonViewModel carries the fields every page shares.
type CommonViewModel struct {
	SiteName    string
	SiteURL     string
	CurrentUser string
}

// ExternalProviderLink is one provider button on the login page.
type ExternalProviderLink struct {
	Text string
	Href string
}

// PageLink is a host-configured link rendered below the login form, e.g.
// "Forgot password" or "Register". The configured href may carry a
// {signinId} placeholder.
type PageLink struct {
	Text string
	Href string
}

// LoginViewModel drives the login page.
type LoginViewModel struct {
	CommonViewModel

	// LoginURL is the POST target, empty when local login is disabled.
	LoginURL string

	// AntiForgery is the hidden-field token for the form.
	AntiForgery AntiForgeryToken

	// Username prefills the username field.
	Username string

	// AllowRememberMe shows the remember-me checkbox.
	AllowRememberMe bool

	// RememberMe prechecks the checkbox on re-render.
	RememberMe bool

	// ExternalProviders lists the visible provider buttons.
	ExternalProviders []ExternalProviderLink

	// Links are the host-configured page links.
	Links []PageLink

	// ErrorMessage is the validation or credential failure text.
	ErrorMessage string

	// ClientName names the requesting application when known.
	ClientName string
}

// LogoutViewModel drives the logout confirmation page.
type LogoutViewModel struct {
	CommonViewModel

	// LogoutURL is the POST target.
	LogoutURL string

	// AntiForgery is the hidden-field token for the form.
	AntiForgery AntiForgeryToken

	// ClientName names the application that asked for sign-out.
	ClientName string
}

// LoggedOutViewModel drives the post-logout page.
type LoggedOutViewModel struct {
	CommonViewModel

	// RedirectURL returns the subject to the client, when one was given.
	RedirectURL string

	// ClientName names the application to return to.
	ClientName string

	// IFrameURLs are client sign-out notification endpoints loaded as
	// hidden iframes so relying parties can clean up their own sessions.
	IFrameURLs []string
}

// ErrorViewModel drives the generic error page.
type ErrorViewModel struct {
	CommonViewModel

	// ErrorMessage is the display text.
	ErrorMessage string

	// RequestID correlates the page with server logs.
	RequestID string
}

// ViewService renders the interactive pages. Implementations write the full
// response body; the controller has already set the status code.
type ViewService interface {
	Login(w http.ResponseWriter, r *http.Request, model *LoginViewModel) error
	Logout(w http.ResponseWriter, r *http.Request, model *LogoutViewModel) error
	LoggedOut(w http.ResponseWriter, r *http.Request, model *LoggedOutViewModel) error
	Error(w http.ResponseWriter, r *http.Request, model *ErrorViewModel) error
}
