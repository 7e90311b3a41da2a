// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package views renders the interactive HTML pages (login, logout prompt,
// logged out, error) from embedded templates. It implements
// authn.ViewService; deployments wanting custom branding swap it out.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/signetd/signetd/internal/authn"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service is the embedded-template authn.ViewService.
type Service struct {
	templates *template.Template
}

var _ authn.ViewService = (*Service)(nil)

// NewService parses the embedded templates.
func NewService() (*Service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse view templates: %w", err)
	}
	return &Service{templates: tmpl}, nil
}

func (s *Service) render(w http.ResponseWriter, name string, model any) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Pages carry per-user state and anti-forgery tokens; never cache them.
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	if err := s.templates.ExecuteTemplate(w, name, model); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// Login renders the login page.
func (s *Service) Login(w http.ResponseWriter, _ *http.Request, model *authn.LoginViewModel) error {
	return s.render("login.html", model)
}

// Logout renders the sign-out confirmation page.
func (s *Service) Logout(w http.ResponseWriter, _ *http.Request, model *authn.LogoutViewModel) error {
	return s.render("logout.html", model)
}

// LoggedOut renders the post-sign-out page.
func (s *Service) LoggedOut(w http.ResponseWriter, _ *http.Request, model *authn.LoggedOutViewModel) error {
	return s.render("logged_out.html", model)
}

// Error renders the generic error page.
func (s *Service) Error(w http.ResponseWriter, _ *http.Request, model *authn.ErrorViewModel) error {
	return s.render("error.html", model)
}
