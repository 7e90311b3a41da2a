// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package main is the signetd server entry point: load configuration, wire
// the authentication endpoint, and run it under process supervision.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/signetd/signetd/internal/config"
	"github.com/signetd/signetd/internal/logging"
	"github.com/signetd/signetd/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "json"})
		logging.Fatal().Err(err).Msg("load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Provider discovery happens here; give it a bound so a dead upstream
	// fails startup fast.
	buildCtx, cancel := context.WithTimeout(ctx, time.Minute)
	srv, closeAll, err := server.Build(buildCtx, cfg)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("wire server")
	}
	defer func() {
		if err := closeAll(); err != nil {
			logging.Error().Err(err).Msg("close resources")
		}
	}()

	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	supervisor := suture.New("signetd", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	supervisor.Add(srv)

	logging.Info().
		Str("origin", cfg.Server.PublicOrigin).
		Msg("signetd starting")

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor exited")
		os.Exit(1)
	}
	logging.Info().Msg("signetd stopped")
}
