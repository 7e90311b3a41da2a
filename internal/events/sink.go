// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

// Package events carries authentication flow events to an external sink.
// Three sinks exist: structured log (default), an in-process watermill
// channel for embedding consumers, and NATS for fan-out to other systems.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/signetd/signetd/internal/authn"
	"github.com/signetd/signetd/internal/config"
	"github.com/signetd/signetd/internal/logging"
)

// Sink publishes flow events to a watermill publisher. Publishing is
// best-effort: a failing sink never fails the login it describes.
type Sink struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[any]
}

var _ authn.EventService = (*Sink)(nil)

// NewSink wraps a watermill publisher as an event service.
func NewSink(publisher message.Publisher, topic string) *Sink {
	return &Sink{
		publisher: publisher,
		topic:     topic,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "event-sink",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Raise serializes and publishes the event. Failures are logged and counted
// against the breaker; an open breaker sheds the publish entirely.
func (s *Sink) Raise(ctx context.Context, ev authn.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event", ev.Name).Msg("serialize auth event")
		return
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("event", ev.Name)

	if _, err := s.breaker.Execute(func() (any, error) {
		return nil, s.publisher.Publish(s.topic, msg)
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", ev.Name).Msg("publish auth event")
	}
}

// Close shuts the underlying publisher down.
func (s *Sink) Close() error {
	return s.publisher.Close()
}

// ChannelSink is an in-process sink backed by a watermill gochannel. It also
// logs every event so the channel's consumers are optional.
type ChannelSink struct {
	*Sink
	pubsub *gochannel.GoChannel
	log    authn.LogEventService
}

// NewChannelSink creates the in-process sink.
func NewChannelSink(topic string) *ChannelSink {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, newWatermillLogger())
	return &ChannelSink{
		Sink:   NewSink(pubsub, topic),
		pubsub: pubsub,
	}
}

// Raise logs and publishes.
func (s *ChannelSink) Raise(ctx context.Context, ev authn.Event) {
	s.log.Raise(ctx, ev)
	s.Sink.Raise(ctx, ev)
}

// Subscribe exposes the event stream to in-process consumers.
func (s *ChannelSink) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return s.pubsub.Subscribe(ctx, s.topic)
}

// FromConfig builds the configured sink. The returned closer is a no-op for
// the log sink.
func FromConfig(cfg config.EventsConfig) (authn.EventService, func() error, error) {
	switch cfg.Sink {
	case "log":
		return authn.LogEventService{}, func() error { return nil }, nil
	case "channel":
		sink := NewChannelSink(cfg.Topic)
		return sink, sink.Close, nil
	case "nats":
		sink, err := NewNATSSink(cfg.URL, cfg.Topic)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown event sink %q", cfg.Sink)
	}
}
