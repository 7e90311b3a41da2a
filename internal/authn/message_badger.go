// Signetd - OAuth2 / OpenID Connect Identity Provider
// Copyright 2026 Signetd Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/signetd/signetd

package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB message storage.
const (
	signInMessageKeyPrefix  = "msg:signin:"
	signOutMessageKeyPrefix = "msg:signout:"
)

// BadgerMessageStore is a server-side MessageStore backed by BadgerDB.
// Deployments that do not want protocol state in browser cookies select it
// via config; entries expire with the message TTL.
type BadgerMessageStore[T any] struct {
	db     *badger.DB
	prefix string
	ttl    time.Duration
}

// NewBadgerMessageStore creates a store over an open BadgerDB handle.
func NewBadgerMessageStore[T any](db *badger.DB, prefix string, ttl time.Duration) *BadgerMessageStore[T] {
	return &BadgerMessageStore[T]{db: db, prefix: prefix, ttl: ttl}
}

// Put stores the message under the id with the store TTL.
func (s *BadgerMessageStore[T]) Put(_ context.Context, id string, msg T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(s.prefix+id), data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Read retrieves the message for the id.
func (s *BadgerMessageStore[T]) Read(_ context.Context, id string) (T, error) {
	var msg T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.prefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		})
	})
	if err != nil {
		return msg, err
	}
	return msg, nil
}

// Clear removes the message. Idempotent.
func (s *BadgerMessageStore[T]) Clear(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(s.prefix + id))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete message: %w", err)
		}
		return nil
	})
}

// BadgerMessageStoreFactory hands out the shared badger-backed stores.
type BadgerMessageStoreFactory struct {
	signIn  *BadgerMessageStore[SignInMessage]
	signOut *BadgerMessageStore[SignOutMessage]
}

// NewBadgerMessageStoreFactory creates the factory over an open DB.
func NewBadgerMessageStoreFactory(db *badger.DB, ttl time.Duration) *BadgerMessageStoreFactory {
	return &BadgerMessageStoreFactory{
		signIn:  NewBadgerMessageStore[SignInMessage](db, signInMessageKeyPrefix, ttl),
		signOut: NewBadgerMessageStore[SignOutMessage](db, signOutMessageKeyPrefix, ttl),
	}
}

// SignInStore returns the shared sign-in store.
func (f *BadgerMessageStoreFactory) SignInStore(http.ResponseWriter, *http.Request) MessageStore[SignInMessage] {
	return f.signIn
}

// SignOutStore returns the shared sign-out store.
func (f *BadgerMessageStoreFactory) SignOutStore(http.ResponseWriter, *http.Request) MessageStore[SignOutMessage] {
	return f.signOut
}
