// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package masterkey persists and retrieves the participant's root
// symmetric key through the external key-value store collaborator, the
// same narrow role bmagent's store package gives boltdb for its own
// encrypted master-key envelope in store/db.go.
package masterkey

import (
	"encoding/base64"
	"errors"

	"github.com/monetas/gravity/gcrypto"
)

// masterKeyName is the opaque key this value is stored under in the
// external key-value store.
const masterKeyName = "gravity-master-key"

// ErrNoMasterKey is returned when the external store has no master key and
// the caller has not called Reset to create one.
var ErrNoMasterKey = errors.New("masterkey: no master key in store")

// KVStore is the external local key-value store collaborator: a small
// opaque string-keyed byte store (out of scope for this core; only its
// Get/Put methods are used here).
type KVStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// ErrKeyNotFound should be returned by a KVStore implementation's Get when
// the key is absent. Store recognizes exactly this sentinel to distinguish
// "absent" from any other I/O failure, structurally rather than by string
// matching.
var ErrKeyNotFound = errors.New("masterkey: key not found in kv store")

// Store wraps a KVStore collaborator with the master-key-specific codec
// (base64url of the raw key bytes) and API.
type Store struct {
	kv KVStore
}

// New wraps kv as a master-key store.
func New(kv KVStore) *Store {
	return &Store{kv: kv}
}

// Get reads the master key from the store. It fails with ErrNoMasterKey if
// absent; it does not generate one on first read, callers must have called
// Reset at least once.
func (s *Store) Get() (gcrypto.Key, error) {
	raw, err := s.kv.Get(masterKeyName)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return gcrypto.Key{}, ErrNoMasterKey
		}
		return gcrypto.Key{}, err
	}
	return decodeKey(raw)
}

// Set writes key to the store, base64url-encoded.
func (s *Store) Set(key gcrypto.Key) error {
	return s.kv.Put(masterKeyName, []byte(base64.RawURLEncoding.EncodeToString(key[:])))
}

// Reset generates a fresh 256-bit AEAD key, writes it to the store, and
// returns it.
func (s *Store) Reset() (gcrypto.Key, error) {
	key, err := gcrypto.GenerateKey()
	if err != nil {
		return gcrypto.Key{}, err
	}
	if err := s.Set(key); err != nil {
		return gcrypto.Key{}, err
	}
	log.Info("Reset: generated and stored a fresh master key")
	return key, nil
}

func decodeKey(raw []byte) (gcrypto.Key, error) {
	var key gcrypto.Key
	b, err := base64.RawURLEncoding.DecodeString(string(raw))
	if err != nil {
		return key, err
	}
	if len(b) != gcrypto.KeySize {
		return key, errors.New("masterkey: stored key has wrong length")
	}
	copy(key[:], b)
	return key, nil
}
