// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package contacts is the encrypted mapping from a canonical peer public
// key to pairwise state, stored at /private/contacts.json.enc under the
// participant's master key. It is canonicalized by always keying on CPK,
// never on a peer's transport identifier.
package contacts

import (
	"encoding/json"
	"errors"

	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

var errShortSecret = errors.New("contacts: stored pairwise secret has wrong length")

// path is where the encrypted contacts map lives in the profile tree.
const path = "/private/contacts.json.enc"

// Record is one contact's state: at minimum the pairwise secret this
// participant generated for them ("my-secret" in the wire JSON), plus room
// for whatever other attributes a future patch merges in.
type Record map[string]string

// MySecretKey is the attribute name under which the base64url-encoded
// pairwise secret is stored.
const MySecretKey = "my-secret"

// MySecret decodes and returns this record's pairwise secret, if any.
func (r Record) MySecret() (gcrypto.Key, bool, error) {
	b64, ok := r[MySecretKey]
	if !ok {
		return gcrypto.Key{}, false, nil
	}
	raw, err := gcrypto.B64URLDecode(b64)
	if err != nil {
		return gcrypto.Key{}, false, err
	}
	if len(raw) != gcrypto.KeySize {
		return gcrypto.Key{}, false, errShortSecret
	}
	var k gcrypto.Key
	copy(k[:], raw)
	return k, true, nil
}

// Registry reads and writes the encrypted contacts map via a master-key
// source and the profile filesystem adapter.
type Registry struct {
	fs        profilefs.FS
	masterKey func() (gcrypto.Key, error)
}

// New builds a Registry over fs, deriving the master key from masterKey on
// every operation (it is acquired per operation and dropped on return, per
// the scoped master-key handling design note).
func New(fs profilefs.FS, masterKey func() (gcrypto.Key, error)) *Registry {
	return &Registry{fs: fs, masterKey: masterKey}
}

// GetContacts returns the full contacts map, keyed by CPK. A missing
// backing file is treated as an empty map; any other error propagates.
func (r *Registry) GetContacts() (map[keynorm.CPK]Record, error) {
	key, err := r.masterKey()
	if err != nil {
		return nil, err
	}

	blob, err := r.fs.Read(path)
	if err != nil {
		if profilefs.IsPathMissing(err) {
			return map[keynorm.CPK]Record{}, nil
		}
		return nil, err
	}

	pt, err := gcrypto.SymDecrypt(key, blob)
	if err != nil {
		return nil, err
	}

	var raw map[string]Record
	if err := json.Unmarshal(pt, &raw); err != nil {
		return nil, err
	}

	out := make(map[keynorm.CPK]Record, len(raw))
	for cpk, rec := range raw {
		out[keynorm.CPK(cpk)] = rec
	}
	return out, nil
}

// UpsertContact merges patch into the existing record for cpk (creating it
// if absent), then re-encrypts and rewrites the whole map.
func (r *Registry) UpsertContact(cpk keynorm.CPK, patch Record) error {
	key, err := r.masterKey()
	if err != nil {
		return err
	}

	all, err := r.GetContacts()
	if err != nil {
		return err
	}

	rec, ok := all[cpk]
	if !ok {
		rec = Record{}
	}
	for k, v := range patch {
		rec[k] = v
	}
	all[cpk] = rec

	raw := make(map[string]Record, len(all))
	for c, rc := range all {
		raw[string(c)] = rc
	}

	pt, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	blob, err := gcrypto.SymEncrypt(key, pt)
	if err != nil {
		return err
	}

	log.Debugf("UpsertContact: rewriting contacts for %d peer(s)", len(all))
	return r.fs.Write(path, blob, profilefs.WriteOptions{CreateParents: true})
}

// EnsureContact guarantees a (possibly empty) record exists for cpk,
// returning it unchanged if one is already present. It factors out the
// idempotent "insert if absent" step AddSubscriber uses; CreateGroup does
// not call it, since it rejects members absent from contacts.
func (r *Registry) EnsureContact(cpk keynorm.CPK) (Record, error) {
	all, err := r.GetContacts()
	if err != nil {
		return nil, err
	}
	if rec, ok := all[cpk]; ok {
		return rec, nil
	}
	if err := r.UpsertContact(cpk, Record{}); err != nil {
		return nil, err
	}
	return Record{}, nil
}
