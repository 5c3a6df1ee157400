// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package handshake produces and consumes the asymmetrically-encrypted
// pairwise-secret drops that live under a participant's /subscribers
// folder.
package handshake

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/identity"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

// ErrNoDropForMe is returned by TestDecryptAllSubscribers when no entry
// under the scanned folder trial-decrypts under this node's private key
// with a recognizable plaintext.
var ErrNoDropForMe = errors.New("handshake: no subscriber drop addressed to me")

const helloPrefix = "Hello "

// Handshake bundles the collaborators AddSubscriber and
// TestDecryptAllSubscribers need: the profile filesystem, the contacts
// registry, and this node's own identity.
type Handshake struct {
	fs       profilefs.FS
	contacts *contacts.Registry
	self     identity.Node
}

// New builds a Handshake.
func New(fs profilefs.FS, reg *contacts.Registry, self identity.Node) *Handshake {
	return &Handshake{fs: fs, contacts: reg, self: self}
}

// AddSubscriber normalizes peerKey to CPK, generates (or reuses) a pairwise
// secret for that peer, writes the asymmetrically-encrypted drop under
// /subscribers, and only then persists the secret to contacts. The drop is
// written before the contacts mutation, not after, so that a failure
// partway through never leaves contacts recording a "my-secret" for which
// no matching drop exists; re-running it for the same peer is a no-op in
// content, since the drop's filename is a pure function of its plaintext.
func (h *Handshake) AddSubscriber(peerKey []byte) (gcrypto.Key, error) {
	cpk, err := keynorm.ToCanonicalPublicKey(peerKey)
	if err != nil {
		return gcrypto.Key{}, err
	}

	rec, err := h.contacts.EnsureContact(cpk)
	if err != nil {
		return gcrypto.Key{}, err
	}

	secret, ok, err := rec.MySecret()
	if err != nil {
		return gcrypto.Key{}, err
	}
	if !ok {
		secret, err = gcrypto.GenerateKey()
		if err != nil {
			return gcrypto.Key{}, err
		}
	}

	plaintext := composeHello(cpk, secret)

	pub, err := cpk.PublicKey()
	if err != nil {
		return gcrypto.Key{}, err
	}
	ct, err := gcrypto.AsymEncrypt(pub, plaintext)
	if err != nil {
		return gcrypto.Key{}, err
	}

	h2 := gcrypto.KeyedHash(plaintext)
	if err := h.fs.Write("/subscribers/"+h2, ct, profilefs.WriteOptions{CreateParents: true}); err != nil {
		return gcrypto.Key{}, err
	}

	if !ok {
		if err := h.contacts.UpsertContact(cpk, contacts.Record{
			contacts.MySecretKey: gcrypto.B64URLEncode(secret[:]),
		}); err != nil {
			return gcrypto.Key{}, err
		}
	}

	log.Debugf("AddSubscriber: wrote drop %s for %s", h2, string(cpk))
	return secret, nil
}

func composeHello(cpk keynorm.CPK, secret gcrypto.Key) []byte {
	return []byte(fmt.Sprintf("%s%s : %s", helloPrefix, string(cpk), gcrypto.B64URLEncode(secret[:])))
}

// trialResult is either a recovered secret or the failure encountered
// trying one subscriber-folder entry.
type trialResult struct {
	secret gcrypto.Key
	err    error
}

// TestDecryptAllSubscribers lists peerSubscribersPath and, racing across
// all entries, returns the pairwise secret from the first one that
// trial-decrypts under self's private key with a plaintext beginning with
// "Hello ". Concurrent trials are permitted; the first success wins and
// remaining trials are simply ignored, not cancelled. If none succeed, the
// returned error wraps every trial's individual failure.
func TestDecryptAllSubscribers(fs profilefs.FS, peerSubscribersPath string, self identity.Node) (gcrypto.Key, error) {
	entries, err := fs.Ls(peerSubscribersPath)
	if err != nil {
		return gcrypto.Key{}, err
	}

	pair, err := self.ID()
	if err != nil {
		return gcrypto.Key{}, err
	}

	results := make(chan trialResult, len(entries))
	var wg sync.WaitGroup

	for _, e := range entries {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			secret, err := trialDecrypt(fs, peerSubscribersPath+"/"+e.Name, pair.Private)
			results <- trialResult{secret: secret, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var failures []error
	for r := range results {
		if r.err == nil {
			log.Debugf("TestDecryptAllSubscribers: found matching drop under %s", peerSubscribersPath)
			return r.secret, nil
		}
		failures = append(failures, r.err)
	}

	log.Debugf("TestDecryptAllSubscribers: none of %d entries under %s decrypted for me", len(failures), peerSubscribersPath)
	return gcrypto.Key{}, aggregateFailure(failures)
}

// trialDecrypt attempts to treat the entry at path as a subscriber drop
// addressed to priv: decrypt it, then check the "Hello " marker.
func trialDecrypt(fs profilefs.FS, path string, priv *rsa.PrivateKey) (gcrypto.Key, error) {
	ct, err := fs.Read(path)
	if err != nil {
		return gcrypto.Key{}, err
	}

	pt, err := gcrypto.AsymDecrypt(priv, ct)
	if err != nil {
		return gcrypto.Key{}, err
	}

	return parseHello(pt)
}

// aggregateFailure folds every losing trial's error together with
// ErrNoDropForMe, so callers can still match the sentinel with errors.Is
// while a log or error report gets to see what actually went wrong in each
// trial (almost always ErrAuthFailed, since a drop meant for someone else
// decrypts to noise under this node's key).
func aggregateFailure(failures []error) error {
	if len(failures) == 0 {
		return ErrNoDropForMe
	}
	return fmt.Errorf("%w: %w", ErrNoDropForMe, errors.Join(failures...))
}

func parseHello(plaintext []byte) (gcrypto.Key, error) {
	s := string(plaintext)
	if !strings.HasPrefix(s, helloPrefix) {
		return gcrypto.Key{}, ErrNoDropForMe
	}

	idx := strings.LastIndex(s, ": ")
	if idx < 0 {
		return gcrypto.Key{}, ErrNoDropForMe
	}

	raw, err := gcrypto.B64URLDecode(s[idx+2:])
	if err != nil {
		return gcrypto.Key{}, err
	}
	if len(raw) != gcrypto.KeySize {
		return gcrypto.Key{}, ErrNoDropForMe
	}

	var k gcrypto.Key
	copy(k[:], raw)
	return k, nil
}
