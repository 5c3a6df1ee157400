// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity models the underlying filesystem node's identity
// subsystem: the external collaborator that hands this participant its own
// long-term asymmetric key pair. It is out of scope for this core (only its
// interface appears), but a concrete RSA-backed implementation is provided
// for the daemon and for tests, the same way bmagent's idmgr wrapped a key
// manager behind a narrow interface for the rest of the agent to consume.
package identity

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/monetas/gravity/keynorm"
)

// keyBits is the RSA modulus size used for newly generated node identities.
const keyBits = 2048

// KeyPair is this participant's long-term asymmetric key pair, as handed
// out by the node identity subsystem.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// Node is the external node-identity collaborator: it hands out this
// participant's own {public_key, private_key} pair.
type Node interface {
	ID() (KeyPair, error)
}

// Static is a Node backed by one fixed, in-process key pair: the concrete
// implementation this core's daemon and tests use in place of querying a
// real filesystem node process.
type Static struct {
	pair KeyPair
}

// NewStatic generates a fresh RSA key pair and wraps it as a Node.
func NewStatic() (*Static, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, err
	}
	return &Static{pair: KeyPair{Public: &priv.PublicKey, Private: priv}}, nil
}

// ID implements Node.
func (s *Static) ID() (KeyPair, error) {
	return s.pair, nil
}

// CPK returns this node's own canonical public key.
func (s *Static) CPK() (keynorm.CPK, error) {
	return keynorm.FromRSAPublicKey(s.pair.Public)
}
