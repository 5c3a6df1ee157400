// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keynorm normalizes any accepted public-key representation to one
// canonical form (CPK): a PEM-framed PKCS8 RSA public key. It is organized
// as a pipeline of tagged format recognizers, each a total predicate plus a
// conversion, so that adding a new accepted wire format never touches the
// others.
package keynorm

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/monetas/gravity/keynorm/pb"
)

// ErrUnrecognizedKey is returned when every recognizer in the pipeline has
// been tried and none accepted the input.
var ErrUnrecognizedKey = errors.New("keynorm: unrecognized public key encoding")

// CPK is a canonical public key: a PEM-framed PKCS8 RSA public key, byte for
// byte reproducible from the key material alone.
type CPK string

const pemBlockType = "PUBLIC KEY"

// recognizer is one tagged format in the normalization pipeline: Recognize
// reports whether input looks like this format, and Convert does the actual
// re-export to CPK. Recognize must be total (never panic) and Convert must
// be attempted only after Recognize returns true.
type recognizer struct {
	name      string
	recognize func(input []byte) bool
	convert   func(input []byte) (CPK, error)
}

var pipeline = []recognizer{
	{name: "pkcs8-pem", recognize: looksLikePEM, convert: fromPEM},
	{name: "identity-pb", recognize: looksLikeIdentityPB, convert: fromIdentityPB},
}

// ToCanonicalPublicKey normalizes input to its CPK. It is total over the
// pipeline's recognized formats and idempotent: feeding it an already
// canonical PEM blob re-exports byte-for-byte to the same CPK.
func ToCanonicalPublicKey(input []byte) (CPK, error) {
	for _, r := range pipeline {
		if !r.recognize(input) {
			continue
		}
		cpk, err := r.convert(input)
		if err != nil {
			log.Debugf("ToCanonicalPublicKey: %s recognizer matched but failed to convert: %v", r.name, err)
			continue
		}
		return cpk, nil
	}
	log.Debugf("ToCanonicalPublicKey: no recognizer in the pipeline accepted a %d-byte input", len(input))
	return "", ErrUnrecognizedKey
}

// PublicKey parses an RSA public key out of a CPK. CPK is assumed to already
// be in canonical form (e.g. produced by ToCanonicalPublicKey).
func (c CPK) PublicKey() (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(c))
	if block == nil {
		return nil, ErrUnrecognizedKey
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrUnrecognizedKey
	}
	return rsaPub, nil
}

// FromRSAPublicKey builds a CPK directly from an RSA public key, for
// participants producing their own canonical form rather than normalizing a
// peer's.
func FromRSAPublicKey(pub *rsa.PublicKey) (CPK, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return encodePEM(der), nil
}

func encodePEM(der []byte) CPK {
	block := &pem.Block{Type: pemBlockType, Bytes: der}
	return CPK(pem.EncodeToMemory(block))
}

// --- pkcs8-pem recognizer ---

func looksLikePEM(input []byte) bool {
	block, _ := pem.Decode(input)
	return block != nil && block.Type == pemBlockType
}

// fromPEM re-exports a PEM-framed PKIX public key, normalizing incidental
// whitespace and re-serializing the DER so that two semantically identical
// inputs always produce byte-identical CPKs.
func fromPEM(input []byte) (CPK, error) {
	block, _ := pem.Decode(input)
	if block == nil {
		return "", ErrUnrecognizedKey
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", ErrUnrecognizedKey
	}
	return FromRSAPublicKey(rsaPub)
}

// --- identity-pb recognizer ---
//
// The underlying filesystem node's identity subsystem distributes public
// keys as a length-prefixed protocol-buffer message: a varint byte count
// followed by a pb.PublicKey carrying a key-type tag and PKCS1 DER key data.

func looksLikeIdentityPB(input []byte) bool {
	m, consumed, err := pb.Unmarshal(input)
	if err != nil || m == nil {
		return false
	}
	return consumed == len(input) && m.GetType() == pb.KeyType_RSA
}

func fromIdentityPB(input []byte) (CPK, error) {
	m, _, err := pb.Unmarshal(input)
	if err != nil {
		return "", err
	}
	if m.GetType() != pb.KeyType_RSA {
		return "", ErrUnrecognizedKey
	}

	rsaPub, err := x509.ParsePKCS1PublicKey(m.GetData())
	if err != nil {
		return "", err
	}
	return FromRSAPublicKey(rsaPub)
}

// ToIdentityPB encodes an RSA public key in the identity subsystem's own
// length-prefixed protobuf wire format. Exposed so that an identity
// collaborator implementation can hand out keys in that form for normalizer
// round-trip tests.
func ToIdentityPB(pub *rsa.PublicKey) ([]byte, error) {
	typ := pb.KeyType_RSA
	msg := &pb.PublicKey{
		Type: &typ,
		Data: x509.MarshalPKCS1PublicKey(pub),
	}
	return pb.Marshal(msg)
}
