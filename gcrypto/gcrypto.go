// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package gcrypto provides the symmetric and asymmetric primitives used
// throughout the gravity core: authenticated symmetric encryption, RSA-OAEP
// asymmetric encryption, a tagged keyed hash, and the base64url codec.
package gcrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the size, in bytes, of a symmetric AEAD key.
	KeySize = 32

	// nonceSize is the size of the nonce used by secretbox, and therefore
	// the number of leading bytes of every blob produced by SymEncrypt.
	nonceSize = 24

	// sha256FuncCode and sha256Digest tag a raw SHA-256 digest with the
	// multihash function code (0x12) and length (0x20, 32 bytes) so that decoders
	// downstream can recognize which hash function produced it.
	sha256FuncCode = 0x12
	sha256Digest   = 0x20
)

var (
	// ErrShortMessage is returned when a symmetric blob is too short to
	// possibly contain a nonce and an authentication tag.
	ErrShortMessage = errors.New("gcrypto: message shorter than nonce plus tag")

	// ErrAuthFailed is returned when a symmetric or asymmetric ciphertext
	// fails to authenticate under the given key.
	ErrAuthFailed = errors.New("gcrypto: authentication failed")
)

// Key is a 256-bit symmetric AEAD key.
type Key [KeySize]byte

// GenerateKey draws a fresh random symmetric key.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// SymEncrypt draws a fresh nonce and returns nonce‖ciphertext+tag under key.
// The nonce is never reused across calls.
func SymEncrypt(key Key, plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	var k [KeySize]byte = key
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, plaintext, &nonce, &k), nil
}

// SymDecrypt splits nonce‖ciphertext+tag, verifies it under key, and returns
// the plaintext. It fails with ErrShortMessage if blob cannot possibly hold a
// nonce and a tag, and with ErrAuthFailed if the tag doesn't verify.
func SymDecrypt(key Key, blob []byte) ([]byte, error) {
	if len(blob) < nonceSize+secretbox.Overhead {
		return nil, ErrShortMessage
	}

	var nonce [nonceSize]byte
	copy(nonce[:], blob[:nonceSize])

	var k [KeySize]byte = key
	pt, ok := secretbox.Open(nil, blob[nonceSize:], &nonce, &k)
	if !ok {
		log.Debugf("SymDecrypt: authentication failed on %d-byte blob", len(blob))
		return nil, ErrAuthFailed
	}
	return pt, nil
}

// AsymEncrypt encrypts plaintext under an RSA public key as a hybrid
// envelope: a fresh one-time symmetric key is generated and RSA-OAEP-wrapped
// (label empty, hash SHA-256) for pub, then the plaintext itself is sealed
// under that key with SymEncrypt. RSA-OAEP with SHA-256 alone can carry at
// most 190 bytes at a 2048-bit modulus; wrapping a data key instead of the
// payload is the same shape as codahale-veil-go's Encrypt, which KEM-wraps a
// key and then AEAD-encrypts the payload under it. The output is a 2-byte
// big-endian length prefix, the wrapped key, then the SymEncrypt blob.
func AsymEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	dataKey, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dataKey[:], nil)
	if err != nil {
		return nil, err
	}
	if len(wrapped) > 0xffff {
		return nil, errors.New("gcrypto: wrapped key too large to length-prefix")
	}

	blob, err := SymEncrypt(dataKey, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2, 2+len(wrapped)+len(blob))
	binary.BigEndian.PutUint16(out, uint16(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, blob...)
	return out, nil
}

// AsymDecrypt reverses AsymEncrypt: it unwraps the one-time data key with
// priv under RSA-OAEP, then opens the SymEncrypt blob under that key. A
// wrong key, a corrupted ciphertext, a truncated envelope, or a padding
// mismatch all collapse to ErrAuthFailed: OAEP and secretbox failures are
// never distinguishable from a wrong key without leaking a padding oracle,
// so the one error is reported regardless of cause.
func AsymDecrypt(priv *rsa.PrivateKey, ct []byte) ([]byte, error) {
	if len(ct) < 2 {
		return nil, ErrAuthFailed
	}
	wrappedLen := int(binary.BigEndian.Uint16(ct))
	if len(ct) < 2+wrappedLen {
		return nil, ErrAuthFailed
	}
	wrapped := ct[2 : 2+wrappedLen]
	blob := ct[2+wrappedLen:]

	rawKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		log.Tracef("AsymDecrypt: OAEP unwrap failed: %v", err)
		return nil, ErrAuthFailed
	}
	if len(rawKey) != KeySize {
		return nil, ErrAuthFailed
	}
	var dataKey Key
	copy(dataKey[:], rawKey)

	pt, err := SymDecrypt(dataKey, blob)
	if err != nil {
		log.Tracef("AsymDecrypt: envelope open failed: %v", err)
		return nil, ErrAuthFailed
	}
	return pt, nil
}

// KeyedHash returns the Base58 encoding of a multihash-framed SHA-256 digest
// of the concatenation of all the given byte strings.
func KeyedHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	digest := h.Sum(nil)

	framed := make([]byte, 0, 2+len(digest))
	framed = append(framed, sha256FuncCode, sha256Digest)
	framed = append(framed, digest...)

	return base58.Encode(framed)
}

// B64URLEncode encodes b using the URL-safe alphabet without padding.
func B64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// B64URLDecode decodes s using the URL-safe alphabet. Padding, if present,
// is tolerated; s is accepted whether or not it was padded on encode.
func B64URLDecode(s string) ([]byte, error) {
	for len(s)%4 != 0 {
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}

// Concat is a small helper that concatenates byte strings into one slice,
// used by callers deriving filenames and hashes from multiple fields.
func Concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
