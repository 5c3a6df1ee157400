// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pb holds the length-prefixed protocol-buffer-framed public key
// message used by the underlying filesystem node's identity subsystem, the
// way bmutil's wire/obj package holds the wire structs for bmagent's own
// protocol objects.
package pb

import (
	"errors"

	proto "github.com/golang/protobuf/proto"
)

var errVarintTooLong = errors.New("pb: varint length prefix too long")

// KeyType enumerates the key types the identity subsystem's wire format can
// carry. Only RSA is meaningful to this core; the others are recognized (so
// unmarshalling never panics on a foreign node's key) but rejected by the
// normalizer.
type KeyType int32

const (
	KeyType_RSA     KeyType = 0
	KeyType_Ed25519 KeyType = 1
	KeyType_Secp256k1 KeyType = 2
	KeyType_ECDSA   KeyType = 3
)

// PublicKey is the protobuf message carrying a key type tag and the
// type-specific encoded key data. It implements proto.Message by hand in the
// style of code generated by the older protoc-gen-go, since no .proto
// compiler runs as part of this build.
type PublicKey struct {
	Type                 *KeyType `protobuf:"varint,1,req,name=Type,enum=pb.KeyType" json:"Type,omitempty"`
	Data                 []byte   `protobuf:"bytes,2,req,name=Data" json:"Data,omitempty"`
	XXX_unrecognized     []byte   `json:"-"`
}

func (m *PublicKey) Reset()         { *m = PublicKey{} }
func (m *PublicKey) String() string { return proto.CompactTextString(m) }
func (*PublicKey) ProtoMessage()    {}

func (m *PublicKey) GetType() KeyType {
	if m != nil && m.Type != nil {
		return *m.Type
	}
	return KeyType_RSA
}

func (m *PublicKey) GetData() []byte {
	if m != nil {
		return m.Data
	}
	return nil
}

// Marshal encodes the message, length-prefixed with a protobuf varint, the
// same outer framing the identity subsystem uses for every key it hands out.
func Marshal(m *PublicKey) ([]byte, error) {
	body, err := proto.Marshal(m)
	if err != nil {
		return nil, err
	}

	prefix := encodeVarint(uint64(len(body)))
	return append(prefix, body...), nil
}

// Unmarshal reads a length-prefixed PublicKey message from the head of buf
// and returns it along with the number of bytes consumed.
func Unmarshal(buf []byte) (*PublicKey, int, error) {
	n, consumed, err := decodeVarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if consumed+int(n) > len(buf) {
		return nil, 0, errVarintTooLong
	}

	body := buf[consumed : consumed+int(n)]
	m := &PublicKey{}
	if err := proto.Unmarshal(body, m); err != nil {
		return nil, 0, err
	}
	return m, consumed + int(n), nil
}

func encodeVarint(v uint64) []byte {
	var out []byte
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

func decodeVarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			break
		}
	}
	return 0, 0, errVarintTooLong
}
