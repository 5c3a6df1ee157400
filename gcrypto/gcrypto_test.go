package gcrypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func TestSymRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range [][]byte{nil, []byte(""), []byte("hello world"), bytes.Repeat([]byte{0xAB}, 4096)} {
		blob, err := SymEncrypt(key, p)
		if err != nil {
			t.Fatal(err)
		}
		got, err := SymDecrypt(key, blob)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("round trip mismatch: got %x want %x", got, p)
		}
	}
}

func TestSymDecryptWrongKey(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()

	blob, err := SymEncrypt(k1, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := SymDecrypt(k2, blob); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestSymDecryptShort(t *testing.T) {
	key, _ := GenerateKey()
	if _, err := SymDecrypt(key, make([]byte, nonceSize-1)); err != ErrShortMessage {
		t.Fatalf("expected ErrShortMessage, got %v", err)
	}
}

func TestAsymRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("hello asymmetric world")
	ct, err := AsymEncrypt(&priv.PublicKey, msg)
	if err != nil {
		t.Fatal(err)
	}

	pt, err := AsymDecrypt(priv, ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("got %q want %q", pt, msg)
	}

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AsymDecrypt(other, ct); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestB64URLTolerantPadding(t *testing.T) {
	raw := []byte("a random byte string of odd length!")
	enc := B64URLEncode(raw)

	got, err := B64URLDecode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %x want %x", got, raw)
	}
}

func TestKeyedHashDeterministic(t *testing.T) {
	a := KeyedHash([]byte("foo"), []byte("bar"))
	b := KeyedHash([]byte("foo"), []byte("bar"))
	if a != b {
		t.Fatalf("expected deterministic hash, got %s vs %s", a, b)
	}

	c := KeyedHash([]byte("foobar"))
	if a != c {
		t.Fatalf("expected concatenation to match single call: %s vs %s", a, c)
	}

	d := KeyedHash([]byte("foo"), []byte("baz"))
	if a == d {
		t.Fatal("expected different inputs to hash differently")
	}
}
