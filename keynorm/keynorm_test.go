package keynorm

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func TestNormalizePEMIdempotent(t *testing.T) {
	priv := genKey(t)
	cpk, err := FromRSAPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	again, err := ToCanonicalPublicKey([]byte(cpk))
	if err != nil {
		t.Fatal(err)
	}
	if again != cpk {
		t.Fatalf("normalization of canonical input should be a no-op:\n%s\nvs\n%s", again, cpk)
	}
}

func TestNormalizeIdentityPBMatchesPEM(t *testing.T) {
	priv := genKey(t)
	pemCPK, err := FromRSAPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	wire, err := ToIdentityPB(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	pbCPK, err := ToCanonicalPublicKey(wire)
	if err != nil {
		t.Fatal(err)
	}

	if pbCPK != pemCPK {
		t.Fatalf("both accepted forms of the same key should normalize identically:\n%s\nvs\n%s", pbCPK, pemCPK)
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	if _, err := ToCanonicalPublicKey([]byte("not a key at all")); err != ErrUnrecognizedKey {
		t.Fatalf("expected ErrUnrecognizedKey, got %v", err)
	}
}

func TestCPKRoundTripsToPublicKey(t *testing.T) {
	priv := genKey(t)
	cpk, err := FromRSAPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := cpk.PublicKey()
	if err != nil {
		t.Fatal(err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 || pub.E != priv.PublicKey.E {
		t.Fatal("recovered public key does not match original")
	}
}
