package handshake

import (
	"errors"
	"testing"

	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/identity"
	"github.com/monetas/gravity/profilefs"
)

func setupParty(t *testing.T, fs profilefs.FS) (*identity.Static, *contacts.Registry) {
	t.Helper()
	node, err := identity.NewStatic()
	if err != nil {
		t.Fatal(err)
	}
	mk, err := gcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	reg := contacts.New(fs, func() (gcrypto.Key, error) { return mk, nil })
	return node, reg
}

func TestHandshakeRoundTrip(t *testing.T) {
	aliceFS := profilefs.NewMemFS()
	alice, aliceContacts := setupParty(t, aliceFS)
	bob, _ := setupParty(t, profilefs.NewMemFS())

	bobCPK, err := bob.CPK()
	if err != nil {
		t.Fatal(err)
	}

	hs := New(aliceFS, aliceContacts, alice)
	secret, err := hs.AddSubscriber([]byte(bobCPK))
	if err != nil {
		t.Fatal(err)
	}

	recovered, err := TestDecryptAllSubscribers(aliceFS, "/subscribers", bob)
	if err != nil {
		t.Fatal(err)
	}
	if recovered != secret {
		t.Fatalf("bob recovered a different secret than alice stored: %x vs %x", recovered, secret)
	}

	all, err := aliceContacts.GetContacts()
	if err != nil {
		t.Fatal(err)
	}
	stored, ok, err := all[bobCPK].MySecret()
	if err != nil || !ok {
		t.Fatalf("expected my-secret recorded for bob, ok=%v err=%v", ok, err)
	}
	if stored != secret {
		t.Fatal("contacts record does not match delivered secret")
	}
}

func TestHandshakeIdempotent(t *testing.T) {
	aliceFS := profilefs.NewMemFS()
	alice, aliceContacts := setupParty(t, aliceFS)
	bob, _ := setupParty(t, profilefs.NewMemFS())
	bobCPK, _ := bob.CPK()

	hs := New(aliceFS, aliceContacts, alice)
	s1, err := hs.AddSubscriber([]byte(bobCPK))
	if err != nil {
		t.Fatal(err)
	}
	s2, err := hs.AddSubscriber([]byte(bobCPK))
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("expected the second AddSubscriber to reuse the existing secret")
	}

	entries, err := aliceFS.Ls("/subscribers")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one subscriber drop, got %d", len(entries))
	}
}

func TestNoDropForMe(t *testing.T) {
	fs := profilefs.NewMemFS()
	_, reg := setupParty(t, fs)
	bob, _ := setupParty(t, profilefs.NewMemFS())

	stranger, _ := identity.NewStatic()
	hs := New(fs, reg, stranger)
	strangerCPK, _ := stranger.CPK()
	if _, err := hs.AddSubscriber([]byte(strangerCPK)); err != nil {
		t.Fatal(err)
	}

	if _, err := TestDecryptAllSubscribers(fs, "/subscribers", bob); !errors.Is(err, ErrNoDropForMe) {
		t.Fatalf("expected ErrNoDropForMe, got %v", err)
	}
}
