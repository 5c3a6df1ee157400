package group

import (
	"testing"

	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/handshake"
	"github.com/monetas/gravity/identity"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

type party struct {
	fs       profilefs.FS
	node     *identity.Static
	cpk      keynorm.CPK
	contacts *contacts.Registry
	engine   *Engine
}

func newParty(t *testing.T) *party {
	t.Helper()
	node, err := identity.NewStatic()
	if err != nil {
		t.Fatal(err)
	}
	cpk, err := node.CPK()
	if err != nil {
		t.Fatal(err)
	}
	fs := profilefs.NewMemFS()
	mk, err := gcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	reg := contacts.New(fs, func() (gcrypto.Key, error) { return mk, nil })
	return &party{
		fs:       fs,
		node:     node,
		cpk:      cpk,
		contacts: reg,
		engine:   New(fs, reg, cpk, func() (gcrypto.Key, error) { return mk, nil }),
	}
}

// subscribe has alice add bob as a subscriber on alice's own tree, so that
// alice's contacts record bob's pairwise secret — the precondition for
// alice to include bob in a group.
func subscribe(t *testing.T, alice *party, bob *party) {
	t.Helper()
	hs := handshake.New(alice.fs, alice.contacts, alice.node)
	if _, err := hs.AddSubscriber([]byte(bob.cpk)); err != nil {
		t.Fatal(err)
	}
}

func TestCreateGroupOfTwo(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	subscribe(t, alice, bob)

	b64G, err := alice.engine.CreateGroup([]keynorm.CPK{bob.cpk}, "g1")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := alice.fs.Ls("/groups/" + b64G)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["me"] || !names["info.json.enc"] {
		t.Fatalf("expected me and info.json.enc, got %v", names)
	}
	if len(names) != 3 {
		t.Fatalf("expected exactly 3 entries (me, member file, info), got %v", names)
	}

	info, err := alice.engine.GetGroupInfo(b64G)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != "g1" {
		t.Fatalf("expected id g1, got %q", info.ID)
	}
	if _, ok := info.Members[string(alice.cpk)]; !ok {
		t.Fatal("expected self in members")
	}
	if _, ok := info.Members[string(bob.cpk)]; !ok {
		t.Fatal("expected bob in members")
	}
	for cpk, name := range info.Members {
		if name != "" {
			t.Fatalf("expected empty nickname for %s, got %q", cpk, name)
		}
	}
}

func TestCreateGroupUnknownMemberLeavesGroupsUnchanged(t *testing.T) {
	alice := newParty(t)
	stranger := newParty(t)

	if _, err := alice.engine.CreateGroup([]keynorm.CPK{stranger.cpk}, ""); err == nil {
		t.Fatal("expected an error for an unknown member")
	} else if _, ok := err.(*UnknownMemberError); !ok {
		t.Fatalf("expected UnknownMemberError, got %T: %v", err, err)
	}

	groups, err := alice.engine.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups to exist, got %v", groups)
	}
}

func TestSetNicknamesRejectsAbsentMember(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	stranger := newParty(t)
	subscribe(t, alice, bob)

	b64G, err := alice.engine.CreateGroup([]keynorm.CPK{bob.cpk}, "")
	if err != nil {
		t.Fatal(err)
	}

	err = alice.engine.SetNicknames(map[keynorm.CPK]string{stranger.cpk: "ghost"}, b64G)
	if err == nil {
		t.Fatal("expected NotInGroupError")
	}
	nig, ok := err.(*NotInGroupError)
	if !ok {
		t.Fatalf("expected NotInGroupError, got %T", err)
	}
	if len(nig.Missing) != 1 || nig.Missing[0] != stranger.cpk {
		t.Fatalf("expected stranger named as missing, got %v", nig.Missing)
	}
}

func TestSetNicknamesUpdatesMembers(t *testing.T) {
	alice := newParty(t)
	bob := newParty(t)
	subscribe(t, alice, bob)

	b64G, err := alice.engine.CreateGroup([]keynorm.CPK{bob.cpk}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.engine.SetNicknames(map[keynorm.CPK]string{bob.cpk: "bobby"}, b64G); err != nil {
		t.Fatal(err)
	}

	info, err := alice.engine.GetGroupInfo(b64G)
	if err != nil {
		t.Fatal(err)
	}
	if info.Members[string(bob.cpk)] != "bobby" {
		t.Fatalf("expected nickname bobby, got %q", info.Members[string(bob.cpk)])
	}
}

func TestMemberFilenameDeterminism(t *testing.T) {
	salt := []byte("fixed-salt-for-test-purposes")
	secret, _ := gcrypto.GenerateKey()

	a := memberFilename(salt, secret)
	b := memberFilename(salt, secret)
	if a != b {
		t.Fatal("expected deterministic filename for the same salt and secret")
	}

	other, _ := gcrypto.GenerateKey()
	saltedDifferently := append(append([]byte{}, salt...), 0)
	if memberFilename(saltedDifferently, secret) == a {
		t.Fatal("expected different salt to change the filename")
	}
	if memberFilename(salt, other) == a {
		t.Fatal("expected different secret to change the filename")
	}
}

func TestListGroupsEmptyWhenAbsent(t *testing.T) {
	alice := newParty(t)
	groups, err := alice.engine.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	if groups != nil {
		t.Fatalf("expected nil/empty, got %v", groups)
	}
}
