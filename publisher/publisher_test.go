package publisher

import (
	"errors"
	"testing"

	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

type fakeNaming struct {
	resolved map[keynorm.CPK]string
}

func (f *fakeNaming) Resolve(cpk keynorm.CPK) (string, error) {
	if h, ok := f.resolved[cpk]; ok {
		return h, nil
	}
	return "", errors.New("not resolvable")
}

func TestGetMyProfileHash(t *testing.T) {
	fs := profilefs.NewMemFS()
	if err := fs.Write("/private/contacts.json.enc", []byte("x"), profilefs.WriteOptions{CreateParents: true}); err != nil {
		t.Fatal(err)
	}

	p := New(fs, &fakeNaming{}, nil)
	hash, err := p.GetMyProfileHash()
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty root content hash")
	}

	if err := fs.Write("/private/contacts.json.enc", []byte("y"), profilefs.WriteOptions{CreateParents: true}); err != nil {
		t.Fatal(err)
	}
	changed, err := p.GetMyProfileHash()
	if err != nil {
		t.Fatal(err)
	}
	if changed == hash {
		t.Fatal("expected root hash to change when profile tree contents change")
	}
}

func TestGetProfileHashFallback(t *testing.T) {
	cpk := keynorm.CPK("peer")
	p := New(profilefs.NewMemFS(), &fakeNaming{}, map[keynorm.CPK]string{cpk: "fallback-hash"})

	hash, err := p.GetProfileHash(cpk)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "fallback-hash" {
		t.Fatalf("expected fallback hash, got %q", hash)
	}
}

func TestGetProfileHashResolved(t *testing.T) {
	cpk := keynorm.CPK("peer")
	p := New(profilefs.NewMemFS(), &fakeNaming{resolved: map[keynorm.CPK]string{cpk: "real-hash"}}, nil)

	hash, err := p.GetProfileHash(cpk)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "real-hash" {
		t.Fatalf("expected real-hash, got %q", hash)
	}
}
