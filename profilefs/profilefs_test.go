package profilefs

import (
	"bytes"
	"testing"
)

func TestMemFSWriteCreatesParents(t *testing.T) {
	fs := NewMemFS()

	if err := fs.Write("/a/b/c.txt", []byte("hello"), WriteOptions{CreateParents: true}); err != nil {
		t.Fatal(err)
	}

	got, err := fs.Read("/a/b/c.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q", got)
	}
}

func TestMemFSMissingPath(t *testing.T) {
	fs := NewMemFS()

	_, err := fs.Read("/nope")
	if !IsPathMissing(err) {
		t.Fatalf("expected path-missing error, got %v", err)
	}

	_, err = fs.Ls("/nope")
	if !IsPathMissing(err) {
		t.Fatalf("expected path-missing error, got %v", err)
	}
}

func TestMemFSLsAndRemove(t *testing.T) {
	fs := NewMemFS()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(fs.Write("/groups/g1/me", []byte("1"), WriteOptions{CreateParents: true}))
	must(fs.Write("/groups/g1/info.json.enc", []byte("2"), WriteOptions{CreateParents: true}))

	entries, err := fs.Ls("/groups/g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := fs.Remove("/groups", true); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Ls("/groups"); !IsPathMissing(err) {
		t.Fatalf("expected /groups to be gone, got %v", err)
	}
}

func TestDirectoryHashReflectsContents(t *testing.T) {
	fs := NewMemFS()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(fs.Write("/a/f", []byte("1"), WriteOptions{CreateParents: true}))
	root1, err := fs.StatPath("/")
	if err != nil {
		t.Fatal(err)
	}
	if root1.Hash == "" {
		t.Fatal("expected a non-empty root hash")
	}

	must(fs.Write("/a/f", []byte("2"), WriteOptions{CreateParents: true}))
	root2, err := fs.StatPath("/")
	if err != nil {
		t.Fatal(err)
	}
	if root2.Hash == root1.Hash {
		t.Fatal("expected root hash to change when a descendant's contents change")
	}

	again, err := fs.StatPath("/")
	if err != nil {
		t.Fatal(err)
	}
	if again.Hash != root2.Hash {
		t.Fatal("expected StatPath to be deterministic for unchanged contents")
	}
}

func TestLoadTree(t *testing.T) {
	fs := NewMemFS()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(fs.Write("/subscribers/aaa", []byte("x"), WriteOptions{CreateParents: true}))
	must(fs.Write("/private/contacts.json.enc", []byte("y"), WriteOptions{CreateParents: true}))

	tree, err := LoadTree(fs, "/")
	if err != nil {
		t.Fatal(err)
	}
	if tree.Contents["subscribers"] == nil || tree.Contents["subscribers"].Contents["aaa"] == nil {
		t.Fatal("expected subscribers/aaa in loaded tree")
	}
	if tree.Contents["private"].Contents["contacts.json.enc"].Type != TypeFile {
		t.Fatal("expected contacts.json.enc to be a file")
	}
}
