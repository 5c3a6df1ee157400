package masterkey

import "testing"

func TestGetBeforeResetFails(t *testing.T) {
	s := New(newMemKV())
	if _, err := s.Get(); err != ErrNoMasterKey {
		t.Fatalf("expected ErrNoMasterKey, got %v", err)
	}
}

func TestResetThenGet(t *testing.T) {
	s := New(newMemKV())

	k1, err := s.Reset()
	if err != nil {
		t.Fatal(err)
	}

	k2, err := s.Get()
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Fatalf("Get after Reset should return the same key")
	}
}

func TestResetGeneratesFreshKeyEachTime(t *testing.T) {
	s := New(newMemKV())

	k1, err := s.Reset()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := s.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Fatal("expected two resets to produce different keys")
	}
}
