// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package masterkey

import (
	"time"

	"github.com/boltdb/bolt"
)

// dbTimeout is the time duration after which an attempted connection to the
// database must time out, same value bmagent's store package uses for its
// own boltdb-backed store in store/db.go.
const dbTimeout = time.Millisecond * 5

var miscBucket = []byte("misc")

// BoltKV is a github.com/boltdb/bolt-backed KVStore: the concrete local
// key-value store used by the cmd/gravityd daemon. It satisfies the narrow
// KVStore interface so the rest of this package never imports bolt
// directly.
type BoltKV struct {
	db *bolt.DB
}

// OpenBoltKV opens (creating if necessary) a boltdb file at path and
// ensures the bucket used for small opaque values exists.
func OpenBoltKV(path string) (*BoltKV, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(miscBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltKV{db: db}, nil
}

// Close closes the underlying boltdb file.
func (b *BoltKV) Close() error {
	return b.db.Close()
}

// Get implements KVStore.
func (b *BoltKV) Get(key string) ([]byte, error) {
	var v []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(miscBucket).Get([]byte(key))
		if raw == nil {
			return ErrKeyNotFound
		}
		v = append(v, raw...)
		return nil
	})
	return v, err
}

// Put implements KVStore.
func (b *BoltKV) Put(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(miscBucket).Put([]byte(key), value)
	})
}
