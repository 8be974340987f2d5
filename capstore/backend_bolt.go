package capstore

import (
	"bytes"
	"errors"
	"unsafe"

	"go.etcd.io/bbolt"
)

type boltBackend struct {
	db *bbolt.DB
}

func (bk boltBackend) Begin(writable bool) (backendTx, error) {
	tx, err := bk.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return boltTx{tx}, nil
}

func (bk boltBackend) Close() error { return bk.db.Close() }

type boltTx struct {
	tx *bbolt.Tx
}

func (t boltTx) Shelf(name string, create bool) (shelf, error) {
	nb := unsafeBytes(name)
	if !create {
		if b := t.tx.Bucket(nb); b != nil {
			return boltShelf{b}, nil
		}
		return nil, nil
	}
	b, err := t.tx.CreateBucketIfNotExists(nb)
	if err != nil {
		return nil, err
	}
	return boltShelf{b}, nil
}

func (t boltTx) Commit() error { return t.tx.Commit() }

func (t boltTx) Rollback() error {
	if err := t.tx.Rollback(); !errors.Is(err, bbolt.ErrTxClosed) {
		return err
	}
	return nil
}

type boltShelf struct {
	b *bbolt.Bucket
}

func (s boltShelf) Get(key []byte) []byte     { return s.b.Get(key) }
func (s boltShelf) Put(key, rec []byte) error { return s.b.Put(key, rec) }
func (s boltShelf) Delete(key []byte) error   { return s.b.Delete(key) }
func (s boltShelf) Len() int                  { return s.b.Stats().KeyN }

func (s boltShelf) Scan(prefix []byte, f func(key, rec []byte) error) error {
	c := s.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := f(k, v); err != nil {
			return err
		}
	}
	return nil
}

// unsafeBytes is only passed to Bolt calls that never retain or modify it.
func unsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
