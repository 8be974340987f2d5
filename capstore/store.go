// Package capstore persists framed capn messages in a key-value store: Bolt
// on disk, or memory for tests. Every stored message carries an xxhash
// checksum that is verified on read.
package capstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/capn"
)

var (
	ErrNotFound  = errors.New("capstore: not found")
	ErrCorrupted = errors.New("capstore: corrupted record")
	ErrClosed    = errors.New("capstore: closed")
)

type Options struct {
	// Logger receives warnings about corrupted records, and with Verbose,
	// a debug line per write. Defaults to slog.Default().
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// ReadOptions apply to every message read from the store.
	ReadOptions capn.ReadOptions
}

type Store struct {
	bk      backend
	logger  *slog.Logger
	verbose bool
	ropt    capn.ReadOptions
}

// Open opens or creates a Bolt database at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := new(bbolt.Options)
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("capstore: %w", err)
	}
	return newStore(boltBackend{bdb}, opt), nil
}

// OpenMemory returns a store that keeps everything in memory.
func OpenMemory(opt Options) *Store {
	return newStore(newMemBackend(), opt)
}

func newStore(bk backend, opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Store{
		bk:      bk,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		ropt:    opt.ReadOptions,
	}
}

func (s *Store) Close() error {
	return s.bk.Close()
}

func (s *Store) update(f func(tx backendTx) error) error {
	tx, err := s.bk.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) view(f func(tx backendTx) error) error {
	tx, err := s.bk.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

// Put stores a framed message under key. The message is validated by
// parsing its segment table.
func (s *Store) Put(bucket string, key []byte, framed []byte) error {
	if _, err := capn.ReadMessage(framed, s.ropt); err != nil {
		return fmt.Errorf("capstore: %w", err)
	}
	rec := appendRecord(make([]byte, 0, maxRecordHeaderSize+len(framed)), framed)
	err := s.update(func(tx backendTx) error {
		b, err := tx.Shelf(bucket, true)
		if err != nil {
			return err
		}
		return b.Put(key, rec)
	})
	if err != nil {
		return fmt.Errorf("capstore: %w", err)
	}
	if s.verbose {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "capstore: put", slog.String("bucket", bucket), hexAttr("key", key), slog.Int("size", len(framed)))
	}
	return nil
}

// PutStruct stores a compacted copy of v as a single-segment message.
func (s *Store) PutStruct(bucket string, key []byte, v capn.Struct) error {
	c, err := capn.Compact(v)
	if err != nil {
		return fmt.Errorf("capstore: %w", err)
	}
	return s.Put(bucket, key, c.Message().Marshal())
}

// View calls f with the message stored under key. The message aliases the
// store's memory and must not be used after f returns.
func (s *Store) View(bucket string, key []byte, f func(m *capn.Message) error) error {
	return s.view(func(tx backendTx) error {
		rec, err := lookup(tx, bucket, key)
		if err != nil {
			return err
		}
		m, err := s.decode(bucket, key, rec)
		if err != nil {
			return err
		}
		return f(m)
	})
}

// Get returns a copy of the message stored under key.
func (s *Store) Get(bucket string, key []byte) (*capn.Message, error) {
	var m *capn.Message
	err := s.view(func(tx backendTx) error {
		rec, err := lookup(tx, bucket, key)
		if err != nil {
			return err
		}
		m, err = s.decode(bucket, key, bytes.Clone(rec))
		return err
	})
	return m, err
}

func lookup(tx backendTx, bucket string, key []byte) ([]byte, error) {
	b, err := tx.Shelf(bucket, false)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	rec := b.Get(key)
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *Store) decode(bucket string, key []byte, rec []byte) (*capn.Message, error) {
	framed, err := decodeRecord(rec)
	if err != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "capstore: bad record", slog.String("bucket", bucket), hexAttr("key", key), slog.Any("err", err))
		return nil, err
	}
	m, err := capn.ReadMessage(framed, s.ropt)
	if err != nil {
		return nil, fmt.Errorf("capstore: %w", err)
	}
	return m, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(bucket string, key []byte) error {
	return s.update(func(tx backendTx) error {
		b, err := tx.Shelf(bucket, false)
		if b == nil || err != nil {
			return err
		}
		return b.Delete(key)
	})
}

// Scan calls f for every key starting with prefix, in key order. Messages
// alias the store's memory and are only valid during the call.
func (s *Store) Scan(bucket string, prefix []byte, f func(key []byte, m *capn.Message) error) error {
	return s.view(func(tx backendTx) error {
		b, err := tx.Shelf(bucket, false)
		if b == nil || err != nil {
			return err
		}
		return b.Scan(prefix, func(key, rec []byte) error {
			m, err := s.decode(bucket, key, rec)
			if err != nil {
				return err
			}
			return f(key, m)
		})
	})
}

// Count returns the number of messages in bucket.
func (s *Store) Count(bucket string) (int, error) {
	var n int
	err := s.view(func(tx backendTx) error {
		b, err := tx.Shelf(bucket, false)
		if b != nil {
			n = b.Len()
		}
		return err
	})
	return n, err
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}
