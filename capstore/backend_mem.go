package capstore

import (
	"bytes"
	"errors"
	"slices"
	"sync"
)

var errReadOnly = errors.New("read-only transaction")

// memBackend keeps buckets as sorted slices. Committed buckets are never
// modified: a write transaction copies a bucket the first time it changes
// it, so readers keep whatever snapshot they started with. Writers are
// serialized like Bolt's.
type memBackend struct {
	writer  sync.Mutex
	mu      sync.RWMutex
	buckets map[string]*memShelf
	closed  bool
}

func newMemBackend() *memBackend {
	return &memBackend{buckets: make(map[string]*memShelf)}
}

func (bk *memBackend) Begin(writable bool) (backendTx, error) {
	if writable {
		bk.writer.Lock()
	}
	bk.mu.RLock()
	defer bk.mu.RUnlock()
	if bk.closed {
		if writable {
			bk.writer.Unlock()
		}
		return nil, ErrClosed
	}
	return &memTx{bk: bk, writable: writable, base: bk.buckets}, nil
}

func (bk *memBackend) Close() error {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	bk.closed = true
	bk.buckets = nil
	return nil
}

type memTx struct {
	bk       *memBackend
	writable bool
	done     bool
	base     map[string]*memShelf
	dirty    map[string]*memShelf
}

func (t *memTx) Shelf(name string, create bool) (shelf, error) {
	if t.done {
		panic("capstore: transaction is closed")
	}
	if s := t.dirty[name]; s != nil {
		return s, nil
	}
	s := t.base[name]
	if !t.writable {
		if s == nil {
			return nil, nil
		}
		return s, nil
	}
	if s == nil && !create {
		return nil, nil
	}
	c := &memShelf{writable: true}
	if s != nil {
		c.keys = slices.Clone(s.keys)
		c.recs = slices.Clone(s.recs)
	}
	if t.dirty == nil {
		t.dirty = make(map[string]*memShelf)
	}
	t.dirty[name] = c
	return c, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	if !t.writable {
		return errReadOnly
	}
	defer t.finish()
	t.bk.mu.Lock()
	defer t.bk.mu.Unlock()
	if t.bk.closed {
		return ErrClosed
	}
	next := make(map[string]*memShelf, len(t.bk.buckets)+len(t.dirty))
	for name, s := range t.bk.buckets {
		next[name] = s
	}
	for name, s := range t.dirty {
		s.writable = false
		next[name] = s
	}
	t.bk.buckets = next
	return nil
}

func (t *memTx) Rollback() error {
	if !t.done {
		t.finish()
	}
	return nil
}

func (t *memTx) finish() {
	t.done = true
	t.dirty = nil
	if t.writable {
		t.bk.writer.Unlock()
	}
}

type memShelf struct {
	keys     [][]byte
	recs     [][]byte
	writable bool
}

func (s *memShelf) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(s.keys, key, bytes.Compare)
}

func (s *memShelf) Get(key []byte) []byte {
	if i, ok := s.search(key); ok {
		return s.recs[i]
	}
	return nil
}

func (s *memShelf) Put(key, rec []byte) error {
	if !s.writable {
		return errReadOnly
	}
	i, ok := s.search(key)
	if ok {
		s.recs[i] = bytes.Clone(rec)
		return nil
	}
	s.keys = slices.Insert(s.keys, i, bytes.Clone(key))
	s.recs = slices.Insert(s.recs, i, bytes.Clone(rec))
	return nil
}

func (s *memShelf) Delete(key []byte) error {
	if !s.writable {
		return errReadOnly
	}
	if i, ok := s.search(key); ok {
		s.keys = slices.Delete(s.keys, i, i+1)
		s.recs = slices.Delete(s.recs, i, i+1)
	}
	return nil
}

func (s *memShelf) Len() int { return len(s.keys) }

func (s *memShelf) Scan(prefix []byte, f func(key, rec []byte) error) error {
	i, _ := s.search(prefix)
	for ; i < len(s.keys) && bytes.HasPrefix(s.keys[i], prefix); i++ {
		if err := f(s.keys[i], s.recs[i]); err != nil {
			return err
		}
	}
	return nil
}
