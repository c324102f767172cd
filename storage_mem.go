package constdb

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"sync"
)

var (
	errMemClosed   = errors.New("in-memory store closed")
	errMemReadOnly = errors.New("read-only transaction")
)

// memStore is a transient storage used for in-memory engines and tests.
//
// Committed state is an immutable memSnapshot. A transaction pins the snapshot
// current at BeginTx; the single writer copies the snapshot map and each
// keyspace it modifies, and publishes its copy on commit.
type memStore struct {
	mu      sync.Mutex
	current memSnapshot
	closed  bool

	writer chan struct{} // holds a token while a writable tx is open
	done   chan struct{}
}

type memSnapshot map[string]*memKeyspace

func newMemStorage() storage {
	return &memStore{
		current: memSnapshot{},
		writer:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *memStore) BeginTx(writable bool) (storageTx, error) {
	if writable {
		select {
		case s.writer <- struct{}{}:
		case <-s.done:
			return nil, errMemClosed
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if writable {
			<-s.writer
		}
		return nil, errMemClosed
	}
	return &memTxn{store: s, writable: writable, snap: s.current}, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.current = nil
		close(s.done)
	}
	return nil
}

type memTxn struct {
	store    *memStore
	writable bool
	finished bool

	snap  memSnapshot
	owned map[string]bool // keyspaces already copied into snap; nil until snap is private
}

func (tx *memTxn) Writable() bool { return tx.writable }

func (tx *memTxn) live() {
	if tx.finished {
		panic("constdb: use of finished in-memory transaction")
	}
}

// mutable returns a private copy of the keyspace, copying it on first use.
func (tx *memTxn) mutable(name string) (*memKeyspace, error) {
	if !tx.writable {
		return nil, errMemReadOnly
	}
	tx.detach()
	ks := tx.snap[name]
	if ks == nil {
		return nil, errBucketNotFound
	}
	if !tx.owned[name] {
		ks = &memKeyspace{entries: slices.Clone(ks.entries)}
		tx.snap[name] = ks
		tx.owned[name] = true
	}
	return ks, nil
}

func (tx *memTxn) detach() {
	if tx.owned == nil {
		tx.snap = maps.Clone(tx.snap)
		tx.owned = make(map[string]bool)
	}
}

func (tx *memTxn) Bucket(name string) storageBucket {
	tx.live()
	if tx.snap[name] == nil {
		return nil
	}
	return memBucket{tx: tx, name: name}
}

func (tx *memTxn) CreateBucket(name string) (storageBucket, error) {
	tx.live()
	if !tx.writable {
		return nil, errMemReadOnly
	}
	if tx.snap[name] != nil {
		return nil, errBucketExists
	}
	tx.detach()
	tx.snap[name] = &memKeyspace{}
	tx.owned[name] = true
	return memBucket{tx: tx, name: name}, nil
}

func (tx *memTxn) DeleteBucket(name string) error {
	tx.live()
	if !tx.writable {
		return errMemReadOnly
	}
	if tx.snap[name] == nil {
		return errBucketNotFound
	}
	tx.detach()
	delete(tx.snap, name)
	delete(tx.owned, name)
	return nil
}

func (tx *memTxn) BucketNames() []string {
	tx.live()
	return slices.Sorted(maps.Keys(tx.snap))
}

func (tx *memTxn) Commit() error {
	if tx.finished {
		return nil
	}
	if !tx.writable {
		return errMemReadOnly
	}
	defer tx.finish()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errMemClosed
	}
	if tx.owned != nil {
		s.current = tx.snap
	}
	return nil
}

func (tx *memTxn) Rollback() error {
	tx.finish()
	return nil
}

func (tx *memTxn) finish() {
	if tx.finished {
		return
	}
	tx.finished = true
	tx.snap, tx.owned = nil, nil
	if tx.writable {
		<-tx.store.writer
	}
}

// memKeyspace holds entries sorted by key. Once published in a snapshot it
// is never modified; key and value slices are never modified at all.
type memKeyspace struct {
	entries []memEntry
}

type memEntry struct {
	key, value []byte
}

func (ks *memKeyspace) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(ks.entries, key, func(e memEntry, k []byte) int {
		return bytes.Compare(e.key, k)
	})
}

// memBucket resolves its keyspace on every call, since the transaction
// replaces a keyspace with a copy on its first write.
type memBucket struct {
	tx   *memTxn
	name string
}

func (b memBucket) keyspace() *memKeyspace {
	b.tx.live()
	if ks := b.tx.snap[b.name]; ks != nil {
		return ks
	}
	return &memKeyspace{}
}

func (b memBucket) Get(key []byte) []byte {
	ks := b.keyspace()
	if i, found := ks.search(key); found {
		return ks.entries[i].value
	}
	return nil
}

func (b memBucket) Put(key, value []byte) error {
	b.tx.live()
	ks, err := b.tx.mutable(b.name)
	if err != nil {
		return err
	}
	e := memEntry{key: bytes.Clone(key), value: bytes.Clone(value)}
	if e.value == nil {
		e.value = []byte{}
	}
	if i, found := ks.search(key); found {
		ks.entries[i] = e
	} else {
		ks.entries = slices.Insert(ks.entries, i, e)
	}
	return nil
}

func (b memBucket) Delete(key []byte) error {
	b.tx.live()
	ks, err := b.tx.mutable(b.name)
	if err != nil {
		return err
	}
	if i, found := ks.search(key); found {
		ks.entries = slices.Delete(ks.entries, i, i+1)
	}
	return nil
}

func (b memBucket) Cursor() storageCursor {
	return &memCursor{ks: b.keyspace(), pos: -1}
}

func (b memBucket) KeyCount() int {
	return len(b.keyspace().entries)
}

type memCursor struct {
	ks  *memKeyspace
	pos int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.at()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	c.pos, _ = c.ks.search(seek)
	return c.at()
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	if c.pos < len(c.ks.entries) {
		c.pos++
	}
	return c.at()
}

func (c *memCursor) at() ([]byte, []byte) {
	if c.pos >= len(c.ks.entries) {
		return nil, nil
	}
	e := c.ks.entries[c.pos]
	return e.key, e.value
}
