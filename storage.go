package constdb

import (
	"errors"
	"os"
)

var (
	// errBucketNotFound is returned by storageTx.DeleteBucket when the bucket doesn't exist.
	errBucketNotFound = errors.New("bucket not found")
	// errBucketExists is returned by storageTx.CreateBucket when the bucket already exists.
	errBucketExists = errors.New("bucket already exists")
)

// storage is an ordered key-value store with isolated keyspaces (buckets).
// One storage backs one database.
type storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns the named bucket, or nil if it doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a bucket, failing with errBucketExists if it is already there.
	CreateBucket(name string) (storageBucket, error)

	// DeleteBucket deletes a bucket and its contents.
	DeleteBucket(name string) error

	// BucketNames lists bucket names in key order.
	BucketNames() []string

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times,
	// including after Commit.
	Rollback() error
}

// storageBucket is a sorted key-value collection. Slices returned by Get and
// by cursors are only valid until the transaction ends.
type storageBucket interface {
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor
	KeyCount() int
}

// storageCursor iterates over a sorted bucket.
type storageCursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)
}

func viewTx(s storage, f func(tx storageTx) error) error {
	tx, err := s.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func updateTx(s storage, f func(tx storageTx) error) error {
	tx, err := s.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// backend opens storages for database directories.
type backend struct {
	inMemory bool
	noSync   bool
}

func (be backend) exists(path string) (bool, error) {
	if be.inMemory {
		return false, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}

func (be backend) open(path string) (storage, error) {
	if be.inMemory {
		return newMemStorage(), nil
	}
	return openBoltStorage(path, be.noSync)
}

func (be backend) destroy(dir string) error {
	if be.inMemory {
		return nil
	}
	return os.RemoveAll(dir)
}
