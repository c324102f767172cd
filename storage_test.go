package constdb

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func forEachStorage(t *testing.T, f func(t *testing.T, s storage)) {
	t.Run("mem", func(t *testing.T) {
		s := newMemStorage()
		defer s.Close()
		f(t, s)
	})
	t.Run("bolt", func(t *testing.T) {
		s := must(openBoltStorage(filepath.Join(t.TempDir(), storeFileName), true))
		defer s.Close()
		f(t, s)
	})
}

func mustPut(t *testing.T, buck storageBucket, k, v []byte) {
	t.Helper()
	ensure(buck.Put(k, v))
}

func TestStorage_Buckets(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s storage) {
		ensure(updateTx(s, func(tx storageTx) error {
			if !tx.Writable() {
				t.Errorf("update tx not writable")
			}
			must(tx.CreateBucket("b"))
			must(tx.CreateBucket("a"))
			_, err := tx.CreateBucket("a")
			if !errors.Is(err, errBucketExists) {
				t.Errorf("CreateBucket(dup) = %v, wanted errBucketExists", err)
			}
			return nil
		}))

		ensure(viewTx(s, func(tx storageTx) error {
			deepEqual(t, tx.BucketNames(), []string{"a", "b"})
			if tx.Bucket("c") != nil {
				t.Errorf("Bucket(c) != nil")
			}
			return nil
		}))

		ensure(updateTx(s, func(tx storageTx) error {
			ensure(tx.DeleteBucket("a"))
			if err := tx.DeleteBucket("a"); !errors.Is(err, errBucketNotFound) {
				t.Errorf("DeleteBucket(missing) = %v, wanted errBucketNotFound", err)
			}
			return nil
		}))

		ensure(viewTx(s, func(tx storageTx) error {
			deepEqual(t, tx.BucketNames(), []string{"b"})
			return nil
		}))
	})
}

func TestStorage_KeysAndRollback(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s storage) {
		ensure(updateTx(s, func(tx storageTx) error {
			b := must(tx.CreateBucket("b"))
			mustPut(t, b, x("02"), []byte("two"))
			mustPut(t, b, x("01"), []byte("one"))
			return nil
		}))

		failure := errors.New("abort")
		err := updateTx(s, func(tx storageTx) error {
			b := tx.Bucket("b")
			mustPut(t, b, x("03"), []byte("three"))
			ensure(b.Delete(x("01")))
			return failure
		})
		if err != failure {
			t.Fatalf("updateTx = %v, wanted %v", err, failure)
		}

		ensure(viewTx(s, func(tx storageTx) error {
			b := tx.Bucket("b")
			deepEqual(t, string(b.Get(x("01"))), "one")
			if b.Get(x("03")) != nil {
				t.Errorf("rolled back key is visible")
			}
			deepEqual(t, b.KeyCount(), 2)
			return nil
		}))
	})
}

func TestStorage_PrefixScan(t *testing.T) {
	forEachStorage(t, func(t *testing.T, s storage) {
		ensure(updateTx(s, func(tx storageTx) error {
			b := must(tx.CreateBucket("b"))
			mustPut(t, b, x("10 01"), []byte("a"))
			mustPut(t, b, x("10 02"), []byte("b"))
			mustPut(t, b, x("10 FF"), []byte("c"))
			mustPut(t, b, x("11 01"), []byte("x"))
			mustPut(t, b, x("0F FF"), []byte("y"))
			return nil
		}))

		ensure(viewTx(s, func(tx storageTx) error {
			b := tx.Bucket("b")
			var got []string
			r10 := prefixRange(x("10"))
			for _, v := range r10.newCursor(b.Cursor(), slog.Default()).All() {
				got = append(got, string(v))
			}
			deepEqual(t, got, []string{"a", "b", "c"})

			got = nil
			rAll := prefixRange(nil)
			for _, v := range rAll.newCursor(b.Cursor(), slog.Default()).All() {
				got = append(got, string(v))
			}
			deepEqual(t, got, []string{"y", "a", "b", "c", "x"})

			got = nil
			r12 := prefixRange(x("12"))
			for _, v := range r12.newCursor(b.Cursor(), slog.Default()).All() {
				got = append(got, string(v))
			}
			isempty(t, got)

			cur := r10.newCursor(b.Cursor(), slog.Default())
			for range cur.All() {
				break
			}
			if !cur.Next() || string(cur.Value()) != "b" {
				t.Errorf("cursor did not resume after early stop, at %q", cur.Value())
			}
			return nil
		}))
	})
}

func TestMemStorage_ReadersKeepSnapshot(t *testing.T) {
	s := newMemStorage()
	defer s.Close()
	ensure(updateTx(s, func(tx storageTx) error {
		mustPut(t, must(tx.CreateBucket("b")), x("01"), []byte("one"))
		return nil
	}))

	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()

	ensure(updateTx(s, func(tx storageTx) error {
		b := tx.Bucket("b")
		mustPut(t, b, x("01"), []byte("uno"))
		mustPut(t, b, x("02"), []byte("two"))
		must(tx.CreateBucket("c"))
		return nil
	}))

	b := rtx.Bucket("b")
	deepEqual(t, string(b.Get(x("01"))), "one")
	deepEqual(t, b.KeyCount(), 1)
	deepEqual(t, rtx.BucketNames(), []string{"b"})

	ensure(viewTx(s, func(tx storageTx) error {
		deepEqual(t, string(tx.Bucket("b").Get(x("01"))), "uno")
		deepEqual(t, tx.Bucket("b").KeyCount(), 2)
		deepEqual(t, tx.BucketNames(), []string{"b", "c"})
		return nil
	}))

	if err := rtx.Commit(); !errors.Is(err, errMemReadOnly) {
		t.Errorf("Commit(read-only) = %v, wanted errMemReadOnly", err)
	}
	if err := rtx.Bucket("b").Put(x("03"), nil); !errors.Is(err, errMemReadOnly) {
		t.Errorf("Put(read-only) = %v, wanted errMemReadOnly", err)
	}
}

func TestMemStorage_SingleWriter(t *testing.T) {
	s := newMemStorage()
	defer s.Close()

	type began struct {
		tx  storageTx
		err error
	}
	beginWriter := func() <-chan began {
		ch := make(chan began, 1)
		go func() {
			tx, err := s.BeginTx(true)
			ch <- began{tx, err}
		}()
		return ch
	}

	first := must(s.BeginTx(true))
	second := beginWriter()
	select {
	case <-second:
		t.Fatalf("second writer started while the first is open")
	case <-time.After(50 * time.Millisecond):
	}

	ensure(first.Rollback())
	r := <-second
	ensure(r.err)

	third := beginWriter()
	ensure(s.Close())
	if r := <-third; !errors.Is(r.err, errMemClosed) {
		t.Errorf("BeginTx after Close = %v, wanted errMemClosed", r.err)
	}
	if err := r.tx.Commit(); !errors.Is(err, errMemClosed) {
		t.Errorf("Commit after Close = %v, wanted errMemClosed", err)
	}
	if _, err := s.BeginTx(false); !errors.Is(err, errMemClosed) {
		t.Errorf("BeginTx(read) after Close = %v, wanted errMemClosed", err)
	}
}

func TestBackend_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, storeFileName)
	be := backend{noSync: true}

	deepEqual(t, must(be.exists(path)), false)
	s := must(be.open(path))
	ensure(s.Close())
	deepEqual(t, must(be.exists(path)), true)

	ensure(be.destroy(dir))
	deepEqual(t, must(be.exists(path)), false)

	mem := backend{inMemory: true}
	deepEqual(t, must(mem.exists(path)), false)
}
