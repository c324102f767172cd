package constdb

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestInstance(t *testing.T) *instance {
	inst := newInstance("shop", t.TempDir(), backend{noSync: true}, slog.Default())
	t.Cleanup(func() { inst.close() })
	return inst
}

func TestInstance_LazyOpen(t *testing.T) {
	inst := newTestInstance(t)
	ensure(inst.tryOpen())
	if inst.isOpen() {
		t.Fatalf("tryOpen opened a store that did not exist")
	}
	isErr(t, inst.deleteTable("orders"), ErrNotFound)
	isErr(t, inst.view("orders", func(storageBucket) error { return nil }), ErrInvalidState)
	deepEqual(t, must(inst.tableStats()), map[string]int{})

	ensure(inst.createTable("orders"))
	if !inst.isOpen() {
		t.Fatalf("createTable did not open the store")
	}
	isErr(t, inst.createTable("orders"), ErrAlreadyExists)
	ensure(inst.ensureTable("orders"))
}

func TestInstance_DiscoversTablesOnOpen(t *testing.T) {
	inst := newTestInstance(t)
	ensure(inst.createTable("a"))
	ensure(inst.createTable("b"))
	ensure(inst.update("a", func(b storageBucket) error {
		return b.Put([]byte("k"), []byte("v"))
	}))
	ensure(inst.close())
	if inst.hasTable("a") {
		t.Fatalf("close kept tables registered")
	}

	ensure(inst.tryOpen())
	deepEqual(t, inst.hasTable("a"), true)
	deepEqual(t, inst.hasTable("b"), true)
	deepEqual(t, must(inst.tableStats()), map[string]int{"a": 1, "b": 0})

	ensure(inst.deleteTable("b"))
	deepEqual(t, inst.hasTable("b"), false)
	isErr(t, inst.update("b", func(storageBucket) error { return nil }), ErrInvalidState)
}

func TestInstance_ScanStopsAtError(t *testing.T) {
	inst := newTestInstance(t)
	ensure(inst.createTable("t"))
	ensure(inst.update("t", func(b storageBucket) error {
		for _, k := range []string{"a1", "a2", "a3", "b1"} {
			ensure(b.Put([]byte(k), []byte(k)))
		}
		return nil
	}))

	var seen []string
	err := inst.scan("t", prefixRange([]byte("a")), func(k, _ []byte) error {
		seen = append(seen, string(k))
		if len(seen) == 2 {
			return invalidArgf("stop")
		}
		return nil
	})
	isErr(t, err, ErrInvalidArgument)
	deepEqual(t, seen, []string{"a1", "a2"})
}

func TestInstance_HasTableWithoutLock(t *testing.T) {
	inst := newTestInstance(t)
	ensure(inst.createTable("stable"))

	var stop atomic.Bool
	var missing atomic.Int64
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				if !inst.hasTable("stable") {
					missing.Add(1)
				}
				inst.hasTable("flapping")
			}
		}()
	}

	for range 50 {
		ensure(inst.createTable("flapping"))
		ensure(inst.deleteTable("flapping"))
	}
	stop.Store(true)
	wg.Wait()

	deepEqual(t, missing.Load(), int64(0))
	deepEqual(t, inst.hasTable("flapping"), false)
}
