package constdb

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/puzpuzpuz/xsync/v3"
)

// storeFileName is the store file inside a database directory.
const storeFileName = "bin.db"

// instance owns the store handle of one database. The handle is opened
// lazily: a database that never had a table has a directory but no store file.
//
// Mutating calls (open, createTable, deleteTable, close) require the engine's
// write lock; the rest run under its read lock, except hasTable.
type instance struct {
	name    string
	root    string
	backend backend
	logger  *slog.Logger

	store storage

	// tables mirrors the keyspaces of store. It is a concurrent map so that
	// hasTable can be called without the engine lock.
	tables *xsync.MapOf[string, struct{}]
}

func newInstance(name, root string, be backend, logger *slog.Logger) *instance {
	return &instance{
		name:    name,
		root:    root,
		backend: be,
		logger:  logger.With("db", name),
		tables:  xsync.NewMapOf[string, struct{}](),
	}
}

func (inst *instance) storePath() string {
	return filepath.Join(inst.root, storeFileName)
}

func (inst *instance) isOpen() bool {
	return inst.store != nil
}

// open opens or creates the store and registers the keyspaces found in it.
func (inst *instance) open() error {
	if inst.store != nil {
		return nil
	}
	s, err := inst.backend.open(inst.storePath())
	if err != nil {
		return invalidStatef(err, "cannot open store of database[%s]", inst.name)
	}
	err = viewTx(s, func(tx storageTx) error {
		for _, name := range tx.BucketNames() {
			inst.tables.Store(name, struct{}{})
		}
		return nil
	})
	if err != nil {
		s.Close()
		return invalidStatef(err, "cannot list tables of database[%s]", inst.name)
	}
	inst.store = s
	inst.logger.Debug("store opened", "path", inst.storePath(), "tables", inst.tables.Size())
	return nil
}

// tryOpen opens the store only if its file already exists.
func (inst *instance) tryOpen() error {
	found, err := inst.backend.exists(inst.storePath())
	if err != nil {
		return invalidStatef(err, "io error")
	}
	if !found {
		return nil
	}
	return inst.open()
}

func (inst *instance) createTable(name string) error {
	if err := inst.open(); err != nil {
		return err
	}
	if _, found := inst.tables.Load(name); found {
		return alreadyExistsErr(tableEntity(inst.name, name))
	}
	err := updateTx(inst.store, func(tx storageTx) error {
		_, err := tx.CreateBucket(name)
		return err
	})
	if errors.Is(err, errBucketExists) {
		inst.tables.Store(name, struct{}{})
		return alreadyExistsErr(tableEntity(inst.name, name))
	} else if err != nil {
		return invalidStatef(err, "cannot create table[%s.%s]", inst.name, name)
	}
	inst.tables.Store(name, struct{}{})
	return nil
}

// ensureTable creates the keyspace unless it already exists.
func (inst *instance) ensureTable(name string) error {
	err := inst.createTable(name)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return err
}

func (inst *instance) deleteTable(name string) error {
	if inst.store == nil {
		return notFoundErr(tableEntity(inst.name, name))
	}
	err := updateTx(inst.store, func(tx storageTx) error {
		return tx.DeleteBucket(name)
	})
	inst.tables.Delete(name)
	if errors.Is(err, errBucketNotFound) {
		return notFoundErr(tableEntity(inst.name, name))
	} else if err != nil {
		return invalidStatef(err, "cannot delete table[%s.%s]", inst.name, name)
	}
	return nil
}

// hasTable is safe to call without the engine lock.
func (inst *instance) hasTable(name string) bool {
	_, found := inst.tables.Load(name)
	return found
}

// checkTable resolves a table name to an open keyspace.
func (inst *instance) checkTable(name string) error {
	if inst.store == nil {
		return invalidStatef(nil, "store of database[%s] not initialized", inst.name)
	}
	if !inst.hasTable(name) {
		return invalidStatef(nil, "cannot find table for %s", name)
	}
	return nil
}

func (inst *instance) withBucket(tx storageTx, name string, f func(b storageBucket) error) error {
	b := tx.Bucket(name)
	if b == nil {
		return invalidStatef(nil, "cannot find table for %s", name)
	}
	return f(b)
}

// view runs f against the table's keyspace in a read-only transaction.
func (inst *instance) view(table string, f func(b storageBucket) error) error {
	if err := inst.checkTable(table); err != nil {
		return err
	}
	err := viewTx(inst.store, func(tx storageTx) error {
		return inst.withBucket(tx, table, f)
	})
	return wrapStoreErr(err, "read from table[%s.%s] failed", inst.name, table)
}

// update runs f against the table's keyspace in a writable transaction.
func (inst *instance) update(table string, f func(b storageBucket) error) error {
	if err := inst.checkTable(table); err != nil {
		return err
	}
	err := updateTx(inst.store, func(tx storageTx) error {
		return inst.withBucket(tx, table, f)
	})
	return wrapStoreErr(err, "write to table[%s.%s] failed", inst.name, table)
}

// scan calls f for every pair of the range in key order, stopping at the first error.
func (inst *instance) scan(table string, rang keyRange, f func(k, v []byte) error) error {
	return inst.view(table, func(b storageBucket) error {
		for k, v := range rang.newCursor(b.Cursor(), inst.logger).All() {
			if err := f(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// tableStats returns the number of keys per table.
func (inst *instance) tableStats() (map[string]int, error) {
	stats := make(map[string]int)
	if inst.store == nil {
		return stats, nil
	}
	err := viewTx(inst.store, func(tx storageTx) error {
		for _, name := range tx.BucketNames() {
			stats[name] = tx.Bucket(name).KeyCount()
		}
		return nil
	})
	return stats, wrapStoreErr(err, "cannot read stats of database[%s]", inst.name)
}

func (inst *instance) close() error {
	if inst.store == nil {
		return nil
	}
	err := inst.store.Close()
	inst.store = nil
	inst.tables.Clear()
	if err != nil {
		return invalidStatef(err, "cannot close database[%s]", inst.name)
	}
	return nil
}

// destroy closes the store and erases the database directory.
func (inst *instance) destroy() error {
	if err := inst.close(); err != nil {
		return err
	}
	if err := inst.backend.destroy(inst.root); err != nil {
		return invalidStatef(err, "cannot erase database[%s]", inst.name)
	}
	inst.logger.Debug("storage destroyed", "path", inst.root)
	return nil
}
