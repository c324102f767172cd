package constdb

import (
	"cmp"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// catalogKeyspace is the keyspace of the system database holding catalog entries.
const catalogKeyspace = "catalog"

// Settings configure an Engine.
type Settings struct {
	// Root is the directory holding one subdirectory per database.
	Root string
	// InMemory keeps every database in memory; nothing survives Close.
	InMemory bool
	// IsTesting trades durability for speed (no fsync).
	IsTesting bool
	Logger    *slog.Logger
}

// Engine is the catalog of databases and tables and the entry point for data
// operations. DDL calls take the write lock; everything else shares the read lock.
type Engine struct {
	mu       sync.RWMutex
	dbs      map[string]*instance
	settings Settings
	backend  backend
	logger   *slog.Logger
}

// Open opens the system database and every database recorded in its catalog.
// An unparsable catalog entry aborts Open.
func Open(settings Settings) (*Engine, error) {
	if settings.Root == "" && !settings.InMemory {
		return nil, invalidArgf("root directory is required")
	}
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		dbs:      make(map[string]*instance),
		settings: settings,
		backend:  backend{inMemory: settings.InMemory, noSync: settings.IsTesting},
		logger:   logger,
	}

	sys, err := e.openInstance(SystemDB)
	if err != nil {
		return nil, err
	}
	e.dbs[SystemDB] = sys

	var names []string
	err = sys.scan(catalogKeyspace, prefixRange(dbMetaPrefix()), func(k, _ []byte) error {
		name, err := parseDBMetaKey(k)
		if err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		e.closeAll()
		return nil, err
	}

	for _, name := range names {
		e.logger.Info("found database", "db", name)
		inst, err := e.openInstance(name)
		if err != nil {
			e.closeAll()
			return nil, err
		}
		e.dbs[name] = inst
	}
	return e, nil
}

// openInstance prepares the directory of a database. The system database is
// opened eagerly, others only if their store file exists.
func (e *Engine) openInstance(name string) (*instance, error) {
	var dir string
	if !e.settings.InMemory {
		dir = filepath.Join(e.settings.Root, name)
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, invalidStatef(err, "io error")
		}
	}
	inst := newInstance(name, dir, e.backend, e.logger)
	if name == SystemDB {
		if err := inst.open(); err != nil {
			return nil, err
		}
		if err := inst.ensureTable(catalogKeyspace); err != nil {
			inst.close()
			return nil, err
		}
	} else if err := inst.tryOpen(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Close closes every open database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeAll()
}

func (e *Engine) closeAll() error {
	var errs []error
	for name, inst := range e.dbs {
		if err := inst.close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.dbs, name)
	}
	return errors.Join(errs...)
}

func (e *Engine) systemDB() (*instance, error) {
	sys := e.dbs[SystemDB]
	if sys == nil {
		return nil, invalidStatef(nil, "cannot find [%s] db", SystemDB)
	}
	return sys, nil
}

func (e *Engine) lookupDB(name string) (*instance, error) {
	inst := e.dbs[name]
	if inst == nil {
		return nil, notFoundErr(databaseEntity(name))
	}
	return inst, nil
}

// userDB is lookupDB for operations the system database is not open to.
func (e *Engine) userDB(name string) (*instance, error) {
	inst, err := e.lookupDB(name)
	if err != nil {
		return nil, err
	}
	if name == SystemDB {
		return nil, invalidArgf("database %s is reserved", SystemDB)
	}
	return inst, nil
}

func (e *Engine) getCatalog(key []byte, v any) (bool, error) {
	sys, err := e.systemDB()
	if err != nil {
		return false, err
	}
	var found bool
	err = sys.view(catalogKeyspace, func(b storageBucket) error {
		raw := b.Get(key)
		if raw == nil {
			return nil
		}
		found = true
		if v == nil {
			return nil
		}
		return decodeCatalogValue(raw, v)
	})
	return found, err
}

func (e *Engine) putCatalog(key []byte, v any) error {
	sys, err := e.systemDB()
	if err != nil {
		return err
	}
	raw, err := encodeCatalogValue(v)
	if err != nil {
		return err
	}
	return sys.update(catalogKeyspace, func(b storageBucket) error {
		return b.Put(key, raw)
	})
}

// deleteCatalog removes the given keys and every key in the prefix ranges.
func (e *Engine) deleteCatalog(keys [][]byte, prefixes ...[]byte) error {
	sys, err := e.systemDB()
	if err != nil {
		return err
	}
	return sys.update(catalogKeyspace, func(b storageBucket) error {
		for _, prefix := range prefixes {
			rang := prefixRange(prefix)
			c := rang.newCursor(b.Cursor(), e.logger)
			for c.Next() {
				keys = append(keys, cloneBytes(c.Key()))
			}
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) tableExists(db, table string) (bool, error) {
	return e.getCatalog(tableMetaKey(db, table), nil)
}

// HasDatabase reports whether a database is registered.
func (e *Engine) HasDatabase(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dbs[name] != nil
}

// ListDatabases returns the user databases sorted by name.
func (e *Engine) ListDatabases() []DBSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result := make([]DBSettings, 0, len(e.dbs))
	for name := range e.dbs {
		if name != SystemDB {
			result = append(result, DBSettings{Name: name})
		}
	}
	slices.SortFunc(result, func(a, b DBSettings) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return result
}

// CreateDatabase registers a new database and records it in the catalog.
func (e *Engine) CreateDatabase(name string) (DBSettings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dbs[name] != nil {
		return DBSettings{}, alreadyExistsErr(databaseEntity(name))
	}
	if err := validateName("database", name); err != nil {
		return DBSettings{}, err
	}

	inst, err := e.openInstance(name)
	if err != nil {
		return DBSettings{}, err
	}
	e.dbs[name] = inst

	settings := DBSettings{Name: name}
	if err := e.putCatalog(dbMetaKey(name), &settings); err != nil {
		delete(e.dbs, name)
		inst.close()
		return DBSettings{}, err
	}
	e.logger.Info("database created", "db", name)
	return settings, nil
}

// DropDatabase closes and erases a database, then removes its catalog entries.
func (e *Engine) DropDatabase(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.userDB(name)
	if err != nil {
		return err
	}
	delete(e.dbs, name)
	if err := inst.destroy(); err != nil {
		return err
	}
	// Unlike a bare instance drop, this also forgets the catalog entries, so the
	// database stays gone after reopen.
	if err := e.deleteCatalog([][]byte{dbMetaKey(name)}, tableMetaPrefix(name)); err != nil {
		return err
	}
	e.logger.Info("database dropped", "db", name)
	return nil
}

// CreateTable allocates the table's keyspace and records its settings.
// It returns the table name.
func (e *Engine) CreateTable(db string, settings TableSettings) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.userDB(db)
	if err != nil {
		return "", err
	}
	if err := settings.validate(); err != nil {
		return "", err
	}
	exists, err := e.tableExists(db, settings.Name)
	if err != nil {
		return "", err
	}
	if exists {
		return "", alreadyExistsErr(tableEntity(db, settings.Name))
	}

	if err := inst.createTable(settings.Name); err != nil {
		return "", err
	}
	if err := e.putCatalog(tableMetaKey(db, settings.Name), &settings); err != nil {
		return "", err
	}
	e.logger.Info("table created", "db", db, "table", settings.Name, "pk", settings.KeyFieldNames())
	return settings.Name, nil
}

// DeleteTable removes the table's keyspace, then its catalog entry.
func (e *Engine) DeleteTable(db, table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.userDB(db)
	if err != nil {
		return err
	}
	exists, err := e.tableExists(db, table)
	if err != nil {
		return err
	}
	if !exists {
		return notFoundErr(tableEntity(db, table))
	}

	if err := inst.deleteTable(table); err != nil {
		return err
	}
	if err := e.deleteCatalog([][]byte{tableMetaKey(db, table)}); err != nil {
		return err
	}
	e.logger.Info("table deleted", "db", db, "table", table)
	return nil
}

// GetTable returns the settings of a table.
func (e *Engine) GetTable(db, table string) (*TableSettings, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getTable(db, table)
}

func (e *Engine) getTable(db, table string) (*TableSettings, error) {
	if _, err := e.lookupDB(db); err != nil {
		return nil, err
	}
	var settings TableSettings
	found, err := e.getCatalog(tableMetaKey(db, table), &settings)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundErr(tableEntity(db, table))
	}
	return &settings, nil
}

// ListTables returns the settings of every table of a database in name order.
// An unparsable catalog entry aborts the listing.
func (e *Engine) ListTables(db string) ([]TableSettings, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.lookupDB(db); err != nil {
		return nil, err
	}
	sys, err := e.systemDB()
	if err != nil {
		return nil, err
	}
	tables := []TableSettings{}
	err = sys.scan(catalogKeyspace, prefixRange(tableMetaPrefix(db)), func(k, v []byte) error {
		if _, _, err := parseTableMetaKey(k); err != nil {
			return err
		}
		var settings TableSettings
		if err := decodeCatalogValue(v, &settings); err != nil {
			return err
		}
		tables = append(tables, settings)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// DatabaseStats maps table names to record counts.
type DatabaseStats map[string]int

// Stats returns record counts of every table of a database.
func (e *Engine) Stats(db string) (DatabaseStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, err := e.lookupDB(db)
	if err != nil {
		return nil, err
	}
	stats, err := inst.tableStats()
	return DatabaseStats(stats), err
}
