package constdb

import (
	"bytes"
)

// resolve finds the settings and instance a data operation works on.
func (e *Engine) resolve(db, table string) (*TableSettings, *instance, error) {
	settings, err := e.getTable(db, table)
	if err != nil {
		return nil, nil, err
	}
	inst, err := e.lookupDB(db)
	if err != nil {
		return nil, nil, err
	}
	return settings, inst, nil
}

// QueryByKey looks up records by primary key fields given as strings.
//
// If params bind every key field, the single matching record is returned as
// stored, or NotFound. Otherwise the leading bound fields form a prefix and
// all records under it are returned as a JSON array in key order.
func (e *Engine) QueryByKey(db, table string, params map[string]string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	settings, inst, err := e.resolve(db, table)
	if err != nil {
		return nil, err
	}
	pk, err := buildKeyFromParams(params, settings.PrimaryKey)
	if err != nil {
		return nil, err
	}

	switch pk.Shape {
	case Complete:
		var value []byte
		err := inst.view(table, func(b storageBucket) error {
			value = cloneBytes(b.Get(pk.Bytes))
			return nil
		})
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, notFoundErr(dataEntity)
		}
		return value, nil
	case Prefix:
		var buf bytes.Buffer
		buf.WriteByte('[')
		var n int
		err := inst.scan(table, prefixRange(pk.Bytes), func(_, v []byte) error {
			if n > 0 {
				buf.WriteByte(',')
			}
			buf.Write(v)
			n++
			return nil
		})
		if err != nil {
			return nil, err
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, invalidStatef(nil, "unexpected key shape %v", pk.Shape)
	}
}

// Scan returns every record whose key starts with the fields bound in params,
// in key order. Binding no fields scans the whole table.
func (e *Engine) Scan(db, table string, params map[string]string) ([][]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	settings, inst, err := e.resolve(db, table)
	if err != nil {
		return nil, err
	}
	pk, err := buildKeyFromParams(params, settings.PrimaryKey)
	if err != nil {
		return nil, err
	}
	var rows [][]byte
	err = inst.scan(table, prefixRange(pk.Bytes), func(_, v []byte) error {
		rows = append(rows, cloneBytes(v))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert stores a JSON record under the key derived from its primary key
// fields, replacing any record already there.
func (e *Engine) Insert(db, table string, record []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	settings, inst, err := e.resolve(db, table)
	if err != nil {
		return err
	}
	pk, err := buildKeyFromRecord(record, settings.PrimaryKey)
	if err != nil {
		return err
	}
	key, err := pk.Complete()
	if err != nil {
		return err
	}
	e.logger.Debug("insert", "db", db, "table", table, hexAttr("key", key))
	return inst.update(table, func(b storageBucket) error {
		return b.Put(key, record)
	})
}

// Update merges a JSON patch into the record addressed by params. The key
// must be complete and the patch must not touch primary key fields.
func (e *Engine) Update(db, table string, patch []byte, params map[string]string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	settings, inst, err := e.resolve(db, table)
	if err != nil {
		return err
	}
	pk, err := buildKeyFromParams(params, settings.PrimaryKey)
	if err != nil {
		return err
	}
	key, err := pk.Complete()
	if err != nil {
		return err
	}
	return inst.update(table, func(b storageBucket) error {
		existing := b.Get(key)
		if existing == nil {
			return notFoundErr(dataEntity)
		}
		updated, err := mergeRecord(existing, patch, settings)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// Delete removes the record addressed by params. Prefix deletes are not supported.
func (e *Engine) Delete(db, table string, params map[string]string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	settings, inst, err := e.resolve(db, table)
	if err != nil {
		return err
	}
	pk, err := buildKeyFromParams(params, settings.PrimaryKey)
	if err != nil {
		return err
	}
	key, err := pk.Complete()
	if err != nil {
		return err
	}
	return inst.update(table, func(b storageBucket) error {
		if b.Get(key) == nil {
			return notFoundErr(dataEntity)
		}
		return b.Delete(key)
	})
}
