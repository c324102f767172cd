package constdb

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// keyRange is a forward range of keys: from Lower (inclusive) to Upper
// (exclusive). A nil bound is open.
type keyRange struct {
	Lower []byte
	Upper []byte
}

// prefixRange covers exactly the keys starting with prefix.
func prefixRange(prefix []byte) keyRange {
	upper, _ := upperBound(prefix)
	return keyRange{Lower: prefix, Upper: upper}
}

func (r *keyRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Lower != nil {
		k, v = bcur.Seek(r.Lower)
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", r.Lower), hexAttr("key", k))
		}
	} else {
		k, v = bcur.First()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "FIRST", hexAttr("key", k))
		}
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *keyRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	k, v := bcur.Next()
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k))
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *keyRange) match(k []byte, logger *slog.Logger) bool {
	if r.Upper != nil && bytes.Compare(k, r.Upper) >= 0 {
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on upper", hexAttr("upper", r.Upper), hexAttr("key", k))
		}
		return false
	}
	return true
}

func (r *keyRange) newCursor(bcur storageCursor, logger *slog.Logger) *rangeCursor {
	return &rangeCursor{rang: *r, bcur: bcur, logger: logger}
}

// rangeCursor walks a keyRange. Keys and values are only valid until the
// underlying transaction ends.
type rangeCursor struct {
	rang   keyRange
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (c *rangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *rangeCursor) Key() []byte   { return c.k }
func (c *rangeCursor) Value() []byte { return c.v }

// All yields the remaining pairs in key order, stopping early when the
// consumer does.
func (c *rangeCursor) All() iter.Seq2[[]byte, []byte] {
	return func(yield func(k, v []byte) bool) {
		for c.Next() {
			if !yield(c.k, c.v) {
				return
			}
		}
	}
}
