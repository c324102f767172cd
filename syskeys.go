package constdb

import (
	"strings"
	"unicode/utf8"
)

// Catalog keys live in one keyspace of the system database. The first byte
// tags the family:
//
//	d<db>          database entry
//	t<db>.<table>  table entry
//
// Database names cannot contain '.', so the first '.' of a table key always
// ends the database name.
const (
	dbMetaTag    = 'd'
	tableMetaTag = 't'
	tableMetaSep = '.'
)

func dbMetaKey(db string) []byte {
	buf := make([]byte, 0, 1+len(db))
	buf = append(buf, dbMetaTag)
	return appendString(buf, db)
}

func dbMetaPrefix() []byte {
	return []byte{dbMetaTag}
}

func tableMetaKey(db, table string) []byte {
	buf := make([]byte, 0, 2+len(db)+len(table))
	buf = append(buf, tableMetaTag)
	buf = appendString(buf, db)
	buf = append(buf, tableMetaSep)
	return appendString(buf, table)
}

func tableMetaPrefix(db string) []byte {
	buf := make([]byte, 0, 2+len(db))
	buf = append(buf, tableMetaTag)
	buf = appendString(buf, db)
	return append(buf, tableMetaSep)
}

func parseDBMetaKey(key []byte) (string, error) {
	if !utf8.Valid(key) {
		return "", invalidStatef(nil, "invalid db meta key %s: not UTF-8", hexstr(key))
	}
	if len(key) < 2 || key[0] != dbMetaTag {
		return "", invalidStatef(nil, "invalid db meta key: %q", key)
	}
	return string(key[1:]), nil
}

func parseTableMetaKey(key []byte) (db, table string, err error) {
	if !utf8.Valid(key) {
		return "", "", invalidStatef(nil, "invalid table meta key %s: not UTF-8", hexstr(key))
	}
	if len(key) < 1 || key[0] != tableMetaTag {
		return "", "", invalidStatef(nil, "invalid table meta key: %q", key)
	}
	db, table, ok := strings.Cut(string(key[1:]), string(rune(tableMetaSep)))
	if !ok || db == "" || table == "" {
		return "", "", invalidStatef(nil, "invalid table meta key: %q", key)
	}
	return db, table, nil
}
