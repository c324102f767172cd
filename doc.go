/*
Package constdb implements an embedded multi-tenant key-value database engine
(on top of Bolt).

We implement:

1. Databases, each backed by its own store file under the root directory.

2. Tables, isolated keyspaces inside a database, holding JSON records keyed
by an ordered list of typed primary key fields.

3. A catalog of databases and tables, kept in the reserved “system” database
and reloaded on Open.

# Technical Details

**Layout.**
Each database lives in <root>/<name>/bin.db. A table is a Bolt bucket named
after the table. The system database has a single “catalog” bucket.

**Catalog keys.**
The first byte tags the family: 'd' + db for databases, 't' + db + '.' + table
for tables. Names cannot contain '.', so table keys parse unambiguously.

**Catalog values**: version byte, msgpack of the settings struct, then a
big-endian xxhash64 of everything before it.

## Key encoding

Every primary key field is encoded in declaration order and followed by a 0x00
terminator:

1. String and DateTime: raw UTF-8 bytes. A NUL character is rejected.
2. Boolean: one byte, 0 or 1.
3. Int32, Int64: big-endian two's complement.
4. Float32, Float64: big-endian IEEE-754 bits.

Byte order matches value order for strings, booleans and non-negative numbers
only; negative numbers sort after positive ones.

A key binding every field is complete and addresses one record. A key binding
a leading subset is a prefix and addresses the range [prefix, upperBound(prefix)).
*/
package constdb
