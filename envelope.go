package constdb

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Catalog value format: version:8 msgpack-data checksum:64
//
// The checksum is xxhash64 over version and data, big-endian.
const (
	envelopeVer1     = 1
	envelopeSumSize  = 8
	minEnvelopeSize  = 1 + 1 + envelopeSumSize
	envelopeInitSize = 64
)

func encodeCatalogValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(envelopeInitSize)
	buf.WriteByte(envelopeVer1)

	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, invalidStatef(err, "failed to encode %T using MsgPack", v)
	}

	data := buf.Bytes()
	var sum [envelopeSumSize]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(data))
	return append(data, sum[:]...), nil
}

func decodeCatalogValue(raw []byte, v any) error {
	if len(raw) < minEnvelopeSize {
		return invalidStatef(nil, "invalid catalog value: at least %d bytes required, got %d", minEnvelopeSize, len(raw))
	}
	n := len(raw) - envelopeSumSize
	body, sum := raw[:n], raw[n:]
	if body[0] != envelopeVer1 {
		return invalidStatef(nil, "invalid catalog value: unsupported version %d", body[0])
	}
	if binary.BigEndian.Uint64(sum) != xxhash.Sum64(body) {
		return invalidStatef(nil, "invalid catalog value: checksum mismatch in %s", hexstr(raw))
	}

	var r bytes.Reader
	r.Reset(body[1:])
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return invalidStatef(err, "failed to decode msgpack into %T", v)
	}
	return nil
}
