package constdb

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// keyTerminator follows every encoded field so that a shorter value of a
// variable-length field never reads as a prefix of a longer one.
const keyTerminator = 0x00

// KeyShape tells whether a primary key binds every key field.
type KeyShape int

const (
	// Complete keys bind all key fields and address exactly one record.
	Complete KeyShape = iota + 1
	// Prefix keys bind a leading subset of key fields and address a range.
	Prefix
)

func (s KeyShape) String() string {
	switch s {
	case Complete:
		return "complete"
	case Prefix:
		return "prefix"
	default:
		return "invalid"
	}
}

// PrimaryKey is an encoded primary key together with its shape.
type PrimaryKey struct {
	Shape KeyShape
	Bytes []byte
}

// Complete returns the key bytes, or InvalidArgument if only a prefix is bound.
func (pk PrimaryKey) Complete() ([]byte, error) {
	if pk.Shape != Complete {
		return nil, invalidArgf("primary key not complete")
	}
	return pk.Bytes, nil
}

func (pk PrimaryKey) String() string {
	return pk.Shape.String() + ":" + hexstr(pk.Bytes)
}

// encodeField appends the order-preserving encoding of v as type t.
//
// Integers and floats use plain big-endian two's complement and IEEE-754 bits,
// so negative values sort after positive ones. Existing data depends on this
// layout; it is a known limitation rather than something to flip here.
func encodeField(buf []byte, name string, v any, t DataType) ([]byte, error) {
	switch t {
	case String, DateTime:
		s, ok := v.(string)
		if !ok {
			return nil, invalidArgf("key field %s: %v requires a string, got %s", name, t, describeValue(v))
		}
		if strings.IndexByte(s, keyTerminator) >= 0 {
			return nil, invalidArgf("key field %s: %v cannot contain NUL characters", name, t)
		}
		return appendString(buf, s), nil
	case Boolean:
		var b bool
		switch x := v.(type) {
		case bool:
			b = x
		case string:
			var err error
			b, err = strconv.ParseBool(x)
			if err != nil {
				return nil, invalidArgf("key field %s: invalid Boolean %q", name, x)
			}
		default:
			return nil, invalidArgf("key field %s: Boolean requires true or false, got %s", name, describeValue(v))
		}
		if b {
			return appendUint8(buf, 1), nil
		}
		return appendUint8(buf, 0), nil
	case Int32:
		n, err := parseIntValue(name, v, 32)
		if err != nil {
			return nil, err
		}
		return appendUint32(buf, uint32(int32(n))), nil
	case Int64:
		n, err := parseIntValue(name, v, 64)
		if err != nil {
			return nil, err
		}
		return appendUint64(buf, uint64(n)), nil
	case Float32:
		f, err := parseFloatValue(name, v, 32)
		if err != nil {
			return nil, err
		}
		return appendUint32(buf, math.Float32bits(float32(f))), nil
	case Float64:
		f, err := parseFloatValue(name, v, 64)
		if err != nil {
			return nil, err
		}
		return appendUint64(buf, math.Float64bits(f)), nil
	case Unknown:
		return nil, invalidArgf("key field %s has unknown type", name)
	default:
		return nil, invalidArgf("key field %s has unsupported type %v", name, t)
	}
}

func numericLiteral(v any) (string, bool) {
	switch x := v.(type) {
	case json.Number:
		return string(x), true
	case string:
		return x, true
	default:
		return "", false
	}
}

func parseIntValue(name string, v any, bits int) (int64, error) {
	s, ok := numericLiteral(v)
	if !ok {
		return 0, invalidArgf("key field %s: Int%d requires a number, got %s", name, bits, describeValue(v))
	}
	n, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, invalidArgf("key field %s: invalid Int%d %q", name, bits, s)
	}
	return n, nil
}

func parseFloatValue(name string, v any, bits int) (float64, error) {
	s, ok := numericLiteral(v)
	if !ok {
		return 0, invalidArgf("key field %s: Float%d requires a number, got %s", name, bits, describeValue(v))
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, invalidArgf("key field %s: invalid Float%d %q", name, bits, s)
	}
	return f, nil
}

func describeValue(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return "an unsupported value"
	}
}

// decodeObject parses a JSON object, keeping numbers as json.Number so that
// 64-bit integers survive the round trip.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalidArgf("malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, invalidArgf("malformed JSON: unexpected data after the top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalidArgf("only JSON objects are supported, got %s", describeValue(v))
	}
	return obj, nil
}

// buildKeyFromRecord derives the complete key of a full record. Every key
// field must be present.
func buildKeyFromRecord(record []byte, fields []Field) (PrimaryKey, error) {
	obj, err := decodeObject(record)
	if err != nil {
		return PrimaryKey{}, err
	}
	var buf []byte
	for _, f := range fields {
		v, found := obj[f.Name]
		if !found {
			return PrimaryKey{}, invalidArgf("cannot find primary key field %s", f.Name)
		}
		buf, err = encodeField(buf, f.Name, v, f.Type)
		if err != nil {
			return PrimaryKey{}, err
		}
		buf = appendUint8(buf, keyTerminator)
	}
	return PrimaryKey{Shape: Complete, Bytes: buf}, nil
}

// buildKeyFromParams encodes key fields in declared order up to the first one
// missing from params. Anything bound after that gap is ignored.
func buildKeyFromParams(params map[string]string, fields []Field) (PrimaryKey, error) {
	var buf []byte
	var bound int
	for _, f := range fields {
		s, found := params[f.Name]
		if !found {
			break
		}
		var err error
		buf, err = encodeField(buf, f.Name, s, f.Type)
		if err != nil {
			return PrimaryKey{}, err
		}
		buf = appendUint8(buf, keyTerminator)
		bound++
	}
	if bound < len(fields) {
		return PrimaryKey{Shape: Prefix, Bytes: buf}, nil
	}
	return PrimaryKey{Shape: Complete, Bytes: buf}, nil
}

// mergeRecord applies a shallow patch to an existing record. Primary key
// fields cannot be patched: the record would no longer live under its key.
func mergeRecord(existing, patch []byte, ts *TableSettings) ([]byte, error) {
	obj, err := decodeObject(existing)
	if err != nil {
		return nil, err
	}
	changes, err := decodeObject(patch)
	if err != nil {
		return nil, err
	}
	for k := range changes {
		if ts.isKeyField(k) {
			return nil, invalidArgf("cannot update primary key field %s", k)
		}
	}
	for k, v := range changes {
		obj[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, invalidStatef(err, "serialization failed")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
