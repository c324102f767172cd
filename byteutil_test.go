package constdb

import (
	"bytes"
	"testing"
)

func TestByteUtil_AppendHelpers(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !bytes.Equal(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}

	buf = appendString(nil, "ab")
	buf = appendUint8(buf, 0x01)
	buf = appendUint32(buf, 0x02030405)
	buf = appendUint64(buf, 0x060708090A0B0C0D)
	if e := x("6162 01 02030405 060708090A0B0C0D"); !bytes.Equal(buf, e) {
		t.Fatalf("append = %x, wanted %x", buf, e)
	}
}

func TestByteUtil_EnsureCapacity(t *testing.T) {
	buf := ensureCapacity([]byte{1, 2}, 100)
	if cap(buf) < 100 || !bytes.Equal(buf, []byte{1, 2}) {
		t.Fatalf("ensureCapacity = %x (cap %d), wanted 0102 with cap >= 100", buf, cap(buf))
	}
	same := ensureCapacity(buf, 10)
	if &same[0] != &buf[0] {
		t.Fatalf("ensureCapacity reallocated although capacity was sufficient")
	}
}

func TestUpperBound(t *testing.T) {
	tests := []struct {
		prefix string
		upper  string
		ok     bool
	}{
		{"01", "02", true},
		{"0102", "0103", true},
		{"01FF", "02", true},
		{"01FFFF", "02", true},
		{"FE", "FF", true},
		{"FFFF", "", false},
		{"FF", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		prefix := x(tt.prefix)
		orig := bytes.Clone(prefix)
		upper, ok := upperBound(prefix)
		if ok != tt.ok {
			t.Errorf("upperBound(%s) ok = %v, wanted %v", tt.prefix, ok, tt.ok)
			continue
		}
		if ok && !bytes.Equal(upper, x(tt.upper)) {
			t.Errorf("upperBound(%s) = %x, wanted %s", tt.prefix, upper, tt.upper)
		}
		if !bytes.Equal(prefix, orig) {
			t.Errorf("upperBound(%s) modified its input to %x", tt.prefix, prefix)
		}
	}
}

func TestUpperBound_CoversPrefixedKeys(t *testing.T) {
	prefix := x("6100")
	upper, ok := upperBound(prefix)
	if !ok {
		t.Fatal("no upper bound")
	}
	inside := [][]byte{x("6100"), x("610000"), x("6100FF"), x("6100FFFFFF")}
	for _, k := range inside {
		if bytes.Compare(k, prefix) < 0 || bytes.Compare(k, upper) >= 0 {
			t.Errorf("%x not in [%x, %x)", k, prefix, upper)
		}
	}
	outside := [][]byte{x("6101"), x("62"), x("61")}
	for _, k := range outside {
		if bytes.Compare(k, prefix) >= 0 && bytes.Compare(k, upper) < 0 {
			t.Errorf("%x unexpectedly in [%x, %x)", k, prefix, upper)
		}
	}
}
