package constdb

import (
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func nonNil[T any](v *T) *T {
	if v == nil {
		panic("unexpected nil")
	}
	return v
}

func setup(t testing.TB) *Engine {
	t.Helper()
	return setupAt(t, t.TempDir())
}

func setupAt(t testing.TB, root string) *Engine {
	t.Helper()
	e := must(Open(Settings{Root: root, IsTesting: true}))
	t.Cleanup(func() { e.Close() })
	return e
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func isKind(t testing.TB, err error, kind Kind) {
	if KindOf(err) != kind {
		t.Helper()
		t.Errorf("** got error %v (kind %v), wanted kind %v", err, KindOf(err), kind)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}

func params(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

var ordersTable = TableSettings{
	Name: "orders",
	PrimaryKey: []Field{
		{Name: "region", Type: String},
		{Name: "id", Type: Int64},
	},
}
