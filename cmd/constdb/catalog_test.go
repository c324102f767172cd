package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andreyvit/constdb"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestCatalog(t *testing.T) {
	engine := must(constdb.Open(constdb.Settings{InMemory: true}))
	defer engine.Close()
	must(engine.CreateDatabase("shop"))
	must(engine.CreateDatabase("empty"))
	must(engine.CreateTable("shop", constdb.TableSettings{
		Name:       "orders",
		PrimaryKey: []constdb.Field{{Name: "region", Type: constdb.String}, {Name: "id", Type: constdb.Int64}},
	}))
	if err := engine.Insert("shop", "orders", []byte(`{"region":"eu","id":1}`)); err != nil {
		t.Fatal(err)
	}

	dbs := must(collectCatalog(engine, nil))
	if len(dbs) != 2 || dbs[0].Name != "empty" || dbs[1].Name != "shop" {
		t.Fatalf("collectCatalog = %+v", dbs)
	}
	if len(dbs[1].Tables) != 1 || dbs[1].Tables[0].Records != 1 {
		t.Fatalf("shop tables = %+v", dbs[1].Tables)
	}

	var buf bytes.Buffer
	if err := printCatalog(&buf, dbs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"DATABASE", "region:String,id:Int64", "empty"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	only := must(collectCatalog(engine, []string{"shop"}))
	if len(only) != 1 || only[0].Name != "shop" {
		t.Errorf("collectCatalog(shop) = %+v", only)
	}
	if _, err := collectCatalog(engine, []string{"nope"}); err == nil {
		t.Errorf("collectCatalog(nope) succeeded")
	}
}

func TestWrapString(t *testing.T) {
	s := wrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(s, "\n") {
		if len(line) > wrapAt {
			t.Errorf("line %q longer than %d", line, wrapAt)
		}
	}
}
