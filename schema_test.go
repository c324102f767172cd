package constdb

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDataType_JSON(t *testing.T) {
	deepEqual(t, string(must(json.Marshal(Int64))), `"Int64"`)

	var ts TableSettings
	ensure(json.Unmarshal([]byte(`{"name":"orders","primary_key":[{"name":"region","type":"String"},{"name":"id","type":5}]}`), &ts))
	deepEqual(t, ts, ordersTable)

	var dt DataType
	ensure(json.Unmarshal([]byte(`"Nope"`), &dt))
	deepEqual(t, dt, Unknown)
	if err := json.Unmarshal([]byte(`{}`), &dt); err == nil {
		t.Errorf("unmarshaling an object into DataType succeeded")
	}

	deepEqual(t, DataType(99).String(), "DataType(99)")
}

func TestTableSettings_Validate(t *testing.T) {
	ensure(ordersTable.validate())

	tests := []struct {
		ts  TableSettings
		msg string
	}{
		{TableSettings{Name: "", PrimaryKey: ordersTable.PrimaryKey}, "name is empty"},
		{TableSettings{Name: "a.b", PrimaryKey: ordersTable.PrimaryKey}, "invalid table name"},
		{TableSettings{Name: "t"}, "at least one primary key field"},
		{TableSettings{Name: "t", PrimaryKey: []Field{{Name: "", Type: String}}}, "has no name"},
		{TableSettings{Name: "t", PrimaryKey: []Field{{Name: "a", Type: String}, {Name: "a", Type: Int32}}}, "duplicate"},
		{TableSettings{Name: "t", PrimaryKey: []Field{{Name: "a", Type: Unknown}}}, "unknown type"},
		{TableSettings{Name: "t", PrimaryKey: []Field{{Name: "a", Type: DataType(42)}}}, "unsupported type"},
	}
	for _, tt := range tests {
		err := tt.ts.validate()
		isKind(t, err, KindInvalidArgument)
		if err != nil && !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("validate(%+v) = %q, wanted it to mention %q", tt.ts, err, tt.msg)
		}
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"shop", "Shop_2", "_x", "a-b", "9", strings.Repeat("a", maxNameLen)} {
		ensure(validateName("database", name))
	}
	for _, name := range []string{"", "-a", "a.b", "a/b", "..", "a b", "é", strings.Repeat("a", maxNameLen+1)} {
		isKind(t, validateName("database", name), KindInvalidArgument)
	}
}
