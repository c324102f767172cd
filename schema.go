package constdb

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// DataType is the declared type of a primary key field. The set is closed;
// every switch over it in this package is exhaustive.
type DataType uint8

const (
	Unknown DataType = iota
	String
	Boolean
	DateTime
	Int32
	Int64
	Float32
	Float64
)

var dataTypeNames = [...]string{
	Unknown:  "Unknown",
	String:   "String",
	Boolean:  "Boolean",
	DateTime: "DateTime",
	Int32:    "Int32",
	Int64:    "Int64",
	Float32:  "Float32",
	Float64:  "Float64",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// ParseDataType maps a type name to its DataType. Unrecognized names yield Unknown.
func ParseDataType(s string) DataType {
	for i, name := range dataTypeNames {
		if name == s {
			return DataType(i)
		}
	}
	return Unknown
}

// MarshalJSON renders the type by name. DataType deliberately does not implement
// encoding.TextMarshaler so that msgpack keeps storing it as a small integer.
func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DataType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseDataType(s)
		return nil
	}
	var n uint8
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("data type must be a name or a number: %s", data)
	}
	*t = DataType(n)
	return nil
}

// Field is a primary key field definition.
type Field struct {
	Name string   `json:"name" msgpack:"n"`
	Type DataType `json:"type" msgpack:"t"`
}

// TableSettings describes a table: its name and its ordered primary key fields.
type TableSettings struct {
	Name       string  `json:"name" msgpack:"n"`
	PrimaryKey []Field `json:"primary_key" msgpack:"pk"`
}

// KeyFieldNames returns the names of the primary key fields in declared order.
func (ts *TableSettings) KeyFieldNames() []string {
	names := make([]string, len(ts.PrimaryKey))
	for i, f := range ts.PrimaryKey {
		names[i] = f.Name
	}
	return names
}

func (ts *TableSettings) isKeyField(name string) bool {
	for _, f := range ts.PrimaryKey {
		if f.Name == name {
			return true
		}
	}
	return false
}

// validate checks the settings a new table is created with.
func (ts *TableSettings) validate() error {
	if err := validateName("table", ts.Name); err != nil {
		return err
	}
	if len(ts.PrimaryKey) == 0 {
		return invalidArgf("table %s: at least one primary key field is required", ts.Name)
	}
	seen := make(map[string]bool, len(ts.PrimaryKey))
	for i, f := range ts.PrimaryKey {
		if f.Name == "" {
			return invalidArgf("table %s: primary key field #%d has no name", ts.Name, i)
		}
		if seen[f.Name] {
			return invalidArgf("table %s: duplicate primary key field %s", ts.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case String, Boolean, DateTime, Int32, Int64, Float32, Float64:
		case Unknown:
			return invalidArgf("table %s: primary key field %s has unknown type", ts.Name, f.Name)
		default:
			return invalidArgf("table %s: primary key field %s has unsupported type %v", ts.Name, f.Name, f.Type)
		}
	}
	return nil
}

// DBSettings describes a database.
type DBSettings struct {
	Name string `json:"name" msgpack:"n"`
}

// SystemDB is the reserved database holding the catalog.
const SystemDB = "system"

const maxNameLen = 128

// Names double as directory names and as components of catalog keys, so '.'
// and path separators are excluded.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

func validateName(what, name string) error {
	if name == "" {
		return invalidArgf("%s name is empty", what)
	}
	if len(name) > maxNameLen {
		return invalidArgf("%s name is longer than %d bytes", what, maxNameLen)
	}
	if !nameRe.MatchString(name) {
		return invalidArgf("invalid %s name %q: only letters, digits, '_' and '-' are allowed", what, name)
	}
	return nil
}
