package constdb

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine failures. The HTTP surface maps kinds to status codes.
type Kind int

const (
	KindAlreadyExists Kind = iota + 1
	KindNotFound
	KindInvalidArgument
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindAlreadyExists:
		return "already exists"
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidState:
		return "invalid state"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is; an *Error matches the sentinel of its kind.
var (
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
)

// EntityKind says what an Entity refers to.
type EntityKind int

const (
	EntityNone EntityKind = iota
	EntityDatabase
	EntityTable
	EntityData
)

// Entity identifies the subject of an AlreadyExists or NotFound error.
type Entity struct {
	Kind  EntityKind
	DB    string
	Table string
}

func databaseEntity(db string) Entity {
	return Entity{Kind: EntityDatabase, DB: db}
}

func tableEntity(db, table string) Entity {
	return Entity{Kind: EntityTable, DB: db, Table: table}
}

var dataEntity = Entity{Kind: EntityData}

func (id Entity) String() string {
	switch id.Kind {
	case EntityDatabase:
		return "database[" + id.DB + "]"
	case EntityTable:
		return "table[" + id.DB + "." + id.Table + "]"
	case EntityData:
		return "data"
	default:
		return ""
	}
}

// Error is the error type returned by Engine operations.
type Error struct {
	Kind   Kind
	Entity Entity
	Msg    string
	Err    error
}

func alreadyExistsErr(id Entity) error {
	return &Error{Kind: KindAlreadyExists, Entity: id}
}

func notFoundErr(id Entity) error {
	return &Error{Kind: KindNotFound, Entity: id}
}

func invalidArgf(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func invalidStatef(err error, format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNotFound) and friends work on any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity.Kind == EntityNone && t.Msg == "" && t.Err == nil
}

func (e *Error) Error() string {
	var buf strings.Builder
	switch e.Kind {
	case KindAlreadyExists, KindNotFound:
		if s := e.Entity.String(); s != "" {
			buf.WriteString(s)
			buf.WriteByte(' ')
		}
		buf.WriteString(e.Kind.String())
		if e.Msg != "" {
			buf.WriteString(": ")
			buf.WriteString(e.Msg)
		}
	default:
		if e.Msg != "" {
			buf.WriteString(e.Msg)
		} else {
			buf.WriteString(e.Kind.String())
		}
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// KindOf returns the kind of the first *Error in err's chain, or KindInvalidState
// for foreign errors. It returns 0 for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvalidState
}

// wrapStoreErr turns backend failures into InvalidState, leaving *Error values alone.
func wrapStoreErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return invalidStatef(err, format, args...)
}
