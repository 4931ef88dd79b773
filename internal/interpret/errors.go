package interpret

import (
	"errors"
	"fmt"

	"github.com/tordrt/sqlschema/internal/ddl"
)

// Error kinds, matched with errors.Is
var (
	ErrDuplicateTable       = errors.New("duplicate table")
	ErrDuplicateColumn      = errors.New("duplicate column")
	ErrDuplicateConstraint  = errors.New("duplicate constraint")
	ErrDuplicateIndex       = errors.New("duplicate index")
	ErrUnknownTable         = errors.New("unknown table")
	ErrUnknownColumn        = errors.New("unknown column")
	ErrUnknownConstraint    = errors.New("unknown constraint")
	ErrUnknownIndex         = errors.New("unknown index")
	ErrDuplicateType        = errors.New("duplicate type")
	ErrUnknownType          = errors.New("unknown type")
	ErrDuplicateValue       = errors.New("duplicate enum label")
	ErrUnknownValue         = errors.New("unknown enum label")
	ErrDuplicateExtension   = errors.New("duplicate extension")
	ErrUnknownExtension     = errors.New("unknown extension")
	ErrDependentObjects     = errors.New("other objects depend on it")
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// Error is returned when a statement cannot be applied to the model.
// For a foreign key whose target is missing, Table and Object name the
// owning constraint and Ref the missing table or column.
type Error struct {
	Kind   error
	Table  string
	Object string
	Ref    string
	Source ddl.Source
}

func (e *Error) Error() string {
	subject := e.Table
	if e.Object != "" {
		if subject != "" {
			subject += "."
		}
		subject += e.Object
	}
	msg := e.Kind.Error()
	switch {
	case e.Ref != "":
		msg = fmt.Sprintf("%s %q referenced by %q", msg, e.Ref, subject)
	case subject != "":
		msg = fmt.Sprintf("%s %q", msg, subject)
	}
	if e.Source.Line > 0 {
		loc := fmt.Sprintf("line %d", e.Source.Line)
		if e.Source.File != "" {
			loc = fmt.Sprintf("%s:%d", e.Source.File, e.Source.Line)
		}
		msg = loc + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}
