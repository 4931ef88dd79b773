package diff

import (
	"fmt"

	"github.com/tordrt/sqlschema/internal/schema"
)

// Kind identifies the variant of an Operation
type Kind int

const (
	CreateTable Kind = iota + 1
	DropTable
	AddColumn
	DropColumn
	AlterColumnType
	AlterColumnNullability
	AlterColumnDefault
	AddConstraint
	DropConstraint
	CreateIndex
	DropIndex
	AlterColumnIdentity
	CreateExtension
	DropExtension
	CreateType
	DropType
	AddEnumValue
	ReplaceType
)

var kindNames = map[Kind]string{
	CreateTable:            "CreateTable",
	DropTable:              "DropTable",
	AddColumn:              "AddColumn",
	DropColumn:             "DropColumn",
	AlterColumnType:        "AlterColumnType",
	AlterColumnNullability: "AlterColumnNullability",
	AlterColumnDefault:     "AlterColumnDefault",
	AddConstraint:          "AddConstraint",
	DropConstraint:         "DropConstraint",
	CreateIndex:            "CreateIndex",
	DropIndex:              "DropIndex",
	AlterColumnIdentity:    "AlterColumnIdentity",
	CreateExtension:        "CreateExtension",
	DropExtension:          "DropExtension",
	CreateType:             "CreateType",
	DropType:               "DropType",
	AddEnumValue:           "AddEnumValue",
	ReplaceType:            "ReplaceType",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Operation is one schema change. Only the fields relevant to Kind are set:
//
//	CreateTable, DropTable          Def (columns and non foreign key constraints)
//	AddColumn, DropColumn           Column
//	AlterColumn*                    Column (after) and OldColumn (before)
//	AddConstraint, DropConstraint   Constraint
//	CreateIndex, DropIndex          Index
//	CreateExtension, DropExtension  Extension
//	CreateType, DropType            Type
//	AddEnumValue                    Type (after), OldType (before), Label, Before
//	ReplaceType                     Type (after), OldType (before), Columns
//
// Extension and type operations leave Table empty.
type Operation struct {
	Kind       Kind
	Table      string
	Def        *schema.Table
	Column     *schema.Column
	OldColumn  *schema.Column
	Constraint *schema.Constraint
	Index      *schema.Index

	Extension string
	Type      *schema.EnumType
	OldType   *schema.EnumType
	Label     string
	// Before is the existing label a new one is inserted ahead of; empty
	// appends it.
	Before string
	// Columns are converted to the replacement type.
	Columns []schema.ColumnRef
}

// Object returns the name of the object the operation changes
func (op Operation) Object() string {
	switch {
	case op.Column != nil:
		return op.Column.Name
	case op.Constraint != nil:
		return op.Constraint.Name
	case op.Index != nil:
		return op.Index.Name
	case op.Kind == AddEnumValue:
		return op.Label
	case op.Type != nil:
		return op.Type.Name
	case op.Extension != "":
		return op.Extension
	default:
		return op.Table
	}
}

func (op Operation) String() string {
	switch op.Kind {
	case CreateTable, DropTable:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Table)
	case CreateExtension, DropExtension, CreateType, DropType, ReplaceType:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Object())
	case AddEnumValue:
		return fmt.Sprintf("%s(%s.%s)", op.Kind, op.Type.Name, op.Label)
	default:
		return fmt.Sprintf("%s(%s.%s)", op.Kind, op.Table, op.Object())
	}
}

// Inverse returns the operation that undoes op
func (op Operation) Inverse() Operation {
	inv := op
	switch op.Kind {
	case CreateTable:
		inv.Kind = DropTable
	case DropTable:
		inv.Kind = CreateTable
	case AddColumn:
		inv.Kind = DropColumn
	case DropColumn:
		inv.Kind = AddColumn
	case AlterColumnType, AlterColumnNullability, AlterColumnDefault, AlterColumnIdentity:
		inv.Column, inv.OldColumn = op.OldColumn, op.Column
	case AddConstraint:
		inv.Kind = DropConstraint
	case DropConstraint:
		inv.Kind = AddConstraint
	case CreateIndex:
		inv.Kind = DropIndex
	case DropIndex:
		inv.Kind = CreateIndex
	case CreateExtension:
		inv.Kind = DropExtension
	case DropExtension:
		inv.Kind = CreateExtension
	case CreateType:
		inv.Kind = DropType
	case DropType:
		inv.Kind = CreateType
	case AddEnumValue:
		// labels cannot be removed in place
		inv = Operation{Kind: ReplaceType, Type: op.OldType, OldType: op.Type}
	case ReplaceType:
		inv.Type, inv.OldType = op.OldType, op.Type
	}
	return inv
}

// IsForeignKey reports whether the operation adds or drops a foreign key
func (op Operation) IsForeignKey() bool {
	return op.Constraint != nil && op.Constraint.Kind == schema.ForeignKey && op.Constraint.References != nil
}
