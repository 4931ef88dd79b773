// Package ddl defines the closed set of DDL statements understood by the
// interpreter. The parser adapter produces these values; nothing outside this
// package can add a new statement kind.
package ddl

import "github.com/tordrt/sqlschema/internal/schema"

// Source locates a statement in its input for diagnostics
type Source struct {
	File string
	Line int
	Text string
}

// Statement is one parsed DDL statement
type Statement interface {
	Source() Source
	statement()
}

// ColumnDef is a column as written in CREATE TABLE or ADD COLUMN
type ColumnDef struct {
	Name     string
	Type     string
	NotNull  bool
	Default  *string
	Identity string // schema.IdentityAlways, schema.IdentityByDefault or empty
}

// CreateTable is CREATE TABLE with inline constraints hoisted to the table.
// Constraints may be unnamed.
type CreateTable struct {
	Src         Source
	Name        string
	IfNotExists bool
	Columns     []ColumnDef
	Constraints []schema.Constraint
}

// AlterTable is ALTER TABLE with one or more actions applied in order
type AlterTable struct {
	Src      Source
	Table    string
	IfExists bool
	Actions  []AlterAction
}

// CreateIndex is CREATE [UNIQUE] INDEX. Index.Name may be empty.
type CreateIndex struct {
	Src         Source
	Index       schema.Index
	IfNotExists bool
}

// DropTable is DROP TABLE with one or more names
type DropTable struct {
	Src      Source
	Names    []string
	IfExists bool
	Cascade  bool
}

// DropIndex is DROP INDEX with one or more names
type DropIndex struct {
	Src      Source
	Names    []string
	IfExists bool
}

// CreateType is CREATE TYPE ... AS ENUM
type CreateType struct {
	Src    Source
	Name   string
	Labels []string
}

// AddEnumValue is ALTER TYPE ... ADD VALUE. At most one of Before and After
// is set; without either the label is appended.
type AddEnumValue struct {
	Src         Source
	Type        string
	Label       string
	Before      string
	After       string
	IfNotExists bool
}

// RenameEnumValue is ALTER TYPE ... RENAME VALUE
type RenameEnumValue struct {
	Src  Source
	Type string
	Old  string
	New  string
}

// RenameType is ALTER TYPE ... RENAME TO
type RenameType struct {
	Src      Source
	Old      string
	New      string
	IfExists bool
}

// DropType is DROP TYPE with one or more names
type DropType struct {
	Src      Source
	Names    []string
	IfExists bool
	Cascade  bool
}

type CreateExtension struct {
	Src         Source
	Name        string
	IfNotExists bool
}

type DropExtension struct {
	Src      Source
	Names    []string
	IfExists bool
	Cascade  bool
}

// Unsupported is any statement the interpreter cannot apply
type Unsupported struct {
	Src  Source
	Kind string
}

func (s *CreateTable) Source() Source     { return s.Src }
func (s *AlterTable) Source() Source      { return s.Src }
func (s *CreateIndex) Source() Source     { return s.Src }
func (s *DropTable) Source() Source       { return s.Src }
func (s *DropIndex) Source() Source       { return s.Src }
func (s *CreateType) Source() Source      { return s.Src }
func (s *AddEnumValue) Source() Source    { return s.Src }
func (s *RenameEnumValue) Source() Source { return s.Src }
func (s *RenameType) Source() Source      { return s.Src }
func (s *DropType) Source() Source        { return s.Src }
func (s *CreateExtension) Source() Source { return s.Src }
func (s *DropExtension) Source() Source   { return s.Src }
func (s *Unsupported) Source() Source     { return s.Src }

func (*CreateTable) statement()     {}
func (*AlterTable) statement()      {}
func (*CreateIndex) statement()     {}
func (*DropTable) statement()       {}
func (*DropIndex) statement()       {}
func (*CreateType) statement()      {}
func (*AddEnumValue) statement()    {}
func (*RenameEnumValue) statement() {}
func (*RenameType) statement()      {}
func (*DropType) statement()        {}
func (*CreateExtension) statement() {}
func (*DropExtension) statement()   {}
func (*Unsupported) statement()     {}

// AlterAction is one sub-command of ALTER TABLE
type AlterAction interface {
	alterAction()
}

// AddColumn appends a column. Constraints declared inline on the column are
// carried separately and may be unnamed.
type AddColumn struct {
	Column      ColumnDef
	Constraints []schema.Constraint
	IfNotExists bool
}

type DropColumn struct {
	Name     string
	IfExists bool
	Cascade  bool
}

type SetColumnType struct {
	Column string
	Type   string
}

// SetNotNull is SET NOT NULL when NotNull is true and DROP NOT NULL otherwise
type SetNotNull struct {
	Column  string
	NotNull bool
}

// SetDefault is SET DEFAULT, or DROP DEFAULT when Default is nil
type SetDefault struct {
	Column  string
	Default *string
}

type AddConstraint struct {
	Constraint schema.Constraint
}

type DropConstraint struct {
	Name     string
	IfExists bool
	Cascade  bool
}

type RenameColumn struct {
	Old string
	New string
}

type RenameTable struct {
	New string
}

// AddIdentity is ALTER COLUMN ... ADD GENERATED ... AS IDENTITY
type AddIdentity struct {
	Column   string
	Identity string
}

// SetIdentity is ALTER COLUMN ... SET GENERATED
type SetIdentity struct {
	Column   string
	Identity string
}

type DropIdentity struct {
	Column   string
	IfExists bool
}

// UnsupportedAction is an ALTER TABLE sub-command the interpreter cannot apply
type UnsupportedAction struct {
	Kind string
}

func (*AddColumn) alterAction()         {}
func (*DropColumn) alterAction()        {}
func (*SetColumnType) alterAction()     {}
func (*SetNotNull) alterAction()        {}
func (*SetDefault) alterAction()        {}
func (*AddConstraint) alterAction()     {}
func (*DropConstraint) alterAction()    {}
func (*RenameColumn) alterAction()      {}
func (*RenameTable) alterAction()       {}
func (*AddIdentity) alterAction()       {}
func (*SetIdentity) alterAction()       {}
func (*DropIdentity) alterAction()      {}
func (*UnsupportedAction) alterAction() {}
