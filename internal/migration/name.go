package migration

import (
	"slices"
	"strings"

	"github.com/tordrt/sqlschema/internal/diff"
)

// DefaultNameLength is the length GenerateName trims to
const DefaultNameLength = 50

// FallbackName is used when no name can be generated
const FallbackName = "generated_migration"

// GenerateName describes ops as a migration name such as
// "create_posts__alter_users_add_email". Parts that would push the name past
// maxLen are dropped and replaced by a trailing "__etc".
func GenerateName(ops []diff.Operation, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultNameLength
	}

	created := make(map[string]bool)
	dropped := make(map[string]bool)
	for _, op := range ops {
		switch op.Kind {
		case diff.CreateTable:
			created[op.Table] = true
		case diff.DropTable:
			dropped[op.Table] = true
		}
	}

	var parts []string
	alters := make(map[string]int)
	columns := make(map[string][]string)
	for _, op := range ops {
		switch {
		case op.Kind == diff.CreateTable:
			parts = append(parts, "create_"+op.Table)
		case op.Kind == diff.DropTable:
			parts = append(parts, "drop_"+op.Table)
		case op.Kind == diff.CreateExtension:
			parts = append(parts, "create_extension_"+op.Extension)
		case op.Kind == diff.DropExtension:
			parts = append(parts, "drop_extension_"+op.Extension)
		case op.Kind == diff.CreateType:
			parts = append(parts, "create_type_"+op.Type.Name)
		case op.Kind == diff.DropType:
			parts = append(parts, "drop_type_"+op.Type.Name)
		case op.Kind == diff.AddEnumValue || op.Kind == diff.ReplaceType:
			if part := "alter_type_" + op.Type.Name; !slices.Contains(parts, part) {
				parts = append(parts, part)
			}
		case created[op.Table] || dropped[op.Table]:
			// part of a table that is created or dropped as a whole
		case op.Kind == diff.CreateIndex:
			parts = append(parts, "create_"+op.Table+"_"+op.Index.Name)
		case op.Kind == diff.DropIndex:
			parts = append(parts, "drop_index_"+op.Index.Name)
		default:
			i, ok := alters[op.Table]
			if !ok {
				i = len(parts)
				alters[op.Table] = i
				parts = append(parts, "")
			}
			if part := columnPart(op); part != "" && !slices.Contains(columns[op.Table], part) {
				columns[op.Table] = append(columns[op.Table], part)
			}
		}
	}
	for table, i := range alters {
		cols := columns[table]
		if len(cols) == 0 || len(cols) > 2 {
			parts[i] = "alter_" + table
		} else {
			parts[i] = "alter_" + table + "_" + strings.Join(cols, "_")
		}
	}

	name := strings.Join(parts, "__")
	trimmed := false
	for len(name) > maxLen && len(parts) > 0 {
		parts = parts[:len(parts)-1]
		name = strings.Join(parts, "__")
		trimmed = true
	}
	if trimmed {
		if name == "" {
			return "etc"
		}
		name += "__etc"
	}
	if name == "" {
		return FallbackName
	}
	return name
}

func columnPart(op diff.Operation) string {
	switch op.Kind {
	case diff.AddColumn:
		return "add_" + op.Column.Name
	case diff.DropColumn:
		return "drop_" + op.Column.Name
	case diff.AlterColumnType, diff.AlterColumnNullability, diff.AlterColumnDefault, diff.AlterColumnIdentity:
		return "alter_" + op.Column.Name
	}
	return ""
}
