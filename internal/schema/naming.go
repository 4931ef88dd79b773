package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// MaxIdentifierLength is the longest name generated for a constraint or index,
// matching the postgres NAMEDATALEN limit.
const MaxIdentifierLength = 63

// ConstraintName returns the deterministic name for an unnamed constraint.
//
//	primary key  <table>_pkey
//	unique       <table>_<cols>_key
//	foreign key  <table>_<cols>_fkey
//	check        <table>_<col>_check, or <table>_check for table checks
//
// taken reports names already in use within the table; collisions get a
// numeric suffix starting at 1.
func ConstraintName(table string, kind ConstraintKind, columns []string, taken func(string) bool) string {
	var label string
	switch kind {
	case PrimaryKey:
		label = table + "_pkey"
	case Unique:
		label = joinLabel(table, columns, "key")
	case ForeignKey:
		label = joinLabel(table, columns, "fkey")
	case Check:
		label = joinLabel(table, columns, "check")
	default:
		label = table + "_constraint"
	}
	return unique(label, taken)
}

// IndexName returns the deterministic name for an unnamed index,
// <table>_<cols>_idx. Expression columns contribute "expr".
func IndexName(table string, columns []string, taken func(string) bool) string {
	return unique(joinLabel(table, columns, "idx"), taken)
}

func joinLabel(table string, columns []string, suffix string) string {
	parts := make([]string, 0, len(columns)+2)
	parts = append(parts, table)
	for _, c := range columns {
		if strings.HasPrefix(c, "(") {
			c = "expr"
		}
		parts = append(parts, c)
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "_")
}

func unique(label string, taken func(string) bool) string {
	for n := 0; ; n++ {
		candidate := label
		if n > 0 {
			candidate = label + strconv.Itoa(n)
		}
		candidate = fit(candidate)
		if taken == nil || !taken(candidate) {
			return candidate
		}
	}
}

// fit shortens names over the identifier limit, keeping them distinct by
// appending a hash of the full label.
func fit(label string) string {
	if len(label) <= MaxIdentifierLength {
		return label
	}
	sum := fmt.Sprintf("%08x", uint32(xxh3.HashString(label)))
	return label[:MaxIdentifierLength-len(sum)-1] + "_" + sum
}
