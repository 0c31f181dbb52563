// Package typeren renders the portable core.DataType of a column down to the
// concrete text a downstream consumer needs: a SQLite column-type affinity
// for DDL emission, or a Go type expression for the generated client module.
//
// Grounded on internal/dialect/mysql/format.go's small, single-purpose
// formatting helpers (formatColumns, formatValue): one function per
// rendering concern, no shared "renderer" object carrying state.
package typeren

import (
	"fmt"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/ormerr"
)

// SQLiteAffinity returns the column-type affinity used in CREATE TABLE/ALTER
// TABLE statements for col, per spec §4.4's SQLite type-inference rules.
func SQLiteAffinity(col *inspect.ColumnInfo) (string, error) {
	switch col.Type {
	case core.DataTypeInt, core.DataTypeBool:
		return "INTEGER", nil
	case core.DataTypeFloat:
		return "REAL", nil
	case core.DataTypeString, core.DataTypeDatetime:
		return "TEXT", nil
	case core.DataTypeBytes:
		return "BLOB", nil
	case core.DataTypeEnum:
		return enumAffinity(col)
	default:
		return "", ormerr.New(ormerr.CategorySchemaInference, "", "column %s has unrecognized data type %q", col.Name, col.Type).WithColumn(col.Name)
	}
}

// enumAffinity stores an enum by its declared member values' own type: an
// int-backed enum gets INTEGER, a string-backed enum gets TEXT. All members
// must agree on which.
func enumAffinity(col *inspect.ColumnInfo) (string, error) {
	sawInt, sawString := false, false
	for member, v := range col.EnumMapping {
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			sawInt = true
		case string:
			sawString = true
		default:
			return "", ormerr.New(ormerr.CategorySchemaInference, "", "enum column %s member %q has unsupported stored type %T", col.Name, member, v).WithColumn(col.Name)
		}
	}
	switch {
	case sawInt && sawString:
		return "", ormerr.New(ormerr.CategorySchemaInference, "", "enum column %s mixes integer and string member values", col.Name).WithColumn(col.Name)
	case sawInt:
		return "INTEGER", nil
	default:
		return "TEXT", nil
	}
}

// GoType renders the Go type expression text used by the code generator for
// a column's value, e.g. "string", "*string" when nullable, "int64",
// "time.Time", or the enum's own Go type name.
func GoType(col *inspect.ColumnInfo) string {
	base := goScalarType(col)
	if col.Nullable {
		return "*" + base
	}
	return base
}

func goScalarType(col *inspect.ColumnInfo) string {
	if col.Type == core.DataTypeEnum {
		return col.GoType.Name()
	}
	switch col.Type {
	case core.DataTypeInt:
		return "int64"
	case core.DataTypeFloat:
		return "float64"
	case core.DataTypeString:
		return "string"
	case core.DataTypeBool:
		return "bool"
	case core.DataTypeBytes:
		return "[]byte"
	case core.DataTypeDatetime:
		return "time.Time"
	default:
		return "any"
	}
}

// GoZeroLiteral renders a Go literal for col's zero value; a nullable
// column's zero value is nil. internal/codegen does not call it.
func GoZeroLiteral(col *inspect.ColumnInfo) string {
	if col.Nullable {
		return "nil"
	}
	switch col.Type {
	case core.DataTypeInt:
		return "0"
	case core.DataTypeFloat:
		return "0"
	case core.DataTypeString:
		return `""`
	case core.DataTypeBool:
		return "false"
	case core.DataTypeBytes:
		return "nil"
	case core.DataTypeDatetime:
		return "time.Time{}"
	case core.DataTypeEnum:
		return col.GoType.Name() + "(" + fmt.Sprintf("%#v", reflectZero(col)) + ")"
	default:
		return "nil"
	}
}

func reflectZero(col *inspect.ColumnInfo) any {
	switch col.GoType.Kind().String() {
	case "string":
		return ""
	default:
		return 0
	}
}
