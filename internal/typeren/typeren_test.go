package typeren_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/typeren"
)

type status int

func (status) EnumValues() map[string]any {
	return map[string]any{"Active": status(0), "Archived": status(1)}
}

func col(dt core.DataType, nullable bool) *inspect.ColumnInfo {
	return &inspect.ColumnInfo{Name: "X", Type: dt, Nullable: nullable, GoType: reflect.TypeOf(int64(0))}
}

func TestSQLiteAffinity_MapsEachPortableType(t *testing.T) {
	cases := map[core.DataType]string{
		core.DataTypeInt:      "INTEGER",
		core.DataTypeBool:     "INTEGER",
		core.DataTypeFloat:    "REAL",
		core.DataTypeString:   "TEXT",
		core.DataTypeDatetime: "TEXT",
		core.DataTypeBytes:    "BLOB",
	}
	for dt, want := range cases {
		got, err := typeren.SQLiteAffinity(col(dt, false))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSQLiteAffinity_EnumFollowsMemberStorageType(t *testing.T) {
	intEnum := &inspect.ColumnInfo{
		Name: "Status", Type: core.DataTypeEnum,
		EnumMapping: map[string]any{"Active": int64(0), "Archived": int64(1)},
	}
	got, err := typeren.SQLiteAffinity(intEnum)
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", got)

	strEnum := &inspect.ColumnInfo{
		Name: "Status", Type: core.DataTypeEnum,
		EnumMapping: map[string]any{"Active": "active", "Archived": "archived"},
	}
	got, err = typeren.SQLiteAffinity(strEnum)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", got)
}

func TestSQLiteAffinity_MixedEnumMembersIsAnError(t *testing.T) {
	mixed := &inspect.ColumnInfo{
		Name: "Status", Type: core.DataTypeEnum,
		EnumMapping: map[string]any{"Active": int64(0), "Archived": "archived"},
	}
	_, err := typeren.SQLiteAffinity(mixed)
	assert.Error(t, err)
}

func TestGoType_NullableScalarIsPointer(t *testing.T) {
	assert.Equal(t, "string", typeren.GoType(col(core.DataTypeString, false)))
	assert.Equal(t, "*string", typeren.GoType(col(core.DataTypeString, true)))
	assert.Equal(t, "int64", typeren.GoType(col(core.DataTypeInt, false)))
	assert.Equal(t, "time.Time", typeren.GoType(col(core.DataTypeDatetime, false)))
}

func TestGoType_EnumUsesItsOwnGoTypeName(t *testing.T) {
	c := &inspect.ColumnInfo{Name: "Status", Type: core.DataTypeEnum, GoType: reflect.TypeOf(status(0))}
	assert.Equal(t, "status", typeren.GoType(c))
}

func TestGoZeroLiteral_NullableIsAlwaysNil(t *testing.T) {
	assert.Equal(t, "nil", typeren.GoZeroLiteral(col(core.DataTypeString, true)))
}

func TestGoZeroLiteral_PerTypeZeroValue(t *testing.T) {
	assert.Equal(t, "0", typeren.GoZeroLiteral(col(core.DataTypeInt, false)))
	assert.Equal(t, `""`, typeren.GoZeroLiteral(col(core.DataTypeString, false)))
	assert.Equal(t, "false", typeren.GoZeroLiteral(col(core.DataTypeBool, false)))
	assert.Equal(t, "time.Time{}", typeren.GoZeroLiteral(col(core.DataTypeDatetime, false)))
}

func TestGoZeroLiteral_StringBackedEnumIsValidGoSyntax(t *testing.T) {
	type kind string
	c := &inspect.ColumnInfo{Name: "Kind", Type: core.DataTypeEnum, GoType: reflect.TypeOf(kind(""))}
	assert.Equal(t, `kind("")`, typeren.GoZeroLiteral(c))
}

func TestGoZeroLiteral_IntBackedEnumIsValidGoSyntax(t *testing.T) {
	c := &inspect.ColumnInfo{Name: "Status", Type: core.DataTypeEnum, GoType: reflect.TypeOf(status(0))}
	assert.Equal(t, "status(0)", typeren.GoZeroLiteral(c))
}
