package probe_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/modelspec"
	"ormgen/internal/probe"
)

type address struct {
	ID     int64
	UserID int64
}

func (a *address) PrimaryKey() []any { return []any{&a.ID} }

func (a *address) ForeignKeys() []modelspec.ForeignKey {
	return []modelspec.ForeignKey{
		modelspec.FK(&a.UserID, (*address)(nil), "ID", "Owner", "Addresses"),
	}
}

func TestBuildFieldIndex_ResolvesPrimaryKeyFieldPointer(t *testing.T) {
	instance, idx := probe.BuildFieldIndex(reflect.TypeOf(address{}))
	require.NotNil(t, instance)

	a, ok := instance.(*address)
	require.True(t, ok)

	names, err := probe.PrimaryKey("address", a, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID"}, names)
}

func TestForeignKeys_ResolvesLocalFieldName(t *testing.T) {
	instance, idx := probe.BuildFieldIndex(reflect.TypeOf(address{}))
	a := instance.(*address)

	resolved, err := probe.ForeignKeys("address", a, idx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "UserID", resolved[0].LocalColumn)
	assert.Equal(t, "ID", resolved[0].RemoteColumn)
	assert.Equal(t, "Owner", resolved[0].LocalRelation)
	assert.Equal(t, "Addresses", resolved[0].RemoteRelation)
}

type foreignReceiver struct {
	ID int64
}

func TestResolve_RejectsPointerIntoUnrelatedReceiver(t *testing.T) {
	instance, idx := probe.BuildFieldIndex(reflect.TypeOf(address{}))
	_ = instance

	other := &foreignReceiver{}
	_, err := probe.PrimaryKey("address", keyedFunc(func() []any { return []any{&other.ID} }), idx)
	assert.Error(t, err)
}

type keyedFunc func() []any

func (f keyedFunc) PrimaryKey() []any { return f() }
