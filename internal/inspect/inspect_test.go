package inspect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/modelspec"
)

type User struct {
	ID        int64
	Name      string
	Email     *string
	Addresses []*Address
}

func (u *User) Unique() []modelspec.Index {
	return []modelspec.Index{modelspec.Idx(&u.Name)}
}

type Address struct {
	ID       int64
	UserID   int64
	Location string
	Owner    *User
}

func (a *Address) ForeignKeys() []modelspec.ForeignKey {
	return []modelspec.ForeignKey{
		modelspec.FK(&a.UserID, (*User)(nil), "ID", "Owner", "Addresses"),
	}
}

func TestInspect_AutoIncrementPrimaryKeyRule(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	user := result.ModelsByName["User"]
	require.NotNil(t, user)
	assert.Equal(t, []string{"ID"}, user.PrimaryKey)

	idCol := user.FindColumn("ID")
	require.NotNil(t, idCol)
	assert.True(t, idCol.IsAutoIncrementPK)
}

func TestInspect_NullablePointerField(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	user := result.ModelsByName["User"]
	email := user.FindColumn("Email")
	require.NotNil(t, email)
	assert.True(t, email.Nullable)
}

func TestInspect_RelationDetectionAndForeignKeyBinding(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	user := result.ModelsByName["User"]
	addr := result.ModelsByName["Address"]

	require.Len(t, user.Relations, 1)
	assert.Equal(t, "Addresses", user.Relations[0].AttrName)
	assert.Equal(t, core.CardinalityMany, user.Relations[0].Cardinality)
	require.NotNil(t, user.Relations[0].ViaForeignKey)

	require.Len(t, addr.Relations, 1)
	assert.Equal(t, "Owner", addr.Relations[0].AttrName)
	assert.Equal(t, core.CardinalityOne, addr.Relations[0].Cardinality)
	require.NotNil(t, addr.Relations[0].ViaForeignKey)

	require.Len(t, addr.ForeignKeys, 1)
	fk := addr.ForeignKeys[0]
	assert.Equal(t, []string{"UserID"}, fk.FromColumns)
	assert.Equal(t, "User", fk.ToModel)
	assert.Equal(t, []string{"ID"}, fk.ToColumns)
}

func TestInspect_UniqueIndexProbed(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	user := result.ModelsByName["User"]
	require.Len(t, user.Indexes, 1)
	assert.True(t, user.Indexes[0].Unique)
	assert.Equal(t, []string{"Name"}, user.Indexes[0].Columns)
}

func TestInspect_MissingPrimaryKey(t *testing.T) {
	type noKey struct {
		Name string
	}
	_, err := inspect.Inspect(&noKey{})
	require.Error(t, err)
}

func TestInspect_RelationFieldNotTreatedAsColumn(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)
	user := result.ModelsByName["User"]
	assert.Nil(t, user.FindColumn("Addresses"))
}
