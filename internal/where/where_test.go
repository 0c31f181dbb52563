package where_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/inspect"
	"ormgen/internal/modelspec"
	"ormgen/internal/where"
)

type User struct {
	ID        int64
	Name      string
	Addresses []*Address
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

func buildRegistry(t *testing.T) (*inspect.Result, where.Registry) {
	t.Helper()
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)
	return result, where.NewRegistry(result)
}

func TestCompile_BareValueIsEquality(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	c, err := where.Compile(user, "user", map[string]any{"Name": "Alice"}, reg)
	require.NoError(t, err)
	assert.Equal(t, `user.Name = ?`, c.SQL)
	assert.Equal(t, []any{"Alice"}, c.Params)
}

func TestCompile_EmptyFilterMatchesEverything(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	c, err := where.Compile(user, "user", map[string]any{}, reg)
	require.NoError(t, err)
	assert.Equal(t, "1=1", c.SQL)
}

func TestCompile_OrOfOneIsEquivalentToTheFilterItself(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	or, err := where.Compile(user, "user", map[string]any{
		"or": []any{map[string]any{"Name": "Alice"}},
	}, reg)
	require.NoError(t, err)

	bare, err := where.Compile(user, "user", map[string]any{"Name": "Alice"}, reg)
	require.NoError(t, err)

	assert.Equal(t, bare.SQL, or.SQL)
}

func TestCompile_ScalarOperators(t *testing.T) {
	result, reg := buildRegistry(t)
	addr := result.ModelsByName["Address"]

	c, err := where.Compile(addr, "address", map[string]any{
		"Location": map[string]any{"starts_with": "NY"},
	}, reg)
	require.NoError(t, err)
	assert.Equal(t, `address.Location LIKE ?`, c.SQL)
	assert.Equal(t, []any{"NY%"}, c.Params)
}

func TestCompile_RelationSomeCompilesToExists(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	c, err := where.Compile(user, "user", map[string]any{
		"Addresses": map[string]any{"some": map[string]any{"Location": map[string]any{"contains": "NY"}}},
	}, reg)
	require.NoError(t, err)
	assert.Contains(t, c.SQL, "EXISTS (SELECT 1 FROM address")
	assert.Contains(t, c.SQL, "user__addresses.UserID = user.ID")
	assert.Equal(t, []any{"%NY%"}, c.Params)
}

func TestCompile_EveryOverManyUsesDoubleNegation(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	c, err := where.Compile(user, "user", map[string]any{
		"Addresses": map[string]any{"every": map[string]any{"Location": "NY"}},
	}, reg)
	require.NoError(t, err)
	assert.Contains(t, c.SQL, "NOT EXISTS")
	assert.Contains(t, c.SQL, "NOT (")
}

func TestCompile_UnknownKeyIsInvalidFilter(t *testing.T) {
	result, reg := buildRegistry(t)
	user := result.ModelsByName["User"]

	_, err := where.Compile(user, "user", map[string]any{"DoesNotExist": 1}, reg)
	assert.Error(t, err)
}

func TestCompile_SomeOnToOneRelationIsInvalid(t *testing.T) {
	result, reg := buildRegistry(t)
	addr := result.ModelsByName["Address"]

	_, err := where.Compile(addr, "address", map[string]any{
		"Owner": map[string]any{"some": map[string]any{}},
	}, reg)
	assert.Error(t, err)
}
