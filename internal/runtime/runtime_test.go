package runtime_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/modelspec"
	"ormgen/internal/ormerr"
	"ormgen/internal/push"
	"ormgen/internal/runtime"
)

type User struct {
	ID        int64
	Name      string
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

func newTestClient(t *testing.T) (*runtime.Client, *inspect.Result) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	_, err = push.Push(context.Background(), db, result, push.Options{})
	require.NoError(t, err)

	return runtime.NewClient(db, result, nil), result
}

func TestInsert_BackfillsAutoIncrementPrimaryKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	rows, _, err := c.Insert(ctx, "User", []runtime.Row{
		{"Name": "Alice"},
		{"Name": "Bob"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0]["ID"])
	assert.EqualValues(t, 2, rows[1]["ID"])
}

func TestFindMany_FiltersAndOrders(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Insert(ctx, "User", []runtime.Row{
		{"Name": "Alice"},
		{"Name": "Bob"},
		{"Name": "Carol"},
	})
	require.NoError(t, err)

	rows, _, err := c.FindMany(ctx, "User", runtime.QueryOptions{
		Where:   map[string]any{"Name": map[string]any{"ne": "Bob"}},
		OrderBy: []runtime.OrderTerm{{Column: "Name", Direction: core.SortDesc}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Carol", rows[0]["Name"])
	assert.Equal(t, "Alice", rows[1]["Name"])
}

func TestFindFirst_ReturnsNilRowWhenNoMatch(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	row, _, err := c.FindFirst(ctx, "User", runtime.QueryOptions{
		Where: map[string]any{"Name": "Nobody"},
	})
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFindMany_IncludedManyRelationResolvesAllChildren(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	userRows, _, err := c.Insert(ctx, "User", []runtime.Row{{"Name": "Alice"}})
	require.NoError(t, err)
	userID := userRows[0]["ID"]

	_, _, err = c.Insert(ctx, "Address", []runtime.Row{
		{"UserID": userID, "Location": "NY"},
		{"UserID": userID, "Location": "LA"},
	})
	require.NoError(t, err)

	rows, batch, err := c.FindMany(ctx, "User", runtime.QueryOptions{
		Include: map[string]bool{"Addresses": true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	resolved, err := c.ResolveRelation(ctx, batch, "User", rows[0], "Addresses")
	require.NoError(t, err)
	addresses, ok := resolved.([]runtime.Row)
	require.True(t, ok)
	assert.Len(t, addresses, 2)
}

func TestResolveRelation_ToOneIsCachedAfterFirstResolve(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	userRows, _, err := c.Insert(ctx, "User", []runtime.Row{{"Name": "Alice"}})
	require.NoError(t, err)
	userID := userRows[0]["ID"]

	addrRows, batch, err := c.Insert(ctx, "Address", []runtime.Row{
		{"UserID": userID, "Location": "NY"},
	})
	require.NoError(t, err)

	owner, err := c.ResolveRelation(ctx, batch, "Address", addrRows[0], "Owner")
	require.NoError(t, err)
	ownerRow, ok := owner.(runtime.Row)
	require.True(t, ok)
	assert.Equal(t, "Alice", ownerRow["Name"])

	again, err := c.ResolveRelation(ctx, batch, "Address", addrRows[0], "Owner")
	require.NoError(t, err)
	assert.Equal(t, ownerRow, again)
}

func TestInsert_DuplicateUniqueNameIsIntegrityViolation(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Insert(ctx, "User", []runtime.Row{{"Name": "Alice"}})
	require.NoError(t, err)

	_, _, err = c.Insert(ctx, "User", []runtime.Row{{"Name": "Alice"}})
	require.Error(t, err)
	var ormErr *ormerr.Error
	require.ErrorAs(t, err, &ormErr)
	assert.Equal(t, ormerr.CategoryIntegrityViolation, ormErr.Category)
}

func TestQueryRaw_NoSuchTableIsCategorized(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.QueryRaw(ctx, `SELECT * FROM "does_not_exist"`)
	require.Error(t, err)
	var ormErr *ormerr.Error
	require.ErrorAs(t, err, &ormErr)
	assert.Equal(t, ormerr.CategoryNoSuchTable, ormErr.Category)
}

func TestExecuteRaw_AppliesWrite(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Insert(ctx, "User", []runtime.Row{{"Name": "Alice"}})
	require.NoError(t, err)

	_, err = c.ExecuteRaw(ctx, `UPDATE "user" SET "Name" = ? WHERE "Name" = ?`, "Alicia", "Alice")
	require.NoError(t, err)

	rows, _, err := c.FindMany(ctx, "User", runtime.QueryOptions{Where: map[string]any{"Name": "Alicia"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestClient_ClosedClientRejectsFurtherCalls(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())

	_, _, err := c.FindMany(context.Background(), "User", runtime.QueryOptions{})
	require.Error(t, err)
	var ormErr *ormerr.Error
	require.ErrorAs(t, err, &ormErr)
	assert.Equal(t, ormerr.CategoryConnectionClosed, ormErr.Category)
}
