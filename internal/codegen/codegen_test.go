package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/codegen"
	"ormgen/internal/inspect"
	"ormgen/internal/modelspec"
)

type User struct {
	ID        int64
	Name      string
	Bio       *string
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

func TestGenerate_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	opts := codegen.Options{PackageName: "client"}
	first, err := codegen.Generate(result, opts)
	require.NoError(t, err)
	second, err := codegen.Generate(result, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerate_EmitsOneTableTypePerModel(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	out, err := codegen.Generate(result, codegen.Options{PackageName: "client"})
	require.NoError(t, err)

	assert.Contains(t, out, "type UserTable struct")
	assert.Contains(t, out, "type AddressTable struct")
	assert.Contains(t, out, `UserIncludeAddresses TUserIncludeCol = "Addresses"`)
	assert.Contains(t, out, "func _user_serializer(v UserInsert) runtime.Row")
	assert.Contains(t, out, "func _address_deserializer(row runtime.Row) Address")

	assert.Contains(t, out, "type UserRow struct")
	assert.Contains(t, out, "type AddressRow struct")
	assert.Contains(t, out, "func (r *UserRow) ResolveAddresses(ctx context.Context) ([]*Address, error)")
	assert.Contains(t, out, "func (r *AddressRow) ResolveOwner(ctx context.Context) (*User, error)")
	assert.Contains(t, out, "func (t *UserTable) FindMany(ctx context.Context, where UserWhereDict, include UserIncludeDict, orderBy []UserOrderByDict, take, skip *int) ([]*UserRow, error)")
	assert.Contains(t, out, "if include[UserIncludeAddresses] {")
}

func TestGenerate_QualifiesRecordTypeWhenModelsImportPathSet(t *testing.T) {
	result, err := inspect.Inspect(&User{}, &Address{})
	require.NoError(t, err)

	out, err := codegen.Generate(result, codegen.Options{
		PackageName:        "client",
		ModelsImportPath:   "example.com/app/models",
		ModelsPackageAlias: "models",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `models "example.com/app/models"`)
	assert.Contains(t, out, "func _user_deserializer(row runtime.Row) models.User")
}
