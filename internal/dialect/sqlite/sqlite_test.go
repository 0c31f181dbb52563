package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormgen/internal/inspect"
	dialectsqlite "ormgen/internal/dialect/sqlite"
)

type Post struct {
	ID    int64
	Title string
	Body  *string
}

func TestCreateTable_InlinesAutoIncrementPrimaryKey(t *testing.T) {
	result, err := inspect.Inspect(&Post{})
	require.NoError(t, err)
	model := result.ModelsByName["Post"]

	gen := dialectsqlite.NewGenerator()
	stmt, err := gen.CreateTable(model)
	require.NoError(t, err)

	assert.Contains(t, stmt, `CREATE TABLE "post"`)
	assert.Contains(t, stmt, `"ID" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.Contains(t, stmt, `"Title" TEXT NOT NULL`)
	assert.Contains(t, stmt, `"Body" TEXT`)
	assert.NotContains(t, stmt, `"Body" TEXT NOT NULL`)
	assert.NotContains(t, stmt, "PRIMARY KEY (")
}

func TestCreateIndex_NamesIndexDeterministically(t *testing.T) {
	gen := dialectsqlite.NewGenerator()
	idx := inspect.IndexDecl{Columns: []string{"Title"}, Unique: true}

	a := gen.CreateIndex("post", idx)
	b := gen.CreateIndex("post", idx)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "CREATE UNIQUE INDEX")
	assert.Contains(t, a, `"uidx_post_Title"`)
}

func TestQuoteIdentifier_EscapesEmbeddedQuotes(t *testing.T) {
	gen := dialectsqlite.NewGenerator()
	assert.Equal(t, `"tab""le"`, gen.QuoteIdentifier(`tab"le`))
}
