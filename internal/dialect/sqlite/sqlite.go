// Package sqlite is the Schema Builder's DDL half (spec §4.4): it renders a
// ModelInfo into CREATE TABLE / CREATE INDEX statements and ALTER TABLE
// fragments for additive changes.
//
// Grounded on internal/dialect/mysql/{mysql,table,format}.go's generator
// shape (a small stateless struct building text with strings.Builder and a
// QuoteIdentifier helper), adapted from MySQL's multi-statement ALTER
// TABLE dialect to SQLite's narrower one: SQLite can only ADD COLUMN or
// RENAME; anything else goes through the rebuild path in internal/push.
package sqlite

import (
	"fmt"
	"strings"

	"ormgen/internal/inspect"
	"ormgen/internal/typeren"
)

// Generator is a stateless struct for rendering SQLite DDL from ModelInfo.
type Generator struct{}

// NewGenerator returns a ready-to-use Generator.
func NewGenerator() *Generator { return &Generator{} }

// QuoteIdentifier double-quotes an identifier, escaping embedded quotes the
// way SQLite's own quoting rules require.
func (g *Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString single-quotes a string literal.
func (g *Generator) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateTable renders a full CREATE TABLE statement for m. Foreign keys are
// virtual (spec Non-goals: no storage-engine-enforced FKs), so no REFERENCES
// clause is emitted; the relation graph lives only in ModelInfo.
func (g *Generator) CreateTable(m *inspect.ModelInfo) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", g.QuoteIdentifier(m.TableName))

	lines := make([]string, 0, len(m.Columns)+1)
	for _, col := range m.Columns {
		line, err := g.columnClause(col)
		if err != nil {
			return "", err
		}
		lines = append(lines, "  "+line)
	}
	if !isInlineAutoIncrementPK(m) && len(m.PrimaryKey) > 0 {
		lines = append(lines, "  PRIMARY KEY "+g.columnList(m.PrimaryKey))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String(), nil
}

// columnClause renders one column definition, inlining "INTEGER PRIMARY KEY"
// for the auto-increment rule (spec §3): SQLite only grants rowid aliasing
// and AUTOINCREMENT semantics to a column declared exactly that way.
func (g *Generator) columnClause(col *inspect.ColumnInfo) (string, error) {
	affinity, err := typeren.SQLiteAffinity(col)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", g.QuoteIdentifier(col.Name), affinity)
	if col.IsAutoIncrementPK {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	} else if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String(), nil
}

func isInlineAutoIncrementPK(m *inspect.ModelInfo) bool {
	if len(m.PrimaryKey) != 1 {
		return false
	}
	c := m.FindColumn(m.PrimaryKey[0])
	return c != nil && c.IsAutoIncrementPK
}

func (g *Generator) columnList(names []string) string {
	return "(" + g.ColumnListText(names) + ")"
}

// ColumnListText renders a comma-separated, quoted column list without the
// surrounding parentheses, for callers building their own clause (e.g. the
// Pusher's rebuild copy-through INSERT INTO ... SELECT ...).
func (g *Generator) ColumnListText(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, g.QuoteIdentifier(n))
	}
	return strings.Join(quoted, ", ")
}

// CreateIndex renders a CREATE [UNIQUE] INDEX statement for one declared
// index, naming it deterministically from the table and column list so
// re-running push against an already-pushed schema is idempotent.
func (g *Generator) CreateIndex(tableName string, idx inspect.IndexDecl) string {
	name := IndexName(tableName, idx)
	kw := "INDEX"
	if idx.Unique {
		kw = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s %s",
		kw, g.QuoteIdentifier(name), g.QuoteIdentifier(tableName), g.columnList(idx.Columns))
}

// IndexName deterministically names an index from its table and columns.
func IndexName(tableName string, idx inspect.IndexDecl) string {
	prefix := "idx"
	if idx.Unique {
		prefix = "uidx"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, tableName, strings.Join(idx.Columns, "_"))
}

// AddColumn renders an ALTER TABLE ... ADD COLUMN statement for a purely
// additive column (spec §4.4: additive changes never trigger a rebuild).
func (g *Generator) AddColumn(tableName string, col *inspect.ColumnInfo) (string, error) {
	clause, err := g.columnClause(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", g.QuoteIdentifier(tableName), clause), nil
}

// DropIndex renders a DROP INDEX statement.
func (g *Generator) DropIndex(name string) string {
	return "DROP INDEX " + g.QuoteIdentifier(name)
}
