// Package sqlite completes the teacher's own SQLite introspecter stub
// (internal/introspect/sqlite/introspect.go returned nil, nil) with a real
// implementation driven by SQLite's PRAGMA statements, the same direct
// equivalent of information_schema that internal/introspect/mysql's
// introspectColumns/introspectIndexes query there.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// LiveColumn is one column as PRAGMA table_info reports it.
type LiveColumn struct {
	Name         string
	DeclaredType string
	NotNull      bool
	PrimaryKey   bool
}

// LiveIndex is one index as PRAGMA index_list/index_info report it.
type LiveIndex struct {
	Name    string
	Unique  bool
	Columns []string
}

// LiveTable is the live shape of one table, as currently pushed.
type LiveTable struct {
	Name    string
	Columns []LiveColumn
	Indexes []LiveIndex
}

// Introspecter reads the live schema of an embedded SQLite database.
type Introspecter struct {
	db *sql.DB
}

// New wraps an open *sql.DB for introspection.
func New(db *sql.DB) *Introspecter {
	return &Introspecter{db: db}
}

// Tables lists every user table name in the database (sqlite_ prefixed
// system tables excluded).
func (i *Introspecter) Tables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("introspect: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableExists reports whether name is a live table.
func (i *Introspecter) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := i.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("introspect: check table %q: %w", name, err)
	}
	return count > 0, nil
}

// Table introspects one table's columns and indexes via PRAGMA.
func (i *Introspecter) Table(ctx context.Context, name string) (*LiveTable, error) {
	t := &LiveTable{Name: name}
	if err := i.loadColumns(ctx, t); err != nil {
		return nil, err
	}
	if err := i.loadIndexes(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (i *Introspecter) loadColumns(ctx context.Context, t *LiveTable) error {
	// PRAGMA does not accept bound parameters; the table name is always
	// one this package itself produced from ModelInfo, never user input.
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, t.Name))
	if err != nil {
		return fmt.Errorf("introspect: table_info(%s): %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		t.Columns = append(t.Columns, LiveColumn{
			Name:         name,
			DeclaredType: declType,
			NotNull:      notNull != 0,
			PrimaryKey:   pk != 0,
		})
	}
	return rows.Err()
}

func (i *Introspecter) loadIndexes(ctx context.Context, t *LiveTable) error {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_list(%q)`, t.Name))
	if err != nil {
		return fmt.Errorf("introspect: index_list(%s): %w", t.Name, err)
	}
	defer rows.Close()

	type idxRow struct {
		name   string
		unique bool
	}
	var rawIndexes []idxRow
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		if origin == "pk" {
			// the implicit PK index is not one of our declared indexes.
			continue
		}
		rawIndexes = append(rawIndexes, idxRow{name: name, unique: unique != 0})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ri := range rawIndexes {
		cols, err := i.indexColumns(ctx, ri.name)
		if err != nil {
			return err
		}
		t.Indexes = append(t.Indexes, LiveIndex{Name: ri.name, Unique: ri.unique, Columns: cols})
	}
	return nil
}

func (i *Introspecter) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_info(%q)`, indexName))
	if err != nil {
		return nil, fmt.Errorf("introspect: index_info(%s): %w", indexName, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
