// Package diff is the Schema Builder's diff half (spec §4.4): it compares a
// desired ModelInfo against the live table introspect/sqlite reports and
// decides whether the difference is additive (an ALTER TABLE ADD
// COLUMN/CREATE INDEX suffices) or requires a rebuild.
//
// Grounded on internal/diff/diff.go's SchemaDiff/TableDiff shape
// (added/removed/modified slices compared between two schema snapshots),
// trimmed to the rules a single-engine, FK-virtual, no-rename system needs:
// SQLite's own ALTER TABLE is narrower than MySQL's, so this package never
// attempts rename detection — a removed column, a column whose type,
// nullability, or primary-key membership changed, and a new NOT NULL column
// without a default are simply rebuild triggers.
package diff

import (
	"sort"

	dialectsqlite "ormgen/internal/dialect/sqlite"
	"ormgen/internal/inspect"
	"ormgen/internal/introspect/sqlite"
	"ormgen/internal/typeren"
)

// TableDiff is the difference between one model's desired shape and its live
// table, or nil-equivalent (IsEmpty true) when they already match.
type TableDiff struct {
	TableName       string
	TableIsNew      bool
	AddedColumns    []*inspect.ColumnInfo
	RemovedColumns  []string
	ChangedColumns  []ColumnChange
	AddedIndexes    []inspect.IndexDecl
	RemovedIndexes  []string // live index names no longer declared
	RequiresRebuild bool
	RebuildReasons  []string
}

// ColumnChange names a column whose declared shape no longer matches the
// live column (type affinity, nullability, or primary-key membership changed).
type ColumnChange struct {
	Name   string
	Reason string
}

// IsEmpty reports whether applying this diff is a no-op.
func (d *TableDiff) IsEmpty() bool {
	return !d.TableIsNew && len(d.AddedColumns) == 0 && len(d.RemovedColumns) == 0 &&
		len(d.ChangedColumns) == 0 && len(d.AddedIndexes) == 0 && len(d.RemovedIndexes) == 0
}

// Diff compares one model against its live table. live is nil when the table
// does not yet exist, in which case the whole table is "added".
func Diff(model *inspect.ModelInfo, live *sqlite.LiveTable) (*TableDiff, error) {
	td := &TableDiff{TableName: model.TableName}

	if live == nil {
		td.TableIsNew = true
		td.AddedColumns = append(td.AddedColumns, model.Columns...)
		td.AddedIndexes = append(td.AddedIndexes, model.Indexes...)
		return td, nil
	}

	liveCols := make(map[string]sqlite.LiveColumn, len(live.Columns))
	for _, c := range live.Columns {
		liveCols[c.Name] = c
	}

	inPK := make(map[string]bool, len(model.PrimaryKey))
	for _, name := range model.PrimaryKey {
		inPK[name] = true
	}

	for _, col := range model.Columns {
		lc, ok := liveCols[col.Name]
		if !ok {
			td.AddedColumns = append(td.AddedColumns, col)
			continue
		}
		affinity, err := typeren.SQLiteAffinity(col)
		if err != nil {
			return nil, err
		}
		switch {
		case lc.DeclaredType != affinity:
			td.ChangedColumns = append(td.ChangedColumns, ColumnChange{Name: col.Name, Reason: "type affinity changed: " + lc.DeclaredType + " -> " + affinity})
		// PRAGMA table_info reports notnull=0 for an inline INTEGER PRIMARY
		// KEY column, so its nullability is not compared.
		case lc.NotNull == col.Nullable && !col.IsAutoIncrementPK:
			td.ChangedColumns = append(td.ChangedColumns, ColumnChange{Name: col.Name, Reason: "nullability changed"})
		case lc.PrimaryKey != inPK[col.Name]:
			td.ChangedColumns = append(td.ChangedColumns, ColumnChange{Name: col.Name, Reason: "primary key membership changed"})
		}
	}

	declared := make(map[string]bool, len(model.Columns))
	for _, col := range model.Columns {
		declared[col.Name] = true
	}
	for _, lc := range live.Columns {
		if !declared[lc.Name] {
			td.RemovedColumns = append(td.RemovedColumns, lc.Name)
		}
	}

	liveIndexes := make(map[string]sqlite.LiveIndex, len(live.Indexes))
	for _, idx := range live.Indexes {
		liveIndexes[idx.Name] = idx
	}
	declaredIndexNames := make(map[string]bool, len(model.Indexes))
	for _, idx := range model.Indexes {
		name := dialectsqlite.IndexName(model.TableName, idx)
		declaredIndexNames[name] = true
		if _, ok := liveIndexes[name]; !ok {
			td.AddedIndexes = append(td.AddedIndexes, idx)
		}
	}
	for name := range liveIndexes {
		if !declaredIndexNames[name] {
			td.RemovedIndexes = append(td.RemovedIndexes, name)
		}
	}

	// Any column removal, type/nullability/PK change forces a rebuild:
	// SQLite's ALTER TABLE can only ADD COLUMN or RENAME (spec §4.4).
	if len(td.RemovedColumns) > 0 {
		td.RequiresRebuild = true
		td.RebuildReasons = append(td.RebuildReasons, "column(s) removed")
	}
	if len(td.ChangedColumns) > 0 {
		td.RequiresRebuild = true
		for _, cc := range td.ChangedColumns {
			td.RebuildReasons = append(td.RebuildReasons, cc.Name+": "+cc.Reason)
		}
	}
	// A newly nullable-false column with no default cannot be added via
	// ALTER TABLE ADD COLUMN against existing rows, so it also rebuilds.
	for _, col := range td.AddedColumns {
		if !td.TableIsNew && !col.Nullable && !col.DefaultPresent {
			td.RequiresRebuild = true
			td.RebuildReasons = append(td.RebuildReasons, col.Name+": new NOT NULL column has no default")
		}
	}

	sort.Strings(td.RemovedColumns)
	sort.Strings(td.RemovedIndexes)
	return td, nil
}
