// Package push is the Pusher (spec §4.4 apply rules): given a live SQLite
// database handle and an inspection Result, it brings the live schema in
// line with the declared models, rebuilding a table via a temp-table copy
// when the diff is not purely additive.
//
// Grounded on internal/apply/apply.go's Applier: a small struct taking
// options plus an io.Writer sink, with a preflight/confirm/apply loop. Push
// retargets that loop from "run a migration file against MySQL" to "diff
// ModelInfo vs the live SQLite catalog and rebuild, one table at a time".
package push

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	dialectsqlite "ormgen/internal/dialect/sqlite"
	"ormgen/internal/inspect"
	"ormgen/internal/introspect/sqlite"
	tabledif "ormgen/internal/diff"
	"ormgen/internal/ormerr"
)

// ConfirmRebuildFunc is asked, per table, whether a rebuild that would
// otherwise be rejected may proceed (spec §4.4 confirm_rebuild).
type ConfirmRebuildFunc func(tableName string, reasons []string) bool

// Options configures one push call.
type Options struct {
	// ConfirmRebuild, if set, is consulted whenever a table's diff requires
	// a rebuild. A nil ConfirmRebuild rejects every rebuild outright.
	ConfirmRebuild ConfirmRebuildFunc
	// SyncIndexes, when true, drops live indexes no longer declared on the
	// model (spec §4.4 sync_indexes); otherwise undeclared indexes are left
	// alone.
	SyncIndexes bool
	// Out receives one line per executed statement, the same io.Writer sink
	// idiom the AMBIENT STACK's echo_sql support uses.
	Out io.Writer
}

// TableReport summarizes what push did (or would do) for one table.
type TableReport struct {
	TableName string
	Diff      *tabledif.TableDiff
	Rebuilt   bool
	Statements []string
}

// Report is the aggregate result of one Push call.
type Report struct {
	Tables []TableReport
}

// Push diffs every model in result against the live database and applies
// the needed DDL. It is idempotent: pushing an already-pushed schema
// produces an empty diff for every table and executes nothing.
func Push(ctx context.Context, db *sql.DB, result *inspect.Result, opts Options) (*Report, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	introspecter := sqlite.New(db)
	gen := dialectsqlite.NewGenerator()

	report := &Report{}
	for _, name := range result.Order {
		model := result.ModelsByName[name]
		tr, err := pushTable(ctx, db, introspecter, gen, model, opts, out)
		if err != nil {
			return nil, err
		}
		report.Tables = append(report.Tables, *tr)
	}
	return report, nil
}

func pushTable(ctx context.Context, db *sql.DB, introspecter *sqlite.Introspecter, gen *dialectsqlite.Generator, model *inspect.ModelInfo, opts Options, out io.Writer) (*TableReport, error) {
	exists, err := introspecter.TableExists(ctx, model.TableName)
	if err != nil {
		return nil, err
	}

	var live *sqlite.LiveTable
	if exists {
		live, err = introspecter.Table(ctx, model.TableName)
		if err != nil {
			return nil, err
		}
	}

	d, err := tabledif.Diff(model, live)
	if err != nil {
		return nil, err
	}

	tr := &TableReport{TableName: model.TableName, Diff: d}
	if d.IsEmpty() {
		return tr, nil
	}

	if d.RequiresRebuild {
		if opts.ConfirmRebuild == nil || !opts.ConfirmRebuild(model.TableName, d.RebuildReasons) {
			return nil, ormerr.New(ormerr.CategoryRebuildRejected, model.Name,
				"table %q requires a rebuild (%v) but confirm_rebuild was not granted", model.TableName, d.RebuildReasons)
		}
		stmts, err := rebuildTable(ctx, db, gen, model, live)
		if err != nil {
			return nil, err
		}
		echo(out, stmts)
		tr.Rebuilt = true
		tr.Statements = stmts
		return tr, nil
	}

	stmts, err := applyAdditive(ctx, db, gen, model, d, opts.SyncIndexes)
	if err != nil {
		return nil, err
	}
	echo(out, stmts)
	tr.Statements = stmts
	return tr, nil
}

func echo(out io.Writer, stmts []string) {
	for _, s := range stmts {
		fmt.Fprintln(out, s)
	}
}

// applyAdditive executes ADD COLUMN / CREATE INDEX (and, when sync_indexes
// is set, DROP INDEX) statements directly; none of these require a rebuild.
func applyAdditive(ctx context.Context, db *sql.DB, gen *dialectsqlite.Generator, model *inspect.ModelInfo, d *tabledif.TableDiff, syncIndexes bool) ([]string, error) {
	var stmts []string

	if d.TableIsNew {
		create, err := gen.CreateTable(model)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, create)
	} else {
		for _, col := range d.AddedColumns {
			stmt, err := gen.AddColumn(model.TableName, col)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		}
	}

	for _, idx := range model.Indexes {
		if d.TableIsNew || containsIndex(d.AddedIndexes, idx) {
			stmts = append(stmts, gen.CreateIndex(model.TableName, idx))
		}
	}

	if syncIndexes {
		for _, name := range d.RemovedIndexes {
			stmts = append(stmts, gen.DropIndex(name))
		}
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("push: executing %q: %w", stmt, err)
		}
	}
	return stmts, nil
}

func containsIndex(decls []inspect.IndexDecl, idx inspect.IndexDecl) bool {
	for _, d := range decls {
		if d.Unique == idx.Unique && equalStrings(d.Columns, idx.Columns) {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rebuildTable performs the copy-through rebuild (spec §4.4): create a temp
// table with the desired shape, copy the intersecting columns across, drop
// the old table, and rename the temp table into place. This preserves every
// row whose columns still exist under the new shape.
func rebuildTable(ctx context.Context, db *sql.DB, gen *dialectsqlite.Generator, model *inspect.ModelInfo, live *sqlite.LiveTable) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("push: begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	tempName := model.TableName + "__ormgen_rebuild"
	tempModel := *model
	tempModel.TableName = tempName

	var stmts []string

	create, err := gen.CreateTable(&tempModel)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, create)

	if live != nil {
		shared := sharedColumns(model, live)
		if len(shared) > 0 {
			colList := gen.ColumnListText(shared)
			copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
				gen.QuoteIdentifier(tempName), colList, colList, gen.QuoteIdentifier(model.TableName))
			stmts = append(stmts, copyStmt)
		}
	}

	stmts = append(stmts,
		fmt.Sprintf("DROP TABLE %s", gen.QuoteIdentifier(model.TableName)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", gen.QuoteIdentifier(tempName), gen.QuoteIdentifier(model.TableName)),
	)

	// Indexes are named from the model's real table name (internal/dialect/sqlite.IndexName),
	// so they must be created after the rename — creating them against tempName would bake
	// the temp name into the index name and break idempotency on the next push.
	for _, idx := range model.Indexes {
		stmts = append(stmts, gen.CreateIndex(model.TableName, idx))
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("push: rebuild %q: executing %q: %w", model.TableName, stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("push: commit rebuild of %q: %w", model.TableName, err)
	}
	return stmts, nil
}

func sharedColumns(model *inspect.ModelInfo, live *sqlite.LiveTable) []string {
	liveNames := make(map[string]bool, len(live.Columns))
	for _, c := range live.Columns {
		liveNames[c.Name] = true
	}
	var shared []string
	for _, c := range model.Columns {
		if liveNames[c.Name] {
			shared = append(shared, c.Name)
		}
	}
	return shared
}
