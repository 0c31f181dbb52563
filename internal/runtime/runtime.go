// Package runtime is the Backend (spec §4.6): CRUD, batch insert, the
// identity map, and lazy relation resolution against the live SQLite
// database. The generated client module (internal/codegen's output) is a
// thin typed wrapper around the functions here.
//
// Grounded on other_examples/9fd72b6b_patrickascher-gofer__orm-model.go.go's
// Model/Scope/Strategy split — CRUD methods delegate to a pluggable strategy
// that knows how to talk to the store — and on internal/apply/apply.go's
// connection lifecycle (Connect/Close, context-scoped execution) for the
// identity-map-per-batch and lazy-relation descriptor machinery below.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/ormerr"
	"ormgen/internal/where"
)

// Row is the generic, column-name-keyed representation of one record that
// flows between the Backend and the generated per-model serializers.
type Row map[string]any

// Client owns the database connection and the datasource's full ModelInfo
// graph for the duration of its lifetime (spec §4.1 Lifecycle).
type Client struct {
	db       *sql.DB
	result   *inspect.Result
	registry where.Registry
	echo     io.Writer
	closed   bool
}

// NewClient wraps an open *sql.DB. echo, if non-nil, receives one line per
// executed statement (the AMBIENT STACK's echo_sql support).
func NewClient(db *sql.DB, result *inspect.Result, echo io.Writer) *Client {
	if echo == nil {
		echo = io.Discard
	}
	return &Client{db: db, result: result, registry: where.NewRegistry(result), echo: echo}
}

// Close releases the underlying connection. Subsequent calls on this Client
// return ConnectionClosed.
func (c *Client) Close() error {
	c.closed = true
	return c.db.Close()
}

func (c *Client) checkOpen() error {
	if c.closed {
		return ormerr.New(ormerr.CategoryConnectionClosed, "", "client is closed")
	}
	return nil
}

func (c *Client) modelOf(name string) (*inspect.ModelInfo, error) {
	m, ok := c.result.ModelsByName[name]
	if !ok {
		return nil, ormerr.New(ormerr.CategoryNoSuchTable, name, "no such model %q", name)
	}
	return m, nil
}

func (c *Client) logf(format string, args ...any) {
	fmt.Fprintf(c.echo, format+"\n", args...)
}

// Batch is the identity map and lazy-relation resolution cache that lives
// for the duration of one find_*/insert* call (spec §4.1/§5): within it, two
// rows sharing a primary key are the same Row value; across batches
// identity is not preserved.
type Batch struct {
	rows          map[string]map[string]Row // model -> pkKey -> row
	relations     map[string]Row            // model|pkKey|relAttr -> resolved single row (or nil entry)
	relationsMany map[string][]Row          // model|pkKey|relAttr -> resolved row set
}

func newBatch() *Batch {
	return &Batch{
		rows:          make(map[string]map[string]Row),
		relations:     make(map[string]Row),
		relationsMany: make(map[string][]Row),
	}
}

func (b *Batch) intern(modelName string, pkKey string, row Row) Row {
	m, ok := b.rows[modelName]
	if !ok {
		m = make(map[string]Row)
		b.rows[modelName] = m
	}
	if existing, ok := m[pkKey]; ok {
		return existing
	}
	m[pkKey] = row
	return row
}

func pkKey(model *inspect.ModelInfo, row Row) string {
	parts := make([]string, 0, len(model.PrimaryKey))
	for _, col := range model.PrimaryKey {
		parts = append(parts, fmt.Sprint(row[col]))
	}
	return strings.Join(parts, "\x1f")
}

func relationCacheKey(modelName, pk, attr string) string { return modelName + "\x1f" + pk + "\x1f" + attr }

// QueryOptions mirrors find_many's named parameters (spec §4.6).
type QueryOptions struct {
	Where   map[string]any
	Include map[string]bool
	OrderBy []OrderTerm
	Take    *int
	Skip    *int
}

// OrderTerm is one OrderBy entry.
type OrderTerm struct {
	Column    string
	Direction core.SortDirection
}

// Insert serializes and inserts one or more rows in a single multi-row
// INSERT, reads back generated auto-increment primary keys, and installs
// the materialized rows into a fresh Batch's identity map (spec §4.6).
func (c *Client) Insert(ctx context.Context, modelName string, rows []Row) ([]Row, *Batch, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	model, err := c.modelOf(modelName)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, newBatch(), nil
	}

	cols := make([]string, 0, len(model.Columns))
	for _, col := range model.Columns {
		if col.IsAutoIncrementPK {
			continue
		}
		cols = append(cols, col.Name)
	}

	gen := sqliteQuoter{}
	quotedCols := make([]string, len(cols))
	for i, cname := range cols {
		quotedCols[i] = gen.quote(cname)
	}

	var valueRows []string
	var params []any
	for _, row := range rows {
		placeholders := make([]string, len(cols))
		for i, cname := range cols {
			placeholders[i] = "?"
			params = append(params, row[cname])
		}
		valueRows = append(valueRows, "("+strings.Join(placeholders, ", ")+")")
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		gen.quote(model.TableName), strings.Join(quotedCols, ", "), strings.Join(valueRows, ", "))
	c.logf("%s -- params=%v", stmt, params)

	result, err := c.db.ExecContext(ctx, stmt, params...)
	if err != nil {
		return nil, nil, wrapExecError(model.Name, err)
	}

	out := make([]Row, 0, len(rows))
	lastID, _ := result.LastInsertId()
	autoCol := autoIncrementColumn(model)
	nextID := lastID - int64(len(rows)) + 1
	for i, row := range rows {
		materialized := make(Row, len(row)+1)
		for k, v := range row {
			materialized[k] = v
		}
		if autoCol != "" {
			materialized[autoCol] = nextID + int64(i)
		}
		out = append(out, materialized)
	}

	batch := newBatch()
	for _, row := range out {
		batch.intern(model.Name, pkKey(model, row), row)
	}
	return out, batch, nil
}

func autoIncrementColumn(model *inspect.ModelInfo) string {
	for _, col := range model.Columns {
		if col.IsAutoIncrementPK {
			return col.Name
		}
	}
	return ""
}

// FindMany executes a SELECT with the compiled WHERE/ORDER BY/LIMIT/OFFSET
// and eagerly prefetches every truthy key in opts.Include (spec §4.6 Query).
func (c *Client) FindMany(ctx context.Context, modelName string, opts QueryOptions) ([]Row, *Batch, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	model, err := c.modelOf(modelName)
	if err != nil {
		return nil, nil, err
	}

	rows, err := c.selectRows(ctx, model, opts)
	if err != nil {
		return nil, nil, err
	}

	batch := newBatch()
	interned := make([]Row, 0, len(rows))
	for _, r := range rows {
		interned = append(interned, batch.intern(model.Name, pkKey(model, r), r))
	}

	for relAttr, want := range opts.Include {
		if !want {
			continue
		}
		if err := c.prefetch(ctx, model, interned, relAttr, batch); err != nil {
			return nil, nil, err
		}
	}

	return interned, batch, nil
}

// FindFirst is FindMany with an implicit take of 1.
func (c *Client) FindFirst(ctx context.Context, modelName string, opts QueryOptions) (Row, *Batch, error) {
	one := 1
	opts.Take = &one
	rows, batch, err := c.FindMany(ctx, modelName, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, batch, nil
	}
	return rows[0], batch, nil
}

func (c *Client) selectRows(ctx context.Context, model *inspect.ModelInfo, opts QueryOptions) ([]Row, error) {
	gen := sqliteQuoter{}
	alias := strings.ToLower(model.Name)

	colNames := make([]string, 0, len(model.Columns))
	for _, col := range model.Columns {
		colNames = append(colNames, gen.quote(alias)+"."+gen.quote(col.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s %s", strings.Join(colNames, ", "), gen.quote(model.TableName), gen.quote(alias))

	var params []any
	filter := opts.Where
	if filter == nil {
		filter = map[string]any{}
	}
	compiled, err := where.Compile(model, alias, filter, c.registry)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, " WHERE %s", compiled.SQL)
	params = append(params, compiled.Params...)

	if len(opts.OrderBy) > 0 {
		terms := make([]string, 0, len(opts.OrderBy))
		for _, t := range opts.OrderBy {
			dir := "ASC"
			if t.Direction == core.SortDesc {
				dir = "DESC"
			}
			terms = append(terms, gen.quote(alias)+"."+gen.quote(t.Column)+" "+dir)
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(terms, ", "))
	}
	if opts.Take != nil {
		fmt.Fprintf(&b, " LIMIT %d", *opts.Take)
	}
	if opts.Skip != nil {
		fmt.Fprintf(&b, " OFFSET %d", *opts.Skip)
	}

	stmt := b.String()
	c.logf("%s -- params=%v", stmt, params)

	rows, err := c.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, wrapExecError(model.Name, err)
	}
	defer rows.Close()

	return scanRows(model, rows)
}

func scanRows(model *inspect.ModelInfo, rows *sql.Rows) ([]Row, error) {
	cols := model.Columns
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}

	var out []Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("runtime: scan %s: %w", model.Name, err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col.Name] = *(dest[i].(*any))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// prefetch resolves relAttr for every parent row in one extra query each
// (spec §4.6): one/optional-one uses "WHERE pk IN (...)" against the remote
// table; many groups remote rows by their foreign-key column.
func (c *Client) prefetch(ctx context.Context, model *inspect.ModelInfo, parents []Row, relAttr string, batch *Batch) error {
	rel := findRelation(model, relAttr)
	if rel == nil {
		return ormerr.New(ormerr.CategoryRelationUnresolvable, model.Name, "no relation named %q", relAttr).WithRelation(relAttr)
	}
	if rel.ViaForeignKey == nil {
		return ormerr.New(ormerr.CategoryRelationUnresolvable, model.Name, "relation %q has no resolved foreign key", relAttr).WithRelation(relAttr)
	}
	remote, err := c.modelOf(rel.TargetModel)
	if err != nil {
		return err
	}

	if rel.Cardinality == core.CardinalityMany {
		return c.prefetchMany(ctx, model, remote, rel, parents, batch)
	}
	return c.prefetchToOne(ctx, model, remote, rel, parents, batch)
}

func (c *Client) prefetchToOne(ctx context.Context, model, remote *inspect.ModelInfo, rel *inspect.RelationInfo, parents []Row, batch *Batch) error {
	fk := rel.ViaForeignKey
	ids := collectDistinct(parents, fk.FromColumns[0])
	if len(ids) == 0 {
		for _, p := range parents {
			batch.relations[relationCacheKey(model.Name, pkKey(model, p), rel.AttrName)] = nil
		}
		return nil
	}

	rows, err := c.selectRows(ctx, remote, QueryOptions{Where: map[string]any{fk.ToColumns[0]: map[string]any{"in": ids}}})
	if err != nil {
		return err
	}

	byID := make(map[string]Row, len(rows))
	for _, r := range rows {
		interned := batch.intern(remote.Name, pkKey(remote, r), r)
		byID[fmt.Sprint(interned[fk.ToColumns[0]])] = interned
	}
	for _, p := range parents {
		key := fmt.Sprint(p[fk.FromColumns[0]])
		cacheKey := relationCacheKey(model.Name, pkKey(model, p), rel.AttrName)
		if child, ok := byID[key]; ok {
			batch.relations[cacheKey] = child
		} else {
			batch.relations[cacheKey] = nil
		}
	}
	return nil
}

func (c *Client) prefetchMany(ctx context.Context, model, remote *inspect.ModelInfo, rel *inspect.RelationInfo, parents []Row, batch *Batch) error {
	fk := rel.ViaForeignKey
	ids := collectDistinct(parents, fk.ToColumns[0])
	if len(ids) == 0 {
		for _, p := range parents {
			batch.relationsMany[relationCacheKey(model.Name, pkKey(model, p), rel.AttrName)] = nil
		}
		return nil
	}

	rows, err := c.selectRows(ctx, remote, QueryOptions{Where: map[string]any{fk.FromColumns[0]: map[string]any{"in": ids}}})
	if err != nil {
		return err
	}

	grouped := make(map[string][]Row)
	for _, r := range rows {
		interned := batch.intern(remote.Name, pkKey(remote, r), r)
		key := fmt.Sprint(interned[fk.FromColumns[0]])
		grouped[key] = append(grouped[key], interned)
	}
	for _, p := range parents {
		key := fmt.Sprint(p[fk.ToColumns[0]])
		cacheKey := relationCacheKey(model.Name, pkKey(model, p), rel.AttrName)
		batch.relationsMany[cacheKey] = grouped[key]
	}
	return nil
}

func collectDistinct(rows []Row, column string) []any {
	seen := make(map[string]bool, len(rows))
	var out []any
	for _, r := range rows {
		v := r[column]
		key := fmt.Sprint(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

func findRelation(model *inspect.ModelInfo, attr string) *inspect.RelationInfo {
	for _, r := range model.Relations {
		if r.AttrName == attr {
			return r
		}
	}
	return nil
}

// ResolveRelation performs the single-shot lazy resolution a generated
// relation descriptor issues on its first access, caching the result into
// batch so subsequent accesses within the same batch do not re-query
// (spec §4.6 "already resolved", §9 identity-map per batch).
func (c *Client) ResolveRelation(ctx context.Context, batch *Batch, modelName string, row Row, relAttr string) (any, error) {
	model, err := c.modelOf(modelName)
	if err != nil {
		return nil, err
	}
	key := pkKey(model, row)
	cacheKey := relationCacheKey(model.Name, key, relAttr)

	if v, ok := batch.relations[cacheKey]; ok {
		return v, nil
	}
	if v, ok := batch.relationsMany[cacheKey]; ok {
		return v, nil
	}

	if err := c.prefetch(ctx, model, []Row{row}, relAttr, batch); err != nil {
		return nil, err
	}
	if v, ok := batch.relations[cacheKey]; ok {
		return v, nil
	}
	return batch.relationsMany[cacheKey], nil
}

// QueryRaw executes an arbitrary read query and returns its rows as generic
// Row maps keyed by result column name (spec §4.6 query_raw).
func (c *Client) QueryRaw(ctx context.Context, stmt string, args ...any) ([]Row, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.logf("%s -- params=%v", stmt, args)
	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrapExecError("", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	dest := make([]any, len(names))
	for i := range dest {
		dest[i] = new(any)
	}

	var out []Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(names))
		for i, name := range names {
			row[name] = *(dest[i].(*any))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ExecuteRaw executes an arbitrary write statement (spec §4.6 execute_raw).
func (c *Client) ExecuteRaw(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.logf("%s -- params=%v", stmt, args)
	result, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrapExecError("", err)
	}
	return result, nil
}

func wrapExecError(modelName string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "NOT NULL constraint") || strings.Contains(msg, "CHECK constraint") {
		return ormerr.New(ormerr.CategoryIntegrityViolation, modelName, "%s", msg)
	}
	if strings.Contains(msg, "no such table") {
		return ormerr.New(ormerr.CategoryNoSuchTable, modelName, "%s", msg)
	}
	return fmt.Errorf("runtime: %w", err)
}

// sqliteQuoter is the minimal identifier-quoting slice of
// internal/dialect/sqlite.Generator the Backend needs; kept local to avoid
// a dependency from internal/runtime onto internal/dialect/sqlite for one
// helper function.
type sqliteQuoter struct{}

func (sqliteQuoter) quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
