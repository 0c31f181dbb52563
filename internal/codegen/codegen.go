// Package codegen is the Code Generator (spec §4.3): given an inspection
// Result, it deterministically emits the textual client module a caller
// imports to get a statically typed table object per model.
//
// Grounded on internal/dialect/mysql/mysql.go's deterministic
// strings.Builder text-generation style (one exported Generate entry point
// assembling statement text from a normalized graph) and
// internal/output/formatter.go's registry-of-formatters shape, here
// narrowed to a single Go-source formatter since spec Non-goals exclude
// non-core template rendering.
package codegen

import (
	"fmt"
	"strings"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/typeren"
)

// Options configures one Generate call.
type Options struct {
	// PackageName is the generated file's package clause.
	PackageName string
	// ModelsImportPath is the import path of the package the original
	// record types (and any enum types) live in; empty means the generated
	// module lives in the same package as the records.
	ModelsImportPath string
	// ModelsPackageAlias is the local name used to qualify record/enum
	// type references when ModelsImportPath is set.
	ModelsPackageAlias string
}

// Generate renders the full client module source text for result. Same
// input always produces byte-identical output: models are walked in
// result.Order (declaration order) and every inner collection (columns,
// relations, indexes) was already stabilized by internal/inspect.
func Generate(result *inspect.Result, opts Options) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated by ormgen. DO NOT EDIT.\n\npackage %s\n\n", opts.PackageName)
	imports := []string{`"context"`, `"ormgen/internal/core"`, `"ormgen/internal/runtime"`}
	if needsTime(result) {
		imports = append(imports, `"time"`)
	}
	if opts.ModelsImportPath != "" {
		imports = append(imports, fmt.Sprintf("%s %q", opts.ModelsPackageAlias, opts.ModelsImportPath))
	}
	b.WriteString("import (\n")
	for _, imp := range imports {
		fmt.Fprintf(&b, "\t%s\n", imp)
	}
	b.WriteString(")\n\n")

	writeSharedTypes(&b)

	clientFields := make([]string, 0, len(result.Order))
	clientInit := make([]string, 0, len(result.Order))

	for _, name := range result.Order {
		model := result.ModelsByName[name]
		if err := writeModel(&b, model, opts); err != nil {
			return "", err
		}
		fieldName := model.Name
		clientFields = append(clientFields, fmt.Sprintf("\t%s *%sTable", fieldName, fieldName))
		clientInit = append(clientInit, fmt.Sprintf("\t\t%s: &%sTable{conn: conn, model: %q},", fieldName, fieldName, model.Name))
	}

	fmt.Fprintf(&b, "// Client exposes one table object per model over a single runtime.Client connection.\ntype Client struct {\n%s\n}\n\n", strings.Join(clientFields, "\n"))
	fmt.Fprintf(&b, "// NewClient builds a Client backed by conn.\nfunc NewClient(conn *runtime.Client) *Client {\n\treturn &Client{\n%s\n\t}\n}\n\n", strings.Join(clientInit, "\n"))

	return b.String(), nil
}

func needsTime(result *inspect.Result) bool {
	for _, name := range result.Order {
		for _, col := range result.ModelsByName[name].Columns {
			if col.Type == core.DataTypeDatetime {
				return true
			}
		}
	}
	return false
}

func writeSharedTypes(b *strings.Builder) {
	b.WriteString(`// DataSourceConfig names the provider and URL a generated Client connects to.
type DataSourceConfig struct {
	Key      string
	Provider string
	URL      string
}

// ForeignKeySpec mirrors one inspect.ForeignKeyInfo for callers that only
// have the generated module, not the inspection Result, in hand.
type ForeignKeySpec struct {
	FromColumns []string
	ToModel     string
	ToColumns   []string
}

// ColumnSpec mirrors one inspect.ColumnInfo's portable shape.
type ColumnSpec struct {
	Name     string
	Type     string
	Nullable bool
}

// RelationSpec mirrors one inspect.RelationInfo's portable shape.
type RelationSpec struct {
	AttrName    string
	TargetModel string
	Cardinality string
}

`)
}

func writeModel(b *strings.Builder, model *inspect.ModelInfo, opts Options) error {
	recordType := qualifiedRecordType(model.Name, opts)

	writeIncludeCol(b, model)
	writeSortableCol(b, model)
	if err := writeInsertStruct(b, model, opts); err != nil {
		return err
	}
	writeDictTypes(b, model)
	writeSerializers(b, model, recordType, opts)
	writeRowWrapper(b, model, recordType)
	writeRelationAccessors(b, model, opts)
	writeTable(b, model, recordType)
	return nil
}

func qualifiedRecordType(modelName string, opts Options) string {
	if opts.ModelsPackageAlias != "" {
		return opts.ModelsPackageAlias + "." + modelName
	}
	return modelName
}

// writeIncludeCol emits T{M}IncludeCol, the literal-union analogue for
// relation names this model can eagerly include (spec §4.3), as a defined
// string type plus one named constant per relation, in the locality-then-
// declaration order internal/inspect already stabilized.
func writeIncludeCol(b *strings.Builder, model *inspect.ModelInfo) {
	fmt.Fprintf(b, "// T%sIncludeCol enumerates the relation names %s can eagerly include.\ntype T%sIncludeCol string\n\n", model.Name, model.Name, model.Name)
	if len(model.Relations) == 0 {
		return
	}
	b.WriteString("const (\n")
	for _, rel := range model.Relations {
		fmt.Fprintf(b, "\t%sInclude%s T%sIncludeCol = %q\n", model.Name, rel.AttrName, model.Name, rel.AttrName)
	}
	b.WriteString(")\n\n")
}

// writeSortableCol emits T{M}SortableCol, the literal union of scalar
// column names valid as an OrderBy key.
func writeSortableCol(b *strings.Builder, model *inspect.ModelInfo) {
	fmt.Fprintf(b, "// T%sSortableCol enumerates the columns %s can be ordered by.\ntype T%sSortableCol string\n\n", model.Name, model.Name, model.Name)
	if len(model.Columns) == 0 {
		return
	}
	b.WriteString("const (\n")
	for _, col := range model.Columns {
		fmt.Fprintf(b, "\t%sSort%s T%sSortableCol = %q\n", model.Name, col.Name, model.Name, col.Name)
	}
	b.WriteString(")\n\n")
}

// writeInsertStruct emits {M}Insert: the same column fields as M, but the
// auto-increment primary key is typed as *optional* so a pre-insert payload
// need not supply it (spec §4.3 Rationale).
func writeInsertStruct(b *strings.Builder, model *inspect.ModelInfo, opts Options) error {
	fmt.Fprintf(b, "// %sInsert is %s's pre-insert payload: every column field %s has (relation\n// fields are left out); the auto-increment primary key is optional.\ntype %sInsert struct {\n", model.Name, model.Name, model.Name, model.Name)
	for _, col := range model.Columns {
		goType := typeren.GoType(col)
		goType = qualifyEnum(goType, col, opts)
		if col.IsAutoIncrementPK {
			goType = "*" + strings.TrimPrefix(goType, "*")
		}
		fmt.Fprintf(b, "\t%s %s\n", col.Name, goType)
	}
	b.WriteString("}\n\n")
	return nil
}

// enumStorageGoType returns the Go conversion target for an enum column's
// underlying kind: "int64" for an integer-backed enum, "string" for a
// string-backed one.
func enumStorageGoType(col *inspect.ColumnInfo) string {
	switch col.GoType.Kind().String() {
	case "string":
		return "string"
	default:
		return "int64"
	}
}

func qualifyEnum(goType string, col *inspect.ColumnInfo, opts Options) string {
	if col.Type != core.DataTypeEnum || opts.ModelsPackageAlias == "" {
		return goType
	}
	prefix := ""
	if strings.HasPrefix(goType, "*") {
		prefix = "*"
		goType = strings.TrimPrefix(goType, "*")
	}
	return prefix + opts.ModelsPackageAlias + "." + goType
}

// writeDictTypes emits {M}WhereDict/{M}IncludeDict/{M}OrderByDict/
// {M}InsertDict (spec §4.3). Go has no literal-keyed partial-map type, so
// these are plain maps; the Tcol types above exist so callers still get
// compile-time checked keys wherever the grammar allows it (Include/OrderBy).
func writeDictTypes(b *strings.Builder, model *inspect.ModelInfo) {
	fmt.Fprintf(b, "// %sWhereDict is a nested filter map compiled by internal/where.\ntype %sWhereDict = map[string]any\n\n", model.Name, model.Name)
	fmt.Fprintf(b, "// %sIncludeDict selects which relations to eagerly prefetch.\ntype %sIncludeDict = map[T%sIncludeCol]bool\n\n", model.Name, model.Name, model.Name)
	fmt.Fprintf(b, "// %sOrderByDict orders results by one sortable column.\ntype %sOrderByDict struct {\n\tColumn    T%sSortableCol\n\tDirection core.SortDirection\n}\n\n", model.Name, model.Name, model.Name)
	fmt.Fprintf(b, "// %sInsertDict is an untyped partial payload keyed by column name; the\n// generated %sTable methods take %sInsert, not this map.\ntype %sInsertDict = map[string]any\n\n", model.Name, model.Name, model.Name, model.Name)
}

// writeSerializers emits _{m}_serializer / _{m}_deserializer: pure functions
// from {M}Insert to the storage row and from the storage row to M, unwrapping
// enum values to and from their stored scalar (spec §4.3). The serializer
// accepts only an {M}Insert; it takes no map payload.
func writeSerializers(b *strings.Builder, model *inspect.ModelInfo, recordType string, opts Options) {
	lower := strings.ToLower(model.Name)
	fmt.Fprintf(b, "func _%s_serializer(v %sInsert) runtime.Row {\n\trow := make(runtime.Row, %d)\n", lower, model.Name, len(model.Columns))
	for _, col := range model.Columns {
		if col.Type == core.DataTypeEnum {
			// An enum member's own value is already its stored scalar
			// (spec §9: member values, not member names, are stored), so
			// serializing is a plain underlying-type conversion.
			fmt.Fprintf(b, "\trow[%q] = %s(v.%s)\n", col.Name, enumStorageGoType(col), col.Name)
		} else {
			fmt.Fprintf(b, "\trow[%q] = v.%s\n", col.Name, col.Name)
		}
	}
	b.WriteString("\treturn row\n}\n\n")

	fmt.Fprintf(b, "func _%s_deserializer(row runtime.Row) %s {\n\tvar rec %s\n", lower, recordType, recordType)
	for _, col := range model.Columns {
		goType := typeren.GoType(col)
		goType = qualifyEnum(goType, col, opts)
		if col.Type == core.DataTypeEnum {
			fmt.Fprintf(b, "\trec.%s = %s(row[%q].(%s))\n", col.Name, goType, col.Name, enumStorageGoType(col))
		} else {
			fmt.Fprintf(b, "\trec.%s = row[%q].(%s)\n", col.Name, col.Name, strings.TrimPrefix(goType, "*"))
		}
	}
	b.WriteString("\treturn rec\n}\n\n")
}

// writeRowWrapper emits {M}Row: a materialized record plus the connection
// and batch it was resolved in, so relation attributes can be resolved
// lazily after the fact (spec §4.6 "Lazy resolution" / §8 "Lazy relation").
// Embedding recordType promotes every column field onto {M}Row itself, so
// callers read scalars directly (row.Name) the same way they would off the
// bare record.
func writeRowWrapper(b *strings.Builder, model *inspect.ModelInfo, recordType string) {
	fmt.Fprintf(b, `// %sRow pairs a materialized %s with the client and batch it was loaded
// with, so a relation left out of Include can still be resolved lazily on
// first access (a second access within the same batch issues no query).
type %sRow struct {
	%s
	conn  *runtime.Client
	batch *runtime.Batch
	row   runtime.Row
}

`, model.Name, model.Name, model.Name, recordType)
}

// writeRelationAccessors emits Resolve{Rel} on {M}Row for every relation:
// a single-shot lazy resolver backed by runtime.Client.ResolveRelation, which
// itself consults the batch's relation cache before issuing a query (spec
// §4.6/§8 "Lazy relation").
func writeRelationAccessors(b *strings.Builder, model *inspect.ModelInfo, opts Options) {
	for _, rel := range model.Relations {
		remoteRecordType := qualifiedRecordType(rel.TargetModel, opts)
		remoteLower := strings.ToLower(rel.TargetModel)
		if rel.Cardinality == core.CardinalityMany {
			fmt.Fprintf(b, `// Resolve%s lazily resolves the %s relation, caching the result in the
// batch so a second access issues no query.
func (r *%sRow) Resolve%s(ctx context.Context) ([]*%s, error) {
	v, err := r.conn.ResolveRelation(ctx, r.batch, %q, r.row, %q)
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]runtime.Row)
	out := make([]*%s, len(rows))
	for i, row := range rows {
		rec := _%s_deserializer(row)
		out[i] = &rec
	}
	r.%s.%s = out
	return out, nil
}

`, rel.AttrName, rel.AttrName, model.Name, rel.AttrName, remoteRecordType, model.Name, rel.AttrName, remoteRecordType, remoteLower, model.Name, rel.AttrName)
			continue
		}

		fmt.Fprintf(b, `// Resolve%s lazily resolves the %s relation, caching the result in the
// batch so a second access issues no query.
func (r *%sRow) Resolve%s(ctx context.Context) (*%s, error) {
	v, err := r.conn.ResolveRelation(ctx, r.batch, %q, r.row, %q)
	if err != nil {
		return nil, err
	}
	row, _ := v.(runtime.Row)
	if row == nil {
		r.%s.%s = nil
		return nil, nil
	}
	rec := _%s_deserializer(row)
	r.%s.%s = &rec
	return &rec, nil
}

`, rel.AttrName, rel.AttrName, model.Name, rel.AttrName, remoteRecordType, model.Name, rel.AttrName, model.Name, rel.AttrName, remoteLower, model.Name, rel.AttrName)
	}
}

// eagerResolveLines renders, for each of model's relations, an
// "if include[...] { w.Resolve{Rel}(ctx) }" guard against varName, the
// variable holding a just-built {M}Row. Since prefetch already populated the
// batch for every truthy Include key, these calls are cache hits (no new
// query) — they exist only to copy the prefetched value onto the record's
// own relation field (spec §4.6 Query: "wired into the parent's lazy-relation
// state as already resolved").
func eagerResolveLines(model *inspect.ModelInfo, varName string) string {
	if len(model.Relations) == 0 {
		return ""
	}
	var b strings.Builder
	for _, rel := range model.Relations {
		fmt.Fprintf(&b, "\tif include[%sInclude%s] {\n\t\tif _, err := %s.Resolve%s(ctx); err != nil {\n\t\t\treturn nil, err\n\t\t}\n\t}\n",
			model.Name, rel.AttrName, varName, rel.AttrName)
	}
	return b.String()
}

// writeTable emits {M}Table: insert, insert_many, find_many, find_first,
// parameterized by the dict types above (spec §4.3). find_many/find_first
// return *{M}Row so a relation named in Include arrives already resolved and
// one left out can still be resolved lazily on first access (spec §4.6/§8).
func writeTable(b *strings.Builder, model *inspect.ModelInfo, recordType string) {
	lower := strings.ToLower(model.Name)
	findManyResolve := eagerResolveLines(model, "w")
	findFirstResolve := eagerResolveLines(model, "w")

	fmt.Fprintf(b, `// %sTable is the typed table object for %s, backed by a shared runtime.Client.
type %sTable struct {
	conn  *runtime.Client
	model string
}

// Insert serializes and inserts a single row, returning the materialized record.
func (t *%sTable) Insert(ctx context.Context, rec %sInsert) (*%sRow, error) {
	rows, err := t.InsertMany(ctx, []%sInsert{rec})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// InsertMany serializes and inserts every row in a single multi-row INSERT.
func (t *%sTable) InsertMany(ctx context.Context, recs []%sInsert) ([]*%sRow, error) {
	serialized := make([]runtime.Row, len(recs))
	for i, rec := range recs {
		serialized[i] = _%s_serializer(rec)
	}
	rows, batch, err := t.conn.Insert(ctx, t.model, serialized)
	if err != nil {
		return nil, err
	}
	out := make([]*%sRow, len(rows))
	for i, row := range rows {
		out[i] = &%sRow{%s: _%s_deserializer(row), conn: t.conn, batch: batch, row: row}
	}
	return out, nil
}

// FindMany runs a compiled query and returns the matching rows. Every
// relation named truthy in include arrives already resolved on the returned
// row; any other relation can still be resolved lazily via its Resolve{Rel}
// method.
func (t *%sTable) FindMany(ctx context.Context, where %sWhereDict, include %sIncludeDict, orderBy []%sOrderByDict, take, skip *int) ([]*%sRow, error) {
	opts := runtime.QueryOptions{Where: where, Take: take, Skip: skip}
	if len(include) > 0 {
		opts.Include = make(map[string]bool, len(include))
		for k, v := range include {
			opts.Include[string(k)] = v
		}
	}
	for _, ob := range orderBy {
		opts.OrderBy = append(opts.OrderBy, runtime.OrderTerm{Column: string(ob.Column), Direction: ob.Direction})
	}
	rows, batch, err := t.conn.FindMany(ctx, t.model, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*%sRow, len(rows))
	for i, row := range rows {
		out[i] = &%sRow{%s: _%s_deserializer(row), conn: t.conn, batch: batch, row: row}
	}
	for _, w := range out {
%s	}
	return out, nil
}

// FindFirst is FindMany with an implicit limit of one.
func (t *%sTable) FindFirst(ctx context.Context, where %sWhereDict, include %sIncludeDict) (*%sRow, error) {
	opts := runtime.QueryOptions{Where: where}
	if len(include) > 0 {
		opts.Include = make(map[string]bool, len(include))
		for k, v := range include {
			opts.Include[string(k)] = v
		}
	}
	row, batch, err := t.conn.FindFirst(ctx, t.model, opts)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	w := &%sRow{%s: _%s_deserializer(row), conn: t.conn, batch: batch, row: row}
%s	return w, nil
}

`,
		model.Name, model.Name,
		model.Name,
		model.Name, model.Name, model.Name,
		model.Name,
		model.Name, model.Name, model.Name,
		lower,
		model.Name,
		model.Name, model.Name, lower,
		model.Name, model.Name, model.Name, model.Name, model.Name,
		model.Name,
		model.Name, model.Name, lower,
		findManyResolve,
		model.Name, model.Name, model.Name, model.Name,
		model.Name, model.Name, lower,
		findFirstResolve,
	)
}
