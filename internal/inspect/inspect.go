// Package inspect implements the Model Inspector (spec §4.2): it walks a set
// of record types and produces the normalized ModelInfo graph that the code
// generator, schema builder, and runtime all consume.
//
// Grounded on the teacher's internal/introspect registry pattern (a fixed
// set of probed sources feeding one normalized Database value) and
// internal/core/validate*.go's rule structure, retargeted from "read a live
// catalog" to "read a set of Go record types".
package inspect

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"ormgen/internal/core"
	"ormgen/internal/modelspec"
	"ormgen/internal/ormerr"
	"ormgen/internal/probe"
)

// ColumnInfo is a single persisted scalar field of a model (spec §3).
type ColumnInfo struct {
	Name               string
	GoType             reflect.Type
	Type               core.DataType
	Nullable           bool
	DefaultPresent     bool
	DefaultIsFactory   bool
	DefaultExpr        string
	IsAutoIncrementPK  bool
	EnumMapping        map[string]any // member name -> stored scalar value, nil unless Type == DataTypeEnum
}

// RelationInfo is a non-scalar field referencing another model (spec §3).
type RelationInfo struct {
	AttrName      string
	TargetModel   string
	Cardinality   core.Cardinality
	BackrefName   string
	ViaForeignKey *ForeignKeyInfo
	local         bool // true if the owning model holds the scalar FK column
}

// ForeignKeyInfo is a virtual foreign key linking two models (spec §3).
type ForeignKeyInfo struct {
	FromModel          string
	FromColumns        []string
	ToModel            string
	ToColumns          []string
	LocalRelationAttr  string
	RemoteRelationAttr string
}

// ModelInfo is the normalized description of one record (spec §3).
type ModelInfo struct {
	Name           string
	TableName      string
	GoType         reflect.Type
	Columns        []*ColumnInfo
	PrimaryKey     []string
	Indexes        []IndexDecl
	Relations      []*RelationInfo
	ForeignKeys    []*ForeignKeyInfo
	DataSourceKey  string
}

// IndexDecl is one declared index or unique constraint.
type IndexDecl struct {
	Columns []string
	Unique  bool
}

// FindColumn looks up a column by name.
func (m *ModelInfo) FindColumn(name string) *ColumnInfo {
	for _, c := range m.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DataSourceConfig groups models under a single provider/url (spec §3).
type DataSourceConfig struct {
	Key      string
	Provider string
	URL      string
}

// Result is the output of Inspect: the datasource configs and the models
// grouped beneath them, plus a flat name-indexed lookup.
type Result struct {
	DataSources   map[string]*DataSourceConfig
	ModelsByName  map[string]*ModelInfo
	Order         []string // model names in declaration order, for deterministic codegen
}

type pending struct {
	modelType reflect.Type
	instance  any
	fieldIdx  *probe.FieldIndex
	info      *ModelInfo
}

// Inspect builds the ModelInfo graph for a set of record pointers, e.g.
// Inspect(&User{}, &Address{}). Each entry's concrete type is used only to
// learn the record's shape; a fresh zero value is probed internally.
func Inspect(models ...any) (*Result, error) {
	res := &Result{
		DataSources:  make(map[string]*DataSourceConfig),
		ModelsByName: make(map[string]*ModelInfo),
	}

	pendings := make([]*pending, 0, len(models))
	typeByName := make(map[string]reflect.Type, len(models))

	// Pass 1: register every model's shape, table name, and datasource.
	// Columns, relations, and FK binding come later, since relation
	// detection needs every model's type registered first.
	for _, m := range models {
		t := reflect.TypeOf(m)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		name := t.Name()
		if _, dup := typeByName[name]; dup {
			continue
		}
		typeByName[name] = t

		instance, fi := probe.BuildFieldIndex(t)

		dsKey, provider, url := dataSourceOf(instance)
		tableName := strings.ToLower(name)
		if _, ok := res.DataSources[dsKey]; ok {
			if existing, ok2 := res.ModelsByName[tableKey(dsKey, tableName)]; ok2 {
				return nil, ormerr.New(ormerr.CategoryDuplicateTable, name,
					"table %q is already declared by model %s within datasource %q", tableName, existing.Name, dsKey).WithContext(map[string]any{"table": tableName, "datasource": dsKey})
			}
		} else {
			res.DataSources[dsKey] = &DataSourceConfig{Key: dsKey, Provider: provider, URL: url}
		}

		info := &ModelInfo{
			Name:          name,
			TableName:     tableName,
			GoType:        t,
			DataSourceKey: dsKey,
		}

		p := &pending{modelType: t, instance: instance, fieldIdx: fi, info: info}
		pendings = append(pendings, p)
		res.ModelsByName[name] = info
		res.Order = append(res.Order, name)
		res.ModelsByName[tableKey(dsKey, tableName)] = info
	}

	// Pass 2: columns, relation field detection (structural, not probed),
	// primary key, indexes.
	for _, p := range pendings {
		if err := buildColumnsAndRelations(p, typeByName); err != nil {
			return nil, err
		}
		if err := buildPrimaryKey(p); err != nil {
			return nil, err
		}
		if err := buildIndexes(p); err != nil {
			return nil, err
		}
	}

	// Pass 3: bind foreign keys now that every model (and its columns) is
	// known, resolving forward references (spec §4.2/§9).
	for _, p := range pendings {
		if err := bindForeignKeys(p, res); err != nil {
			return nil, err
		}
	}

	// Pass 4: stabilize relation order: own-table (local FK) first, then
	// declaration order (spec §4.2).
	for _, p := range pendings {
		rels := p.info.Relations
		sort.SliceStable(rels, func(i, j int) bool {
			return localityRank(rels[i]) < localityRank(rels[j])
		})
	}

	return res, nil
}

func localityRank(r *RelationInfo) int {
	if r.local {
		return 0
	}
	return 1
}

func tableKey(dsKey, tableName string) string { return dsKey + "\x00" + tableName }

func dataSourceOf(instance any) (key, provider, url string) {
	if ds, ok := instance.(modelspec.DataSourced); ok {
		d := ds.DataSource()
		k := d.Key
		if k == "" {
			k = d.Provider
		}
		return k, d.Provider, d.URL
	}
	return string(core.ProviderSQLite), string(core.ProviderSQLite), "sqlite:///:memory:"
}

var timeType = reflect.TypeOf(time.Time{})

func buildColumnsAndRelations(p *pending, typeByName map[string]reflect.Type) error {
	t := p.modelType
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ft := f.Type
		nullable := false
		if ft.Kind() == reflect.Ptr {
			if relTarget, ok := relationTarget(ft.Elem(), typeByName); ok {
				// Cardinality is provisionally "one"; bindForeignKeys
				// downgrades it to "optional-one" once the bound FK
				// column's own nullability is known.
				p.info.Relations = append(p.info.Relations, &RelationInfo{
					AttrName:    f.Name,
					TargetModel: relTarget,
					Cardinality: core.CardinalityOne,
				})
				continue
			}
			nullable = true
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Ptr {
			if relTarget, ok := relationTarget(ft.Elem().Elem(), typeByName); ok {
				p.info.Relations = append(p.info.Relations, &RelationInfo{
					AttrName:    f.Name,
					TargetModel: relTarget,
					Cardinality: core.CardinalityMany,
				})
				continue
			}
		}
		if relTarget, ok := relationTarget(ft, typeByName); ok && ft != timeType {
			p.info.Relations = append(p.info.Relations, &RelationInfo{
				AttrName:    f.Name,
				TargetModel: relTarget,
				Cardinality: core.CardinalityOne,
			})
			continue
		}

		col, err := buildColumn(p.info.Name, f, ft, nullable)
		if err != nil {
			return err
		}
		p.info.Columns = append(p.info.Columns, col)
	}
	return nil
}

func relationTarget(t reflect.Type, typeByName map[string]reflect.Type) (string, bool) {
	if t.Kind() != reflect.Struct || t == timeType {
		return "", false
	}
	if _, ok := typeByName[t.Name()]; ok {
		return t.Name(), true
	}
	return "", false
}

func buildColumn(modelName string, f reflect.StructField, scalarType reflect.Type, nullable bool) (*ColumnInfo, error) {
	dt, enumMapping, err := classify(modelName, f.Name, scalarType)
	if err != nil {
		return nil, err
	}

	tag := parseTag(f.Tag.Get("orm"))

	col := &ColumnInfo{
		Name:     f.Name,
		GoType:   f.Type,
		Type:     dt,
		Nullable: nullable || tag.nullable,
	}
	if tag.defaultExpr != "" {
		col.DefaultPresent = true
		col.DefaultExpr = tag.defaultExpr
		col.DefaultIsFactory = tag.defaultIsFactory
	}
	if dt == core.DataTypeEnum {
		col.EnumMapping = enumMapping
	}
	return col, nil
}

// classify maps a Go scalar type to its portable core.DataType, extracting
// the enum member->value mapping when the type implements modelspec.EnumType.
func classify(modelName, fieldName string, t reflect.Type) (core.DataType, map[string]any, error) {
	zero := reflect.Zero(t).Interface()
	if enumer, ok := zero.(modelspec.EnumType); ok {
		return core.DataTypeEnum, enumer.EnumValues(), nil
	}
	if t == timeType {
		return core.DataTypeDatetime, nil, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		// A bare byte (Uint8) field is an integer column; []byte is handled
		// separately below via the Slice case.
		return core.DataTypeInt, nil, nil
	case reflect.Float32, reflect.Float64:
		return core.DataTypeFloat, nil, nil
	case reflect.String:
		return core.DataTypeString, nil, nil
	case reflect.Bool:
		return core.DataTypeBool, nil, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return core.DataTypeBytes, nil, nil
		}
	}
	return "", nil, ormerr.New(ormerr.CategoryProbeError, modelName,
		"field has an unsupported column type %s", t).WithColumn(fieldName)
}

type tagInfo struct {
	nullable         bool
	defaultExpr      string
	defaultIsFactory bool
}

// parseTag reads the `orm:"..."` struct tag directives: "nullable",
// "default=<literal>", and "default=factory:<name>".
func parseTag(raw string) tagInfo {
	var ti tagInfo
	if raw == "" {
		return ti
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "nullable":
			ti.nullable = true
		case strings.HasPrefix(part, "default="):
			val := strings.TrimPrefix(part, "default=")
			if strings.HasPrefix(val, "factory:") {
				ti.defaultIsFactory = true
				ti.defaultExpr = strings.TrimPrefix(val, "factory:")
			} else {
				ti.defaultExpr = val
			}
		}
	}
	return ti
}

func buildPrimaryKey(p *pending) error {
	if keyed, ok := p.instance.(modelspec.KeyedModel); ok {
		names, err := probe.PrimaryKey(p.info.Name, keyed, p.fieldIdx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return ormerr.New(ormerr.CategoryMissingPrimaryKey, p.info.Name, "PrimaryKey() returned no columns")
		}
		p.info.PrimaryKey = names
		return nil
	}

	// Auto-increment rule (spec §3): a column named "id" (case-insensitive),
	// integer-typed, with no explicit primary_key method, is the sole PK.
	for _, c := range p.info.Columns {
		if strings.EqualFold(c.Name, "id") && c.Type == core.DataTypeInt {
			c.IsAutoIncrementPK = true
			p.info.PrimaryKey = []string{c.Name}
			return nil
		}
	}
	return ormerr.New(ormerr.CategoryMissingPrimaryKey, p.info.Name,
		"no \"id\" integer column and no PrimaryKey() method declared")
}

func buildIndexes(p *pending) error {
	if indexed, ok := p.instance.(modelspec.IndexedModel); ok {
		cols, err := probe.Indexes(p.info.Name, indexed.Indexes(), p.fieldIdx)
		if err != nil {
			return err
		}
		for _, c := range cols {
			p.info.Indexes = append(p.info.Indexes, IndexDecl{Columns: c, Unique: false})
		}
	}
	if uniq, ok := p.instance.(modelspec.UniqueModel); ok {
		cols, err := probe.Indexes(p.info.Name, uniq.Unique(), p.fieldIdx)
		if err != nil {
			return err
		}
		for _, c := range cols {
			p.info.Indexes = append(p.info.Indexes, IndexDecl{Columns: c, Unique: true})
		}
	}
	for _, idx := range p.info.Indexes {
		for _, colName := range idx.Columns {
			if p.info.FindColumn(colName) == nil {
				return ormerr.New(ormerr.CategoryMissingPrimaryKey, p.info.Name,
					"index references undeclared column %q", colName).WithColumn(colName)
			}
		}
	}
	return nil
}

func bindForeignKeys(p *pending, res *Result) error {
	fkModel, ok := p.instance.(modelspec.ForeignKeyedModel)
	if !ok {
		return nil
	}
	resolved, err := probe.ForeignKeys(p.info.Name, fkModel, p.fieldIdx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(resolved))
	for _, r := range resolved {
		remoteType := reflect.TypeOf(r.RemoteModel)
		if remoteType.Kind() == reflect.Ptr {
			remoteType = remoteType.Elem()
		}
		remoteModel, ok := res.ModelsByName[remoteType.Name()]
		if !ok {
			return ormerr.New(ormerr.CategoryUnknownModelReference, p.info.Name,
				"foreign key references unregistered model %s", remoteType.Name())
		}
		if remoteModel.FindColumn(r.RemoteColumn) == nil {
			return ormerr.New(ormerr.CategoryUnknownModelReference, p.info.Name,
				"foreign key references unknown column %s.%s", remoteModel.Name, r.RemoteColumn)
		}

		dedupKey := r.LocalColumn + "->" + remoteModel.Name + "." + r.RemoteColumn
		if seen[dedupKey] {
			return ormerr.New(ormerr.CategoryAmbiguousForeignKey, p.info.Name,
				"multiple foreign_key entries name the same column pair %s", dedupKey)
		}
		seen[dedupKey] = true

		fk := &ForeignKeyInfo{
			FromModel:          p.info.Name,
			FromColumns:        []string{r.LocalColumn},
			ToModel:            remoteModel.Name,
			ToColumns:          []string{r.RemoteColumn},
			LocalRelationAttr:  r.LocalRelation,
			RemoteRelationAttr: r.RemoteRelation,
		}
		p.info.ForeignKeys = append(p.info.ForeignKeys, fk)

		if rel := findRelation(p.info, r.LocalRelation); rel != nil {
			rel.ViaForeignKey = fk
			rel.BackrefName = r.RemoteRelation
			rel.local = true
			if localCol := p.info.FindColumn(r.LocalColumn); localCol != nil && localCol.Nullable {
				rel.Cardinality = core.CardinalityOptionalOne
			}
		}
		if rel := findRelation(remoteModel, r.RemoteRelation); rel != nil {
			rel.ViaForeignKey = fk
			rel.BackrefName = r.LocalRelation
		}
	}
	return nil
}

func findRelation(m *ModelInfo, attrName string) *RelationInfo {
	for _, r := range m.Relations {
		if r.AttrName == attrName {
			return r
		}
	}
	return nil
}
