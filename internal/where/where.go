// Package where is the Where Compiler (spec §4.5): it translates a nested
// filter map into a SQL fragment plus its positional parameters.
//
// New code — the teacher has no query filter language of its own — grounded
// in idiom on other_examples/9fd72b6b_patrickascher-gofer__orm-model.go.go's
// condition-object-composed-into-SQL-with-placeholders pattern, and on
// internal/diff/diff.go's table-walking style for structuring the recursive
// grammar below.
package where

import (
	"fmt"
	"sort"
	"strings"

	"ormgen/internal/core"
	"ormgen/internal/inspect"
	"ormgen/internal/ormerr"
)

// Registry resolves a model by name, the same shape inspect.Result exposes,
// so the compiler can follow a relation filter to its remote table.
type Registry interface {
	Model(name string) (*inspect.ModelInfo, bool)
}

type modelRegistry struct{ r *inspect.Result }

func (m modelRegistry) Model(name string) (*inspect.ModelInfo, bool) {
	mi, ok := m.r.ModelsByName[name]
	return mi, ok
}

// NewRegistry adapts an inspect.Result into a Registry.
func NewRegistry(r *inspect.Result) Registry { return modelRegistry{r: r} }

// Compiled is a compiled filter: a boolean SQL expression plus its
// positional parameters, in the order the "?" placeholders appear.
type Compiled struct {
	SQL    string
	Params []any
}

var scalarOps = map[string]string{
	"eq":          "=",
	"ne":          "!=",
	"lt":          "<",
	"lte":         "<=",
	"gt":          ">",
	"gte":         ">=",
}

var relationOps = map[string]bool{"is": true, "is_not": true, "some": true, "none": true, "every": true}

// Compile translates filter against model (qualifying columns with alias,
// e.g. "user") using reg to resolve relation targets.
func Compile(model *inspect.ModelInfo, alias string, filter map[string]any, reg Registry) (*Compiled, error) {
	if len(filter) == 0 {
		return &Compiled{SQL: "1=1"}, nil
	}

	// Deterministic key order keeps generated SQL (and its tests) stable.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var params []any
	for _, key := range keys {
		value := filter[key]
		clause, err := compileKey(model, alias, key, value, reg)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause.SQL)
		params = append(params, clause.Params...)
	}

	sql := strings.Join(clauses, " AND ")
	if len(clauses) > 1 {
		sql = "(" + sql + ")"
	}
	return &Compiled{SQL: sql, Params: params}, nil
}

func compileKey(model *inspect.ModelInfo, alias, key string, value any, reg Registry) (*Compiled, error) {
	switch key {
	case "and":
		return compileLogical(model, alias, value, " AND ", reg)
	case "or":
		return compileLogical(model, alias, value, " OR ", reg)
	case "not":
		sub, ok := value.(map[string]any)
		if !ok {
			return nil, invalidFilter(model, "not requires a single filter object")
		}
		inner, err := Compile(model, alias, sub, reg)
		if err != nil {
			return nil, err
		}
		return &Compiled{SQL: "NOT (" + inner.SQL + ")", Params: inner.Params}, nil
	}

	if col := model.FindColumn(key); col != nil {
		return compileScalar(model, alias, col, value)
	}

	for _, rel := range model.Relations {
		if rel.AttrName == key {
			return compileRelation(model, alias, rel, value, reg)
		}
	}

	return nil, invalidFilter(model, fmt.Sprintf("unknown filter key %q", key))
}

func compileLogical(model *inspect.ModelInfo, alias string, value any, joiner string, reg Registry) (*Compiled, error) {
	arr, ok := value.([]map[string]any)
	if !ok {
		if raw, ok2 := value.([]any); ok2 {
			arr = make([]map[string]any, 0, len(raw))
			for _, item := range raw {
				m, ok3 := item.(map[string]any)
				if !ok3 {
					return nil, invalidFilter(model, "and/or requires an array of filter objects")
				}
				arr = append(arr, m)
			}
		} else {
			return nil, invalidFilter(model, "and/or requires an array of filter objects")
		}
	}

	// "and [A, B]" is equivalent to inlining A and B as siblings; "or [A]"
	// is equivalent to A (spec §9 where-compiler algebra).
	var parts []string
	var params []any
	for _, sub := range arr {
		c, err := Compile(model, alias, sub, reg)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c.SQL)
		params = append(params, c.Params...)
	}
	if len(parts) == 0 {
		return &Compiled{SQL: "1=1"}, nil
	}
	if len(parts) == 1 {
		return &Compiled{SQL: parts[0], Params: params}, nil
	}
	return &Compiled{SQL: "(" + strings.Join(parts, joiner) + ")", Params: params}, nil
}

func compileScalar(model *inspect.ModelInfo, alias string, col *inspect.ColumnInfo, value any) (*Compiled, error) {
	qualified := alias + "." + col.Name

	opMap, isOpMap := value.(map[string]any)
	if !isOpMap {
		// bare value: direct equality, nil meaning IS NULL.
		if value == nil {
			return &Compiled{SQL: qualified + " IS NULL"}, nil
		}
		return &Compiled{SQL: qualified + " = ?", Params: []any{value}}, nil
	}

	keys := make([]string, 0, len(opMap))
	for k := range opMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var params []any
	for _, op := range keys {
		v := opMap[op]
		switch op {
		case "eq", "ne", "lt", "lte", "gt", "gte":
			clauses = append(clauses, qualified+" "+scalarOps[op]+" ?")
			params = append(params, v)
		case "in", "nin":
			list, ok := v.([]any)
			if !ok {
				return nil, invalidFilter(model, fmt.Sprintf("%s requires a list value", op)).WithColumn(col.Name)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(list)), ",")
			kw := "IN"
			if op == "nin" {
				kw = "NOT IN"
			}
			if len(list) == 0 {
				// an empty IN-list is never satisfied; an empty NOT IN is always satisfied.
				if op == "in" {
					clauses = append(clauses, "1=0")
				} else {
					clauses = append(clauses, "1=1")
				}
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", qualified, kw, placeholders))
			params = append(params, list...)
		case "contains":
			clauses = append(clauses, qualified+" LIKE ?")
			params = append(params, "%"+fmt.Sprint(v)+"%")
		case "starts_with":
			clauses = append(clauses, qualified+" LIKE ?")
			params = append(params, fmt.Sprint(v)+"%")
		case "ends_with":
			clauses = append(clauses, qualified+" LIKE ?")
			params = append(params, "%"+fmt.Sprint(v))
		case "is_null":
			want, _ := v.(bool)
			if want {
				clauses = append(clauses, qualified+" IS NULL")
			} else {
				clauses = append(clauses, qualified+" IS NOT NULL")
			}
		default:
			return nil, invalidFilter(model, fmt.Sprintf("unrecognized scalar operator %q", op)).WithColumn(col.Name)
		}
	}
	sql := strings.Join(clauses, " AND ")
	if len(clauses) > 1 {
		sql = "(" + sql + ")"
	}
	return &Compiled{SQL: sql, Params: params}, nil
}

func compileRelation(model *inspect.ModelInfo, alias string, rel *inspect.RelationInfo, value any, reg Registry) (*Compiled, error) {
	obj, ok := value.(map[string]any)
	if !ok || len(obj) != 1 {
		return nil, invalidFilter(model, "relation filter requires a single-key object").WithRelation(rel.AttrName)
	}
	var op string
	var sub any
	for k, v := range obj {
		op, sub = k, v
	}
	if !relationOps[op] {
		return nil, invalidFilter(model, fmt.Sprintf("unrecognized relation operator %q", op)).WithRelation(rel.AttrName)
	}
	if (op == "some" || op == "none" || op == "every") && rel.Cardinality != core.CardinalityMany {
		return nil, invalidFilter(model, fmt.Sprintf("%q only applies to many relations", op)).WithRelation(rel.AttrName)
	}

	remote, ok := reg.Model(rel.TargetModel)
	if !ok {
		return nil, invalidFilter(model, fmt.Sprintf("relation %q targets unknown model %q", rel.AttrName, rel.TargetModel)).WithRelation(rel.AttrName)
	}
	if rel.ViaForeignKey == nil {
		return nil, invalidFilter(model, fmt.Sprintf("relation %q has no resolved foreign key", rel.AttrName)).WithRelation(rel.AttrName)
	}

	remoteAlias := alias + "__" + strings.ToLower(rel.AttrName)
	joinPred := joinPredicate(model, alias, remote, remoteAlias, rel)

	subFilter, _ := sub.(map[string]any)
	if sub == nil {
		subFilter = map[string]any{}
	}
	inner, err := Compile(remote, remoteAlias, subFilter, reg)
	if err != nil {
		return nil, err
	}

	switch op {
	case "is", "some":
		return &Compiled{
			SQL:    fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s AND %s)", remote.TableName, remoteAlias, joinPred, inner.SQL),
			Params: inner.Params,
		}, nil
	case "is_not", "none":
		return &Compiled{
			SQL:    fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s %s WHERE %s AND %s)", remote.TableName, remoteAlias, joinPred, inner.SQL),
			Params: inner.Params,
		}, nil
	case "every":
		// "every" over an empty many relation is vacuously true (spec §9):
		// NOT EXISTS a row that joins but fails the filter captures this,
		// since no joining rows at all means no counterexample exists.
		return &Compiled{
			SQL:    fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s %s WHERE %s AND NOT (%s))", remote.TableName, remoteAlias, joinPred, inner.SQL),
			Params: inner.Params,
		}, nil
	}
	panic("unreachable")
}

// joinPredicate renders the correlated join condition between the parent
// alias and a remote alias, using whichever side of the foreign key the
// relation attribute lives on.
func joinPredicate(model *inspect.ModelInfo, alias string, remote *inspect.ModelInfo, remoteAlias string, rel *inspect.RelationInfo) string {
	fk := rel.ViaForeignKey
	var parts []string
	if fk.FromModel == model.Name {
		for i := range fk.FromColumns {
			parts = append(parts, fmt.Sprintf("%s.%s = %s.%s", remoteAlias, fk.ToColumns[i], alias, fk.FromColumns[i]))
		}
	} else {
		for i := range fk.FromColumns {
			parts = append(parts, fmt.Sprintf("%s.%s = %s.%s", remoteAlias, fk.FromColumns[i], alias, fk.ToColumns[i]))
		}
	}
	return strings.Join(parts, " AND ")
}

func invalidFilter(model *inspect.ModelInfo, msg string) *ormerr.Error {
	return ormerr.New(ormerr.CategoryInvalidFilter, model.Name, "%s", msg)
}
