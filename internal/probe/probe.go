// Package probe implements the fake-self reflection trick described in
// spec §4.1: given a record type, it builds a zero-value instance, takes its
// address, invokes the record's key/index/unique/foreign_key methods, and
// recovers which field was referenced by comparing the pointer the method
// returned against the address of each of the instance's own fields.
//
// Unlike the Python source's sentinel proxy (whose __getattr__ fabricates a
// fresh object per attribute access), Go gives us real addressable struct
// fields, so "which attribute was touched" reduces to an address lookup
// instead of tracking a dynamically built path. Anything a method returns
// that isn't the address of one of the receiver's own fields is rejected
// with ProbeError, the same sandboxing spec §4.1 describes for unrecognized
// operations.
package probe

import (
	"reflect"

	"ormgen/internal/modelspec"
	"ormgen/internal/ormerr"
)

// FieldIndex maps the runtime address of each field of a probed instance to
// its declared name, in declaration order.
type FieldIndex struct {
	addrToName map[uintptr]string
	order      []string
}

// BuildFieldIndex allocates a zero-value *T (T being the record's struct
// type) and records the address of every exported field.
func BuildFieldIndex(modelType reflect.Type) (instance any, idx *FieldIndex) {
	ptr := reflect.New(modelType)
	elem := ptr.Elem()
	fi := &FieldIndex{addrToName: make(map[uintptr]string, elem.NumField())}
	for i := 0; i < elem.NumField(); i++ {
		f := modelType.Field(i)
		if !f.IsExported() {
			continue
		}
		addr := elem.Field(i).Addr().Pointer()
		fi.addrToName[addr] = f.Name
		fi.order = append(fi.order, f.Name)
	}
	return ptr.Interface(), fi
}

// resolve maps a value returned by a probed method back to a field name. It
// accepts only pointers into the probed instance's own fields.
func (fi *FieldIndex) resolve(modelName string, v any) (string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return "", ormerr.New(ormerr.CategoryProbeError, modelName,
			"key/index/foreign_key method returned a non-pointer value %#v; only references to the record's own fields are permitted", v)
	}
	name, ok := fi.addrToName[rv.Pointer()]
	if !ok {
		return "", ormerr.New(ormerr.CategoryProbeError, modelName,
			"key/index/foreign_key method referenced a field that is not part of this record")
	}
	return name, nil
}

// PrimaryKey probes a KeyedModel's PrimaryKey method and returns the
// referenced field names in yield order.
func PrimaryKey(modelName string, instance modelspec.KeyedModel, fi *FieldIndex) ([]string, error) {
	refs := instance.PrimaryKey()
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		name, err := fi.resolve(modelName, r)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Indexes probes an IndexedModel (or UniqueModel, sharing the same shape)
// and returns each declared index as an ordered slice of field names.
func Indexes(modelName string, specs []modelspec.Index, fi *FieldIndex) ([][]string, error) {
	out := make([][]string, 0, len(specs))
	for _, spec := range specs {
		cols := make([]string, 0, len(spec.Columns))
		for _, c := range spec.Columns {
			name, err := fi.resolve(modelName, c)
			if err != nil {
				return nil, err
			}
			cols = append(cols, name)
		}
		out = append(out, cols)
	}
	return out, nil
}

// ForeignKeys probes a ForeignKeyedModel and returns, for each declared
// foreign key, the local field names the comparison touched. The remote
// side of a modelspec.ForeignKey is already named by string (spec.RemoteColumn)
// because Go's static types make a remote address-based probe unnecessary:
// the remote model is resolved by its registered name in the inspector.
func ForeignKeys(modelName string, instance modelspec.ForeignKeyedModel, fi *FieldIndex) ([]ResolvedForeignKey, error) {
	specs := instance.ForeignKeys()
	out := make([]ResolvedForeignKey, 0, len(specs))
	for _, spec := range specs {
		localName, err := fi.resolve(modelName, spec.Local)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedForeignKey{
			LocalColumn:    localName,
			RemoteModel:    spec.RemoteModel,
			RemoteColumn:   spec.RemoteColumn,
			LocalRelation:  spec.LocalRelation,
			RemoteRelation: spec.RemoteRelation,
		})
	}
	return out, nil
}

// ResolvedForeignKey is a modelspec.ForeignKey with its local pointer
// resolved down to a field name.
type ResolvedForeignKey struct {
	LocalColumn    string
	RemoteModel    any
	RemoteColumn   string
	LocalRelation  string
	RemoteRelation string
}
