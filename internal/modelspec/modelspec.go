// Package modelspec is the small vocabulary a record author imports to
// declare primary keys, indexes, unique constraints, and virtual foreign
// keys on their own struct fields.
//
// Go has no dynamic attribute proxy, so the declaration methods below take
// the place of the Python source's self.<attr> expressions: they return
// pointers into the receiver's own fields. internal/probe later constructs a
// zero-value receiver, invokes these methods, and recovers the field name by
// comparing the returned pointer's address against each field's address —
// the same "fake self" trick the Python source plays with a sentinel proxy,
// expressed with real addresses instead of a dynamic __getattr__.
//
// A record declares these methods by implementing KeyedModel / IndexedModel
// / UniqueModel / ForeignKeyedModel on a pointer receiver; none are
// mandatory, matching the optional key/index/unique/foreign_key methods of
// the Python source.
package modelspec

// Index names a single index or unique-constraint candidate: the ordered
// list of pointers to the receiver's own fields that make up the key.
type Index struct {
	Columns []any
}

// Idx builds an Index from a sequence of field pointers, e.g.
// Idx(&u.Email) or Idx(&u.TenantID, &u.Slug) for a composite index.
func Idx(columns ...any) Index {
	return Index{Columns: columns}
}

// ForeignKey describes a virtual foreign key from one local scalar column to
// a column on a remote model, plus the two relation attribute names that
// view the link from each side (spec §3 ForeignKeyInfo).
type ForeignKey struct {
	// Local is a pointer to the receiver's own scalar column field, e.g. &a.UserID.
	Local any
	// RemoteModel is a pointer to a zero value of the remote model type, e.g. (*User)(nil).
	RemoteModel any
	// RemoteColumn is the remote model's column field name, e.g. "ID".
	RemoteColumn string
	// LocalRelation is this model's relation field name viewing the remote row, e.g. "User".
	LocalRelation string
	// RemoteRelation is the remote model's relation field name viewing this side, e.g. "Addresses".
	RemoteRelation string
}

// FK builds a ForeignKey declaration.
func FK(local any, remoteModel any, remoteColumn, localRelation, remoteRelation string) ForeignKey {
	return ForeignKey{
		Local:          local,
		RemoteModel:    remoteModel,
		RemoteColumn:   remoteColumn,
		LocalRelation:  localRelation,
		RemoteRelation: remoteRelation,
	}
}

// KeyedModel is implemented by records with an explicit, non-auto-increment
// primary key. PrimaryKey returns pointers to the receiver's own fields.
type KeyedModel interface {
	PrimaryKey() []any
}

// IndexedModel is implemented by records declaring one or more (non-unique)
// indexes.
type IndexedModel interface {
	Indexes() []Index
}

// UniqueModel is implemented by records declaring one or more unique
// constraints. A unique index is also a candidate lookup key (spec §3).
type UniqueModel interface {
	Unique() []Index
}

// ForeignKeyedModel is implemented by records declaring virtual foreign keys
// to other records.
type ForeignKeyedModel interface {
	ForeignKeys() []ForeignKey
}

// EnumType is implemented on a named scalar type used as a column's Go type
// to record the mapping between its members and the scalar values stored in
// the database (spec §3 ColumnInfo.enum_mapping, §9 "member values, not
// member names, are stored").
type EnumType interface {
	EnumValues() map[string]any
}

// DataSource is the module-level datasource descriptor a record's package
// associates itself with (spec §6).
type DataSource struct {
	Key      string
	Provider string
	URL      string
}

// DataSourced is implemented by a record type that names a non-default
// datasource key; records without it are grouped under the provider name
// (spec §3 DataSourceConfig.key).
type DataSourced interface {
	DataSource() DataSource
}
