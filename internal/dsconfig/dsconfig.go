// Package dsconfig parses the datasource descriptor a generated client
// module loads at startup: which provider and URL each datasource key binds
// to (spec §6).
//
// Grounded on the teacher's own TOML front-end (internal/parser/toml),
// reusing the same github.com/BurntSushi/toml library for a different
// document shape: a table of named datasources instead of a schema dump.
package dsconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"ormgen/internal/core"
	"ormgen/internal/ormerr"
)

// Entry is one [datasources.<key>] table.
type Entry struct {
	Provider string `toml:"provider"`
	URL      string `toml:"url"`
}

// File is the top-level shape of a datasource config file:
//
//	[datasources.default]
//	provider = "sqlite"
//	url = "file:app.db"
type File struct {
	Datasources map[string]Entry `toml:"datasources"`
}

// Load reads and validates a datasource config file from path.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("dsconfig: decode %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadBytes decodes a datasource config from raw TOML text, for callers that
// already have the file contents in memory (e.g. embedded in a test).
func LoadBytes(data []byte) (*File, error) {
	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("dsconfig: decode: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// validate only checks what the file itself must supply: a recognized
// provider per entry. The URL may legitimately be left blank in the file, to
// be filled in from the environment at Resolve time, so it is not checked
// here.
func (f *File) validate() error {
	for key, e := range f.Datasources {
		if !core.ValidProvider(e.Provider) {
			return ormerr.New(ormerr.CategoryUnsupportedProvider, key, "unsupported provider %q", e.Provider)
		}
	}
	return nil
}

// Resolve looks up one datasource entry by key, falling back to the
// OS environment variable ORMGEN_<KEY>_URL for the URL when the file itself
// leaves it blank (e.g. a checked-in config pointing at a deployment secret).
// It reports an error if neither the file nor the environment supplies a URL.
func (f *File) Resolve(key string) (Entry, error) {
	e, ok := f.Datasources[key]
	if !ok {
		return Entry{}, fmt.Errorf("dsconfig: no datasource named %q", key)
	}
	if e.URL == "" {
		if v, ok := os.LookupEnv("ORMGEN_" + key + "_URL"); ok {
			e.URL = v
		}
	}
	if e.URL == "" {
		return Entry{}, fmt.Errorf("dsconfig: datasource %q: url is required (set it in the config file or ORMGEN_%s_URL)", key, key)
	}
	return e, nil
}
