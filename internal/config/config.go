// Package config defines the canonical, JSON-serializable configuration model
// for the normalization application. It is intentionally small and explicit so
// that runs can be loaded from disk and passed through the program without
// additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/*.json.
//  3. Minimalism: Decoding is performed by the standard library, with a light
//     Options helper for typed access to parser option bags.
//
// Example (trimmed):
//
//	{
//	  "job": "normalize-wells-ab",
//	  "sources": {
//	    "licensing": {
//	      "fetch":    { "kind": "http", "http": { "url": "https://.../st1.csv" } },
//	      "parser":   { "kind": "csv", "options": { "encoding": "utf-8" } },
//	      "contract": { "source": "licensing", "fields": [...] }
//	    }
//	  },
//	  "join":    { "well_column": "UWI", ... },
//	  "fill":    [ { "target": "Operator", "group_key": "Licence", "method": "first-non-null-in-group" } ],
//	  "output":  { "dir": "data/final" },
//	  "storage": { "kind": "postgres", "db": { "dsn": "...", "table": "public.wells" } }
//	}
package config

import (
	"encoding/json"

	"wellnorm/internal/fill"
	"wellnorm/internal/join"
	"wellnorm/internal/schema"
)

// Pipeline describes one full normalization run in JSON. It is the top-level
// object decoded from a run file.
type Pipeline struct {
	// Job names the run for metrics labeling and logging.
	Job string `json:"job"`

	// Sources configures the three input extracts.
	Sources Sources `json:"sources"`

	// Join declares how validated sources combine into one row per well.
	Join join.Plan `json:"join"`

	// Fill lists the gap-filling rules, applied in order.
	Fill []fill.Rule `json:"fill"`

	// Output configures the local artifacts and optional object store upload.
	Output Output `json:"output"`

	// Storage describes the optional database sink for the final table.
	Storage Storage `json:"storage"`
}

// Sources bundles the per-source configuration blocks.
type Sources struct {
	Licensing  SourceConfig `json:"licensing"`
	Drilling   SourceConfig `json:"drilling"`
	Production SourceConfig `json:"production"`
}

// SourceConfig describes how one extract is fetched, unpacked, parsed, and
// validated.
type SourceConfig struct {
	// Fetch describes where the raw bytes come from.
	Fetch Fetch `json:"fetch"`

	// Archive, when Member is set, extracts one file from a zip archive
	// before parsing. The drilling registry ships zipped.
	Archive Archive `json:"archive"`

	// Parser configures how raw bytes become a typed table.
	Parser Parser `json:"parser"`

	// Contract is the schema the parsed table must satisfy.
	Contract schema.Contract `json:"contract"`
}

// Fetch identifies a data source. Additional kinds can be added over time.
type Fetch struct {
	// Kind selects the implementation: "file" or "http".
	Kind string `json:"kind"`

	// File carries options for the "file" kind.
	File SourceFile `json:"file"`

	// HTTP carries options for the "http" kind.
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" fetch kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" fetch kind.
type SourceHTTP struct {
	// URL is the download location. It may contain the token {month},
	// replaced with a production month (YYYY-MM) during period resolution.
	URL string `json:"url"`

	// LookbackMonths bounds how many months the fetcher walks backward
	// from the current month to find a published extract. Zero means the
	// URL is fetched as-is.
	LookbackMonths int `json:"lookback_months"`

	// TimeoutSeconds bounds one download attempt. Zero uses the client
	// default.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Archive configures optional zip extraction between fetch and parse.
type Archive struct {
	// Member is the name of the file to extract from the archive. Empty
	// means the fetched bytes are parsed directly.
	Member string `json:"member"`
}

// Parser selects how to parse the raw source into a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV, typical keys include:
	//   comma (string), encoding (string), rename (object),
	//   keep (array), types (object), null_markers (array)
	Options Options `json:"options"`
}

// Output configures where the final artifacts are written.
type Output struct {
	// Dir is the local directory for the parquet, CSV, and quality files.
	Dir string `json:"dir"`

	// ObjectStore, when Bucket is set, uploads the artifacts after writing.
	ObjectStore ObjectStore `json:"object_store"`
}

// ObjectStore configures the S3-compatible artifact upload.
type ObjectStore struct {
	// Endpoint is the host:port of the S3-compatible server.
	Endpoint string `json:"endpoint"`

	// Bucket receives the artifacts; empty disables the upload.
	Bucket string `json:"bucket"`

	// Prefix is prepended to object names (e.g. "wells/ab").
	Prefix string `json:"prefix"`

	// UseSSL selects https transport to the endpoint.
	UseSSL bool `json:"use_ssl"`

	// AccessKeyEnv and SecretKeyEnv name the environment variables holding
	// the credentials. Credentials never appear in the run file itself.
	AccessKeyEnv string `json:"access_key_env"`
	SecretKeyEnv string `json:"secret_key_env"`
}

// Storage selects the sink used to persist the final table.
type Storage struct {
	// Kind selects the storage implementation. Current value: "postgres".
	// Empty disables the database sink.
	Kind string `json:"kind"`

	// DB configures the database sink.
	DB DBConfig `json:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the connection string for pgx/pgxpool (e.g., postgresql://...).
	// The token {env:NAME} expands from the environment at load time.
	DSN string `json:"dsn"`

	// Table is the fully qualified table name (e.g., "public.wells_ab").
	Table string `json:"table"`

	// AutoCreateTable creates the destination table from the final table's
	// columns when it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for parser-specific configuration where the shape varies by
// implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
