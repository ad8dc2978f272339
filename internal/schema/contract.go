// Package schema declares per-source column contracts and the validator that
// enforces them before any join runs.
//
// The upstream extracts historically relied on schema inference ("load every
// column, hope the types hold"). Here the expectation is inverted: each source
// declares the columns it must provide, their semantic kinds, and how many
// nulls an identifier column may carry. A source that does not satisfy its
// contract fails the whole run — it is never coerced or partially accepted.
package schema

// Kind is the semantic type of a column as declared in a contract.
type Kind string

const (
	// KindIdentifier is a string key column (well identifier, licence
	// number). Identifier columns carry a null-fraction ceiling, zero by
	// default: a missing key is never a legitimate state.
	KindIdentifier Kind = "identifier"
	// KindString is free-form text.
	KindString Kind = "string"
	// KindNumeric is a float64 quantity (volumes, depths, coordinates).
	KindNumeric Kind = "numeric"
	// KindDate is a time.Time value.
	KindDate Kind = "date"
)

// Field declares one column of a source contract.
type Field struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`

	// MaxNullFraction applies to identifier columns only: the allowed
	// fraction of null cells, in [0,1]. The zero value means identifiers
	// must never be missing.
	MaxNullFraction float64 `json:"max_null_fraction,omitempty"`
}

// Contract is the declared schema for one source table.
type Contract struct {
	// Source names the dataset the contract covers ("licensing",
	// "drilling", "production"). It appears in every SchemaError.
	Source string  `json:"source"`
	Fields []Field `json:"fields"`
}

// Field returns the declared field with the given name, if any.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KnownKind reports whether k is one of the declared semantic kinds.
func KnownKind(k Kind) bool {
	switch k {
	case KindIdentifier, KindString, KindNumeric, KindDate:
		return true
	}
	return false
}
