// Package catalog loads the consumer-attribute catalog and publishes
// immutable snapshots that the indexes and the retrieval façade read.
// A snapshot is built fully before it replaces the previous one; readers
// that pinned the old snapshot keep a consistent view for their lifetime.
package catalog

import "time"

// DataType classifies how a variable's values behave.
type DataType string

const (
	DataTypeNumeric     DataType = "numeric"
	DataTypeCategorical DataType = "categorical"
	DataTypeBoolean     DataType = "boolean"
	DataTypeOrdinal     DataType = "ordinal"
)

// ParseDataType maps catalog source values onto a DataType.
// Unknown values default to categorical.
func ParseDataType(s string) DataType {
	switch DataType(s) {
	case DataTypeNumeric, DataTypeCategorical, DataTypeBoolean, DataTypeOrdinal:
		return DataType(s)
	default:
		return DataTypeCategorical
	}
}

// Variable is a single consumer-attribute entry in the catalog.
// Variables are created at load time and immutable thereafter.
type Variable struct {
	// Code is the unique, stable identifier (primary key).
	Code string `json:"code"`

	// Name is the short display label.
	Name string `json:"name"`

	// Description is the full natural-language description. Never empty.
	Description string `json:"description"`

	// Categorical facets.
	Category string `json:"category,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Product  string `json:"product,omitempty"`
	Domain   string `json:"domain,omitempty"`

	// DataType is one of numeric, categorical, boolean, ordinal.
	DataType DataType `json:"data_type"`

	// Operators is the set of predicate operators valid for this variable.
	Operators []string `json:"operators,omitempty"`

	// Keywords is the tokenized, stemmed content of name+description+category,
	// derived at load time.
	Keywords []string `json:"-"`

	// Embedding is an optional dense vector of the index's declared dimension.
	// Nil when the variable has no pre-computed embedding.
	Embedding []float32 `json:"-"`
}

// HasEmbedding reports whether the variable carries a dense vector.
func (v *Variable) HasEmbedding() bool {
	return len(v.Embedding) > 0
}

// Facet names accepted by Snapshot.CountBy.
const (
	FacetCategory = "category"
	FacetTheme    = "theme"
	FacetProduct  = "product"
	FacetDomain   = "domain"
	FacetDataType = "data_type"
)

// LoadStats summarizes a completed catalog load.
type LoadStats struct {
	Variables     int           `json:"variables"`
	WithEmbedding int           `json:"with_embedding"`
	SkippedRows   int           `json:"skipped_rows"`
	Source        string        `json:"source"`
	Elapsed       time.Duration `json:"elapsed"`
}
