// Package analyzerapi defines the contract pluggable matrix analyzers
// satisfy so the engine can drive them interchangeably.
package analyzerapi

import (
	"image/color"

	"connmatrix/pkg/domain"
)

// Field describes one color-mappable, selectable result field an analyzer
// reports per bucket.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
	// Interval names a companion (lower, upper) bound field, when the
	// statistic carries one.
	Interval string `json:"interval,omitempty"`
}

// CellDisplay is one rendered grid cell.
type CellDisplay struct {
	Text   string     `json:"text"`
	FG     color.RGBA `json:"fgcolor"`
	BG     color.RGBA `json:"bgcolor"`
	Border color.RGBA `json:"bordercolor"`
}

// ElementData is the drill-down view of one bucket: the pair set the
// analyzer aggregated plus each pair's contribution to the named field
// (NaN when a pair contributed no value).
type ElementData struct {
	Key    domain.ClassPair
	Field  string
	Pairs  []domain.Pair
	Values []float64
}

// Analyzer is a pluggable per-bucket statistics strategy. Measure must
// produce exactly one result per ordered class pair in the table's cross
// product, flagging empty buckets no-data rather than failing; any other
// error propagates to the caller unmasked. Implementations retain their
// last measured groups so drill-down accessors stay consistent with what
// Measure aggregated.
type Analyzer interface {
	Name() string
	Measure(groups domain.PairGroupTable) (domain.ResultTable, error)
	// OutputFields declares the selectable result fields and the default
	// selection, consumed by the display layer and re-derived whenever the
	// active analyzer changes.
	OutputFields() ([]Field, []string)
	// Summary produces an aggregate report over all buckets for the
	// displayed field. Pure function of the results.
	Summary(results domain.ResultTable, field string) string
	// ElementData returns the underlying per-pair data contributing to one
	// bucket's statistic.
	ElementData(key domain.ClassPair, field string) (ElementData, error)
}

// DisplayOverrider is an optional per-analyzer override of default display
// shaping, kept for single-analyzer deployments; the display mapper
// consults it before applying its own encoding.
type DisplayOverrider interface {
	Display(key domain.ClassPair, result domain.ElementResult) (CellDisplay, bool)
}
