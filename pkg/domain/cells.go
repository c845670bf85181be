// Package domain defines the core records, classification predicates, and
// per-bucket result types used by connmatrix.
package domain

// Recognized cell attribute keys usable in class criteria.
const (
	AttrCreType    = "cre_type"
	AttrNeuroLayer = "target_layer"
	AttrPyramidal  = "pyramidal"
	AttrDendrite   = "dendrite_type"
	AttrSpecies    = "species"
)

// Cell is a single recorded unit with classification-relevant attributes.
// Cells are immutable once loaded; identity is the record ID.
type Cell struct {
	ID           string `json:"id"`
	ExperimentID string `json:"experiment_id,omitempty"`
	Species      string `json:"species,omitempty"`
	CreType      string `json:"cre_type,omitempty"`
	TargetLayer  string `json:"target_layer,omitempty"`
	DendriteType string `json:"dendrite_type,omitempty"`
	Pyramidal    *bool  `json:"pyramidal,omitempty"`
}

// Attribute returns the cell's value for a recognized attribute key. The
// second return is false when the attribute was never recorded for this
// cell, which is distinct from carrying an empty or false value.
func (c Cell) Attribute(key string) (any, bool) {
	switch key {
	case AttrCreType:
		return c.CreType, c.CreType != ""
	case AttrNeuroLayer:
		return c.TargetLayer, c.TargetLayer != ""
	case AttrDendrite:
		return c.DendriteType, c.DendriteType != ""
	case AttrSpecies:
		return c.Species, c.Species != ""
	case AttrPyramidal:
		if c.Pyramidal == nil {
			return nil, false
		}
		return *c.Pyramidal, true
	default:
		return nil, false
	}
}
