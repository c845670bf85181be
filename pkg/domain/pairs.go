package domain

import "context"

// Signals carries the measured quantities recorded for one pair. Pointer
// fields distinguish "not measured" from a zero measurement.
type Signals struct {
	// Connected is nil when the connection was never probed.
	Connected *bool `json:"connected,omitempty"`
	// StimCount is the number of presynaptic stimuli delivered while probing.
	StimCount int `json:"stim_count,omitempty"`
	// Amplitude is the mean PSP amplitude in millivolts.
	Amplitude *float64 `json:"amplitude,omitempty"`
	// Latency is the synaptic latency in milliseconds.
	Latency *float64 `json:"latency,omitempty"`
	// RiseTime is the PSP 20-80% rise time in milliseconds.
	RiseTime *float64 `json:"rise_time,omitempty"`
	// DecayTau is the PSP decay time constant in milliseconds.
	DecayTau *float64 `json:"decay_tau,omitempty"`
	// PairedPulseRatio is the second/first pulse amplitude ratio.
	PairedPulseRatio *float64 `json:"paired_pulse_ratio,omitempty"`
}

// PairRecord is the stored form of a probed pair inside an experiment,
// referencing its endpoint cells by ID.
type PairRecord struct {
	ID         string  `json:"id"`
	PreCellID  string  `json:"pre_cell_id"`
	PostCellID string  `json:"post_cell_id"`
	Signals    Signals `json:"signals"`
}

// Experiment groups the cells and probed pairs recorded in one session,
// along with the session-level properties pair queries filter on.
type Experiment struct {
	ID       string       `json:"id"`
	Project  string       `json:"project"`
	ACSF     string       `json:"acsf,omitempty"`
	Internal string       `json:"internal,omitempty"`
	Cells    []Cell       `json:"cells"`
	Pairs    []PairRecord `json:"pairs"`
}

// Pair is a hydrated presynaptic->postsynaptic relationship served to the
// classification engine. Immutable; identity is the record ID.
type Pair struct {
	ID           string  `json:"id"`
	ExperimentID string  `json:"experiment_id"`
	Project      string  `json:"project"`
	ACSF         string  `json:"acsf,omitempty"`
	Internal     string  `json:"internal,omitempty"`
	Pre          Cell    `json:"pre"`
	Post         Cell    `json:"post"`
	Signals      Signals `json:"signals"`
}

// PairFilter restricts QueryPairs along experiment dimensions. An empty
// slice leaves that dimension unrestricted rather than matching only
// records with an empty value.
type PairFilter struct {
	Projects  []string `json:"projects,omitempty"`
	ACSF      []string `json:"acsf,omitempty"`
	Internals []string `json:"internals,omitempty"`
}

// Match reports whether a record's provenance passes every restricted
// dimension.
func (f PairFilter) Match(project, acsf, internal string) bool {
	return matchDim(f.Projects, project) &&
		matchDim(f.ACSF, acsf) &&
		matchDim(f.Internals, internal)
}

func matchDim(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// PairStore is the query layer serving hydrated pairs to the engine.
type PairStore interface {
	QueryPairs(ctx context.Context, filter PairFilter) ([]Pair, error)
}
