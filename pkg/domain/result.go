package domain

// ElementResult is the analyzer-produced record for one bucket. Fields is
// the analyzer-specific measurement mapping; a (lower, upper) bound stored
// under a recognized interval name drives confidence desaturation in the
// display layer.
type ElementResult struct {
	Key    ClassPair      `json:"key"`
	NoData bool           `json:"no_data"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Float extracts a numeric field, accepting the numeric types a JSON
// round trip or analyzer arithmetic may produce.
func (r ElementResult) Float(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// Interval extracts a (lower, upper) bound pair stored under name.
func (r ElementResult) Interval(name string) (lower, upper float64, ok bool) {
	v, present := r.Fields[name]
	if !present {
		return 0, 0, false
	}
	switch bounds := v.(type) {
	case [2]float64:
		return bounds[0], bounds[1], true
	case []float64:
		if len(bounds) == 2 {
			return bounds[0], bounds[1], true
		}
	case []any:
		if len(bounds) == 2 {
			lo, okLo := asFloat(bounds[0])
			hi, okHi := asFloat(bounds[1])
			if okLo && okHi {
				return lo, hi, true
			}
		}
	}
	return 0, 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ResultTable maps every ordered class pair to its measured result. The
// active analyzer owns the table; it is discarded when the analyzer
// selection changes.
type ResultTable map[ClassPair]ElementResult
