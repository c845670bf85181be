// Package dynamics implements the short-term dynamics analyzer: per
// bucket, the mean paired-pulse ratio over connected pairs.
package dynamics

import (
	"fmt"
	"math"
	"strings"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// Alignment modes for locating pulse responses before computing ratios.
var alignmentModes = []string{"onset", "peak", "spike"}

// Analyzer measures paired-pulse dynamics per bucket.
type Analyzer struct {
	alignment string
	groups    domain.PairGroupTable
	results   domain.ResultTable
}

// New constructs the dynamics analyzer with onset alignment.
func New() analyzerapi.Analyzer {
	a, _ := NewWithAlignment("onset")
	return a
}

// NewWithAlignment constructs the dynamics analyzer with an explicit
// response alignment mode.
func NewWithAlignment(mode string) (*Analyzer, error) {
	for _, allowed := range alignmentModes {
		if mode == allowed {
			return &Analyzer{alignment: mode}, nil
		}
	}
	return nil, domain.InvalidValueError{Field: "alignment", Value: mode, Allowed: alignmentModes}
}

// Name returns the analyzer identifier.
func (a *Analyzer) Name() string { return "dynamics" }

// Alignment returns the configured response alignment mode.
func (a *Analyzer) Alignment() string { return a.alignment }

// Measure aggregates paired-pulse ratios over connected pairs. Buckets
// without ratio measurements are flagged no-data.
func (a *Analyzer) Measure(groups domain.PairGroupTable) (domain.ResultTable, error) {
	results := make(domain.ResultTable)
	for _, key := range groups.Keys() {
		var ratios []float64
		for _, pair := range groups.Pairs(key) {
			if v, ok := ratioOf(pair); ok {
				ratios = append(ratios, v)
			}
		}
		if len(ratios) == 0 {
			results[key] = domain.ElementResult{Key: key, NoData: true}
			continue
		}
		mean, lower, upper := meanInterval(ratios)
		results[key] = domain.ElementResult{
			Key: key,
			Fields: map[string]any{
				"paired_pulse_ratio": mean,
				"ppr_ci":             [2]float64{lower, upper},
				"n_measured":         len(ratios),
				"alignment":          a.alignment,
			},
		}
	}
	a.groups = groups
	a.results = results
	return results, nil
}

// OutputFields declares paired_pulse_ratio as the single selectable field.
func (a *Analyzer) OutputFields() ([]analyzerapi.Field, []string) {
	fields := []analyzerapi.Field{
		{
			Name:        "paired_pulse_ratio",
			Type:        "float",
			Description: "mean second/first pulse amplitude ratio",
			Interval:    "ppr_ci",
		},
	}
	return fields, []string{"paired_pulse_ratio"}
}

// Summary reports bucket coverage and the facilitating/depressing split.
func (a *Analyzer) Summary(results domain.ResultTable, field string) string {
	buckets, facilitating, depressing := 0, 0, 0
	for _, res := range results {
		if res.NoData {
			continue
		}
		buckets++
		if v, ok := res.Float("paired_pulse_ratio"); ok {
			if v > 1 {
				facilitating++
			} else {
				depressing++
			}
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "dynamics (%s alignment): %d buckets with data\n", a.alignment, buckets)
	fmt.Fprintf(&b, "%d facilitating, %d depressing", facilitating, depressing)
	return b.String()
}

// ElementData returns each pair's paired-pulse ratio, NaN when not
// measured.
func (a *Analyzer) ElementData(key domain.ClassPair, field string) (analyzerapi.ElementData, error) {
	if a.groups.Classes() == nil {
		return analyzerapi.ElementData{}, fmt.Errorf("dynamics: no measurement available")
	}
	pairs := a.groups.Pairs(key)
	values := make([]float64, len(pairs))
	for i, pair := range pairs {
		if v, ok := ratioOf(pair); ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	return analyzerapi.ElementData{Key: key, Field: field, Pairs: pairs, Values: values}, nil
}

func ratioOf(p domain.Pair) (float64, bool) {
	if p.Signals.Connected == nil || !*p.Signals.Connected || p.Signals.PairedPulseRatio == nil {
		return 0, false
	}
	return *p.Signals.PairedPulseRatio, true
}

func meanInterval(values []float64) (mean, lower, upper float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n
	if len(values) < 2 {
		return mean, mean, mean
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	stderr := math.Sqrt(ss/(n-1)) / math.Sqrt(n)
	const z = 1.96
	return mean, mean - z*stderr, mean + z*stderr
}
