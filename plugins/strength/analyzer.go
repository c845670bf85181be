// Package strength implements the synaptic strength analyzer: per
// bucket, mean PSP amplitude and latency over the connected pairs that
// carry measurements, with normal-approximation intervals on the means.
package strength

import (
	"fmt"
	"math"
	"strings"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// Analyzer measures amplitude and latency statistics per bucket.
type Analyzer struct {
	groups  domain.PairGroupTable
	results domain.ResultTable
}

// New constructs the strength analyzer.
func New() analyzerapi.Analyzer { return &Analyzer{} }

// Name returns the analyzer identifier.
func (a *Analyzer) Name() string { return "strength" }

// Measure aggregates amplitude and latency over connected pairs. A bucket
// with no measured amplitudes is flagged no-data.
func (a *Analyzer) Measure(groups domain.PairGroupTable) (domain.ResultTable, error) {
	results := make(domain.ResultTable)
	for _, key := range groups.Keys() {
		amps := collect(groups.Pairs(key), amplitudeOf)
		lats := collect(groups.Pairs(key), latencyOf)
		if len(amps) == 0 {
			results[key] = domain.ElementResult{Key: key, NoData: true}
			continue
		}
		ampMean, ampLo, ampHi := meanInterval(amps)
		fields := map[string]any{
			"amplitude_mean": ampMean,
			"amplitude_ci":   [2]float64{ampLo, ampHi},
			"n_connected":    len(amps),
		}
		if len(lats) > 0 {
			latMean, latLo, latHi := meanInterval(lats)
			fields["latency_mean"] = latMean
			fields["latency_ci"] = [2]float64{latLo, latHi}
		}
		results[key] = domain.ElementResult{Key: key, Fields: fields}
	}
	a.groups = groups
	a.results = results
	return results, nil
}

// OutputFields declares the selectable statistics; amplitude is the
// default selection.
func (a *Analyzer) OutputFields() ([]analyzerapi.Field, []string) {
	fields := []analyzerapi.Field{
		{
			Name:        "amplitude_mean",
			Type:        "float",
			Unit:        "mV",
			Description: "mean PSP amplitude over connected pairs",
			Interval:    "amplitude_ci",
		},
		{
			Name:        "latency_mean",
			Type:        "float",
			Unit:        "ms",
			Description: "mean synaptic latency over connected pairs",
			Interval:    "latency_ci",
		},
	}
	return fields, []string{"amplitude_mean"}
}

// Summary reports bucket coverage and the grand mean of the displayed
// field.
func (a *Analyzer) Summary(results domain.ResultTable, field string) string {
	var sum float64
	buckets, measured := 0, 0
	for _, res := range results {
		if res.NoData {
			continue
		}
		buckets++
		if v, ok := res.Float(field); ok {
			sum += v
			measured++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "strength: %d buckets with data\n", buckets)
	if measured > 0 {
		fmt.Fprintf(&b, "grand mean %s = %.3f over %d buckets", field, sum/float64(measured), measured)
	} else {
		fmt.Fprintf(&b, "no %s measurements", field)
	}
	return b.String()
}

// ElementData returns each pair's contribution to the named field, NaN
// for pairs without the measurement.
func (a *Analyzer) ElementData(key domain.ClassPair, field string) (analyzerapi.ElementData, error) {
	if a.groups.Classes() == nil {
		return analyzerapi.ElementData{}, fmt.Errorf("strength: no measurement available")
	}
	extract := amplitudeOf
	if strings.HasPrefix(field, "latency") {
		extract = latencyOf
	}
	pairs := a.groups.Pairs(key)
	values := make([]float64, len(pairs))
	for i, pair := range pairs {
		if v, ok := extract(pair); ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	return analyzerapi.ElementData{Key: key, Field: field, Pairs: pairs, Values: values}, nil
}

func amplitudeOf(p domain.Pair) (float64, bool) {
	if p.Signals.Connected == nil || !*p.Signals.Connected || p.Signals.Amplitude == nil {
		return 0, false
	}
	return *p.Signals.Amplitude, true
}

func latencyOf(p domain.Pair) (float64, bool) {
	if p.Signals.Connected == nil || !*p.Signals.Connected || p.Signals.Latency == nil {
		return 0, false
	}
	return *p.Signals.Latency, true
}

func collect(pairs []domain.Pair, extract func(domain.Pair) (float64, bool)) []float64 {
	var out []float64
	for _, p := range pairs {
		if v, ok := extract(p); ok {
			out = append(out, v)
		}
	}
	return out
}

// meanInterval returns the sample mean with a 95% normal-approximation
// interval. A single sample yields a degenerate interval at the mean.
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
