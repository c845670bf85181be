// Package connectivity implements the connection probability analyzer:
// per bucket, the fraction of probed pairs found connected, with a
// Wilson score interval quantifying uncertainty.
package connectivity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// Analyzer measures connection probability per class pair bucket.
type Analyzer struct {
	groups  domain.PairGroupTable
	results domain.ResultTable
}

// New constructs the connectivity analyzer.
func New() analyzerapi.Analyzer { return &Analyzer{} }

// Name returns the analyzer identifier.
func (a *Analyzer) Name() string { return "connectivity" }

// Measure computes connection probability for every bucket in the cross
// product. Buckets with zero probed pairs are flagged no-data.
func (a *Analyzer) Measure(groups domain.PairGroupTable) (domain.ResultTable, error) {
	results := make(domain.ResultTable)
	for _, key := range groups.Keys() {
		probed, connected := 0, 0
		for _, pair := range groups.Pairs(key) {
			if pair.Signals.Connected == nil {
				continue
			}
			probed++
			if *pair.Signals.Connected {
				connected++
			}
		}
		if probed == 0 {
			results[key] = domain.ElementResult{Key: key, NoData: true}
			continue
		}
		prob := float64(connected) / float64(probed)
		lower, upper := wilsonInterval(connected, probed)
		results[key] = domain.ElementResult{
			Key: key,
			Fields: map[string]any{
				"connection_probability": prob,
				"confidence_interval":    [2]float64{lower, upper},
				"n_probed":               probed,
				"n_connected":            connected,
			},
		}
	}
	a.groups = groups
	a.results = results
	return results, nil
}

// OutputFields declares connection_probability as the single selectable
// field, carrying its interval companion.
func (a *Analyzer) OutputFields() ([]analyzerapi.Field, []string) {
	fields := []analyzerapi.Field{
		{
			Name:        "connection_probability",
			Type:        "float",
			Description: "fraction of probed pairs found connected",
			Interval:    "confidence_interval",
		},
	}
	return fields, []string{"connection_probability"}
}

// Summary reports the pooled connectivity across all measured buckets.
func (a *Analyzer) Summary(results domain.ResultTable, field string) string {
	totalProbed, totalConnected, buckets := 0, 0, 0
	for _, res := range results {
		if res.NoData {
			continue
		}
		buckets++
		if n, ok := res.Float("n_probed"); ok {
			totalProbed += int(n)
		}
		if n, ok := res.Float("n_connected"); ok {
			totalConnected += int(n)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "connectivity: %d buckets with data\n", buckets)
	fmt.Fprintf(&b, "probed %d pairs, %d connected", totalProbed, totalConnected)
	if totalProbed > 0 {
		fmt.Fprintf(&b, " (%.1f%%)", 100*float64(totalConnected)/float64(totalProbed))
	}
	return b.String()
}

// ElementData returns the probed pairs in one bucket with each pair's
// contribution: 1 connected, 0 not connected, NaN never probed.
func (a *Analyzer) ElementData(key domain.ClassPair, field string) (analyzerapi.ElementData, error) {
	if a.groups.Classes() == nil {
		return analyzerapi.ElementData{}, fmt.Errorf("connectivity: no measurement available")
	}
	pairs := a.groups.Pairs(key)
	values := make([]float64, len(pairs))
	for i, pair := range pairs {
		switch {
		case pair.Signals.Connected == nil:
			values[i] = math.NaN()
		case *pair.Signals.Connected:
			values[i] = 1
		default:
			values[i] = 0
		}
	}
	return analyzerapi.ElementData{Key: key, Field: field, Pairs: pairs, Values: values}, nil
}

// ConnectionList formats the drill-down printout for one bucket: the
// connected pairs first, then every probed pair.
func (a *Analyzer) ConnectionList(key domain.ClassPair) (string, error) {
	data, err := a.ElementData(key, "connection_probability")
	if err != nil {
		return "", err
	}
	var connected, probed []string
	for i, pair := range data.Pairs {
		desc := fmt.Sprintf("%s: %s -> %s", pair.ExperimentID, pair.Pre.ID, pair.Post.ID)
		if math.IsNaN(data.Values[i]) {
			continue
		}
		probed = append(probed, desc)
		if data.Values[i] == 1 {
			connected = append(connected, desc)
		}
	}
	sort.Strings(connected)
	sort.Strings(probed)
	var b strings.Builder
	fmt.Fprintf(&b, "%d connected:\n", len(connected))
	for _, d := range connected {
		fmt.Fprintf(&b, "\t%s\n", d)
	}
	fmt.Fprintf(&b, "%d probed:\n", len(probed))
	for _, d := range probed {
		fmt.Fprintf(&b, "\t%s\n", d)
	}
	return b.String(), nil
}

// wilsonInterval returns the 95% Wilson score interval for k successes in
// n trials.
func wilsonInterval(k, n int) (lower, upper float64) {
	if n == 0 {
		return 0, 1
	}
	const z = 1.96
	p := float64(k) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	margin := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	lower = math.Max(0, center-margin)
	upper = math.Min(1, center+margin)
	return lower, upper
}
