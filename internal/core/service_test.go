package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// stubStore serves a fixed pair set and counts queries.
type stubStore struct {
	pairs   []domain.Pair
	queries int
	lastF   domain.PairFilter
}

func (s *stubStore) QueryPairs(_ context.Context, f domain.PairFilter) ([]domain.Pair, error) {
	s.queries++
	s.lastF = f
	var out []domain.Pair
	for _, p := range s.pairs {
		if f.Match(p.Project, p.ACSF, p.Internal) {
			out = append(out, p)
		}
	}
	return out, nil
}

// stubAnalyzer reports the probed-pair count per bucket and counts
// Measure invocations.
type stubAnalyzer struct {
	name     string
	measures int
	groups   domain.PairGroupTable
}

func (a *stubAnalyzer) Name() string { return a.name }

func (a *stubAnalyzer) Measure(groups domain.PairGroupTable) (domain.ResultTable, error) {
	a.measures++
	a.groups = groups
	results := make(domain.ResultTable)
	for _, key := range groups.Keys() {
		pairs := groups.Pairs(key)
		if len(pairs) == 0 {
			results[key] = domain.ElementResult{Key: key, NoData: true}
			continue
		}
		results[key] = domain.ElementResult{Key: key, Fields: map[string]any{
			"pair_count":          float64(len(pairs)),
			"confidence_interval": [2]float64{0.5, 0.5},
		}}
	}
	return results, nil
}

func (a *stubAnalyzer) OutputFields() ([]analyzerapi.Field, []string) {
	return []analyzerapi.Field{{Name: "pair_count", Type: "float"}}, []string{"pair_count"}
}

func (a *stubAnalyzer) Summary(results domain.ResultTable, field string) string {
	return a.name + " summary over " + field
}

func (a *stubAnalyzer) ElementData(key domain.ClassPair, field string) (analyzerapi.ElementData, error) {
	pairs := a.groups.Pairs(key)
	values := make([]float64, len(pairs))
	for i := range pairs {
		values[i] = 1
	}
	return analyzerapi.ElementData{Key: key, Field: field, Pairs: pairs, Values: values}, nil
}

func fixtureClasses() []domain.CellClass {
	return []domain.CellClass{layerClass("2/3", ""), layerClass("4", "")}
}

func fixturePairs() []domain.Pair {
	l23 := domain.Cell{ID: "c1", TargetLayer: "2/3"}
	l4 := domain.Cell{ID: "c2", TargetLayer: "4"}
	return []domain.Pair{
		makePair("p1", l23, l4, true),
		makePair("p2", l4, l23, false),
	}
}

func newTestService(t *testing.T) (*Service, *stubStore, *stubAnalyzer) {
	t.Helper()
	store := &stubStore{pairs: fixturePairs()}
	registry := NewAnalyzerRegistry()
	analyzer := &stubAnalyzer{name: "stub"}
	if err := registry.Register("stub", func() analyzerapi.Analyzer { return analyzer }); err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewService(store, registry)
	svc.SetClasses(fixtureClasses())
	return svc, store, analyzer
}

func TestUpdateWithoutAnalyzerFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background())
	var cfgErr domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), "got 0") {
		t.Fatalf("error must carry the selection count, got %v", err)
	}
}

func TestUpdateRendersFullGrid(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	grid, err := svc.Update(context.Background())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if grid.Size() != 2 {
		t.Fatalf("expected 2x2 grid, got size %d", grid.Size())
	}
	// One pair in each off-diagonal bucket, none on the diagonal.
	if got := grid.Cells[0][1].Text; got != "1.00" {
		t.Fatalf("expected off-diagonal text 1.00, got %q", got)
	}
	if got := grid.Cells[0][0].Text; got != "" {
		t.Fatalf("expected empty diagonal cell, got %q", got)
	}
}

func TestUpdateIsIdempotentUntilInvalidated(t *testing.T) {
	svc, store, analyzer := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.queries != 1 || analyzer.measures != 1 {
		t.Fatalf("repeat update must serve from cache: queries=%d measures=%d", store.queries, analyzer.measures)
	}
}

func TestSetFilterInvalidatesQueryDownward(t *testing.T) {
	svc, store, analyzer := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	svc.SetFilter(domain.PairFilter{Projects: []string{"none"}})
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.queries != 2 {
		t.Fatalf("filter change must re-query, got %d queries", store.queries)
	}
	if analyzer.measures != 2 {
		t.Fatalf("filter change must re-measure, got %d measures", analyzer.measures)
	}
}

func TestDisplayOnlyChangeDoesNotRemeasure(t *testing.T) {
	svc, store, analyzer := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := svc.SetTemplate("n={pair_count:%.0f}"); err != nil {
		t.Fatalf("set template: %v", err)
	}
	grid, err := svc.Update(ctx)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.queries != 1 || analyzer.measures != 1 {
		t.Fatalf("display-only change must not re-query or re-measure: queries=%d measures=%d", store.queries, analyzer.measures)
	}
	if got := grid.Cells[0][1].Text; got != "n=1" {
		t.Fatalf("expected re-rendered text n=1, got %q", got)
	}
}

func TestAnalyzerSwapRewiresListeners(t *testing.T) {
	store := &stubStore{pairs: fixturePairs()}
	registry := NewAnalyzerRegistry()
	first := &stubAnalyzer{name: "first"}
	second := &stubAnalyzer{name: "second"}
	if err := registry.Register("first", func() analyzerapi.Analyzer { return first }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("second", func() analyzerapi.Analyzer { return second }); err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewService(store, registry)
	svc.SetClasses(fixtureClasses())

	ctx := context.Background()
	if err := svc.SelectAnalyzers("first"); err != nil {
		t.Fatalf("select first: %v", err)
	}
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := svc.SetAnalyzer("second"); err != nil {
		t.Fatalf("swap analyzer: %v", err)
	}
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.measures != 1 {
		t.Fatalf("new analyzer must measure once, got %d", second.measures)
	}

	// Upstream invalidation after the swap must reach only the new
	// instance.
	svc.SetClasses(fixtureClasses())
	if _, err := svc.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if first.measures != 1 {
		t.Fatalf("discarded analyzer must not recompute, got %d measures", first.measures)
	}
	if second.measures != 2 {
		t.Fatalf("active analyzer must recompute, got %d measures", second.measures)
	}
}

func TestSummaryUsesSelectedField(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary != "stub summary over pair_count" {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestElementAtResolvesBucket(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	ctx := context.Background()
	data, err := svc.ElementAt(ctx, 0, 1)
	if err != nil {
		t.Fatalf("element at: %v", err)
	}
	if len(data.Pairs) != 1 || data.Pairs[0].ID != "p1" {
		t.Fatalf("expected p1 in (0,1) bucket, got %+v", data.Pairs)
	}
	if _, err := svc.ElementAt(ctx, 5, 0); err == nil {
		t.Fatalf("out-of-range element must fail")
	}
}

func TestObserveRecordsMetricsAndTraces(t *testing.T) {
	store := &stubStore{pairs: fixturePairs()}
	registry := NewAnalyzerRegistry()
	analyzer := &stubAnalyzer{name: "stub"}
	if err := registry.Register("stub", func() analyzerapi.Analyzer { return analyzer }); err != nil {
		t.Fatalf("register: %v", err)
	}
	metrics := NewExpvarMetricsRecorder("service_test_metrics")
	tracer := NewJSONTracer(nil)
	svc := NewService(store, registry, WithMetrics(metrics), WithTracer(tracer))
	svc.SetClasses(fixtureClasses())
	if err := svc.SelectAnalyzers("stub"); err != nil {
		t.Fatalf("select analyzer: %v", err)
	}
	if _, err := svc.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	snap := metrics.Snapshot()
	for _, op := range []string{"update", "query_pairs", "classify", "measure", "render"} {
		if snap.Results[op] == nil || snap.Results[op]["success"] != 1 {
			t.Fatalf("expected one success for %s, got %+v", op, snap.Results[op])
		}
	}
	entries := tracer.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 trace spans, got %d", len(entries))
	}
}
