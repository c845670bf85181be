package core

import (
	"context"
	"time"

	"connmatrix/internal/render"
	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// classification bundles the grouping tables derived from one pass over
// the queried pairs.
type classification struct {
	Groups     domain.CellGroupTable
	PairGroups domain.PairGroupTable
}

// Service coordinates the matrix pipeline: pair query -> classification ->
// analyzer measurement -> display mapping, held together by the
// invalidation graph. All computation runs synchronously inside an
// explicit update; configuration changes only invalidate caches.
type Service struct {
	store    domain.PairStore
	registry *AnalyzerRegistry
	display  *DisplayMapper

	filter  domain.PairFilter
	classes []domain.CellClass

	analyzer analyzerapi.Analyzer

	experimentNode *FilterNode
	classNode      *FilterNode
	analyzerNode   *FilterNode
	displayNode    *FilterNode

	metrics MetricsRecorder
	tracer  Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetrics wires a metrics recorder around engine operations.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer wires a tracer around engine operations.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithColorScale overrides the display mapper's color scale provider.
func WithColorScale(scale ColorScale) Option {
	return func(s *Service) { s.display = NewDisplayMapper(scale) }
}

// NewService constructs a service over the pair store and analyzer
// registry and wires the filter chain. No analyzer is selected initially.
func NewService(store domain.PairStore, registry *AnalyzerRegistry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		display:  NewDisplayMapper(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.experimentNode = NewFilterNode("experiment_filter", func(ctx context.Context) (any, error) {
		var pairs []domain.Pair
		err := s.observe(ctx, "query_pairs", func(ctx context.Context) error {
			var err error
			pairs, err = s.store.QueryPairs(ctx, s.filter)
			return err
		})
		if err != nil {
			return nil, err
		}
		return pairs, nil
	})

	s.classNode = NewFilterNode("cell_class_filter", func(ctx context.Context) (any, error) {
		upstream, err := s.experimentNode.Output(ctx)
		if err != nil {
			return nil, err
		}
		pairs := upstream.([]domain.Pair)
		var cls classification
		err = s.observe(ctx, "classify", func(context.Context) error {
			cells := collectCells(pairs)
			groups, err := ClassifyCells(s.classes, cells)
			if err != nil {
				return err
			}
			pairGroups, err := ClassifyPairs(pairs, groups)
			if err != nil {
				return err
			}
			cls = classification{Groups: groups, PairGroups: pairGroups}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return cls, nil
	})

	s.displayNode = NewFilterNode("display_filter", func(ctx context.Context) (any, error) {
		if s.analyzerNode == nil {
			return nil, domain.ConfigError{Reason: "exactly one analyzer must be selected, got 0"}
		}
		upstream, err := s.analyzerNode.Output(ctx)
		if err != nil {
			return nil, err
		}
		results := upstream.(domain.ResultTable)
		clsVal, err := s.classNode.Output(ctx)
		if err != nil {
			return nil, err
		}
		classes := clsVal.(classification).PairGroups.Classes()

		var grid *render.Grid
		err = s.observe(ctx, "render", func(context.Context) error {
			grid = render.NewGrid(classes)
			override, _ := s.analyzer.(analyzerapi.DisplayOverrider)
			for i, pre := range classes {
				for j, post := range classes {
					key := domain.ClassPair{Pre: pre.Key(), Post: post.Key()}
					grid.SetCell(i, j, s.display.Map(results[key], override))
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return grid, nil
	})

	s.experimentNode.AddListener(s.classNode)
	return s
}

// Display exposes the display mapper for field and template configuration
// through the service mutators.
func (s *Service) Display() *DisplayMapper { return s.display }

// SetFilter replaces the pair query restriction and invalidates the chain
// from the experiment filter down.
func (s *Service) SetFilter(filter domain.PairFilter) {
	s.filter = filter
	s.experimentNode.Invalidate()
}

// SetClasses replaces the ordered class list and invalidates the chain
// from the class filter down.
func (s *Service) SetClasses(classes []domain.CellClass) {
	s.classes = append([]domain.CellClass(nil), classes...)
	s.classNode.Invalidate()
}

// SelectAnalyzers validates that exactly one analyzer is named and
// activates it. The check runs before any computation starts.
func (s *Service) SelectAnalyzers(names ...string) error {
	analyzer, err := s.registry.SelectOne(names)
	if err != nil {
		return err
	}
	return s.install(analyzer)
}

// SetAnalyzer activates the named analyzer, discarding the previous
// instance's cached results and re-deriving the display field options
// from the new instance's declaration.
func (s *Service) SetAnalyzer(name string) error {
	analyzer, err := s.registry.New(name)
	if err != nil {
		return err
	}
	return s.install(analyzer)
}

// install structurally replaces the analyzer node: the old instance's
// listener edges are removed before the new node is wired in, so no stale
// recomputation can fire on the discarded instance.
func (s *Service) install(analyzer analyzerapi.Analyzer) error {
	fields, defaults := analyzer.OutputFields()
	if err := s.display.SetFields(fields, defaults); err != nil {
		return err
	}

	if old := s.analyzerNode; old != nil {
		s.classNode.RemoveListener(old)
		old.RemoveListener(s.displayNode)
	}

	s.analyzer = analyzer
	node := NewFilterNode("analyzer/"+analyzer.Name(), func(ctx context.Context) (any, error) {
		upstream, err := s.classNode.Output(ctx)
		if err != nil {
			return nil, err
		}
		groups := upstream.(classification).PairGroups
		var results domain.ResultTable
		err = s.observe(ctx, "measure", func(context.Context) error {
			var err error
			results, err = analyzer.Measure(groups)
			return err
		})
		if err != nil {
			return nil, err
		}
		return results, nil
	})
	s.classNode.AddListener(node)
	node.AddListener(s.displayNode)
	s.analyzerNode = node
	s.displayNode.Invalidate()
	return nil
}

// Analyzer returns the active analyzer, or nil before selection.
func (s *Service) Analyzer() analyzerapi.Analyzer { return s.analyzer }

// SelectField switches the displayed statistic and recolors without
// recomputing measurements.
func (s *Service) SelectField(name string) error {
	if err := s.display.SelectField(name); err != nil {
		return err
	}
	s.displayNode.Invalidate()
	return nil
}

// SetTemplate replaces the cell text template, failing eagerly on unknown
// fields, and recolors without recomputing measurements.
func (s *Service) SetTemplate(tpl string) error {
	if err := s.display.SetTemplate(tpl); err != nil {
		return err
	}
	s.displayNode.Invalidate()
	return nil
}

// Update pulls the full pipeline through the invalidation graph and
// returns the rendered grid. It runs to completion before returning.
func (s *Service) Update(ctx context.Context) (*render.Grid, error) {
	var grid *render.Grid
	err := s.observe(ctx, "update", func(ctx context.Context) error {
		value, err := s.displayNode.Output(ctx)
		if err != nil {
			return err
		}
		grid = value.(*render.Grid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grid, nil
}

// Results returns the active analyzer's result table, computing it if
// absent.
func (s *Service) Results(ctx context.Context) (domain.ResultTable, error) {
	if s.analyzerNode == nil {
		return nil, domain.ConfigError{Reason: "exactly one analyzer must be selected, got 0"}
	}
	value, err := s.analyzerNode.Output(ctx)
	if err != nil {
		return nil, err
	}
	return value.(domain.ResultTable), nil
}

// Summary produces the active analyzer's aggregate report for the
// currently displayed field.
func (s *Service) Summary(ctx context.Context) (string, error) {
	results, err := s.Results(ctx)
	if err != nil {
		return "", err
	}
	return s.analyzer.Summary(results, s.display.SelectedField()), nil
}

// ElementAt resolves a grid click back to its bucket and returns the
// per-pair data contributing to that bucket's statistic.
func (s *Service) ElementAt(ctx context.Context, row, col int) (analyzerapi.ElementData, error) {
	grid, err := s.Update(ctx)
	if err != nil {
		return analyzerapi.ElementData{}, err
	}
	key, err := grid.KeyAt(row, col)
	if err != nil {
		return analyzerapi.ElementData{}, err
	}
	return s.analyzer.ElementData(key, s.display.SelectedField())
}

// Classes returns the configured ordered class list.
func (s *Service) Classes() []domain.CellClass {
	return append([]domain.CellClass(nil), s.classes...)
}

func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	spanCtx := ctx
	var span TraceSpan
	if s.tracer != nil {
		spanCtx, span = s.tracer.Start(ctx, operation)
	}
	err := fn(spanCtx)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
	return err
}

func collectCells(pairs []domain.Pair) []domain.Cell {
	seen := make(map[string]bool, len(pairs)*2)
	cells := make([]domain.Cell, 0, len(pairs)*2)
	for _, pair := range pairs {
		for _, cell := range []domain.Cell{pair.Pre, pair.Post} {
			if seen[cell.ID] {
				continue
			}
			seen[cell.ID] = true
			cells = append(cells, cell)
		}
	}
	return cells
}
