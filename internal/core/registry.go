package core

import (
	"fmt"
	"sort"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// AnalyzerConstructor builds a fresh analyzer instance. Selecting an
// analyzer always constructs anew so no result table survives a swap.
type AnalyzerConstructor func() analyzerapi.Analyzer

// AnalyzerRegistry maps analyzer names to constructors for tagged lookup.
type AnalyzerRegistry struct {
	ctors map[string]AnalyzerConstructor
}

// NewAnalyzerRegistry constructs an empty registry.
func NewAnalyzerRegistry() *AnalyzerRegistry {
	return &AnalyzerRegistry{ctors: make(map[string]AnalyzerConstructor)}
}

// Register adds a named constructor; duplicate names are rejected.
func (r *AnalyzerRegistry) Register(name string, ctor AnalyzerConstructor) error {
	if name == "" {
		return fmt.Errorf("analyzer name cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("analyzer constructor cannot be nil")
	}
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("analyzer %s already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// New instantiates the named analyzer.
func (r *AnalyzerRegistry) New(name string) (analyzerapi.Analyzer, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, domain.ConfigError{Reason: fmt.Sprintf("analyzer %q is not registered", name)}
	}
	return ctor(), nil
}

// Names lists registered analyzer names in sorted order.
func (r *AnalyzerRegistry) Names() []string {
	out := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SelectOne validates a selection list, requiring exactly one name chosen
// before any computation starts.
func (r *AnalyzerRegistry) SelectOne(names []string) (analyzerapi.Analyzer, error) {
	if len(names) != 1 {
		return nil, domain.ConfigError{Reason: fmt.Sprintf("exactly one analyzer must be selected, got %d", len(names))}
	}
	return r.New(names[0])
}
