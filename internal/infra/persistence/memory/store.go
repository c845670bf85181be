// Package memory provides the in-memory experiment store. It backs unit
// tests directly and serves as the working set for the durable drivers,
// which persist snapshots of its contents.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"connmatrix/pkg/domain"
)

// Store keeps experiments in memory, keyed by experiment ID. Safe for
// concurrent use.
type Store struct {
	mu          sync.RWMutex
	experiments map[string]domain.Experiment
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{experiments: make(map[string]domain.Experiment)}
}

// AddExperiment registers an experiment. Duplicate IDs are rejected so
// import jobs notice collisions early.
func (s *Store) AddExperiment(_ context.Context, exp domain.Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[exp.ID]; ok {
		return fmt.Errorf("experiment %s already exists", exp.ID)
	}
	s.experiments[exp.ID] = exp
	return nil
}

// Experiments returns all stored experiments ordered by ID.
func (s *Store) Experiments(_ context.Context) ([]domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// QueryPairs hydrates every recorded pair whose experiment passes the
// filter, embedding both endpoint cells and the experiment provenance.
func (s *Store) QueryPairs(_ context.Context, filter domain.PairFilter) ([]domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.experiments))
	for id := range s.experiments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pairs []domain.Pair
	for _, id := range ids {
		exp := s.experiments[id]
		if !filter.Match(exp.Project, exp.ACSF, exp.Internal) {
			continue
		}
		cells := make(map[string]domain.Cell, len(exp.Cells))
		for _, c := range exp.Cells {
			cells[c.ID] = c
		}
		for _, rec := range exp.Pairs {
			pre, okPre := cells[rec.PreCellID]
			post, okPost := cells[rec.PostCellID]
			if !okPre || !okPost {
				return nil, fmt.Errorf("experiment %s: pair %s references unknown cell", exp.ID, rec.ID)
			}
			pairs = append(pairs, domain.Pair{
				ID:           rec.ID,
				ExperimentID: exp.ID,
				Project:      exp.Project,
				ACSF:         exp.ACSF,
				Internal:     exp.Internal,
				Pre:          pre,
				Post:         post,
				Signals:      rec.Signals,
			})
		}
	}
	return pairs, nil
}

// Snapshot is the serialized form used by the durable drivers.
type Snapshot struct {
	Experiments []domain.Experiment `json:"experiments"`
}

// ExportState captures the current contents as a Snapshot.
func (s *Store) ExportState(ctx context.Context) (Snapshot, error) {
	exps, err := s.Experiments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Experiments: exps}, nil
}

// ImportState replaces the current contents with the Snapshot.
func (s *Store) ImportState(_ context.Context, snap Snapshot) error {
	next := make(map[string]domain.Experiment, len(snap.Experiments))
	for _, exp := range snap.Experiments {
		if exp.ID == "" {
			return fmt.Errorf("snapshot contains experiment without id")
		}
		if _, ok := next[exp.ID]; ok {
			return fmt.Errorf("snapshot contains duplicate experiment %s", exp.ID)
		}
		next[exp.ID] = exp
	}
	s.mu.Lock()
	s.experiments = next
	s.mu.Unlock()
	return nil
}
