package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"connmatrix/pkg/domain"
)

func boolPtr(v bool) *bool { return &v }

func fixtureExperiment(id string) domain.Experiment {
	return domain.Experiment{
		ID:      id,
		Project: "mouse",
		Cells: []domain.Cell{
			{ID: id + "-c1", TargetLayer: "2/3", Pyramidal: boolPtr(true)},
			{ID: id + "-c2", TargetLayer: "4", CreType: "pvalb"},
		},
		Pairs: []domain.PairRecord{
			{ID: id + "-p1", PreCellID: id + "-c1", PostCellID: id + "-c2", Signals: domain.Signals{Connected: boolPtr(true)}},
		},
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connmatrix.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.AddExperiment(ctx, fixtureExperiment("e1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	pairs, err := reopened.QueryPairs(ctx, domain.PairFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(pairs) != 1 || pairs[0].ExperimentID != "e1" {
		t.Fatalf("expected persisted pair from e1, got %+v", pairs)
	}
	if reopened.Path() != path {
		t.Fatalf("expected path %q, got %q", path, reopened.Path())
	}
}

func TestDuplicateExperimentNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connmatrix.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.AddExperiment(ctx, fixtureExperiment("e1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddExperiment(ctx, fixtureExperiment("e1")); err == nil {
		t.Fatalf("duplicate experiment must be rejected")
	}

	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count state rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single state bucket, got %d", count)
	}
}

func TestImportStateReplacesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connmatrix.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.AddExperiment(ctx, fixtureExperiment("e1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap, err := store.ExportState(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	snap.Experiments[0].ID = "e2"
	for i := range snap.Experiments[0].Pairs {
		snap.Experiments[0].Pairs[i].ID = "e2-p1"
	}
	if err := store.ImportState(ctx, snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	exps, err := reopened.Experiments(ctx)
	if err != nil {
		t.Fatalf("experiments: %v", err)
	}
	if len(exps) != 1 || exps[0].ID != "e2" {
		t.Fatalf("import must replace the catalog, got %+v", exps)
	}
}
