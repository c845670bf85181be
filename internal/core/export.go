package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	blobcore "connmatrix/internal/infra/blob/core"
	"connmatrix/internal/render"
	"connmatrix/pkg/domain"
)

// ExportArtifacts writes the current result table and rendered grid to
// the blob store under matrix/<analyzer>/<timestamp>/, returning the
// stored object descriptors. The pipeline is pulled first, so exporting
// after an invalidation recomputes.
func (s *Service) ExportArtifacts(ctx context.Context, store blobcore.Store) ([]blobcore.Info, error) {
	if s.analyzer == nil {
		return nil, domain.ConfigError{Reason: "exactly one analyzer must be selected, got 0"}
	}
	grid, err := s.Update(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.Results(ctx)
	if err != nil {
		return nil, err
	}

	var infos []blobcore.Info
	err = s.observe(ctx, "export", func(ctx context.Context) error {
		base := fmt.Sprintf("matrix/%s/%s", s.analyzer.Name(), time.Now().UTC().Format("20060102T150405Z"))

		ordered := make([]domain.ElementResult, 0, len(results))
		clsVal, err := s.classNode.Output(ctx)
		if err != nil {
			return err
		}
		for _, key := range clsVal.(classification).PairGroups.Keys() {
			ordered = append(ordered, results[key])
		}
		payload, err := json.Marshal(ordered)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		info, err := store.Put(ctx, base+"/results.json", bytes.NewReader(payload), blobcore.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"analyzer": s.analyzer.Name(), "field": s.display.SelectedField()},
		})
		if err != nil {
			return fmt.Errorf("store results: %w", err)
		}
		infos = append(infos, info)

		var csvBuf bytes.Buffer
		if err := render.WriteCSV(&csvBuf, grid); err != nil {
			return fmt.Errorf("encode grid: %w", err)
		}
		info, err = store.Put(ctx, base+"/grid.csv", bytes.NewReader(csvBuf.Bytes()), blobcore.PutOptions{
			ContentType: "text/csv",
			Metadata:    map[string]string{"analyzer": s.analyzer.Name()},
		})
		if err != nil {
			return fmt.Errorf("store grid: %w", err)
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
