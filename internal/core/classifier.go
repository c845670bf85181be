// Package core implements the classification, grouping, and
// invalidation-driven recomputation engine between raw pair records and
// the rendered matrix grid.
package core

import (
	"connmatrix/pkg/domain"
)

// ClassifyCells groups cells by the ordered class list. Groups are
// independent: each class scans all cells, and a cell matching no class is
// simply absent from every group. Deterministic for identical inputs.
func ClassifyCells(classes []domain.CellClass, cells []domain.Cell) (domain.CellGroupTable, error) {
	if len(classes) == 0 {
		return domain.CellGroupTable{}, domain.ConfigError{Reason: "at least one cell class is required"}
	}
	table := domain.NewCellGroupTable(classes)
	for _, class := range classes {
		for _, cell := range cells {
			if class.Match(cell) {
				table.Add(class, cell)
			}
		}
	}
	return table, nil
}

// ClassifyPairs buckets pairs by every ordered (pre-class, post-class)
// combination whose groups contain the pair's endpoints, diagonal
// included. A pair whose endpoint cells belong to multiple classes lands
// in multiple buckets; a pair with both endpoints unclassified contributes
// nowhere. Cells are indexed by owning class once so each pair resolves
// its bucket memberships without rescanning the class list per bucket.
func ClassifyPairs(pairs []domain.Pair, groups domain.CellGroupTable) (domain.PairGroupTable, error) {
	if len(pairs) == 0 {
		return domain.PairGroupTable{}, domain.ConfigError{Reason: "pair list is empty"}
	}
	classes := groups.Classes()
	if len(classes) == 0 {
		return domain.PairGroupTable{}, domain.ConfigError{Reason: "cell group table holds no classes"}
	}

	owners := make(map[string][]string) // cell ID -> class keys containing it
	for _, class := range classes {
		key := class.Key()
		for _, cell := range groups.Cells(key) {
			owners[cell.ID] = append(owners[cell.ID], key)
		}
	}

	table := domain.NewPairGroupTable(classes)
	for _, pair := range pairs {
		for _, preKey := range owners[pair.Pre.ID] {
			for _, postKey := range owners[pair.Post.ID] {
				table.Add(domain.ClassPair{Pre: preKey, Post: postKey}, pair)
			}
		}
	}
	return table, nil
}
