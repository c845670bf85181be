// Package render assembles the square result grid handed to display
// sinks and serializes it for export.
package render

import (
	"fmt"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// Label is one row/column header derived from a class's display tuple.
type Label struct {
	Text     string `json:"text"`
	Subtitle string `json:"subtitle,omitempty"`
}

// Grid is a square matrix of rendered cells with shared row/column
// headers. Cells are indexed [row][col] in class order.
type Grid struct {
	Labels []Label                     `json:"labels"`
	Cells  [][]analyzerapi.CellDisplay `json:"cells"`

	keys [][]domain.ClassPair
}

// NewGrid allocates an n-by-n grid for the given ordered classes.
func NewGrid(classes []domain.CellClass) *Grid {
	n := len(classes)
	g := &Grid{
		Labels: make([]Label, n),
		Cells:  make([][]analyzerapi.CellDisplay, n),
		keys:   make([][]domain.ClassPair, n),
	}
	for i, class := range classes {
		text, subtitle := class.Display()
		g.Labels[i] = Label{Text: text, Subtitle: subtitle}
		g.Cells[i] = make([]analyzerapi.CellDisplay, n)
		g.keys[i] = make([]domain.ClassPair, n)
		for j, post := range classes {
			g.keys[i][j] = domain.ClassPair{Pre: class.Key(), Post: post.Key()}
		}
	}
	return g
}

// Size returns the grid dimension.
func (g *Grid) Size() int { return len(g.Labels) }

// SetCell places a rendered cell.
func (g *Grid) SetCell(row, col int, cell analyzerapi.CellDisplay) {
	g.Cells[row][col] = cell
}

// KeyAt resolves a click event's (row, col) back to the ordered class
// pair driving that bucket, for drill-down.
func (g *Grid) KeyAt(row, col int) (domain.ClassPair, error) {
	if row < 0 || row >= len(g.keys) || col < 0 || col >= len(g.keys) {
		return domain.ClassPair{}, fmt.Errorf("grid index (%d, %d) out of range for size %d", row, col, len(g.keys))
	}
	return g.keys[row][col], nil
}
