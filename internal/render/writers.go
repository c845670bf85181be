package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteJSON serializes the grid (labels and styled cells) as indented JSON.
func WriteJSON(w io.Writer, grid *Grid) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(grid)
}

// WriteCSV emits the grid's cell text with header labels, one row per
// presynaptic class.
func WriteCSV(w io.Writer, grid *Grid) error {
	cw := csv.NewWriter(w)
	header := make([]string, grid.Size()+1)
	for i, label := range grid.Labels {
		header[i+1] = flattenLabel(label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range grid.Cells {
		record := make([]string, grid.Size()+1)
		record[0] = flattenLabel(grid.Labels[i])
		for j, cell := range row {
			record[j+1] = cell.Text
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteANSI renders the grid as a true-color terminal table.
func WriteANSI(w io.Writer, grid *Grid) error {
	width := 0
	for _, label := range grid.Labels {
		if n := len(flattenLabel(label)); n > width {
			width = n
		}
	}
	for _, row := range grid.Cells {
		for _, cell := range row {
			if n := len(cell.Text); n > width {
				width = n
			}
		}
	}
	if width < 4 {
		width = 4
	}

	if _, err := fmt.Fprintf(w, "%*s", width+1, ""); err != nil {
		return err
	}
	for _, label := range grid.Labels {
		if _, err := fmt.Fprintf(w, " %*s", width, flattenLabel(label)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for i, row := range grid.Cells {
		if _, err := fmt.Fprintf(w, "%*s ", width+1, flattenLabel(grid.Labels[i])); err != nil {
			return err
		}
		for j, cell := range row {
			if j > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "\x1b[48;2;%d;%d;%dm\x1b[38;2;%d;%d;%dm%*s\x1b[0m",
				cell.BG.R, cell.BG.G, cell.BG.B,
				cell.FG.R, cell.FG.G, cell.FG.B,
				width, cell.Text); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func flattenLabel(label Label) string {
	if label.Subtitle == "" {
		return label.Text
	}
	return label.Text + " " + strings.ReplaceAll(label.Subtitle, "\n", " ")
}
