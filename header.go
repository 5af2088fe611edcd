package invoicetable

import "fmt"

// DefaultNumericMajority is the numeric share at which the row after the
// first dense row counts as data rather than a second header row.
const DefaultNumericMajority = 0.5

// headerResolution is the outcome of resolving the table header.
type headerResolution struct {
	Header   []string
	SkipNext bool // The following row was merged into the header
}

// isDataRow reports whether numeric cells make up at least threshold of the
// present cells. A row with no present cells is not data.
func isDataRow(row []Cell, threshold float64) bool {
	present, numeric := 0, 0
	for _, c := range row {
		if !c.IsPresent() {
			continue
		}
		present++
		if c.IsNumeric() {
			numeric++
		}
	}
	if present == 0 {
		return false
	}
	return float64(numeric)/float64(present) >= threshold
}

// isBlank treats absent cells and empty text alike.
func isBlank(c Cell) bool {
	return !c.IsPresent() || c.Text == ""
}

// mergeHeaderRows combines a header row with its continuation row column by
// column. Blank results stay absent so they can be named later.
func mergeHeaderRows(first, second []Cell) []Cell {
	merged := make([]Cell, len(first))
	for i, top := range first {
		var bottom Cell
		if i < len(second) {
			bottom = second[i]
		}

		switch {
		case isBlank(top) && isBlank(bottom):
			merged[i] = Absent()
		case isBlank(top):
			merged[i] = bottom
		case isBlank(bottom):
			merged[i] = top
		default:
			merged[i] = Cell{Kind: CellText, Text: top.Text + " " + bottom.Text}
		}
	}
	return merged
}

// fillPlaceholders names blank header cells "Unnamed 1", "Unnamed 2", ...
// from left to right.
func fillPlaceholders(cells []Cell) []string {
	header := make([]string, len(cells))
	counter := 1
	for i, c := range cells {
		if isBlank(c) {
			header[i] = fmt.Sprintf("Unnamed %d", counter)
			counter++
			continue
		}
		header[i] = c.Text
	}
	return header
}

// resolveHeader decides between a one-row and a two-row header. next is nil
// when first is the last row of the grid.
func resolveHeader(first, next []Cell, numericMajority float64) headerResolution {
	if next == nil || isDataRow(next, numericMajority) {
		return headerResolution{Header: fillPlaceholders(first)}
	}
	return headerResolution{
		Header:   fillPlaceholders(mergeHeaderRows(first, next)),
		SkipNext: true,
	}
}
