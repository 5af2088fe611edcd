package invoicetable

// DefaultMinNonNaNPct is the default density threshold for table rows.
const DefaultMinNonNaNPct = 0.7

// rowDensity returns the fraction of present cells in the row.
// A zero-length row is a contract violation and panics.
func rowDensity(row []Cell) float64 {
	if len(row) == 0 {
		panic(ErrEmptyRow)
	}
	present := 0
	for _, c := range row {
		if c.IsPresent() {
			present++
		}
	}
	return float64(present) / float64(len(row))
}

// ClassifyRow classifies a row as table or metadata candidate against
// minNonNaNPct. Rows must have at least one cell.
func ClassifyRow(row []Cell, minNonNaNPct float64) RowClass {
	if rowDensity(row) >= minNonNaNPct {
		return TableCandidate
	}
	return MetadataCandidate
}
