package invoicetable

// scanState tracks whether the row after the header must be consumed.
type scanState int

const (
	scanNormal scanState = iota
	scanAwaitingSkip
)

// regionSplit is the partition of a grid into table and remainder.
type regionSplit struct {
	Table        TableRegion
	Remainder    [][]Cell
	TwoRowHeader bool
	TableStart   int
}

// splitTableRegion partitions the grid in a single top-down pass.
//
// The first dense row fixes the header (together with the following row when
// that row is a header continuation). From then on dense rows are table body
// and sparse rows go to the remainder; the region never closes. Sparse rows
// above the header also go to the remainder.
func splitTableRegion(grid *Grid, minNonNaNPct, numericMajority float64) regionSplit {
	split := regionSplit{TableStart: -1}
	header := append([]string(nil), grid.Columns...)

	var body [][]Cell
	state := scanNormal

	for i, row := range grid.Rows {
		class := ClassifyRow(row, minNonNaNPct)

		if split.TableStart < 0 {
			if class != TableCandidate {
				split.Remainder = append(split.Remainder, copyRow(row))
				continue
			}

			split.TableStart = i
			var next []Cell
			if i+1 < len(grid.Rows) {
				next = grid.Rows[i+1]
			}
			res := resolveHeader(row, next, numericMajority)
			header = res.Header
			if res.SkipNext {
				split.TwoRowHeader = true
				state = scanAwaitingSkip
			}
			continue
		}

		if state == scanAwaitingSkip {
			state = scanNormal
			continue
		}

		if class == TableCandidate {
			body = append(body, copyRow(row))
		} else {
			split.Remainder = append(split.Remainder, copyRow(row))
		}
	}

	if len(body) > 0 {
		header = alignHeader(header, body)
	}

	split.Table = TableRegion{
		Header: DeduplicateColumns(header),
		Rows:   body,
	}
	return split
}

// alignHeader truncates the header to the widest body row and pads body rows
// that are shorter than the resulting header.
func alignHeader(header []string, body [][]Cell) []string {
	maxCols := 0
	for _, row := range body {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	if maxCols < len(header) {
		header = header[:maxCols]
	}

	for i, row := range body {
		for len(row) < len(header) {
			row = append(row, Absent())
		}
		body[i] = row
	}
	return header
}

func copyRow(row []Cell) []Cell {
	out := make([]Cell, len(row))
	copy(out, row)
	return out
}
