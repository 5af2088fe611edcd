package invoicetable

import (
	"strconv"
	"strings"
)

// CellKind distinguishes absent cells from present ones.
type CellKind int

const (
	// CellAbsent is a null or empty cell.
	CellAbsent CellKind = iota
	// CellText is a present cell whose text does not parse as a number.
	CellText
	// CellNumber is a present cell whose text parses as a number.
	CellNumber
)

// String returns the string representation of the cell kind.
func (k CellKind) String() string {
	switch k {
	case CellAbsent:
		return "absent"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Cell represents a single grid value.
type Cell struct {
	Kind   CellKind
	Text   string  // Raw text as read from the source (empty when absent)
	Number float64 // Parsed value, valid only when Kind == CellNumber
}

// Absent returns an absent cell.
func Absent() Cell {
	return Cell{Kind: CellAbsent}
}

// TextCell classifies raw text into a cell. Empty text is absent;
// text that parses as a float is numeric.
func TextCell(text string) Cell {
	if text == "" {
		return Cell{Kind: CellAbsent}
	}
	if n, ok := parseNumber(text); ok {
		return Cell{Kind: CellNumber, Text: text, Number: n}
	}
	return Cell{Kind: CellText, Text: text}
}

// NumberCell returns a numeric cell with a canonical text form.
func NumberCell(n float64) Cell {
	return Cell{Kind: CellNumber, Text: strconv.FormatFloat(n, 'f', -1, 64), Number: n}
}

// IsPresent reports whether the cell carries a value.
func (c Cell) IsPresent() bool {
	return c.Kind != CellAbsent
}

// IsNumeric reports whether the cell holds a number.
func (c Cell) IsNumeric() bool {
	return c.Kind == CellNumber
}

// String returns the cell text, or "" for an absent cell.
func (c Cell) String() string {
	if c.Kind == CellAbsent {
		return ""
	}
	return c.Text
}

func parseNumber(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Grid is a rectangular block of cells with one label per column.
// Rows are never shared between extractions.
type Grid struct {
	Columns []string // Column labels taken from the first source line
	Rows    [][]Cell
}

// NewGrid builds a grid and checks that every row has len(columns) cells.
func NewGrid(columns []string, rows [][]Cell) (*Grid, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, &LoadError{Line: i + 2, Err: errRaggedRow(len(row), len(columns))}
		}
	}
	return &Grid{Columns: columns, Rows: rows}, nil
}

// NumRows returns the number of data rows.
func (g *Grid) NumRows() int {
	return len(g.Rows)
}

// NumCols returns the number of columns.
func (g *Grid) NumCols() int {
	return len(g.Columns)
}

// RowClass is the density classification of a single row.
type RowClass int

const (
	// MetadataCandidate rows fall below the density threshold.
	MetadataCandidate RowClass = iota
	// TableCandidate rows meet the density threshold.
	TableCandidate
)

// String returns the string representation of the row class.
func (c RowClass) String() string {
	if c == TableCandidate {
		return "table"
	}
	return "metadata"
}

// TableRegion is the recognised line-item table.
type TableRegion struct {
	Header []string
	Rows   [][]Cell
}

// NumRows returns the number of body rows.
func (t TableRegion) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the number of header columns.
func (t TableRegion) NumCols() int {
	return len(t.Header)
}

// ColumnIndex returns the position of the named column, or -1.
func (t TableRegion) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of the named column, or nil if there is no such column.
func (t TableRegion) Column(name string) []Cell {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]Cell, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// setConstantColumn fills the named column with one value, appending the
// column when it does not exist yet.
func (t *TableRegion) setConstantColumn(name, value string) {
	cell := TextCell(value)
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], cell)
		}
		return
	}
	for i := range t.Rows {
		t.Rows[i][idx] = cell
	}
}

// Result is the outcome of one extraction.
type Result struct {
	Table            TableRegion
	Remainder        [][]Cell // Metadata rows in source order
	RemainderColumns []string // Column labels of the source grid
	PackageType      string   // Empty when no keyword matched
	ReferenceNumber  string   // Empty when no pattern matched
	TwoRowHeader     bool     // A header-continuation row was consumed
	TableStart       int      // Index of the header row in the grid, -1 when no table was found
}

// HasPackageType reports whether a package type was detected.
func (r *Result) HasPackageType() bool {
	return r.PackageType != ""
}

// HasReferenceNumber reports whether a reference number was detected.
func (r *Result) HasReferenceNumber() bool {
	return r.ReferenceNumber != ""
}
