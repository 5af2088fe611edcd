package invoicetable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// EntryKind distinguishes the two entry shapes of the flat table encoding.
type EntryKind int

const (
	// EntryColumnName names one column.
	EntryColumnName EntryKind = iota
	// EntryCell carries the text of one body cell.
	EntryCell
)

// Entry is one element of the flat table encoding.
//
// On the wire a column name is {"column": 0, "column name": "Qty"} and a cell
// is {"row": 0, "column": 0, "text": "12"}. Absent cells carry "text": null.
type Entry struct {
	Kind   EntryKind
	Row    int
	Column int
	Name   string
	Text   *string
}

type wireEntry struct {
	Row    *int            `json:"row,omitempty"`
	Column *int            `json:"column"`
	Name   *string         `json:"column name,omitempty"`
	Text   json.RawMessage `json:"text,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	column := e.Column
	if e.Kind == EntryColumnName {
		name := e.Name
		return json.Marshal(wireEntry{Column: &column, Name: &name})
	}

	row := e.Row
	text := json.RawMessage("null")
	if e.Text != nil {
		b, err := json.Marshal(*e.Text)
		if err != nil {
			return nil, err
		}
		text = b
	}
	return json.Marshal(wireEntry{Row: &row, Column: &column, Text: text})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	entry, reason := parseEntry(data)
	if reason != "" {
		return &FormatError{Index: -1, Reason: reason}
	}
	*e = entry
	return nil
}

// parseEntry returns a non-empty reason when data is not a valid entry.
func parseEntry(data []byte) (Entry, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Entry{}, "invalid entry: " + err.Error()
	}
	for key := range fields {
		switch key {
		case "row", "column", "column name", "text":
		default:
			return Entry{}, fmt.Sprintf("unknown field %q", key)
		}
	}

	var column int
	rawColumn, ok := fields["column"]
	if !ok {
		return Entry{}, `missing "column"`
	}
	if err := json.Unmarshal(rawColumn, &column); err != nil {
		return Entry{}, `"column" must be an integer`
	}
	if column < 0 {
		return Entry{}, fmt.Sprintf("negative column index %d", column)
	}

	rawName, hasName := fields["column name"]
	rawRow, hasRow := fields["row"]
	rawText, hasText := fields["text"]

	switch {
	case hasName && !hasRow && !hasText:
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			return Entry{}, `"column name" must be a string`
		}
		return Entry{Kind: EntryColumnName, Column: column, Name: name}, ""
	case !hasName && hasRow && hasText:
		var row int
		if err := json.Unmarshal(rawRow, &row); err != nil {
			return Entry{}, `"row" must be an integer`
		}
		if row < 0 {
			return Entry{}, fmt.Sprintf("negative row index %d", row)
		}
		entry := Entry{Kind: EntryCell, Row: row, Column: column}
		if trimmed := bytes.TrimSpace(rawText); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			var text string
			if err := json.Unmarshal(trimmed, &text); err != nil {
				return Entry{}, `"text" must be a string or null`
			}
			entry.Text = &text
		}
		return entry, ""
	default:
		return Entry{}, "entry is neither a column name nor a cell"
	}
}

// Encode flattens a table into column-name entries followed by cell entries
// in row-major order.
func Encode(t TableRegion) []Entry {
	entries := make([]Entry, 0, len(t.Header)*(len(t.Rows)+1))
	for i, name := range t.Header {
		entries = append(entries, Entry{Kind: EntryColumnName, Column: i, Name: name})
	}
	for r, row := range t.Rows {
		for c := range t.Header {
			entry := Entry{Kind: EntryCell, Row: r, Column: c}
			if c < len(row) && row[c].IsPresent() {
				text := row[c].Text
				entry.Text = &text
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

// EncodeJSON returns the indented JSON form of Encode(t).
func EncodeJSON(t TableRegion) ([]byte, error) {
	b, err := json.MarshalIndent(Encode(t), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode table")
	}
	return b, nil
}

// Decode rebuilds a table from entries. Column names must cover indices
// 0..n-1 exactly once, every cell must reference a named column, and rows
// must run from 0 without gaps, each with one cell per column.
func Decode(entries []Entry) (TableRegion, error) {
	names := make(map[int]string)
	cells := make(map[int]map[int]Cell)
	maxRow := -1

	for i, e := range entries {
		switch e.Kind {
		case EntryColumnName:
			if _, dup := names[e.Column]; dup {
				return TableRegion{}, &FormatError{Index: i, Reason: fmt.Sprintf("duplicate name for column %d", e.Column)}
			}
			names[e.Column] = e.Name
		case EntryCell:
			if e.Row < 0 || e.Column < 0 {
				return TableRegion{}, &FormatError{Index: i, Reason: "negative cell position"}
			}
			row, ok := cells[e.Row]
			if !ok {
				row = make(map[int]Cell)
				cells[e.Row] = row
			}
			if _, dup := row[e.Column]; dup {
				return TableRegion{}, &FormatError{Index: i, Reason: fmt.Sprintf("duplicate cell (%d, %d)", e.Row, e.Column)}
			}
			if e.Text == nil {
				row[e.Column] = Absent()
			} else {
				row[e.Column] = TextCell(*e.Text)
			}
			if e.Row > maxRow {
				maxRow = e.Row
			}
		default:
			return TableRegion{}, &FormatError{Index: i, Reason: "unknown entry kind"}
		}
	}

	indices := make([]int, 0, len(names))
	for idx := range names {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	header := make([]string, len(indices))
	for i, idx := range indices {
		if idx != i {
			return TableRegion{}, &FormatError{Index: -1, Reason: fmt.Sprintf("column %d has no name", i)}
		}
		header[i] = names[idx]
	}

	// Rows run from 0 without gaps, so a valid table has exactly len(cells)
	// rows; the loop stops at the first missing row before reaching maxRow.
	rows := make([][]Cell, 0, len(cells))
	for r := 0; r <= maxRow; r++ {
		rowCells, ok := cells[r]
		if !ok {
			return TableRegion{}, &FormatError{Index: -1, Reason: fmt.Sprintf("row %d is missing", r)}
		}
		for c := range rowCells {
			if _, named := names[c]; !named {
				return TableRegion{}, &FormatError{Index: -1, Reason: fmt.Sprintf("row %d references column %d which has no name", r, c)}
			}
		}
		row := make([]Cell, len(header))
		for c := range header {
			cell, ok := rowCells[c]
			if !ok {
				return TableRegion{}, &FormatError{Index: -1, Reason: fmt.Sprintf("row %d has no cell for column %d", r, c)}
			}
			row[c] = cell
		}
		rows = append(rows, row)
	}

	return TableRegion{Header: header, Rows: rows}, nil
}

// DecodeJSON parses the JSON form produced by EncodeJSON.
func DecodeJSON(data []byte) (TableRegion, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return TableRegion{}, &FormatError{Index: -1, Reason: "expected a JSON array of entries: " + err.Error()}
	}

	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		entry, reason := parseEntry(item)
		if reason != "" {
			return TableRegion{}, &FormatError{Index: i, Reason: reason}
		}
		entries = append(entries, entry)
	}
	return Decode(entries)
}
