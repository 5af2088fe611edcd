package server

import (
	invoicetable "github.com/Muhammad-Talha4k/invoice-table-extraction"
)

// tableView is the JSON shape of a table. Absent cells are null.
type tableView struct {
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

type extractionResponse struct {
	ID              string               `json:"id,omitempty"`
	Source          string               `json:"source"`
	Table           tableView            `json:"table"`
	Remainder       tableView            `json:"remainder"`
	PackageType     string               `json:"package_type,omitempty"`
	ReferenceNumber string               `json:"reference_number,omitempty"`
	TwoRowHeader    bool                 `json:"two_row_header"`
	TableStart      int                  `json:"table_start"`
	Entries         []invoicetable.Entry `json:"entries"`
	RoundTrip       tableView            `json:"round_trip"`
}

func newTableView(header []string, rows [][]invoicetable.Cell) tableView {
	view := tableView{
		Columns: append([]string{}, header...),
		Rows:    make([][]*string, 0, len(rows)),
	}
	for _, row := range rows {
		cells := make([]*string, len(row))
		for i, c := range row {
			if c.IsPresent() {
				text := c.Text
				cells[i] = &text
			}
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}

func newExtractionResponse(id, source string, res *invoicetable.Result) extractionResponse {
	entries := invoicetable.Encode(res.Table)
	resp := extractionResponse{
		ID:              id,
		Source:          source,
		Table:           newTableView(res.Table.Header, res.Table.Rows),
		Remainder:       newTableView(res.RemainderColumns, res.Remainder),
		PackageType:     res.PackageType,
		ReferenceNumber: res.ReferenceNumber,
		TwoRowHeader:    res.TwoRowHeader,
		TableStart:      res.TableStart,
		Entries:         entries,
	}
	// Encode output always decodes; an error here would be a codec bug.
	if decoded, err := invoicetable.Decode(entries); err == nil {
		resp.RoundTrip = newTableView(decoded.Header, decoded.Rows)
	}
	return resp
}
