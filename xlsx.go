package invoicetable

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads one worksheet of a workbook into a grid. The first row holds
// the column labels. Worksheet rows come back without trailing empty cells,
// so every row is padded to the widest row.
func LoadXLSX(r io.Reader, cfg LoaderConfig) (*Grid, error) {
	data, err := io.ReadAll(limitSource(r, cfg.MaxBytes))
	if err != nil {
		return nil, readError(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Err: errors.Wrap(err, "failed to open workbook")}
	}
	defer func() { _ = f.Close() }()

	sheet, err := pickSheet(f.GetSheetList(), cfg.Sheet)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &LoadError{Err: errors.Wrapf(err, "failed to read sheet %q", sheet)}
	}
	if len(rows) == 0 {
		return nil, &LoadError{Err: errors.Wrapf(ErrNoColumns, "sheet %q", sheet)}
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, &LoadError{Err: errors.Wrapf(ErrNoColumns, "sheet %q", sheet)}
	}

	labels := padRecord(rows[0], width)
	records := make([][]string, 0, len(rows)-1)
	lines := make([]int, 0, len(rows)-1)
	for i, row := range rows[1:] {
		records = append(records, padRecord(row, width))
		lines = append(lines, i+2)
	}

	cfg.PadShortRows = true
	return buildGrid(labels, records, lines, cfg)
}

// LoadXLSXFile reads one worksheet of a workbook file into a grid.
func LoadXLSXFile(path string, cfg LoaderConfig) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: errors.Wrap(err, "failed to open source")}
	}
	defer f.Close()

	grid, err := LoadXLSX(f, cfg)
	return grid, withSource(err, path)
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == want {
			return s, nil
		}
	}
	return "", errors.Errorf("sheet %q not found", want)
}

func padRecord(record []string, width int) []string {
	if len(record) >= width {
		return record
	}
	out := make([]string, width)
	copy(out, record)
	return out
}
