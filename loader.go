package invoicetable

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoaderConfig controls how sources are parsed into grids.
type LoaderConfig struct {
	// Delimiter is the CSV field separator. Zero sniffs the first line for
	// one of ',', ';', '\t' or '|' (default: ',')
	Delimiter rune

	// NullValues are field texts read as absent cells, in addition to the
	// empty string (default: DefaultNullValues())
	NullValues []string

	// MaxRows and MaxColumns bound the grid size; zero disables the check
	// (default: 100000 rows, 1024 columns)
	MaxRows    int
	MaxColumns int

	// MaxBytes bounds the raw source size; zero disables the check
	// (default: 32 MiB)
	MaxBytes int64

	// PadShortRows pads rows with fewer fields than the label line with
	// absent cells instead of rejecting the source (default: false)
	PadShortRows bool

	// Sheet selects the worksheet of a workbook; empty picks the first (default: "")
	Sheet string
}

// DefaultNullValues returns the field texts treated as missing by common
// spreadsheet and dataframe tooling.
func DefaultNullValues() []string {
	return []string{
		"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
		"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
		"n/a", "nan", "null",
	}
}

// DefaultMaxSourceBytes is the default cap on the raw size of a source.
const DefaultMaxSourceBytes int64 = 32 << 20

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Delimiter:  ',',
		NullValues: DefaultNullValues(),
		MaxRows:    100000,
		MaxColumns: 1024,
		MaxBytes:   DefaultMaxSourceBytes,
	}
}

// LoadFile loads a grid, choosing the parser from the file extension.
func LoadFile(path string, cfg LoaderConfig) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: errors.Wrap(err, "failed to open source")}
	}
	defer f.Close()

	return LoadReader(f, path, cfg)
}

// LoadReader loads a grid from r. name is only used to pick the parser by
// extension and to label errors.
func LoadReader(r io.Reader, name string, cfg LoaderConfig) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		grid, err := LoadXLSX(r, cfg)
		return grid, withSource(err, name)
	case ".tsv", ".tab":
		cfg.Delimiter = '\t'
		grid, err := LoadCSV(r, cfg)
		return grid, withSource(err, name)
	case ".csv", ".txt", "":
		grid, err := LoadCSV(r, cfg)
		return grid, withSource(err, name)
	default:
		return nil, &LoadError{Source: name, Err: errors.Wrap(ErrUnsupportedFormat, filepath.Ext(name))}
	}
}

// LoadCSV parses a delimited source. The first record holds the column
// labels and every later record becomes a row.
func LoadCSV(r io.Reader, cfg LoaderConfig) (*Grid, error) {
	// Strip a UTF-8 BOM and transcode UTF-16 sources that carry one.
	decoded := transform.NewReader(limitSource(r, cfg.MaxBytes), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, readError(err)
	}

	delimiter := cfg.Delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	labels, err := reader.Read()
	if err == io.EOF {
		return nil, &LoadError{Err: ErrNoColumns}
	}
	if err != nil {
		return nil, &LoadError{Err: errors.Wrap(err, "failed to parse column labels")}
	}

	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &LoadError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &LoadError{Err: errors.Wrap(err, "failed to parse record")}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)

		if cfg.MaxRows > 0 && len(records) > cfg.MaxRows {
			return nil, &LoadError{Line: line, Err: errors.Errorf("more than %d rows", cfg.MaxRows)}
		}
	}

	return buildGrid(labels, records, lines, cfg)
}

// LoadCSVFile parses a delimited file.
func LoadCSVFile(path string, cfg LoaderConfig) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: errors.Wrap(err, "failed to open source")}
	}
	defer f.Close()

	grid, err := LoadCSV(f, cfg)
	return grid, withSource(err, path)
}

// limitSource caps r at limit bytes. Reading past the cap fails with
// ErrSourceTooLarge instead of silently truncating the source.
func limitSource(r io.Reader, limit int64) io.Reader {
	if limit <= 0 || limit == math.MaxInt64 {
		return r
	}
	return &cappedReader{r: io.LimitReader(r, limit+1), remaining: limit}
}

type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return 0, ErrSourceTooLarge
	}
	return n, err
}

func readError(err error) error {
	if errors.Is(err, ErrSourceTooLarge) {
		return &LoadError{Err: ErrSourceTooLarge}
	}
	return &LoadError{Err: errors.Wrap(err, "failed to read source")}
}

// buildGrid turns raw records into cells. lines holds the 1-based source line
// of every record; when nil, positions are derived from the record index.
func buildGrid(labels []string, records [][]string, lines []int, cfg LoaderConfig) (*Grid, error) {
	if len(labels) == 0 {
		return nil, &LoadError{Err: ErrNoColumns}
	}
	if cfg.MaxColumns > 0 && len(labels) > cfg.MaxColumns {
		return nil, &LoadError{Line: 1, Err: errors.Errorf("%d columns exceeds the limit of %d", len(labels), cfg.MaxColumns)}
	}
	if cfg.MaxRows > 0 && len(records) > cfg.MaxRows {
		return nil, &LoadError{Err: errors.Errorf("more than %d rows", cfg.MaxRows)}
	}

	nulls := make(map[string]bool, len(cfg.NullValues))
	for _, v := range cfg.NullValues {
		nulls[v] = true
	}

	width := len(labels)
	rows := make([][]Cell, 0, len(records))
	for i, record := range records {
		line := i + 2
		if lines != nil {
			line = lines[i]
		}

		if len(record) > width || (len(record) < width && !cfg.PadShortRows) {
			return nil, &LoadError{Line: line, Err: errRaggedRow(len(record), width)}
		}

		row := make([]Cell, width)
		for j := range row {
			if j >= len(record) || nulls[record[j]] {
				row[j] = Absent()
				continue
			}
			row[j] = TextCell(record[j])
		}
		rows = append(rows, row)
	}

	return NewGrid(mangleColumnLabels(labels), rows)
}

// sniffDelimiter picks the candidate separator that occurs most often on the
// first non-empty line, falling back to a comma.
func sniffDelimiter(data []byte) rune {
	var first string
	for line := range strings.SplitSeq(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			first = line
			break
		}
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
