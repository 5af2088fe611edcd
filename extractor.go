package invoicetable

import (
	"bytes"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExtractionMetrics contains timing and statistics for one extraction.
type ExtractionMetrics struct {
	TotalTime   time.Duration
	LoadTime    time.Duration
	ExtractTime time.Duration
	Statistics  ExtractionStatistics
}

// ExtractionStatistics contains grid-level counts.
type ExtractionStatistics struct {
	TotalRows     int
	TotalColumns  int
	TableRows     int
	TableColumns  int
	RemainderRows int
	HeaderRows    int // 0 when no table was found, otherwise 1 or 2
}

// Config controls table extraction behavior.
type Config struct {
	// MinNonNaNPct is the share of present cells at which a row counts as a
	// table row, in (0, 1] (default: 0.7)
	MinNonNaNPct float64

	// NumericMajority is the share of numeric cells at which the row after
	// the first table row counts as data instead of a second header row (default: 0.5)
	NumericMajority float64

	// PackageTypes is the ordered keyword table for the package type
	// annotation (default: DefaultPackageTypes())
	PackageTypes []PackageKeyword

	// ReferencePatterns are the ordered reference number alternatives
	// (default: DefaultReferencePatterns())
	ReferencePatterns []ReferencePattern

	// DisablePackageType and DisableReferenceNumber skip the annotators (default: false)
	DisablePackageType     bool
	DisableReferenceNumber bool

	// Loader configures how files and readers are parsed (default: DefaultLoaderConfig())
	Loader LoaderConfig

	// EnableMetricsLogging logs timing and statistics for every extraction (default: false)
	EnableMetricsLogging bool

	// Logger receives diagnostics; nil disables logging
	Logger *zap.Logger
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		MinNonNaNPct:      DefaultMinNonNaNPct,
		NumericMajority:   DefaultNumericMajority,
		PackageTypes:      DefaultPackageTypes(),
		ReferencePatterns: DefaultReferencePatterns(),
		Loader:            DefaultLoaderConfig(),
	}
}

// Validate checks the numeric thresholds.
func (c Config) Validate() error {
	if !(c.MinNonNaNPct > 0 && c.MinNonNaNPct <= 1) {
		return errors.Errorf("min non-NaN percentage %v is outside (0, 1]", c.MinNonNaNPct)
	}
	if c.NumericMajority < 0 || c.NumericMajority > 1 {
		return errors.Errorf("numeric majority %v is outside [0, 1]", c.NumericMajority)
	}
	return nil
}

// Extractor splits grids into a line-item table and metadata rows. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct {
	config Config
	logger *zap.Logger
}

// NewExtractor creates an extractor with the default configuration.
func NewExtractor() *Extractor {
	e, _ := NewExtractorWithConfig(DefaultConfig())
	return e
}

// NewExtractorWithConfig creates an extractor with a custom configuration.
func NewExtractorWithConfig(config Config) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid extractor configuration")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{config: config, logger: logger}, nil
}

// Config returns a copy of the extractor configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// ExtractGrid partitions a loaded grid and annotates the table.
func (e *Extractor) ExtractGrid(grid *Grid) (*Result, error) {
	if grid == nil {
		return nil, errors.New("nil grid")
	}
	if grid.NumCols() == 0 {
		return nil, ErrNoColumns
	}

	split := splitTableRegion(grid, e.config.MinNonNaNPct, e.config.NumericMajority)
	result := &Result{
		Table:            split.Table,
		Remainder:        split.Remainder,
		RemainderColumns: append([]string(nil), grid.Columns...),
		TwoRowHeader:     split.TwoRowHeader,
		TableStart:       split.TableStart,
	}

	e.annotate(result)
	return result, nil
}

// annotate adds the package type and reference number columns. Both are
// best effort: a miss leaves the column out.
func (e *Extractor) annotate(result *Result) {
	if !e.config.DisablePackageType {
		if category, ok := FindPackageType(result.Table, result.Remainder, e.config.PackageTypes); ok {
			result.PackageType = category
			result.Table.setConstantColumn(PackageTypeColumn, category)
		}
	}

	if !e.config.DisableReferenceNumber {
		ref, ok, err := FindReferenceNumber(result.Remainder, e.config.ReferencePatterns)
		if err != nil {
			e.logger.Warn("reference number pattern failed", zap.Error(err))
		}
		if ok {
			result.ReferenceNumber = ref
			result.Table.setConstantColumn(ReferenceNumberColumn, ref)
		}
	}
}

// ExtractFile loads a CSV, TSV or XLSX file and extracts its table.
func (e *Extractor) ExtractFile(filePath string) (*Result, error) {
	result, _, err := e.ExtractFileWithMetrics(filePath)
	return result, err
}

// ExtractReader loads a grid from r and extracts its table. name picks the
// parser by extension.
func (e *Extractor) ExtractReader(r io.Reader, name string) (*Result, error) {
	result, _, err := e.extractWithMetrics(name, func() (*Grid, error) {
		return LoadReader(r, name, e.config.Loader)
	})
	return result, err
}

// ExtractBytes extracts the table from an in-memory source.
func (e *Extractor) ExtractBytes(data []byte, name string) (*Result, error) {
	return e.ExtractReader(bytes.NewReader(data), name)
}

// ExtractFileWithMetrics extracts a file and returns timing and statistics.
func (e *Extractor) ExtractFileWithMetrics(filePath string) (*Result, ExtractionMetrics, error) {
	return e.extractWithMetrics(filePath, func() (*Grid, error) {
		return LoadFile(filePath, e.config.Loader)
	})
}

func (e *Extractor) extractWithMetrics(source string, load func() (*Grid, error)) (*Result, ExtractionMetrics, error) {
	startTime := time.Now()

	grid, err := load()
	if err != nil {
		return nil, ExtractionMetrics{}, errors.Wrap(err, "failed to load grid")
	}
	loadTime := time.Since(startTime)

	extractStart := time.Now()
	result, err := e.ExtractGrid(grid)
	if err != nil {
		return nil, ExtractionMetrics{}, errors.Wrapf(err, "failed to extract table from %s", source)
	}

	metrics := ExtractionMetrics{
		TotalTime:   time.Since(startTime),
		LoadTime:    loadTime,
		ExtractTime: time.Since(extractStart),
		Statistics:  calculateStatistics(grid, result),
	}

	if e.config.EnableMetricsLogging {
		e.logExtractionMetrics(source, metrics, result)
	}

	return result, metrics, nil
}

// calculateStatistics counts rows on both sides of the split.
func calculateStatistics(grid *Grid, result *Result) ExtractionStatistics {
	stats := ExtractionStatistics{
		TotalRows:     grid.NumRows(),
		TotalColumns:  grid.NumCols(),
		TableRows:     result.Table.NumRows(),
		TableColumns:  result.Table.NumCols(),
		RemainderRows: len(result.Remainder),
	}
	switch {
	case result.TableStart < 0:
		stats.HeaderRows = 0
	case result.TwoRowHeader:
		stats.HeaderRows = 2
	default:
		stats.HeaderRows = 1
	}
	return stats
}

// logExtractionMetrics logs the metrics as one structured record.
func (e *Extractor) logExtractionMetrics(source string, metrics ExtractionMetrics, result *Result) {
	e.logger.Info("table extracted",
		zap.String("source", source),
		zap.Duration("total", metrics.TotalTime.Round(time.Microsecond)),
		zap.Duration("load", metrics.LoadTime.Round(time.Microsecond)),
		zap.Duration("extract", metrics.ExtractTime.Round(time.Microsecond)),
		zap.Int("rows", metrics.Statistics.TotalRows),
		zap.Int("columns", metrics.Statistics.TotalColumns),
		zap.Int("table_rows", metrics.Statistics.TableRows),
		zap.Int("table_columns", metrics.Statistics.TableColumns),
		zap.Int("remainder_rows", metrics.Statistics.RemainderRows),
		zap.Int("header_rows", metrics.Statistics.HeaderRows),
		zap.String("package_type", result.PackageType),
		zap.String("reference_number", result.ReferenceNumber),
	)
}
