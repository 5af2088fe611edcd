package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ivanvanderbyl/markdown"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	invoicetable "github.com/Muhammad-Talha4k/invoice-table-extraction"
	"github.com/Muhammad-Talha4k/invoice-table-extraction/server"
	"github.com/Muhammad-Talha4k/invoice-table-extraction/store"
)

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "SQLite database for stored extractions",
		Sources: cli.EnvVars("INVOICETABLE_DB"),
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract the table from CSV, TSV or XLSX files",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: markdown, json or entries",
				Value:   "markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: stdout)",
			},
			&cli.FloatFlag{
				Name:    "min-non-nan-pct",
				Usage:   "Share of present cells at which a row is a table row",
				Value:   invoicetable.DefaultMinNonNaNPct,
				Sources: cli.EnvVars("INVOICETABLE_MIN_NON_NAN_PCT"),
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: `CSV delimiter, "tab", or "auto" to sniff`,
				Value: ",",
			},
			&cli.StringFlag{
				Name:  "sheet",
				Usage: "XLSX worksheet (default: first sheet)",
			},
			&cli.BoolFlag{
				Name:  "pad-short-rows",
				Usage: "Pad short CSV records instead of rejecting them",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Log timing and row statistics",
			},
			dbFlag(),
		},
		Action: runExtract,
	}
}

func runExtract(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("extract: at least one input file is required")
	}

	format := cmd.String("format")
	switch format {
	case "markdown", "json", "entries":
	default:
		return fmt.Errorf("extract: unknown format %q", format)
	}

	delimiter, err := parseDelimiter(cmd.String("delimiter"))
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := invoicetable.DefaultConfig()
	cfg.MinNonNaNPct = cmd.Float("min-non-nan-pct")
	cfg.Loader.Delimiter = delimiter
	cfg.Loader.Sheet = cmd.String("sheet")
	cfg.Loader.PadShortRows = cmd.Bool("pad-short-rows")
	cfg.EnableMetricsLogging = cmd.Bool("metrics")
	cfg.Logger = logger

	extractor, err := invoicetable.NewExtractorWithConfig(cfg)
	if err != nil {
		return err
	}

	var st *store.Store
	if path := cmd.String("db"); path != "" {
		if st, err = store.Open(ctx, path); err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
	}

	var out bytes.Buffer
	for _, file := range files {
		result, err := extractor.ExtractFile(file)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", file, err)
		}

		if st != nil {
			id, err := st.Save(ctx, file, result)
			if err != nil {
				return fmt.Errorf("failed to save %s: %w", file, err)
			}
			logger.Info("extraction saved", zap.String("file", file), zap.String("id", id))
		}

		if len(files) > 1 && format == "markdown" {
			fmt.Fprintf(&out, "# %s\n\n", file)
		}
		if err := writeResult(&out, format, file, result); err != nil {
			return err
		}
	}

	return writeOutput(cmd.String("output"), out.Bytes())
}

type resultDocument struct {
	Source          string               `json:"source"`
	PackageType     string               `json:"package_type,omitempty"`
	ReferenceNumber string               `json:"reference_number,omitempty"`
	TwoRowHeader    bool                 `json:"two_row_header"`
	TableStart      int                  `json:"table_start"`
	Table           []invoicetable.Entry `json:"table"`
	Remainder       []invoicetable.Entry `json:"remainder"`
}

func writeResult(out *bytes.Buffer, format, source string, result *invoicetable.Result) error {
	switch format {
	case "json":
		doc := resultDocument{
			Source:          source,
			PackageType:     result.PackageType,
			ReferenceNumber: result.ReferenceNumber,
			TwoRowHeader:    result.TwoRowHeader,
			TableStart:      result.TableStart,
			Table:           invoicetable.Encode(result.Table),
			Remainder: invoicetable.Encode(invoicetable.TableRegion{
				Header: result.RemainderColumns,
				Rows:   result.Remainder,
			}),
		}
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		out.Write(b)
		out.WriteByte('\n')
	case "entries":
		b, err := invoicetable.EncodeJSON(result.Table)
		if err != nil {
			return err
		}
		out.Write(b)
		out.WriteByte('\n')
	default:
		out.WriteString(invoicetable.RenderMarkdown(result))
	}
	return nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Output written to %s\n", path)
	return nil
}

// parseDelimiter maps the --delimiter flag to a loader delimiter. Zero
// selects sniffing.
func parseDelimiter(v string) (rune, error) {
	switch v {
	case "auto":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(v)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", v)
	}
	return r[0], nil
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Render a table from its JSON entry encoding",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output markdown file path (default: stdout)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("decode: input file is required")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			table, err := invoicetable.DecodeJSON(data)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", path, err)
			}
			return writeOutput(cmd.String("output"), []byte(invoicetable.TableMarkdown(table)))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the extraction API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address",
				Value:   ":8080",
				Sources: cli.EnvVars("INVOICETABLE_ADDR"),
			},
			&cli.Int64Flag{
				Name:    "max-upload-bytes",
				Usage:   "Largest accepted upload",
				Value:   server.DefaultMaxUploadBytes,
				Sources: cli.EnvVars("INVOICETABLE_MAX_UPLOAD_BYTES"),
			},
			&cli.StringSliceFlag{
				Name:    "cors-origin",
				Usage:   "Allowed CORS origin (repeatable)",
				Sources: cli.EnvVars("INVOICETABLE_CORS_ORIGINS"),
			},
			dbFlag(),
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := invoicetable.DefaultConfig()
	cfg.Logger = logger
	extractor, err := invoicetable.NewExtractorWithConfig(cfg)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMaxUploadBytes(cmd.Int64("max-upload-bytes")),
	}
	if origins := cmd.StringSlice("cors-origin"); len(origins) > 0 {
		opts = append(opts, server.WithAllowedOrigins(origins...))
	}
	if path := cmd.String("db"); path != "" {
		st, err := store.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	srv := &http.Server{
		Addr:              cmd.String("addr"),
		Handler:           server.New(extractor, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored extractions",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of extractions (0 for all)",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("db")
			if path == "" {
				return errors.New("list: --db is required")
			}
			st, err := store.Open(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			summaries, err := st.List(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return writeOutput("", []byte(summaryTable(summaries)))
		},
	}
}

func summaryTable(summaries []store.Summary) string {
	if len(summaries) == 0 {
		return "No stored extractions.\n"
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Source,
			s.PackageType,
			s.ReferenceNumber,
			strconv.Itoa(s.TableRows),
			strconv.Itoa(s.RemainderRows),
		})
	}

	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Created", "Source", "Package Type", "Reference Number", "Table Rows", "Remainder Rows"},
		Rows:   rows,
	})
	if err := md.Build(); err != nil {
		return ""
	}
	return buf.String()
}
