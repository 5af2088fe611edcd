package invoicetable

import (
	"bytes"
	"strings"

	"github.com/ivanvanderbyl/markdown"
)

// RenderMarkdown renders the extracted table, the detected annotations and
// the remaining metadata rows as one markdown document.
func RenderMarkdown(result *Result) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H2("Extracted Table")
	md.LF()
	writeTable(md, result.Table.Header, result.Table.Rows)
	md.LF()

	if result.HasPackageType() || result.HasReferenceNumber() {
		md.H2("Annotations")
		md.LF()
		if result.HasPackageType() {
			md.BulletList(PackageTypeColumn + ": " + result.PackageType)
		}
		if result.HasReferenceNumber() {
			md.BulletList(ReferenceNumberColumn + ": " + result.ReferenceNumber)
		}
		md.LF()
	}

	md.H2("Remaining Data")
	md.LF()
	writeTable(md, result.RemainderColumns, result.Remainder)
	md.LF()

	if err := md.Build(); err != nil {
		return ""
	}

	return buf.String()
}

// TableMarkdown renders a single table.
func TableMarkdown(t TableRegion) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	writeTable(md, t.Header, t.Rows)

	if err := md.Build(); err != nil {
		return ""
	}

	return buf.String()
}

// writeTable converts rows to string slices for the markdown builder.
func writeTable(md *markdown.Markdown, header []string, rows [][]Cell) {
	if len(header) == 0 {
		md.PlainText("(no columns)")
		return
	}

	head := make([]string, len(header))
	for i, h := range header {
		head[i] = escapeCell(h)
	}

	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(header))
		for i := range header {
			if i < len(row) {
				cells[i] = escapeCell(row[i].String())
			}
		}
		body = append(body, cells)
	}

	// If we only have a header and no data rows, still create a valid table
	if len(body) == 0 {
		body = [][]string{make([]string, len(header))}
	}

	md.Table(markdown.TableSet{
		Header: head,
		Rows:   body,
	})
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
