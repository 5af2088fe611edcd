package invoicetable

import "strings"

const (
	// PackageTypeColumn is the name of the package type annotation column.
	PackageTypeColumn = "Package Type"
	// ReferenceNumberColumn is the name of the reference number annotation column.
	ReferenceNumberColumn = "Reference Number"
)

// PackageKeyword maps a lowercase keyword to a package category.
type PackageKeyword struct {
	Keyword  string
	Category string
}

// DefaultPackageTypes returns the keyword table in lookup order. The first
// matching keyword wins, so "palate" shadows "euro palate".
func DefaultPackageTypes() []PackageKeyword {
	return []PackageKeyword{
		{Keyword: "ctns", Category: "CTN"},
		{Keyword: "qty/ctn", Category: "CTN"},
		{Keyword: "cartons", Category: "CTN"},
		{Keyword: "palate", Category: "Palate"},
		{Keyword: "px", Category: "Palate"},
		{Keyword: "boxes", Category: "Boxes"},
		{Keyword: "euro palate", Category: "Euro Palate"},
		{Keyword: "bags", Category: "Bags"},
		{Keyword: "cases", Category: "Cases"},
	}
}

// matchPackageKeyword returns the category of the first keyword contained
// in text, ignoring case.
func matchPackageKeyword(text string, keywords []PackageKeyword) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw.Keyword)) {
			return kw.Category, true
		}
	}
	return "", false
}

// FindPackageTypeInColumns scans column names left to right.
func FindPackageTypeInColumns(columns []string, keywords []PackageKeyword) (string, bool) {
	for _, col := range columns {
		if category, ok := matchPackageKeyword(col, keywords); ok {
			return category, true
		}
	}
	return "", false
}

// FindPackageTypeInRows scans present cells row by row, left to right.
func FindPackageTypeInRows(rows [][]Cell, keywords []PackageKeyword) (string, bool) {
	for _, row := range rows {
		for _, c := range row {
			if !c.IsPresent() {
				continue
			}
			if category, ok := matchPackageKeyword(c.Text, keywords); ok {
				return category, true
			}
		}
	}
	return "", false
}

// FindPackageType looks at the table header first and only falls back to
// the remainder rows when no column name matches.
func FindPackageType(table TableRegion, remainder [][]Cell, keywords []PackageKeyword) (string, bool) {
	if category, ok := FindPackageTypeInColumns(table.Header, keywords); ok {
		return category, true
	}
	return FindPackageTypeInRows(remainder, keywords)
}

// rowText joins the present cells of a row with single spaces.
func rowText(row []Cell) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c.IsPresent() {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, " ")
}
