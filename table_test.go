package invoicetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitTableRegion_SingleRowHeader(t *testing.T) {
	grid := mustGrid([]string{"Invoice", "Unnamed: 1", "Unnamed: 2", "Unnamed: 3"},
		row("Seller: ACME", nil, nil, nil),
		row("Date", "2024-01-05", nil, nil),
		row("Item", "Qty", "Price", "Total"),
		row("Shirt", 10, 2.5, 25),
		row("Pants", 4, 10, 40),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

	require.Equal(t, 2, split.TableStart)
	require.False(t, split.TwoRowHeader)
	require.Equal(t, []string{"Item", "Qty", "Price", "Total"}, split.Table.Header)
	require.Len(t, split.Table.Rows, 2)
	require.Equal(t, "Shirt", split.Table.Rows[0][0].Text)
	require.Len(t, split.Remainder, 2)
	require.Equal(t, "Seller: ACME", split.Remainder[0][0].Text)
	require.Equal(t, "Date", split.Remainder[1][0].Text)
}

func TestSplitTableRegion_TwoRowHeader(t *testing.T) {
	grid := mustGrid([]string{"A", "B", "C"},
		row("Qty", nil, "Price"),
		row("CTNS", "(kg)", "USD"),
		row(5, 12.5, 100),
		row("Note", nil, nil),
		row(3, 7, 60),
	)

	split := splitTableRegion(grid, 0.6, DefaultNumericMajority)

	require.Equal(t, 0, split.TableStart)
	require.True(t, split.TwoRowHeader)
	require.Equal(t, []string{"Qty CTNS", "(kg)", "Price USD"}, split.Table.Header)
	require.Len(t, split.Table.Rows, 2)
	require.Len(t, split.Remainder, 1)
	require.Equal(t, "Note", split.Remainder[0][0].Text)
}

func TestSplitTableRegion_SkipConsumesSparseRow(t *testing.T) {
	grid := mustGrid([]string{"A", "B", "C"},
		row("Item", "Qty", "Unit"),
		row(nil, "pcs", nil),
		row("Bolt", 100, "ea"),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

	require.True(t, split.TwoRowHeader)
	require.Equal(t, []string{"Item", "Qty pcs", "Unit"}, split.Table.Header)
	require.Len(t, split.Table.Rows, 1)
	require.Empty(t, split.Remainder)
}

func TestSplitTableRegion_NoDenseRow(t *testing.T) {
	grid := mustGrid([]string{"Note", "Unnamed: 1", "Unnamed: 2"},
		row("Thanks", nil, nil),
		row(nil, "bye", nil),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

	require.Equal(t, -1, split.TableStart)
	require.Empty(t, split.Table.Rows)
	require.Equal(t, []string{"Note", "Unnamed: 1", "Unnamed: 2"}, split.Table.Header)
	require.Len(t, split.Remainder, 2)
}

func TestSplitTableRegion_HeaderOnly(t *testing.T) {
	grid := mustGrid([]string{"A", "B"},
		row("Qty", "Price"),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

	require.Equal(t, 0, split.TableStart)
	require.False(t, split.TwoRowHeader)
	require.Equal(t, []string{"Qty", "Price"}, split.Table.Header)
	require.Empty(t, split.Table.Rows)
	require.Empty(t, split.Remainder)
}

func TestSplitTableRegion_DeduplicatesHeader(t *testing.T) {
	grid := mustGrid([]string{"A", "B", "C"},
		row("Qty", "Qty", "Price"),
		row(1, 2, 3),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

	require.Equal(t, []string{"Qty", "Qty_1", "Price"}, split.Table.Header)
}

func TestSplitTableRegion_DoesNotAliasGrid(t *testing.T) {
	grid := mustGrid([]string{"A", "B"},
		row("Qty", "Price"),
		row(1, 2),
	)

	split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)
	split.Table.Rows[0][0] = TextCell("changed")

	require.Equal(t, "1", grid.Rows[1][0].Text)
}

func TestSplitTableRegion_RowCountInvariant(t *testing.T) {
	grids := []*Grid{
		mustGrid([]string{"A", "B", "C"},
			row("x", nil, nil), row("Qty", nil, "Price"), row("CTNS", "kg", "USD"),
			row(1, 2, 3), row(nil, nil, "total"), row(4, 5, 6)),
		mustGrid([]string{"A", "B"},
			row("a", nil), row(nil, "b")),
		mustGrid([]string{"A", "B"},
			row("h1", "h2"), row(1, 2), row(3, 4)),
		mustGrid([]string{"A"}),
	}

	for _, grid := range grids {
		split := splitTableRegion(grid, DefaultMinNonNaNPct, DefaultNumericMajority)

		headerRows := 0
		if split.TableStart >= 0 {
			headerRows = 1
			if split.TwoRowHeader {
				headerRows = 2
			}
		}
		require.Equal(t, grid.NumRows(), len(split.Table.Rows)+len(split.Remainder)+headerRows)
	}
}
