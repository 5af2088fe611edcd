package invoicetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyRow(t *testing.T) {
	tests := []struct {
		name string
		row  []Cell
		pct  float64
		want RowClass
	}{
		{name: "half present", row: row(1, nil, "x", nil), pct: 0.7, want: MetadataCandidate},
		{name: "three quarters present", row: row(1, 2, 3, nil), pct: 0.7, want: TableCandidate},
		{name: "all absent", row: row(nil, nil), pct: 0.7, want: MetadataCandidate},
		{name: "exactly at threshold", row: row("a", nil), pct: 0.5, want: TableCandidate},
		{name: "zero counts as present", row: row("0", nil, nil), pct: 0.3, want: TableCandidate},
		{name: "full row strict threshold", row: row("a", "b"), pct: 1, want: TableCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyRow(tt.row, tt.pct))
		})
	}
}

func TestRowDensity(t *testing.T) {
	require.InDelta(t, 0.5, rowDensity(row(1, nil, "x", nil)), 1e-9)
	require.InDelta(t, 0.75, rowDensity(row(1, 2, 3, nil)), 1e-9)
	require.InDelta(t, 0.0, rowDensity(row(nil)), 1e-9)
}

func TestRowDensityEmptyRowPanics(t *testing.T) {
	require.PanicsWithValue(t, ErrEmptyRow, func() {
		rowDensity(nil)
	})
}
