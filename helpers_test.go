package invoicetable

import "fmt"

// row builds a row from literals: nil is absent, strings go through
// TextCell and numbers become numeric cells.
func row(values ...any) []Cell {
	out := make([]Cell, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			out[i] = Absent()
		case string:
			out[i] = TextCell(v)
		case int:
			out[i] = NumberCell(float64(v))
		case float64:
			out[i] = NumberCell(v)
		default:
			panic(fmt.Sprintf("unsupported cell literal %T", v))
		}
	}
	return out
}

func mustGrid(columns []string, rows ...[]Cell) *Grid {
	g, err := NewGrid(columns, rows)
	if err != nil {
		panic(err)
	}
	return g
}
