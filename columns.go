package invoicetable

import (
	"fmt"
	"strings"
)

// DeduplicateColumns renames repeated column names so that every name is
// unique. The first occurrence of a name is kept; later occurrences become
// "{name}_1", "{name}_2", ... in order. A generated name that would collide
// with a name already present in the input skips to the next counter.
// Matching is exact and case-sensitive. The input slice is not modified.
func DeduplicateColumns(columns []string) []string {
	reserved := make(map[string]bool, len(columns))
	for _, c := range columns {
		reserved[c] = true
	}

	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	seen := make(map[string]int, len(columns))

	for i, name := range columns {
		if !used[name] {
			out[i] = name
			used[name] = true
			continue
		}

		k := seen[name]
		var candidate string
		for {
			k++
			candidate = fmt.Sprintf("%s_%d", name, k)
			if !used[candidate] && !reserved[candidate] {
				break
			}
		}
		seen[name] = k
		out[i] = candidate
		used[candidate] = true
	}

	return out
}

// mangleColumnLabels normalises the column-label line of a source the way
// spreadsheet exports are conventionally read: blank labels become
// "Unnamed: {i}" and repeated labels become "{label}.1", "{label}.2", ...
func mangleColumnLabels(labels []string) []string {
	out := make([]string, len(labels))
	used := make(map[string]bool, len(labels))
	counts := make(map[string]int, len(labels))

	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}

		name := label
		for used[name] {
			counts[label]++
			name = fmt.Sprintf("%s.%d", label, counts[label])
		}
		out[i] = name
		used[name] = true
	}

	return out
}
