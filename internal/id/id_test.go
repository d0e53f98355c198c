package id

import (
	"sort"
	"testing"
)

func TestNewIsUniqueAndSortable(t *testing.T) {
	const n = 1000
	ids := make([]string, n)
	seen := make(map[string]bool, n)
	for i := range ids {
		ids[i] = New()
		if len(ids[i]) != 26 {
			t.Fatalf("ulid length: %q", ids[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate id %q", ids[i])
		}
		seen[ids[i]] = true
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids generated in order are not lexicographically sorted")
	}
}
