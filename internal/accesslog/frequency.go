package accesslog

import "sort"

// Count is a key with its number of occurrences.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// FrequencyTable counts string keys and remembers the order in which each key
// was first seen. That order is the tie-break for Top, so rankings are
// deterministic for a given input stream.
//
// A FrequencyTable is not safe for concurrent use.
type FrequencyTable struct {
	index   map[string]int // key -> position in entries
	entries []Count        // first-seen order
	total   int
}

// NewFrequencyTable returns an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{
		index: make(map[string]int),
	}
}

// Inc increments key by one.
func (t *FrequencyTable) Inc(key string) {
	t.Add(key, 1)
}

// Add increments key by n. Non-positive n is ignored.
func (t *FrequencyTable) Add(key string, n int) {
	if n <= 0 {
		return
	}
	if i, ok := t.index[key]; ok {
		t.entries[i].Count += n
	} else {
		t.index[key] = len(t.entries)
		t.entries = append(t.entries, Count{Key: key, Count: n})
	}
	t.total += n
}

// Count returns the count for key, 0 when absent.
func (t *FrequencyTable) Count(key string) int {
	if i, ok := t.index[key]; ok {
		return t.entries[i].Count
	}
	return 0
}

// Len returns the number of distinct keys.
func (t *FrequencyTable) Len() int {
	return len(t.entries)
}

// Total returns the sum of all counts.
func (t *FrequencyTable) Total() int {
	return t.total
}

// Entries returns a copy of all entries in first-seen order.
func (t *FrequencyTable) Entries() []Count {
	out := make([]Count, len(t.entries))
	copy(out, t.entries)
	return out
}

// Top returns at most n entries ordered by descending count. Keys with equal
// counts keep their first-seen order. n < 0 returns every entry.
func (t *FrequencyTable) Top(n int) []Count {
	ranked := t.Entries()
	// entries are already in first-seen order, so a stable sort by count
	// alone gives the tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Merge adds every count of other into t. Keys not yet in t are appended in
// other's first-seen order. Merging is commutative in counts and
// associative, so partial tables may be combined in any shape.
func (t *FrequencyTable) Merge(other *FrequencyTable) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		t.Add(e.Key, e.Count)
	}
}
