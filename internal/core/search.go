package core

import (
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// DefaultSearchThreshold admits matches whose letters are spread over at
// most 30% more characters than the query itself.
const DefaultSearchThreshold = 0.3

// SearchIndex answers exact and fuzzy lookups over an ItemStore. It keeps
// one search key per item (tombo, description and responsible) and rebuilds
// the keys whenever the store version moves.
type SearchIndex struct {
	store     *ItemStore
	threshold float64

	mu      sync.Mutex
	built   bool
	version uint64
	ids     []string
	keys    searchKeys
}

// searchKeys implements fuzzy.Source.
type searchKeys []string

func (k searchKeys) String(i int) string { return k[i] }
func (k searchKeys) Len() int            { return len(k) }

// NewSearchIndex creates an index over store. threshold bounds how loosely
// a query may match: 0 or less uses DefaultSearchThreshold, 1 or more
// accepts every subsequence match.
func NewSearchIndex(store *ItemStore, threshold float64) *SearchIndex {
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}
	return &SearchIndex{store: store, threshold: threshold}
}

// ExactLookup trims id and looks it up by key.
func (x *SearchIndex) ExactLookup(id string) (Item, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Item{}, false
	}
	return x.store.Get(id)
}

// Query returns every item in store order for an empty query, otherwise the
// fuzzy matches within the threshold ranked best first. Equal scores keep
// store order.
func (x *SearchIndex) Query(text string) []Item {
	text = strings.TrimSpace(text)
	if text == "" {
		return x.store.All()
	}

	ids, keys := x.snapshot()
	matches := fuzzy.FindFrom(text, keys)
	if x.threshold < 1 {
		pattern := []rune(strings.ToLower(text))
		kept := matches[:0]
		for _, m := range matches {
			if spread(keys[m.Index], pattern) <= x.threshold {
				kept = append(kept, m)
			}
		}
		matches = kept
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	out := make([]Item, 0, len(matches))
	for _, m := range matches {
		if it, ok := x.store.Get(ids[m.Index]); ok {
			out = append(out, it)
		}
	}
	return out
}

// snapshot returns the current ids and keys, rebuilding them if stale.
func (x *SearchIndex) snapshot() ([]string, searchKeys) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if v := x.store.Version(); !x.built || v != x.version {
		x.rebuild()
	}
	return x.ids, x.keys
}

func (x *SearchIndex) rebuild() {
	// Read the version before the items so a concurrent write forces the
	// next query to rebuild again.
	version := x.store.Version()
	items := x.store.All()

	ids := make([]string, len(items))
	keys := make(searchKeys, len(items))
	for i, it := range items {
		ids[i] = it.ID
		keys[i] = searchKey(it)
	}

	x.ids = ids
	x.keys = keys
	x.version = version
	x.built = true
}

func searchKey(it Item) string {
	return strings.Join([]string{it.ID, it.Description, it.Responsible}, " ")
}

// spread measures how far apart the letters of pattern sit in key: the
// number of skipped characters in the tightest subsequence match, divided
// by the pattern length. A contiguous match scores 0. Without a match it
// returns a value above any threshold.
func spread(key string, pattern []rune) float64 {
	if len(pattern) == 0 {
		return 0
	}
	runes := []rune(strings.ToLower(key))
	best := -1
	for start, r := range runes {
		if r != pattern[0] {
			continue
		}
		end, p := start, 1
		for i := start + 1; i < len(runes) && p < len(pattern); i++ {
			if runes[i] == pattern[p] {
				end = i
				p++
			}
		}
		if p < len(pattern) {
			break
		}
		gaps := end - start + 1 - len(pattern)
		if best < 0 || gaps < best {
			best = gaps
		}
		if best == 0 {
			break
		}
	}
	if best < 0 {
		return 2
	}
	return float64(best) / float64(len(pattern))
}
