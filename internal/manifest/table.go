package manifest

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	lookupCacheSize = 4096
	lookupCacheTTL  = 10 * time.Minute
)

type lookup struct {
	perms []string
	found bool
}

// Table is an immutable lookup structure built from manifest entries. It is
// safe for concurrent use.
type Table struct {
	entries  []Entry
	exact    map[Key][]string
	patterns []Entry
	cache    *lru.LRU[Key, lookup]
}

// NewTable canonicalizes entries and indexes them.
func NewTable(entries []Entry) *Table {
	canon := Canonicalize(entries)
	t := &Table{
		entries: canon,
		exact:   make(map[Key][]string, len(canon)),
		cache:   lru.NewLRU[Key, lookup](lookupCacheSize, nil, lookupCacheTTL),
	}
	for _, e := range canon {
		t.exact[Key{Method: e.Method, Path: e.Path}] = e.Permissions
		if IsPattern(e.Path) {
			t.patterns = append(t.patterns, e)
		}
	}
	return t
}

// Len is the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the canonical entries.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Required returns the permission groups declared for method+path. An exact
// key wins; otherwise the first matching pattern in (method, path) order.
func (t *Table) Required(method, path string) ([]string, bool) {
	k := Key{Method: NormalizeMethod(method), Path: NormalizePath(path)}
	if perms, ok := t.exact[k]; ok {
		return perms, true
	}
	if len(t.patterns) == 0 {
		return nil, false
	}
	if hit, ok := t.cache.Get(k); ok {
		return hit.perms, hit.found
	}

	var res lookup
	for _, e := range t.patterns {
		if e.Method == k.Method && Match(e.Path, k.Path) {
			res = lookup{perms: e.Permissions, found: true}
			break
		}
	}
	t.cache.Add(k, res)
	return res.perms, res.found
}
