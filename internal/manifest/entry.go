// Package manifest holds the (method, path pattern) → permission-group table
// that drives route authorization, and its on-disk JSON form.
package manifest

import (
	"net/http"
	"sort"
	"strings"
)

// Entry declares the permission groups required by one route.
type Entry struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Permissions []string `json:"permissions"`
}

// Key identifies an entry after normalization.
type Key struct {
	Method string
	Path   string
}

func (e Entry) Key() Key {
	return Key{Method: NormalizeMethod(e.Method), Path: NormalizePath(e.Path)}
}

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// KnownMethod reports whether m is one of the HTTP methods routes are declared with.
func KnownMethod(m string) bool {
	_, ok := knownMethods[m]
	return ok
}

// NormalizeMethod upper-cases m; empty becomes GET.
func NormalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return http.MethodGet
	}
	return m
}

// NormalizePath strips trailing slashes; an empty result becomes "/".
func NormalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// isPlaceholder accepts exactly one {name} spanning the whole segment, so
// "{a}x{b}" and "x{id}" are literals.
func isPlaceholder(seg string) bool {
	if len(seg) < 2 || seg[0] != '{' || seg[len(seg)-1] != '}' {
		return false
	}
	return !strings.ContainsAny(seg[1:len(seg)-1], "{}")
}

// IsPattern reports whether p contains a {param} segment.
func IsPattern(p string) bool {
	for _, seg := range segments(p) {
		if isPlaceholder(seg) {
			return true
		}
	}
	return false
}

// segments splits p on "/" and drops empty segments, so "/a//b" and "/a/b"
// address the same route.
func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Match reports whether path matches pattern. Segment counts must be equal;
// {name} segments match any single segment and all others must be identical.
func Match(pattern, path string) bool {
	ps := segments(pattern)
	cs := segments(path)
	if len(ps) != len(cs) {
		return false
	}
	for i, seg := range ps {
		if isPlaceholder(seg) {
			continue
		}
		if seg != cs[i] {
			return false
		}
	}
	return true
}

// Canonicalize normalizes entries, resolves duplicate keys in favour of the
// later entry and returns them sorted by (method, path). Permission lists are
// de-duplicated and sorted.
func Canonicalize(entries []Entry) []Entry {
	byKey := make(map[Key]Entry, len(entries))
	for _, e := range entries {
		k := e.Key()
		byKey[k] = Entry{Method: k.Method, Path: k.Path, Permissions: sortedUnique(e.Permissions)}
	}

	out := make([]Entry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Method != out[j].Method {
			return out[i].Method < out[j].Method
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
