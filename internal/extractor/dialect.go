// Package extractor scans service source trees for route registrations that
// carry permission markers and produces manifest entries.
package extractor

import "github.com/lazyrag/authplane/internal/manifest"

// Dialect extracts entries from the source files of one language.
type Dialect interface {
	Name() string
	// Match reports whether the dialect handles the file at path.
	Match(path string) bool
	// Extract returns the entries declared in src. Only routes that carry both
	// a permission marker and a method+path are returned.
	Extract(path string, src []byte) ([]manifest.Entry, error)
}

// DefaultDialects returns the Python and Go dialects in scan order.
func DefaultDialects() []Dialect {
	return []Dialect{NewPythonDialect(), NewGoDialect()}
}
