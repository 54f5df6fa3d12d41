package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store owns the process-wide manifest table. Readers always see a complete
// table; Reload builds a new one and swaps the pointer.
type Store struct {
	path   string
	table  atomic.Pointer[Table]
	log    zerolog.Logger
	onLoad func(entries int, err error)
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithLoadHook registers fn to observe every load attempt.
func WithLoadHook(fn func(entries int, err error)) StoreOption {
	return func(s *Store) { s.onLoad = fn }
}

// NewStore returns a Store for path holding an empty table until Load is called.
func NewStore(path string, log zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{path: path, log: log}
	for _, o := range opts {
		o(s)
	}
	s.table.Store(NewTable(nil))
	return s
}

// NewStaticStore wraps an in-memory table with no backing file.
func NewStaticStore(entries []Entry) *Store {
	s := &Store{log: zerolog.Nop()}
	s.table.Store(NewTable(entries))
	return s
}

func (s *Store) Path() string { return s.path }

// Table returns the current table.
func (s *Store) Table() *Table { return s.table.Load() }

// Required satisfies ports.RequirementSource.
func (s *Store) Required(method, path string) ([]string, bool) {
	return s.table.Load().Required(method, path)
}

// Load reads the manifest file and swaps it in. A missing file installs an
// empty table, so no route is restricted. A malformed file is an error and
// leaves the current table in place.
func (s *Store) Load() error {
	entries, err := ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Warn().Str("path", s.path).Msg("permission manifest not found; no route is restricted")
		entries, err = nil, nil
	case err != nil:
		err = fmt.Errorf("load manifest %s: %w", s.path, err)
		s.observe(0, err)
		return err
	}

	t := NewTable(entries)
	s.table.Store(t)
	s.log.Info().Str("path", s.path).Int("entries", t.Len()).Msg("permission manifest loaded")
	s.observe(t.Len(), nil)
	return nil
}

// Reload is Load under the name used by admin tooling.
func (s *Store) Reload() error { return s.Load() }

func (s *Store) observe(n int, err error) {
	if s.onLoad != nil {
		s.onLoad(n, err)
	}
}

// Watch reloads the manifest whenever its file is written, created or renamed
// into place. It blocks until ctx is done. Failed reloads keep the previous table.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manifest watcher: %w", err)
	}
	defer w.Close()

	// watch the directory: editors and WriteFile replace the file by rename
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Load(); err != nil {
				s.log.Error().Err(err).Msg("manifest reload failed; keeping previous table")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("manifest watcher error")
		}
	}
}
