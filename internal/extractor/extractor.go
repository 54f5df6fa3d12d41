package extractor

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lazyrag/authplane/internal/manifest"
)

// Options controls a scan.
type Options struct {
	// Sources are scanned in order; later sources override earlier ones on
	// duplicate (method, path) keys.
	Sources []string
	// Exclude names top-level subdirectories of each source to skip.
	Exclude []string
	// Dialects defaults to DefaultDialects. Within a source, files of the first
	// dialect are merged before files of the next.
	Dialects []Dialect
	// Workers bounds concurrent file parsing; defaults to GOMAXPROCS.
	Workers int
	Log     zerolog.Logger
}

type job struct {
	path    string
	dialect Dialect
}

// Run scans the sources and returns canonical manifest entries: normalized,
// de-duplicated with last-write-wins, and sorted by (method, path). Files that
// cannot be read or parsed are logged and skipped.
func Run(ctx context.Context, opts Options) ([]manifest.Entry, error) {
	dialects := opts.Dialects
	if len(dialects) == 0 {
		dialects = DefaultDialects()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, x := range opts.Exclude {
		if x = strings.TrimSpace(x); x != "" {
			exclude[x] = struct{}{}
		}
	}

	var jobs []job
	for _, src := range opts.Sources {
		files, err := collect(src, exclude, opts.Log)
		if err != nil {
			return nil, err
		}
		for _, d := range dialects {
			for _, f := range files {
				if d.Match(f) {
					jobs = append(jobs, job{path: f, dialect: d})
				}
			}
		}
	}

	results := make([][]manifest.Entry, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(j.path)
			if err != nil {
				opts.Log.Warn().Err(err).Str("file", j.path).Msg("skip unreadable file")
				return nil
			}
			entries, err := j.dialect.Extract(j.path, src)
			if err != nil {
				opts.Log.Warn().Err(err).Str("file", j.path).Str("dialect", j.dialect.Name()).Msg("skip unparsable file")
				return nil
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []manifest.Entry
	for _, entries := range results {
		for _, e := range entries {
			e.Method = canonicalMethod(e.Method)
			merged = append(merged, e)
		}
	}
	return manifest.Canonicalize(merged), nil
}

func canonicalMethod(m string) string {
	m = manifest.NormalizeMethod(m)
	if !manifest.KnownMethod(m) {
		return http.MethodGet
	}
	return m
}

// collect lists candidate files under root in lexical order. Top-level
// directories in exclude are pruned, as are files and directories whose
// names start with "_", and hidden directories.
func collect(root string, exclude map[string]struct{}, log zerolog.Logger) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		log.Warn().Str("source", root).Msg("skip source: not a directory")
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if rel, _ := filepath.Rel(root, path); !strings.ContainsRune(rel, filepath.Separator) {
				if _, ok := exclude[name]; ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasPrefix(name, "_") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
