// Command permextract scans service sources for route permission
// declarations and writes the manifest the authorization middleware loads.
//
//	permextract [-o api_permissions.json] [-exclude vendor,testdata] [-funcs handleAPI] dir...
//
// Use "-o -" to write the manifest to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lazyrag/authplane/internal/extractor"
	"github.com/lazyrag/authplane/internal/manifest"
	"github.com/lazyrag/authplane/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("permextract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "api_permissions.json", "manifest output file, - for stdout")
	exclude := fs.String("exclude", "", "comma-separated top-level directories to skip")
	funcs := fs.String("funcs", "", "comma-separated Go registration helpers (default handleAPI,HandleAPI,Handle)")
	routers := fs.String("routers", "", "comma-separated Python router objects (default app,router)")
	workers := fs.Int("workers", 0, "parallel parsers, 0 for GOMAXPROCS")
	level := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: permextract [flags] dir...")
		fs.PrintDefaults()
		return 2
	}

	log := logger.Init(logger.Options{Service: "permextract", Level: *level, Output: stderr, Pretty: true})

	entries, err := extractor.Run(ctx, extractor.Options{
		Sources: fs.Args(),
		Exclude: splitList(*exclude),
		Dialects: []extractor.Dialect{
			extractor.NewGoDialect(splitList(*funcs)...),
			extractor.NewPythonDialect(splitList(*routers)...),
		},
		Workers: *workers,
		Log:     log,
	})
	if err != nil {
		log.Error().Err(err).Msg("scan failed")
		return 1
	}

	if err := write(*out, entries, stdout); err != nil {
		log.Error().Err(err).Str("output", *out).Msg("write manifest")
		return 1
	}
	log.Info().Int("entries", len(entries)).Str("output", *out).Msg("manifest written")
	return 0
}

func write(path string, entries []manifest.Entry, stdout io.Writer) error {
	if path == "-" {
		return manifest.Encode(stdout, entries)
	}
	return manifest.WriteFile(path, entries)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
