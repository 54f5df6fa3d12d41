package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyrag/authplane/internal/manifest"
	"github.com/lazyrag/authplane/pkg/logger"
)

const goSource = `package svc

import "net/http"

func register(mux *http.ServeMux) {
	handleAPI(mux, http.MethodGet, "/api/documents/{id}", []string{"document.read"}, nil)
	handleAPI(mux, "post", "/api/documents", []string{"document.write", "document.read"}, nil)
	handleAPI(mux, "GET", "/api/health", nil, nil)
}
`

const pySource = `from fastapi import APIRouter

router = APIRouter()

@router.get("/api/users")
@permission_required("user.read")
async def list_users():
    return []
`

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.go"), []byte(goSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.py"), []byte(pySource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "skip.py"),
		[]byte("@router.delete(\"/api/users\")\n@permission_required(\"user.write\")\ndef drop():\n    pass\n"), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	logger.Reset()
	t.Cleanup(logger.Reset)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_WritesManifestFile(t *testing.T) {
	src := writeTree(t)
	out := filepath.Join(t.TempDir(), "api_permissions.json")

	code, _, _ := runCLI(t, "-o", out, "-exclude", "vendor", src)
	require.Equal(t, 0, code)

	entries, err := manifest.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Entry{
		{Method: "GET", Path: "/api/documents/{id}", Permissions: []string{"document.read"}},
		{Method: "GET", Path: "/api/users", Permissions: []string{"user.read"}},
		{Method: "POST", Path: "/api/documents", Permissions: []string{"document.read", "document.write"}},
	}, entries)
}

func TestRun_ExcludeIsHonoured(t *testing.T) {
	src := writeTree(t)

	code, stdout, _ := runCLI(t, "-o", "-", src)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"DELETE"`)

	code, stdout, _ = runCLI(t, "-o", "-", "-exclude", "vendor", src)
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, `"DELETE"`)
}

func TestRun_Deterministic(t *testing.T) {
	src := writeTree(t)

	_, first, _ := runCLI(t, "-o", "-", src)
	_, second, _ := runCLI(t, "-o", "-", "-workers", "1", src)
	assert.Equal(t, first, second)
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: permextract")
}

func TestRun_UnwritableOutput(t *testing.T) {
	src := writeTree(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	out := filepath.Join(blocker, "api_permissions.json")

	code, _, _ := runCLI(t, "-o", out, src)
	assert.Equal(t, 1, code)
}
