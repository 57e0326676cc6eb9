package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCacheGetMiss(t *testing.T) {
	dc := NewDirCache(0, nil)
	defer dc.Close()

	assert.Nil(t, dc.Get("/nonexistent/path"))
}

func TestDirCacheGatherPopulatesListing(t *testing.T) {
	dc := NewDirCache(0, nil)
	defer dc.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0755))

	got := dc.Gather(context.Background(), dir)
	require.NotNil(t, got)
	assert.Contains(t, got.Listing, "hello.txt")
	assert.Contains(t, got.Listing, "src/")
	assert.Same(t, got, dc.Get(dir), "Gather should cache its result")
}

func TestDirCacheExpires(t *testing.T) {
	dc := NewDirCache(20*time.Millisecond, nil)
	defer dc.Close()

	dir := t.TempDir()
	dc.Gather(context.Background(), dir)
	time.Sleep(50 * time.Millisecond)

	assert.Nil(t, dc.Get(dir))
}

func TestDirCachePrefetch(t *testing.T) {
	dc := NewDirCache(0, nil)
	defer dc.Close()

	dir := t.TempDir()
	dc.Prefetch(dir)
	assert.Eventually(t, func() bool { return dc.Get(dir) != nil }, 5*time.Second, 10*time.Millisecond)
}

func TestExtractPackageScripts(t *testing.T) {
	content := `{
		"name": "myapp",
		"scripts": {
			"test": "jest",
			"build": "tsc"
		}
	}`
	assert.Equal(t, "build: tsc, test: jest", extractPackageScripts(content))
	assert.Empty(t, extractPackageScripts(`{"name": "myapp"}`))
}

func TestExtractMakeTargets(t *testing.T) {
	content := `# Makefile
.PHONY: build test

build:
	go build ./...

test: build
	go test ./...

clean:
	rm -rf bin/

VERSION := 1.0
`
	assert.Equal(t, "build, test, clean", extractMakeTargets(content))
}

func TestExtractJustRecipes(t *testing.T) {
	content := `# Justfile
bun := "bun"
set shell := ["bash", "-c"]

default: list

dev:
    @echo "Starting..."

build target: build-server
    @echo "Done"

list:
    @just --list
`
	assert.Equal(t, "default, dev, build, list", extractJustRecipes(content))
}

func TestExtractCargo(t *testing.T) {
	content := `[package]
name = "myapp"
version = "0.1.0"

[[bin]]
name = "mycli"
`
	assert.Equal(t, "package myapp, bin mycli", extractCargo(content))
	assert.Empty(t, extractCargo("not [toml"))
}

func TestExtractPyproject(t *testing.T) {
	content := `[project]
name = "myapp"

[project.scripts]
serve = "myapp.main:serve"
`
	assert.Equal(t, "project myapp, script serve", extractPyproject(content))
}

func TestExtractGoMod(t *testing.T) {
	content := `module github.com/Paranoid-AF/sprig

go 1.25.7

require (
	github.com/BurntSushi/toml v1.6.0
)
`
	assert.Equal(t, "module github.com/Paranoid-AF/sprig, go 1.25.7", extractGoMod(content))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 100))

	got := truncate(strings.Repeat("x", 3000), 2048)
	assert.Len(t, got, 2048+3)
	assert.True(t, strings.HasSuffix(got, "..."))

	// Never split a multi-byte rune.
	assert.Equal(t, "ab...", truncate("ab€", 3))
}

func TestDetectPackageManager(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()

	assert.Empty(t, detectPackageManager(dir, ""))

	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.lock"), nil, 0644))
	assert.Equal(t, "cargo", detectPackageManager(dir, root), "lockfile at the git root")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pnpm-lock.yaml"), nil, 0644))
	assert.Equal(t, "pnpm", detectPackageManager(dir, root))
}

func TestCollectManifests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"scripts":{"build":"go build"}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/x\n"), 0644))

	out := make(map[string]string)
	collectManifests(dir, "root ", out)

	assert.Equal(t, "build: go build", out["root package.json scripts"])
	assert.Equal(t, "module example.com/x", out["root go.mod"])
}
