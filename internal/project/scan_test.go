package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/project"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanFindsElmFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Main.elm"), "module Main exposing (main)\n")
	writeFile(t, filepath.Join(dir, "src", "Page", "Home.elm"), "module Page.Home exposing (view)\n")
	writeFile(t, filepath.Join(dir, "README.md"), "not elm")

	results, err := project.NewScanner().Scan(context.Background(), dir)
	require.NoError(t, err)

	var paths []string
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, filepath.Join(dir, "src", "Main.elm"))
	assert.Contains(t, paths, filepath.Join(dir, "src", "Page", "Home.elm"))
	assert.Len(t, paths, 2)
}

func TestScanSkipsElmStuffDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Main.elm"), "module Main exposing (main)\n")
	writeFile(t, filepath.Join(dir, "elm-stuff", "generated", "Cached.elm"), "module Cached exposing (x)\n")

	results, err := project.NewScanner().Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "src", "Main.elm"), results[0].Path)
}

func TestScanHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Main.elm"), "module Main exposing (main)\n")
	writeFile(t, filepath.Join(dir, "generated", "Codec.elm"), "module Codec exposing (x)\n")
	writeFile(t, filepath.Join(dir, ".gitignore"), "generated/\n")

	results, err := project.NewScanner().Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "src", "Main.elm"), results[0].Path)
}

func TestScanExcludeGlobDropsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Main.elm"), "module Main exposing (main)\n")
	writeFile(t, filepath.Join(dir, "tests", "MainTest.elm"), "module MainTest exposing (suite)\n")

	scanner := project.NewScanner()
	scanner.Exclude = []string{"tests/**"}

	results, err := scanner.Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "src", "Main.elm"), results[0].Path)
}
