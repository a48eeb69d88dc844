package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/project"
)

func TestWatcherReportsCreateThenModifyThenDelete(t *testing.T) {
	dir := t.TempDir()
	w, err := project.NewWatcherWithDebounce(dir, nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(dir, "Main.elm")

	require.NoError(t, os.WriteFile(path, []byte("module Main exposing (main)\n"), 0o644))
	create := waitForChange(t, w)
	assert.Equal(t, path, create.Path)
	assert.Equal(t, project.ChangeCreate, create.Kind)

	require.NoError(t, os.WriteFile(path, []byte("module Main exposing (main, view)\n"), 0o644))
	modify := waitForChange(t, w)
	assert.Equal(t, path, modify.Path)
	assert.Equal(t, project.ChangeModify, modify.Kind)

	require.NoError(t, os.Remove(path))
	del := waitForChange(t, w)
	assert.Equal(t, path, del.Path)
	assert.Equal(t, project.ChangeDelete, del.Kind)
}

func TestWatcherSuppressesRewriteOfIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	w, err := project.NewWatcherWithDebounce(dir, nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(dir, "Main.elm")
	content := []byte("module Main exposing (main)\n")

	require.NoError(t, os.WriteFile(path, content, 0o644))
	waitForChange(t, w)

	require.NoError(t, os.WriteFile(path, content, 0o644))
	select {
	case c := <-w.Events():
		t.Fatalf("expected no event for an identical rewrite, got %+v", c)
	case <-time.After(150 * time.Millisecond):
	}
}

func waitForChange(t *testing.T, w *project.Watcher) project.Change {
	t.Helper()
	select {
	case c := <-w.Events():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return project.Change{}
	}
}
