package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/project"
)

func TestFindRootLocatesElmJSONAtSameDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elm.json"), []byte("{}"), 0o644))
	file := filepath.Join(dir, "src", "Main.elm")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(""), 0o644))

	root, err := project.FindRoot(file)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindRootWalksUpwardThroughNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elm.json"), []byte("{}"), 0o644))
	deep := filepath.Join(dir, "src", "Page", "Admin")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	file := filepath.Join(deep, "Users.elm")
	require.NoError(t, os.WriteFile(file, []byte(""), 0o644))

	root, err := project.FindRoot(file)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindRootReturnsErrorWhenNoManifestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Main.elm")
	require.NoError(t, os.WriteFile(file, []byte(""), 0o644))

	_, err := project.FindRoot(file)
	assert.Error(t, err)
}
