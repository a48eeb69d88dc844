// Package project handles everything about the watched Elm project that
// isn't the knowledge base itself: locating the project root, discovering
// its .elm files, and watching the filesystem for changes made outside any
// editor (spec §6.3).
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the file whose presence marks a directory as an Elm
// project root.
const ManifestName = "elm.json"

// FindRoot walks upward from the directory containing filePath until it
// finds a directory containing elm.json, per spec §6.3: "Project root is
// discovered by walking upward from any opened file until an elm.json is
// found."
func FindRoot(filePath string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return "", fmt.Errorf("project: resolving absolute path of %s: %w", filePath, err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project: no %s found above %s", ManifestName, filePath)
		}
		dir = parent
	}
}
