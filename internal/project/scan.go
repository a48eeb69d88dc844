package project

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// skipDirs mirrors the always-excluded directory names a source scanner
// should never descend into, regardless of .gitignore contents.
var skipDirs = map[string]struct{}{
	".git":         {},
	"elm-stuff":    {},
	"node_modules": {},
}

// ScanResult is one discovered .elm file, or an error encountered reaching
// it.
type ScanResult struct {
	Path  string
	Error error
}

// Scanner performs a bounded-worker-pool initial scan of a project root
// for .elm files not yet opened by an editor, grounded on
// termfx-morfx/core/filewalker.go's FileWalker: a directory-scanning
// goroutine feeds a paths channel, a pool of workers consumes it and
// produces a results channel.
type Scanner struct {
	workers int
	// Include, if non-empty, restricts results to paths matching at least
	// one of these doublestar glob patterns (relative to the project
	// root).
	Include []string
	// Exclude, if non-empty, drops paths matching any of these doublestar
	// glob patterns, evaluated after .gitignore and Include.
	Exclude []string
}

// NewScanner returns a Scanner sized the way the teacher sizes its own
// I/O-bound worker pool: twice the CPU count.
func NewScanner() *Scanner {
	return &Scanner{workers: runtime.NumCPU() * 2}
}

// Scan walks root and returns every .elm file under it, honoring Include/
// Exclude globs and the root's .gitignore if present.
func (s *Scanner) Scan(ctx context.Context, root string) ([]ScanResult, error) {
	gi := loadGitignore(root)

	paths := make(chan string, 256)
	results := make(chan ScanResult, 256)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go s.worker(ctx, root, gi, paths, results, &wg)
	}

	go func() {
		defer close(paths)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root {
					if _, skip := skipDirs[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".elm") {
				return nil
			}
			select {
			case paths <- path:
			case <-ctx.Done():
			}
			return nil
		})
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []ScanResult
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Scanner) worker(ctx context.Context, root string, gi *ignore.GitIgnore, paths <-chan string, results chan<- ScanResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			if !s.included(root, path, gi) {
				continue
			}
			select {
			case results <- ScanResult{Path: path}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Scanner) included(root, path string, gi *ignore.GitIgnore) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if gi != nil && gi.MatchesPath(rel) {
		return false
	}
	if len(s.Include) > 0 && !matchesAny(s.Include, rel) {
		return false
	}
	if len(s.Exclude) > 0 && matchesAny(s.Exclude, rel) {
		return false
	}
	return true
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
