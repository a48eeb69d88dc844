// Package gate implements the compilation gate: it refuses to let the
// analysis thread emit a refactor that would break the build.
//
// The gate never sees the daemon's real files. It receives a virtual
// post-refactor view of the project (the current on-disk content of every
// touched file, with a candidate refactor's edits applied in memory) and
// asks the external elm compiler whether that view still compiles.
package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// DefaultTimeout is the compiler invocation deadline used when a project
// does not override it (spec §6.4).
const DefaultTimeout = 5 * time.Second

// Compiler runs the elm compiler against a virtual file set. Production
// code uses SubprocessCompiler; tests substitute a fake.
type Compiler interface {
	// Compile reports whether the given file set compiles. files maps
	// absolute paths to their full contents, overriding disk contents for
	// any path present in the map.
	Compile(ctx context.Context, projectRoot string, files map[string][]byte) (bool, error)
}

// View is a virtual post-refactor snapshot: the full content each touched
// file would have if a candidate refactor were applied.
type View struct {
	ProjectRoot string
	Files       map[string][]byte
}

// Outcome is the gate's verdict on a candidate refactor.
type Outcome int

const (
	// Pass means the refactor may be emitted: either it compiles, or the
	// project was already broken before the edit and the gate was skipped.
	Pass Outcome = iota
	// Reject means the pre-edit project compiled but the post-refactor view
	// does not; the refactor must be discarded.
	Reject
	// Failed means the compiler invocation itself could not be completed
	// (missing binary, crash, timeout); spec §7 treats this as a rejection.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Reject:
		return "reject"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate serializes compiler invocations per project, as required by §4.4:
// "Compiler invocations are serialized per project and debounced."
type Gate struct {
	compiler Compiler
	timeout  time.Duration

	mu       sync.Mutex
	projects map[string]*projectState
}

type projectState struct {
	mu            sync.Mutex // held for the duration of one compiler run
	lastGoodCheck bool       // whether the most recent pre-edit check compiled
}

// New builds a Gate invoking compiler with the given per-invocation timeout.
// A zero timeout selects DefaultTimeout.
func New(compiler Compiler, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		compiler: compiler,
		timeout:  timeout,
		projects: make(map[string]*projectState),
	}
}

func (g *Gate) stateFor(projectRoot string) *projectState {
	g.mu.Lock()
	defer g.mu.Unlock()
	ps, ok := g.projects[projectRoot]
	if !ok {
		ps = &projectState{}
		g.projects[projectRoot] = ps
	}
	return ps
}

// Check runs the gate for one candidate refactor. preEdit is the project's
// content before the triggering edit; postRefactor is the view with the
// refactor's edits applied on top of the edited (pre-refactor) files.
//
// Per §4.4: if preEdit does not compile, the gate is skipped and Pass is
// returned without invoking the compiler on postRefactor at all — we do not
// make a broken project worse by refusing to help.
func (g *Gate) Check(ctx context.Context, preEdit, postRefactor View) (Outcome, error) {
	ps := g.stateFor(postRefactor.ProjectRoot)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	compileCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	preOK, err := g.compiler.Compile(compileCtx, preEdit.ProjectRoot, preEdit.Files)
	if err != nil {
		// Per §7 a compiler invocation failure is handled as a gate
		// rejection, even though it leaves open whether the project was
		// already broken before the edit.
		return Failed, fmt.Errorf("gate: pre-edit compile check: %w", err)
	}
	ps.lastGoodCheck = preOK
	if !preOK {
		return Pass, nil
	}

	compileCtx2, cancel2 := context.WithTimeout(ctx, g.timeout)
	defer cancel2()

	postOK, err := g.compiler.Compile(compileCtx2, postRefactor.ProjectRoot, postRefactor.Files)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Failed, fmt.Errorf("gate: post-refactor compile timed out after %s: %w", g.timeout, err)
		}
		return Failed, fmt.Errorf("gate: post-refactor compile check: %w", err)
	}
	if !postOK {
		return Reject, nil
	}
	return Pass, nil
}

// SubprocessCompiler shells out to a real elm binary, resolved once at
// construction time from an explicit path, ELM_BINARY_PATH, or PATH.
type SubprocessCompiler struct {
	binary string
}

// ResolveBinary implements the fallback chain from SPEC_FULL §6.1:
// an explicit --elm-binary flag value, then ELM_BINARY_PATH, then PATH.
func ResolveBinary(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p := os.Getenv("ELM_BINARY_PATH"); p != "" {
		return p, nil
	}
	path, err := exec.LookPath("elm")
	if err != nil {
		return "", fmt.Errorf("gate: no elm binary configured and none found on PATH: %w", err)
	}
	return path, nil
}

// NewSubprocessCompiler builds a compiler bound to the given elm binary path.
func NewSubprocessCompiler(binaryPath string) *SubprocessCompiler {
	return &SubprocessCompiler{binary: binaryPath}
}

// Compile materializes files into a scratch overlay directory rooted at
// projectRoot's own tree (so relative imports and elm.json still resolve),
// then invokes `elm make --report=json` with every file in files as an
// argument. Non-entrypoint modules are still type-checked because
// elm make compiles the whole dependency graph reachable from its
// arguments; discovering true entrypoints is out of scope, so every touched
// file is passed as an argument, and elm make deduplicates the graph itself.
func (c *SubprocessCompiler) Compile(ctx context.Context, projectRoot string, files map[string][]byte) (bool, error) {
	overlay, cleanup, err := materializeOverlay(projectRoot, files)
	if err != nil {
		return false, err
	}
	defer cleanup()

	args := []string{"make", "--report=json", "--output=/dev/null"}
	for path := range files {
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			continue
		}
		args = append(args, filepath.Join(overlay, rel))
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = overlay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		killLingering(cmd)
		return false, ctx.Err()
	}
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// elm make exits non-zero on compile errors; that's a normal
		// "does not compile" result, not an invocation failure.
		return false, nil
	}
	return false, fmt.Errorf("gate: elm make invocation failed: %w (stderr: %s)", err, stderr.String())
}

// materializeOverlay copies projectRoot into a temp directory and writes the
// virtual file contents over top, so the compiler sees a coherent tree
// without mutating the real project files on disk.
func materializeOverlay(projectRoot string, files map[string][]byte) (dir string, cleanup func(), err error) {
	tmp, err := os.MkdirTemp("", "elm-pair-gate-*")
	if err != nil {
		return "", nil, fmt.Errorf("gate: creating overlay dir: %w", err)
	}
	cleanup = func() { os.RemoveAll(tmp) }

	err = filepath.WalkDir(projectRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && d.Name() == "elm-stuff" {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return relErr
		}
		dest := filepath.Join(tmp, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		return os.WriteFile(dest, content, 0o644)
	})
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("gate: copying project tree: %w", err)
	}

	for path, content := range files {
		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			continue
		}
		dest := filepath.Join(tmp, rel)
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
			cleanup()
			return "", nil, mkErr
		}
		if writeErr := os.WriteFile(dest, content, 0o644); writeErr != nil {
			cleanup()
			return "", nil, writeErr
		}
	}
	return tmp, cleanup, nil
}
