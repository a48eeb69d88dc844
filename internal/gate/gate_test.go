package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/gate"
)

// fakeCompiler reports compile success based on a lookup keyed by a marker
// byte string present in the file set, so tests can steer outcomes without
// touching a real elm binary.
type fakeCompiler struct {
	compileFunc func(ctx context.Context, projectRoot string, files map[string][]byte) (bool, error)
	calls       int
}

func (f *fakeCompiler) Compile(ctx context.Context, projectRoot string, files map[string][]byte) (bool, error) {
	f.calls++
	return f.compileFunc(ctx, projectRoot, files)
}

func viewWith(marker string) gate.View {
	return gate.View{ProjectRoot: "/proj", Files: map[string][]byte{"/proj/Main.elm": []byte(marker)}}
}

func TestCheckSkipsGateWhenPreEditAlreadyBroken(t *testing.T) {
	compiler := &fakeCompiler{compileFunc: func(_ context.Context, _ string, files map[string][]byte) (bool, error) {
		return string(files["/proj/Main.elm"]) != "broken", nil
	}}
	g := gate.New(compiler, time.Second)

	outcome, err := g.Check(context.Background(), viewWith("broken"), viewWith("still broken"))
	require.NoError(t, err)
	assert.Equal(t, gate.Pass, outcome)
	assert.Equal(t, 1, compiler.calls, "post-refactor view must never be compiled once pre-edit fails")
}

func TestCheckRejectsWhenPostRefactorBreaksACompilingProject(t *testing.T) {
	compiler := &fakeCompiler{compileFunc: func(_ context.Context, _ string, files map[string][]byte) (bool, error) {
		return string(files["/proj/Main.elm"]) == "good", nil
	}}
	g := gate.New(compiler, time.Second)

	outcome, err := g.Check(context.Background(), viewWith("good"), viewWith("bad"))
	require.NoError(t, err)
	assert.Equal(t, gate.Reject, outcome)
}

func TestCheckPassesWhenBothPreAndPostCompile(t *testing.T) {
	compiler := &fakeCompiler{compileFunc: func(_ context.Context, _ string, _ map[string][]byte) (bool, error) {
		return true, nil
	}}
	g := gate.New(compiler, time.Second)

	outcome, err := g.Check(context.Background(), viewWith("good"), viewWith("good"))
	require.NoError(t, err)
	assert.Equal(t, gate.Pass, outcome)
}

func TestCheckReportsFailedOnCompilerInvocationError(t *testing.T) {
	compiler := &fakeCompiler{compileFunc: func(_ context.Context, _ string, _ map[string][]byte) (bool, error) {
		return true, errors.New("elm binary not found")
	}}
	g := gate.New(compiler, time.Second)

	outcome, err := g.Check(context.Background(), viewWith("good"), viewWith("good"))
	assert.Error(t, err)
	assert.Equal(t, gate.Failed, outcome)
}

func TestDebouncerGatesCandidateQueuedWhileEarlierOneRuns(t *testing.T) {
	release := make(chan struct{})
	compiler := &fakeCompiler{compileFunc: func(ctx context.Context, _ string, _ map[string][]byte) (bool, error) {
		<-release
		return true, nil
	}}
	g := gate.New(compiler, time.Second)
	d := gate.NewDebouncer(g)
	defer d.Stop()

	firstResult := make(chan gate.Decision, 1)
	d.Submit(context.Background(), gate.Candidate{Seq: 1, PreEdit: viewWith("good"), PostRefactor: viewWith("good"), Result: firstResult})

	// Give the loop a moment to pick up the first candidate before we
	// enqueue the second, ensuring the second lands in the slot rather than
	// being picked up by the same iteration.
	time.Sleep(20 * time.Millisecond)

	secondResult := make(chan gate.Decision, 1)
	d.Submit(context.Background(), gate.Candidate{Seq: 2, PreEdit: viewWith("good"), PostRefactor: viewWith("good"), Result: secondResult})

	close(release)

	second := <-secondResult
	assert.False(t, second.Superseded)
	assert.Equal(t, gate.Pass, second.Outcome)
}

func TestResolveBinaryPrefersExplicitFlag(t *testing.T) {
	path, err := gate.ResolveBinary("/opt/elm/bin/elm")
	require.NoError(t, err)
	assert.Equal(t, "/opt/elm/bin/elm", path)
}

func TestResolveBinaryFallsBackToEnv(t *testing.T) {
	t.Setenv("ELM_BINARY_PATH", "/usr/local/bin/elm")
	path, err := gate.ResolveBinary("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/elm", path)
}
