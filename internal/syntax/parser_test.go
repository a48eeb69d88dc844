package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/syntax"
)

const sampleModule = `module Main exposing (increment, plusTwo)


increment int =
    int + 1


plusTwo int =
    increment (increment int)
`

func TestApplyEditRenameUpdatesRopeAndRevision(t *testing.T) {
	f, err := syntax.NewFile("Main.elm", 1, []byte(sampleModule))
	require.NoError(t, err)
	defer f.Close()

	p := syntax.NewParser()
	start := indexOf(t, sampleModule, "increment int =")
	edit, err := p.ApplyEdit(f, syntax.ByteRange{Start: start, End: start + len("increment")}, []byte("inc"), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f.Revision)
	assert.False(t, f.DoNotRefactor)
	assert.False(t, edit.DoNotRefactor)
	assert.Equal(t, int32(1), edit.File)
	assert.Contains(t, f.Rope.String(), "inc int =")
	assert.NotContains(t, f.Rope.String(), "increment int =")
}

func TestApplyEditMarksUndoRedoDoNotRefactor(t *testing.T) {
	f, err := syntax.NewFile("Main.elm", 2, []byte(sampleModule))
	require.NoError(t, err)
	defer f.Close()

	p := syntax.NewParser()
	_, err = p.ApplyEdit(f, syntax.ByteRange{Start: 0, End: 0}, []byte("-- x\n"), true)
	require.NoError(t, err)

	assert.True(t, f.DoNotRefactor)
}

func TestApplyEditOnInvalidSyntaxYieldsErrorKind(t *testing.T) {
	f, err := syntax.NewFile("Main.elm", 3, []byte(sampleModule))
	require.NoError(t, err)
	defer f.Close()

	p := syntax.NewParser()
	start := indexOf(t, sampleModule, "increment int =")
	edit, err := p.ApplyEdit(f, syntax.ByteRange{Start: start, End: start}, []byte(")))garbage((("), false)
	require.NoError(t, err)

	assert.True(t, edit.IsError())
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("needle %q not found in haystack", needle)
	return -1
}
