package rope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/rope"
)

func TestNewAndBytes(t *testing.T) {
	r := rope.New([]byte("hello world"))
	assert.Equal(t, 11, r.Len())
	assert.Equal(t, "hello world", r.String())
}

func TestSpliceReplace(t *testing.T) {
	r := rope.New([]byte("increment int = int + 1"))
	require.NoError(t, r.Splice(0, len("increment"), []byte("inc")))
	assert.Equal(t, "inc int = int + 1", r.String())
}

func TestSpliceInsertAndDelete(t *testing.T) {
	r := rope.New([]byte("abc"))
	require.NoError(t, r.Splice(3, 3, []byte("def")))
	assert.Equal(t, "abcdef", r.String())

	require.NoError(t, r.Splice(0, 3, nil))
	assert.Equal(t, "def", r.String())
}

func TestSpliceOutOfBounds(t *testing.T) {
	r := rope.New([]byte("abc"))
	err := r.Splice(2, 10, []byte("x"))
	assert.Error(t, err)
}

func TestLineColToByte(t *testing.T) {
	r := rope.New([]byte("line0\nline1\nline2"))

	off, err := r.LineColToByte(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, off)

	off, err = r.LineColToByte(1, 2)
	require.NoError(t, err)
	assert.Equal(t, len("line0\n")+2, off)

	off, err = r.LineColToByte(2, 5)
	require.NoError(t, err)
	assert.Equal(t, len("line0\nline1\nline2"), off)
}

func TestLineColToByteOutOfRange(t *testing.T) {
	r := rope.New([]byte("only one line"))
	_, err := r.LineColToByte(5, 0)
	assert.Error(t, err)
}
