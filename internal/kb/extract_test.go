package kb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/kb"
	"github.com/jwoudenberg/elm-pair/internal/syntax"
)

const helperModule = `module Helper exposing (double)


double n =
    n * 2
`

const mainModule = `module Main exposing (main)

import Helper exposing (double)


main n =
    double n
`

func TestExtractorRecomputeResolvesImportedValue(t *testing.T) {
	extractor, err := kb.NewExtractor()
	require.NoError(t, err)
	base := kb.New()

	helper, err := syntax.NewFile("Helper.elm", 1, []byte(helperModule))
	require.NoError(t, err)
	defer helper.Close()
	extractor.Recompute(base, helper)

	main, err := syntax.NewFile("Main.elm", 2, []byte(mainModule))
	require.NoError(t, err)
	defer main.Close()
	extractor.Recompute(base, main)

	mod, ok := base.Module("Helper")
	require.True(t, ok)
	assert.Equal(t, "Helper.elm", mod.File)

	_, ok = base.Declaration(base.ModuleIndexFor("Helper"), "double", kb.SymbolValue)
	assert.True(t, ok)
}

func TestExtractorRecomputeIsIdempotentPerFile(t *testing.T) {
	extractor, err := kb.NewExtractor()
	require.NoError(t, err)
	base := kb.New()

	f, err := syntax.NewFile("Helper.elm", 1, []byte(helperModule))
	require.NoError(t, err)
	defer f.Close()

	extractor.Recompute(base, f)
	extractor.Recompute(base, f)

	_, ok := base.Declaration(base.ModuleIndexFor("Helper"), "double", kb.SymbolValue)
	assert.True(t, ok)
	_, decls, _, _, _ := base.Stats()
	assert.Equal(t, 1, decls)
}
