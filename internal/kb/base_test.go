package kb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

func TestResolveModuleOwnDeclarationTakesPrecedence(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	helper := b.UpsertModule(kb.Module{Name: "Helper", File: "Helper.elm"})

	b.AddDeclaration(kb.Declaration{Module: main, Name: "value", Kind: kb.SymbolValue})
	b.AddDeclaration(kb.Declaration{Module: helper, Name: "value", Kind: kb.SymbolValue})
	b.AddImport(kb.Import{Importing: main, Imported: "Helper", ExposingMode: kb.ExposingAll})

	res := b.Resolve("Main.elm", 0, "value")
	assert.True(t, res.Resolved)
	assert.False(t, res.Ambiguous)
	assert.Equal(t, main, res.Module)
}

func TestResolveFallsThroughToExposedImport(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	helper := b.UpsertModule(kb.Module{Name: "Helper", File: "Helper.elm"})
	b.AddDeclaration(kb.Declaration{Module: helper, Name: "double", Kind: kb.SymbolValue})
	b.AddImport(kb.Import{Importing: main, Imported: "Helper", ExposingMode: kb.ExposingExplicit, Exposed: []string{"double"}})

	res := b.Resolve("Main.elm", 0, "double")
	assert.True(t, res.Resolved)
	assert.Equal(t, helper, res.Module)
}

func TestResolveAmbiguousAcrossTwoExposingImports(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	a := b.UpsertModule(kb.Module{Name: "A", File: "A.elm"})
	c := b.UpsertModule(kb.Module{Name: "C", File: "C.elm"})
	b.AddDeclaration(kb.Declaration{Module: a, Name: "thing", Kind: kb.SymbolValue})
	b.AddDeclaration(kb.Declaration{Module: c, Name: "thing", Kind: kb.SymbolValue})
	b.AddImport(kb.Import{Importing: main, Imported: "A", ExposingMode: kb.ExposingAll})
	b.AddImport(kb.Import{Importing: main, Imported: "C", ExposingMode: kb.ExposingAll})

	res := b.Resolve("Main.elm", 0, "thing")
	assert.False(t, res.Resolved)
	assert.True(t, res.Ambiguous)
}

func TestResolveUnknownNameIsUnresolvedNotAmbiguous(t *testing.T) {
	b := kb.New()
	b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})

	res := b.Resolve("Main.elm", 0, "nope")
	assert.False(t, res.Resolved)
	assert.False(t, res.Ambiguous)
}

func TestLocalBindingShadowsImport(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	helper := b.UpsertModule(kb.Module{Name: "Helper", File: "Helper.elm"})
	b.AddDeclaration(kb.Declaration{Module: helper, Name: "x", Kind: kb.SymbolValue})
	b.AddImport(kb.Import{Importing: main, Imported: "Helper", ExposingMode: kb.ExposingAll})

	scope := b.AddScope(-1, "Main.elm", kb.ByteRange{Start: 0, End: 100})
	b.AddBinding(kb.Binding{Scope: scope, Name: "x", Kind: kb.BindingArgument, Range: kb.ByteRange{Start: 5, End: 6}})

	res := b.Resolve("Main.elm", 50, "x")
	assert.True(t, res.Resolved)
	assert.True(t, res.Local)
	assert.Equal(t, scope, res.InScope)
}

func TestRemoveFileClearsDerivedRows(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	b.AddDeclaration(kb.Declaration{Module: main, Name: "x", Kind: kb.SymbolValue})

	b.RemoveFile("Main.elm")

	_, ok := b.Module("Main")
	assert.False(t, ok)
	_, ok = b.Declaration(main, "x", kb.SymbolValue)
	assert.False(t, ok)
}

func TestVisibleNamesCombinesScopesDeclarationsAndImports(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	helper := b.UpsertModule(kb.Module{Name: "Helper", File: "Helper.elm"})
	b.AddDeclaration(kb.Declaration{Module: main, Name: "own", Kind: kb.SymbolValue})
	b.AddDeclaration(kb.Declaration{Module: helper, Name: "imported", Kind: kb.SymbolValue})
	b.AddImport(kb.Import{Importing: main, Imported: "Helper", ExposingMode: kb.ExposingExplicit, Exposed: []string{"imported"}})
	scope := b.AddScope(-1, "Main.elm", kb.ByteRange{Start: 0, End: 100})
	b.AddBinding(kb.Binding{Scope: scope, Name: "local", Kind: kb.BindingArgument})

	names := b.VisibleNames("Main.elm", 10)
	assert.Contains(t, names, "own")
	assert.Contains(t, names, "imported")
	assert.Contains(t, names, "local")
}

func TestFindUsagesReturnsSortedOccurrences(t *testing.T) {
	b := kb.New()
	main := b.UpsertModule(kb.Module{Name: "Main", File: "Main.elm"})
	sym := kb.Symbol{Module: main, Name: "f", Kind: kb.SymbolValue}

	b.AddOccurrence(kb.Occurrence{File: "Main.elm", Range: kb.ByteRange{Start: 20, End: 21}, Name: "f", ResolvedTo: kb.Resolution{Resolved: true, Module: main, Declaration: "f"}})
	b.AddOccurrence(kb.Occurrence{File: "Main.elm", Range: kb.ByteRange{Start: 5, End: 6}, Name: "f", ResolvedTo: kb.Resolution{Resolved: true, Module: main, Declaration: "f"}})

	usages := b.FindUsages(sym)
	if assert.Len(t, usages, 2) {
		assert.Equal(t, 5, usages[0].Range.Start)
		assert.Equal(t, 20, usages[1].Range.Start)
	}
}

func TestGraphDetectsImportCycle(t *testing.T) {
	g := kb.NewGraph()
	g.AddEdge(0, 1)
	g.AddEdge(1, 0)
	assert.True(t, g.HasCycle(0))

	g2 := kb.NewGraph()
	g2.AddEdge(0, 1)
	assert.False(t, g2.HasCycle(0))
}
