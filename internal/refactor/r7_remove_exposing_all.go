package refactor

import (
	"strings"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

// removeExposingAll implements R7: deleting `exposing (..)` entirely is
// treated as R5 applied over every name the import used to expose. Since
// `exposing (..)` never lists individual names, the set of names to
// requalify is read from the imported module's own declarations rather
// than diffed textually the way R5 does for an explicit list.
type removeExposingAll struct{}

func (removeExposingAll) Name() string { return "R7-remove-exposing-all" }

func (removeExposingAll) Matches(ctx Context) bool {
	if ctx.Edit.OldNodeKind != "import_clause" && ctx.Edit.OldNodeKind != "exposing_list" {
		return false
	}
	return strings.Contains(string(ctx.Edit.OldText), "..") && !strings.Contains(string(ctx.Edit.NewText), "..")
}

func (removeExposingAll) Synthesize(ctx Context) *Refactor {
	mod, ok := ctx.Base.ModuleForFile(ctx.File.Path)
	if !ok {
		return nil
	}
	imp := importNear(ctx.Base, mod, kb.ByteRange(ctx.Edit.NewRange))
	if imp == nil {
		return nil
	}
	importedMod := ctx.Base.ModuleIndexFor(imp.Imported)

	qualifier := imp.Alias
	if qualifier == "" {
		qualifier = imp.Imported
	}

	var edits []Edit
	for _, occ := range ctx.Base.OccurrencesInFile(ctx.File.Path) {
		if occ.Qualifier != "" {
			continue
		}
		if _, ok := ctx.Base.Declaration(importedMod, occ.Name, occ.Kind); !ok {
			continue
		}
		edits = append(edits, Edit{File: ctx.File.Path, Range: occ.Range, NewText: qualifier + "." + occ.Name})
	}
	return &Refactor{Edits: edits}
}
