package refactor

import "github.com/jwoudenberg/elm-pair/internal/kb"

// changeAsAlias implements R6: editing an import's `as Alias` clause
// rewrites every qualified usage in the module from the old qualifier to
// the new one. Invalid alias identifiers produce no refactor.
type changeAsAlias struct{}

func (changeAsAlias) Name() string { return "R6-as-alias" }

func (changeAsAlias) Matches(ctx Context) bool {
	return ctx.Edit.OldNodeKind == "as_clause" || ctx.Edit.NewNodeKind == "as_clause"
}

func (changeAsAlias) Synthesize(ctx Context) *Refactor {
	newAlias := string(ctx.Edit.NewText)
	if newAlias != "" && !isValidAlias(newAlias) {
		return nil
	}
	oldQualifier := string(ctx.Edit.OldText)
	if oldQualifier == "" {
		return &Refactor{Edits: nil}
	}

	var edits []Edit
	for _, occ := range ctx.Base.OccurrencesInFile(ctx.File.Path) {
		if occ.Qualifier != oldQualifier {
			continue
		}
		// An occurrence's range starts at its qualifier; the dot after it
		// is kept.
		edits = append(edits, Edit{
			File:    ctx.File.Path,
			Range:   kb.ByteRange{Start: occ.Range.Start, End: occ.Range.Start + len(oldQualifier)},
			NewText: newAlias,
		})
	}
	return &Refactor{Edits: edits}
}

func isValidAlias(s string) bool {
	if s == "" {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			return false
		}
	}
	return true
}
