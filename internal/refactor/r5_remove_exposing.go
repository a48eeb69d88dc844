package refactor

import (
	"strings"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

// r5Name is R5's recognizer label: deleting a name from an exposing list
// requalifies every previously-unqualified use of that name with the
// import's module name or alias.
//
// R5 is not in the Recognizers array for the same reason R4 isn't:
// recognizer.go's dispatchExposingListEdit calls
// synthesizeRemoveFromExposing directly, since a combined add+remove
// exposing-list edit needs both R4 and R5's logic to run in the same
// pass rather than picking one via Matches.
const r5Name = "R5-remove-from-exposing"

// synthesizeRemoveFromExposing produces the edits for no-longer-exposed
// removedNames: every unqualified occurrence of each name in the file
// gets requalified with the owning import's alias or module name. ok is
// false when the triggering import clause can't be located.
func synthesizeRemoveFromExposing(ctx Context, removedNames []string) (edits []Edit, ok bool) {
	mod, modOK := ctx.Base.ModuleForFile(ctx.File.Path)
	if !modOK {
		return nil, false
	}
	imp := importNear(ctx.Base, mod, kb.ByteRange(ctx.Edit.NewRange))
	if imp == nil {
		return nil, false
	}
	qualifier := imp.Alias
	if qualifier == "" {
		qualifier = imp.Imported
	}

	for _, name := range removedNames {
		for _, occ := range ctx.Base.OccurrencesNamed(ctx.File.Path, name) {
			if occ.Qualifier != "" {
				continue
			}
			edits = append(edits, Edit{File: ctx.File.Path, Range: occ.Range, NewText: qualifier + "." + name})
		}
	}
	return edits, true
}

// importNear finds the import in mod whose clause range brackets r's
// start, used when the exposing_list node itself may have shrunk to
// nothing by the time the KB was recomputed.
func importNear(b *kb.Base, mod kb.ModuleIndex, r kb.ByteRange) *kb.Import {
	for _, imp := range b.ImportsOf(mod) {
		if imp.Range.Start <= r.Start && r.Start <= imp.Range.End {
			return imp
		}
	}
	imports := b.ImportsOf(mod)
	if len(imports) == 0 {
		return nil
	}
	return imports[0]
}

// diffRemovedNames compares an exposing clause's text before and after
// an edit and returns the identifiers present in old but not new.
func diffRemovedNames(old, new string) []string {
	oldNames := parseExposingText(old)
	newNames := map[string]struct{}{}
	for _, n := range parseExposingText(new) {
		newNames[n] = struct{}{}
	}
	var removed []string
	for _, n := range oldNames {
		if _, ok := newNames[n]; !ok {
			removed = append(removed, n)
		}
	}
	return removed
}

func parseExposingText(text string) []string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "exposing")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	var names []string
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == ".." {
			continue
		}
		names = append(names, part)
	}
	return names
}
