package refactor

import (
	"bytes"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

// r4Name is R4's recognizer label: inserting an identifier into an
// import's `exposing (…)` list drops the qualifier from every matching
// qualified use in the importing module.
//
// Spec §4.3 says "collisions are handled as in R3"; here that resolves
// to R1's numeric-suffix rename rather than R3's decline-on-collision,
// since a local declaration that now shares a name with a newly-exposed
// import always has a safe rename (the suffix sequence never runs out),
// unlike R3's "which side do we touch" ambiguity when a bare name could
// mean either of two existing things.
//
// R4 is not in the Recognizers array: an exposing-list edit can add and
// remove names in the same change, so recognizer.go's
// dispatchExposingListEdit calls synthesizeAddToExposing directly rather
// than gating through Matches on net text-length growth.
const r4Name = "R4-add-to-exposing"

// synthesizeAddToExposing produces the edits for exposing addedNames: a
// colliding local declaration is renamed out of the way with R1's
// smallest-unused-numeric-suffix rule, and every qualified usage of the
// name against the exposing import's qualifier drops its qualifier. ok
// is false when the triggering import clause can't be located, meaning
// dispatch should discard rather than emit a partial result.
func synthesizeAddToExposing(ctx Context, addedNames []string) (edits []Edit, ok bool) {
	mod, modOK := ctx.Base.ModuleForFile(ctx.File.Path)
	if !modOK {
		return nil, false
	}
	imp := importAtExposingRange(ctx.Base, mod, kb.ByteRange(ctx.Edit.NewRange))
	if imp == nil {
		imp = importNear(ctx.Base, mod, kb.ByteRange(ctx.Edit.NewRange))
	}
	if imp == nil {
		return nil, false
	}

	for _, name := range addedNames {
		if decl := localDeclaration(ctx.Base, mod, name); decl != nil {
			visible := ctx.Base.VisibleNames(ctx.File.Path, decl.Range.Start)
			renamed := smallestUnusedSuffix(visible, name)
			// decl.Range spans the whole declaration; only its name is
			// replaced.
			nameRange := decl.Range
			if text, err := ctx.File.Rope.Slice(decl.Range.Start, decl.Range.End); err == nil {
				if i := bytes.Index(text, []byte(name)); i >= 0 {
					nameRange = kb.ByteRange{Start: decl.Range.Start + i, End: decl.Range.Start + i + len(name)}
				}
			}
			edits = append(edits, Edit{File: ctx.File.Path, Range: nameRange, NewText: renamed})
			for _, occ := range ctx.Base.OccurrencesNamed(ctx.File.Path, name) {
				if occ.Qualifier != "" {
					continue
				}
				if !occ.ResolvedTo.Resolved || occ.ResolvedTo.Local || occ.ResolvedTo.Module != mod {
					continue
				}
				edits = append(edits, Edit{File: ctx.File.Path, Range: occ.Range, NewText: renamed})
			}
		}

		for _, occ := range ctx.Base.OccurrencesNamed(ctx.File.Path, name) {
			if occ.Qualifier == "" {
				continue
			}
			if occ.Qualifier != imp.Alias && !(imp.Alias == "" && occ.Qualifier == imp.Imported) {
				continue
			}
			edits = append(edits, Edit{File: ctx.File.Path, Range: occ.Range, NewText: name})
		}
	}
	return edits, true
}

// localDeclaration returns mod's own declaration of name in any
// SymbolKind, or nil -- the local side of a potential R4 collision.
func localDeclaration(b *kb.Base, mod kb.ModuleIndex, name string) *kb.Declaration {
	for _, kind := range kb.AllSymbolKinds {
		if d, ok := b.Declaration(mod, name, kind); ok {
			return d
		}
	}
	return nil
}

// importAtExposingRange finds the import in mod whose exposing clause
// contains r, used to identify which import a raw exposing_list edit
// belongs to.
func importAtExposingRange(b *kb.Base, mod kb.ModuleIndex, r kb.ByteRange) *kb.Import {
	for _, imp := range b.ImportsOf(mod) {
		if imp.ExposingRange.Start <= r.Start && r.End <= imp.ExposingRange.End {
			return imp
		}
	}
	return nil
}

// diffAddedNames compares an exposing clause's text before and after an
// edit and returns the identifiers present in new but not old, the
// mirror image of diffRemovedNames in r5_remove_exposing.go.
func diffAddedNames(old, new string) []string {
	oldNames := map[string]struct{}{}
	for _, n := range parseExposingText(old) {
		oldNames[n] = struct{}{}
	}
	var added []string
	for _, n := range parseExposingText(new) {
		if _, ok := oldNames[n]; !ok {
			added = append(added, n)
		}
	}
	return added
}
