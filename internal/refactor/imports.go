package refactor

import (
	"sort"
	"strings"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

// findImportByQualifier is a thin wrapper kept for readability at call
// sites; kb.Base already does the lookup.
func findImportByQualifier(b *kb.Base, mod kb.ModuleIndex, qualifier string) *kb.Import {
	return b.ImportByQualifier(mod, qualifier)
}

// exposingListEdit produces the Edit(s) that rewrite imp's exposing
// clause to expose exactly newExposed. An empty newExposed removes the
// `exposing (…)` clause entirely, per R2's "if the list becomes empty,
// remove the exposing clause entirely".
func exposingListEdit(b *kb.Base, mod kb.ModuleIndex, imp *kb.Import, newExposed []string) []Edit {
	file, ok := fileOfModule(b, mod)
	if !ok {
		return nil
	}
	if len(newExposed) == 0 {
		if imp.ExposingRange == (kb.ByteRange{}) {
			return nil
		}
		return []Edit{{File: file, Range: imp.ExposingRange, NewText: ""}}
	}
	sorted := append([]string(nil), newExposed...)
	sort.Strings(sorted)
	text := "exposing (" + strings.Join(sorted, ", ") + ")"
	if imp.ExposingRange == (kb.ByteRange{}) {
		// No existing exposing clause: insert one right after the
		// module name/as-alias, at the end of the import clause.
		return []Edit{{File: file, Range: kb.ByteRange{Start: imp.Range.End, End: imp.Range.End}, NewText: " " + text}}
	}
	return []Edit{{File: file, Range: imp.ExposingRange, NewText: text}}
}

// insertIntoExposingList produces the Edit that adds name to imp's
// exposing list: an empty list is created fresh (single entry), and a
// non-empty list is rewritten with name added and every entry sorted
// lexicographically by exposingListEdit. The list's original appearance
// order is not kept.
func insertIntoExposingList(b *kb.Base, mod kb.ModuleIndex, imp *kb.Import, name string) []Edit {
	current := append([]string(nil), imp.Exposed...)
	inserted := false
	for _, n := range current {
		if n == name {
			inserted = true
			break
		}
	}
	if !inserted {
		current = append(current, name)
	}
	return exposingListEdit(b, mod, imp, current)
}

func fileOfModule(b *kb.Base, mod kb.ModuleIndex) (string, bool) {
	m, ok := b.Module(b.ModuleName(mod))
	if !ok {
		return "", false
	}
	return m.File, true
}
