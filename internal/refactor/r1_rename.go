package refactor

import (
	"fmt"

	"github.com/jwoudenberg/elm-pair/internal/kb"
)

// renameAtDefinition implements R1: renaming an identifier at its
// declaration site propagates to every occurrence that resolved to it.
//
// Simplification, documented in DESIGN.md: occurrences are matched by
// name rather than by re-diffing pre- and post-edit resolutions, since
// the knowledge base is recomputed in place and does not retain the
// pre-edit declaration once the rename has already touched the tree.
// This is sound for the common case the spec's own worked scenario
// covers (§8) but does not disambiguate two identically-named
// declarations in unrelated modules that happen to both be visible at
// an occurrence site; a fuller implementation would snapshot the KB
// before recomputation and diff declaration identities across the two
// snapshots.
type renameAtDefinition struct{}

func (renameAtDefinition) Name() string { return "R1-rename-at-definition" }

func (renameAtDefinition) Matches(ctx Context) bool {
	if !isIdentifierKind(ctx.Edit.OldNodeKind) || !isIdentifierKind(ctx.Edit.NewNodeKind) {
		return false
	}
	if len(ctx.Edit.OldText) == 0 || len(ctx.Edit.NewText) == 0 {
		return false
	}
	newName := string(ctx.Edit.NewText)
	return declarationAt(ctx.Base, ctx.File.Path, kb.ByteRange(ctx.Edit.NewRange), newName) != nil
}

func (renameAtDefinition) Synthesize(ctx Context) *Refactor {
	oldName := string(ctx.Edit.OldText)
	newName := string(ctx.Edit.NewText)
	decl := declarationAt(ctx.Base, ctx.File.Path, kb.ByteRange(ctx.Edit.NewRange), newName)
	if decl == nil {
		return nil
	}

	var edits []Edit

	// A name-based sweep: every occurrence anywhere in the
	// project still carrying the old text is a candidate use site of
	// this declaration (see type doc comment).
	for _, occFile := range ctx.Base.FilesReferencing(oldName) {
		suffix := ""
		visible := ctx.Base.VisibleNames(occFile, decl.Range.Start)
		// The renamed declaration already carries newName; only some other
		// binding or declaration holding that name is a collision.
		res := ctx.Base.Resolve(occFile, decl.Range.Start, newName)
		self := res.Resolved && !res.Local && res.Module == decl.Module && res.Kind == decl.Kind
		if _, taken := visible[newName]; taken && !self && occFile == ctx.File.Path {
			suffix = smallestUnusedSuffix(visible, newName)
		}
		target := newName
		if suffix != "" {
			target = suffix
		}
		for _, occ := range ctx.Base.OccurrencesNamed(occFile, oldName) {
			edits = append(edits, Edit{File: occFile, Range: occ.Range, NewText: target})
		}
	}

	if len(edits) == 0 {
		return &Refactor{State: Discarded, Reason: DiscardNone, Edits: nil}
	}
	return &Refactor{Edits: edits}
}

// declarationAt returns the declaration in file whose range contains r
// and whose name is name, or nil.
func declarationAt(b *kb.Base, file string, r kb.ByteRange, name string) *kb.Declaration {
	mod, ok := b.ModuleForFile(file)
	if !ok {
		return nil
	}
	for _, kind := range kb.AllSymbolKinds {
		if d, ok := b.Declaration(mod, name, kind); ok {
			if d.Range.Start <= r.Start && r.End <= d.Range.End {
				return d
			}
		}
	}
	return nil
}

func isIdentifierKind(kind string) bool {
	switch kind {
	case "lower_case_identifier", "upper_case_identifier":
		return true
	default:
		return false
	}
}

// smallestUnusedSuffix returns base with the smallest numeric suffix
// (base2, base3, ...) not present in taken, per R1's shadowing rule.
func smallestUnusedSuffix(taken map[string]struct{}, base string) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
