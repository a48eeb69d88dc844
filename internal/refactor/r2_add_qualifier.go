package refactor

import "strings"

// addQualifier implements R2: the programmer prepends `Module.` (or an
// alias) to a previously-unqualified reference. The import's exposing
// list loses that name in response, and every other unqualified use of
// the same exposed name in the module is qualified to match.
type addQualifier struct{}

func (addQualifier) Name() string { return "R2-add-qualifier" }

func (addQualifier) Matches(ctx Context) bool {
	if ctx.Edit.OldNodeKind != ctx.Edit.NewNodeKind {
		return false
	}
	if !isValueRefKind(ctx.Edit.NewNodeKind) {
		return false
	}
	return !strings.Contains(string(ctx.Edit.OldText), ".") && strings.Contains(string(ctx.Edit.NewText), ".")
}

func (addQualifier) Synthesize(ctx Context) *Refactor {
	qualifier, name := splitLast(string(ctx.Edit.NewText), '.')
	if qualifier == "" || name == "" {
		return nil
	}
	mod, ok := ctx.Base.ModuleForFile(ctx.File.Path)
	if !ok {
		return nil
	}
	imp := findImportByQualifier(ctx.Base, mod, qualifier)
	if imp == nil {
		// Qualifier doesn't name a known import; nothing to rewrite
		// beyond the edit already present in the tree.
		return &Refactor{Edits: nil}
	}

	var edits []Edit
	newExposed := removeFromList(imp.Exposed, name)
	edits = append(edits, exposingListEdit(ctx.Base, mod, imp, newExposed)...)

	for _, occ := range ctx.Base.OccurrencesNamed(ctx.File.Path, name) {
		if occ.Range.Start == ctx.Edit.NewRange.Start {
			continue // this is the edit itself, already qualified
		}
		if occ.Qualifier != "" {
			continue // preserve occurrences already qualified differently
		}
		edits = append(edits, Edit{File: ctx.File.Path, Range: occ.Range, NewText: qualifier + "." + name})
	}
	return &Refactor{Edits: edits}
}

func isValueRefKind(kind string) bool {
	switch kind {
	case "value_expr", "value_qid", "type_ref", "upper_case_qid":
		return true
	default:
		return false
	}
}

func splitLast(s string, sep byte) (before, after string) {
	idx := strings.LastIndexByte(s, sep)
	if idx == -1 {
		return "", s
	}
	return s[:idx], s[idx+1:]
}

func removeFromList(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
