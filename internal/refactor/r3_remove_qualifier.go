package refactor

import "strings"

// removeQualifier implements R3: deleting a `Module.` (or alias) prefix
// adds the bare name to that import's exposing list, re-qualifying or
// renaming away any resulting collision. If no consistent resolution
// exists it emits no refactor, per spec.
type removeQualifier struct{}

func (removeQualifier) Name() string { return "R3-remove-qualifier" }

func (removeQualifier) Matches(ctx Context) bool {
	if ctx.Edit.OldNodeKind != ctx.Edit.NewNodeKind {
		return false
	}
	if !isValueRefKind(ctx.Edit.NewNodeKind) {
		return false
	}
	return strings.Contains(string(ctx.Edit.OldText), ".") && !strings.Contains(string(ctx.Edit.NewText), ".")
}

func (removeQualifier) Synthesize(ctx Context) *Refactor {
	qualifier, name := splitLast(string(ctx.Edit.OldText), '.')
	if qualifier == "" || name == "" {
		return nil
	}
	mod, ok := ctx.Base.ModuleForFile(ctx.File.Path)
	if !ok {
		return nil
	}
	imp := findImportByQualifier(ctx.Base, mod, qualifier)
	if imp == nil {
		return nil
	}

	visible := ctx.Base.VisibleNames(ctx.File.Path, ctx.Edit.NewRange.Start)
	if _, collides := visible[name]; collides {
		// A local definition or another import already owns this bare
		// name; the spec asks us to re-qualify or rename the
		// conflicting side, but without a safe, unambiguous target we
		// decline rather than guess.
		return nil
	}

	edits := insertIntoExposingList(ctx.Base, mod, imp, name)
	return &Refactor{Edits: edits}
}
