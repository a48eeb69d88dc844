package refactor

// typeStructuralEdit implements R8: a complete `type alias X = …` or
// `type X = …` inserted or removed at the top level produces no
// cross-module text rewrite, only a StructuralEvent for downstream
// recognizers and the store's audit trail.
type typeStructuralEdit struct{}

func (typeStructuralEdit) Name() string { return "R8-type-structural-event" }

func (typeStructuralEdit) Matches(ctx Context) bool {
	return isTypeDeclKind(ctx.Edit.OldNodeKind) || isTypeDeclKind(ctx.Edit.NewNodeKind)
}

func (typeStructuralEdit) Synthesize(ctx Context) *Refactor {
	mod, ok := ctx.Base.ModuleForFile(ctx.File.Path)
	if !ok {
		return nil
	}
	added := isTypeDeclKind(ctx.Edit.NewNodeKind) && !isTypeDeclKind(ctx.Edit.OldNodeKind)
	removed := isTypeDeclKind(ctx.Edit.OldNodeKind) && !isTypeDeclKind(ctx.Edit.NewNodeKind)
	if !added && !removed {
		return nil
	}

	isAlias := ctx.Edit.NewNodeKind == "type_alias_declaration" || ctx.Edit.OldNodeKind == "type_alias_declaration"

	var kind StructuralEventKind
	switch {
	case added && isAlias:
		kind = TypeAliasAdded
	case removed && isAlias:
		kind = TypeAliasRemoved
	case added:
		kind = TypeAdded
	default:
		kind = TypeRemoved
	}

	name := ""
	if added {
		name = string(ctx.Edit.NewText)
	} else {
		name = string(ctx.Edit.OldText)
	}

	return &Refactor{
		Event: &StructuralEvent{Kind: kind, Module: mod, Name: name},
	}
}

func isTypeDeclKind(kind string) bool {
	return kind == "type_declaration" || kind == "type_alias_declaration"
}
