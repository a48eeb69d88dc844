package kb

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// scopeWalker recurses through a file's parse tree, opening a new Scope
// at every construct the language gives local bindings to (lambda
// parameters, let-declarations, case branches, and a value declaration's
// own argument patterns) and recording every identifier reference it
// passes as an Occurrence, resolved against the scopes and declarations
// visible at that point.
//
// This has no single teacher precedent — termfx-morfx never resolves
// names, it only matches structural patterns — so the walk is grounded
// on the general recursive-descent-over-sitter.Node idiom already used
// in diffNodeKinds, generalized from "compare two trees" to "accumulate
// scope state while descending one".
type scopeWalker struct {
	b    *Base
	file string
	src  []byte
}

func (w *scopeWalker) walk(n *sitter.Node, scope ScopeID) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "anonymous_function_expr":
		inner := w.b.AddScope(scope, w.file, rangeOf(n))
		w.bindLambdaParams(n, inner)
		w.walkChildren(n, inner)
		return
	case "let_in_expr":
		inner := w.b.AddScope(scope, w.file, rangeOf(n))
		w.bindLetDeclarations(n, inner)
		w.walkChildren(n, inner)
		return
	case "case_of_branch":
		inner := w.b.AddScope(scope, w.file, rangeOf(n))
		w.bindCasePattern(n, inner)
		w.walkChildren(n, inner)
		return
	case "value_declaration":
		// The declaration's argument patterns, bound when the walk reaches
		// its function_declaration_left, belong to this scope.
		inner := w.b.AddScope(scope, w.file, rangeOf(n))
		w.walkChildren(n, inner)
		return
	case "function_declaration_left":
		w.bindFunctionArgs(n, scope)
	case "value_expr", "operator_identifier_ref":
		w.recordOccurrence(n, scope)
	}
	w.walkChildren(n, scope)
}

func (w *scopeWalker) walkChildren(n *sitter.Node, scope ScopeID) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		w.walk(n.NamedChild(i), scope)
	}
}

func (w *scopeWalker) bindLambdaParams(n *sitter.Node, scope ScopeID) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || !isPatternNode(child.Type()) {
			continue
		}
		for _, name := range patternNames(child, w.src) {
			w.b.AddBinding(Binding{Scope: scope, Name: name, Kind: BindingLambdaParam, Range: rangeOf(child)})
		}
	}
}

func (w *scopeWalker) bindFunctionArgs(n *sitter.Node, scope ScopeID) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || !isPatternNode(child.Type()) {
			continue
		}
		for _, name := range patternNames(child, w.src) {
			w.b.AddBinding(Binding{Scope: scope, Name: name, Kind: BindingArgument, Range: rangeOf(child)})
		}
	}
}

func (w *scopeWalker) bindLetDeclarations(n *sitter.Node, scope ScopeID) {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != "value_declaration" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			grand := child.NamedChild(j)
			if grand == nil {
				continue
			}
			if grand.Type() == "function_declaration_left" {
				name := grand.NamedChild(0)
				if name != nil {
					w.b.AddBinding(Binding{Scope: scope, Name: textOf(name, w.src), Kind: BindingLet, Range: rangeOf(grand)})
				}
				continue
			}
			if isPatternNode(grand.Type()) {
				for _, name := range patternNames(grand, w.src) {
					w.b.AddBinding(Binding{Scope: scope, Name: name, Kind: BindingLet, Range: rangeOf(grand)})
				}
			}
		}
	}
}

func (w *scopeWalker) bindCasePattern(n *sitter.Node, scope ScopeID) {
	pattern := n.NamedChild(0)
	if pattern == nil {
		return
	}
	for _, name := range patternNames(pattern, w.src) {
		w.b.AddBinding(Binding{Scope: scope, Name: name, Kind: BindingCasePattern, Range: rangeOf(pattern)})
	}
}

func (w *scopeWalker) recordOccurrence(n *sitter.Node, scope ScopeID) {
	qualifier, name := splitQualified(n, w.src)
	if name == "" {
		return
	}
	position := int(n.StartByte())
	res := w.b.Resolve(w.file, position, name)
	kind := SymbolValue
	if res.Resolved && !res.Local {
		kind = res.Kind
	}
	w.b.AddOccurrence(Occurrence{
		File:       w.file,
		Range:      rangeOf(n),
		Qualifier:  qualifier,
		Name:       name,
		Kind:       kind,
		ResolvedTo: res,
	})
}

// isPatternNode reports whether typ is one of the pattern node kinds
// that can introduce local bindings.
func isPatternNode(typ string) bool {
	switch typ {
	case "lower_pattern", "tuple_pattern", "record_pattern", "cons_pattern", "list_pattern", "pattern", "union_pattern":
		return true
	default:
		return false
	}
}

// patternNames extracts every lower-case identifier bound by a pattern,
// descending through tuple/record/list/cons/union sub-patterns.
func patternNames(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	if n.Type() == "lower_pattern" {
		return []string{textOf(n, src)}
	}
	var names []string
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		names = append(names, patternNames(n.NamedChild(i), src)...)
	}
	return names
}

// splitQualified splits a value reference node's text into an optional
// `Module.` (or alias) qualifier and the bare name.
func splitQualified(n *sitter.Node, src []byte) (qualifier, name string) {
	text := textOf(n, src)
	lastDot := -1
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '.' {
			lastDot = i
			break
		}
	}
	if lastDot == -1 {
		return "", text
	}
	return text[:lastDot], text[lastDot+1:]
}
