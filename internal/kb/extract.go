package kb

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jwoudenberg/elm-pair/internal/syntax"
)

// Extractor recompiles a file's KB rows from its parse tree. Grounded on
// internal/matcher.Matcher's "compile a tree-sitter Query once, run a
// QueryCursor per parse" pattern for the flat, non-nested relations
// (module header, imports, top-level declarations); scopes and bindings
// need parent/child structure a flat query can't express, so those are
// built by a direct recursive walk instead, in the style of
// diffNodeKinds's tree walk.
type Extractor struct {
	moduleQuery *sitter.Query
	importQuery *sitter.Query
	valueQuery  *sitter.Query
	typeQuery   *sitter.Query
	aliasQuery  *sitter.Query
}

const moduleQuerySrc = `
(module_declaration
  (upper_case_qid) @module.name
  (exposing_list)? @module.exposing) @module.node
`

const importQuerySrc = `
(import_clause
  (upper_case_qid) @import.name
  (as_clause (upper_case_identifier) @import.alias)?
  (exposing_list)? @import.exposing) @import.node
`

const valueQuerySrc = `
(value_declaration
  [
    (function_declaration_left (lower_case_identifier) @decl.name)
    (lower_pattern) @decl.name
  ]) @decl.node
`

const typeQuerySrc = `
(type_declaration
  (upper_case_identifier) @decl.name
  (union_variant (upper_case_identifier) @decl.ctor)*) @decl.node
`

const aliasQuerySrc = `
(type_alias_declaration
  (upper_case_identifier) @decl.name) @decl.node
`

// NewExtractor compiles the extractor's queries against the Elm grammar.
func NewExtractor() (*Extractor, error) {
	lang := syntax.Language()
	compile := func(src string) (*sitter.Query, error) {
		return sitter.NewQuery([]byte(src), lang)
	}
	moduleQ, err := compile(moduleQuerySrc)
	if err != nil {
		return nil, err
	}
	importQ, err := compile(importQuerySrc)
	if err != nil {
		return nil, err
	}
	valueQ, err := compile(valueQuerySrc)
	if err != nil {
		return nil, err
	}
	typeQ, err := compile(typeQuerySrc)
	if err != nil {
		return nil, err
	}
	aliasQ, err := compile(aliasQuerySrc)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		moduleQuery: moduleQ,
		importQuery: importQ,
		valueQuery:  valueQ,
		typeQuery:   typeQ,
		aliasQuery:  aliasQ,
	}, nil
}

// Recompute drops every row derived from f and re-derives them from f's
// current tree, per §4.2's "when a tree edit touches a declaration-,
// import-, or binding-producing node, the corresponding rows are
// recomputed" — approximated here at whole-file granularity, since a
// single Elm module's declarations are cheap enough to re-extract on
// every edit and doing so sidesteps having to track which specific rows
// a given TreeEdit's byte range could have invalidated.
func (e *Extractor) Recompute(b *Base, f *syntax.File) {
	b.RemoveFile(f.Path)
	if f.Tree == nil {
		return
	}
	src := f.Rope.Bytes()
	root := f.Tree.RootNode()

	moduleName, exposingMode, exposedNames := e.extractModuleHeader(root, src)
	if moduleName == "" {
		moduleName = f.Path
	}
	modIdx := b.UpsertModule(Module{
		Name:         moduleName,
		File:         f.Path,
		ExposingMode: exposingMode,
		ExposedNames: exposedNames,
	})

	e.extractImports(b, modIdx, root, src)
	e.extractDeclarations(b, modIdx, root, src)

	fileScope := b.AddScope(-1, f.Path, ByteRange{Start: int(root.StartByte()), End: int(root.EndByte())})
	walker := &scopeWalker{b: b, file: f.Path, src: src}
	walker.walk(root, fileScope)
}

func (e *Extractor) extractModuleHeader(root *sitter.Node, src []byte) (name string, mode ExposingMode, exposed []string) {
	cursor := sitter.NewQueryCursor()
	cursor.Exec(e.moduleQuery, root)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, cap := range match.Captures {
			switch e.moduleQuery.CaptureNameForId(cap.Index) {
			case "module.name":
				name = textOf(cap.Node, src)
			case "module.exposing":
				mode, exposed = parseExposingList(cap.Node, src)
			}
		}
		return name, mode, exposed
	}
	return "", ExposingExplicit, nil
}

func (e *Extractor) extractImports(b *Base, modIdx ModuleIndex, root *sitter.Node, src []byte) {
	cursor := sitter.NewQueryCursor()
	cursor.Exec(e.importQuery, root)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var imported, alias string
		mode := ExposingExplicit
		var exposed []string
		var clauseRange, exposingRange ByteRange
		for _, cap := range match.Captures {
			switch e.importQuery.CaptureNameForId(cap.Index) {
			case "import.name":
				imported = textOf(cap.Node, src)
			case "import.alias":
				alias = textOf(cap.Node, src)
			case "import.exposing":
				mode, exposed = parseExposingList(cap.Node, src)
				exposingRange = rangeOf(cap.Node)
			case "import.node":
				clauseRange = rangeOf(cap.Node)
			}
		}
		if imported == "" {
			continue
		}
		b.AddImport(Import{
			Importing:     modIdx,
			Imported:      imported,
			Alias:         alias,
			ExposingMode:  mode,
			Exposed:       exposed,
			Range:         clauseRange,
			ExposingRange: exposingRange,
		})
	}
}

func (e *Extractor) extractDeclarations(b *Base, modIdx ModuleIndex, root *sitter.Node, src []byte) {
	e.runDeclQuery(b, modIdx, e.valueQuery, root, src, SymbolValue)
	e.runTypeQuery(b, modIdx, root, src)
	e.runDeclQuery(b, modIdx, e.aliasQuery, root, src, SymbolTypeAlias)
}

func (e *Extractor) runDeclQuery(b *Base, modIdx ModuleIndex, q *sitter.Query, root *sitter.Node, src []byte, kind SymbolKind) {
	cursor := sitter.NewQueryCursor()
	cursor.Exec(q, root)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var name string
		var declRange ByteRange
		for _, cap := range match.Captures {
			name2 := q.CaptureNameForId(cap.Index)
			if name2 == "decl.name" && name == "" {
				name = textOf(cap.Node, src)
			}
			if name2 == "decl.node" {
				declRange = rangeOf(cap.Node)
			}
		}
		if name == "" {
			continue
		}
		b.AddDeclaration(Declaration{Module: modIdx, Name: name, Kind: kind, Range: declRange})
	}
}

func (e *Extractor) runTypeQuery(b *Base, modIdx ModuleIndex, root *sitter.Node, src []byte) {
	cursor := sitter.NewQueryCursor()
	cursor.Exec(e.typeQuery, root)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var name string
		var declRange ByteRange
		var ctors []string
		for _, cap := range match.Captures {
			switch e.typeQuery.CaptureNameForId(cap.Index) {
			case "decl.name":
				if name == "" {
					name = textOf(cap.Node, src)
				}
			case "decl.node":
				declRange = rangeOf(cap.Node)
			case "decl.ctor":
				ctors = append(ctors, textOf(cap.Node, src))
			}
		}
		if name == "" {
			continue
		}
		b.AddDeclaration(Declaration{Module: modIdx, Name: name, Kind: SymbolType, Range: declRange})
		for _, ctor := range ctors {
			b.AddDeclaration(Declaration{Module: modIdx, Name: ctor, Kind: SymbolConstructor, Range: declRange, ConstructorOf: name})
		}
	}
}

// parseExposingList reads an exposing_list node's children, distinguishing
// `exposing (..)` (a lone double_dot child) from an explicit name list.
func parseExposingList(n *sitter.Node, src []byte) (ExposingMode, []string) {
	if n == nil {
		return ExposingExplicit, nil
	}
	var names []string
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == "double_dot" {
			return ExposingAll, nil
		}
		names = append(names, textOf(child, src))
	}
	return ExposingExplicit, names
}

func textOf(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(src) {
		end = uint32(len(src))
	}
	return string(src[start:end])
}

func rangeOf(n *sitter.Node) ByteRange {
	if n == nil {
		return ByteRange{}
	}
	return ByteRange{Start: int(n.StartByte()), End: int(n.EndByte())}
}
