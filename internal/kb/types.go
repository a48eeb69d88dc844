// Package kb implements the daemon's knowledge base: an incrementally
// maintained relational index over every parsed file in a watched Elm
// project. It is deliberately modeled as a set of derived relations with
// explicit primary keys (per the design note in the spec's §9) rather
// than as a graph of pointers between records, so that recomputing one
// relation on a tree edit never requires walking or invalidating another.
package kb

// ModuleIndex identifies a Module by its position in the KB's module
// table. Modules are addressed by index, never by direct pointer, so the
// import graph (which may contain cycles in ill-formed projects) can be
// represented as a plain adjacency set of indices.
type ModuleIndex int

// ExposingMode is how a module or import exposes names to importers.
type ExposingMode int

const (
	// ExposingExplicit means only the names in an accompanying list are
	// exposed.
	ExposingExplicit ExposingMode = iota
	// ExposingAll means "exposing (..)": everything is exposed.
	ExposingAll
)

// SymbolKind classifies a declared or referenced name.
type SymbolKind int

const (
	SymbolValue SymbolKind = iota
	SymbolType
	SymbolTypeAlias
	SymbolConstructor
	SymbolOperator
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolValue:
		return "value"
	case SymbolType:
		return "type"
	case SymbolTypeAlias:
		return "type-alias"
	case SymbolConstructor:
		return "constructor"
	case SymbolOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// ByteRange is a half-open [Start, End) byte span within one file.
type ByteRange struct {
	Start int
	End   int
}

// Module is a single Elm module derived from one parsed file.
type Module struct {
	Name         string
	File         string
	ExposingMode ExposingMode
	// ExposedNames holds the explicit list when ExposingMode is
	// ExposingExplicit; sorted lexicographically only after the engine
	// itself rewrites the list (invariant iii), never eagerly.
	ExposedNames []string
}

// Declaration is a top-level or nested name bound by a module: a value,
// type, type alias, or constructor.
type Declaration struct {
	Module ModuleIndex
	Name   string
	Kind   SymbolKind
	Range  ByteRange
	// ConstructorOf names the type a constructor belongs to; empty for
	// non-constructor declarations.
	ConstructorOf string
}

// declKey is the (module, name, kind) primary key for the declarations
// relation.
type declKey struct {
	Module ModuleIndex
	Name   string
	Kind   SymbolKind
}

// Import is one `import` statement in an importing module.
type Import struct {
	Importing    ModuleIndex
	Imported     string // module name, may not yet be a parsed Module
	Alias        string // "" if no `as` clause
	ExposingMode ExposingMode
	Exposed      []string
	// Range is the whole import clause's byte span.
	Range ByteRange
	// ExposingRange is the exposing_list node's byte span, or the zero
	// range if the import has no exposing clause at all.
	ExposingRange ByteRange
}

// ScopeID identifies a lexical scope within a file.
type ScopeID int

// Scope is a nested lexical region: function arguments, let-bindings,
// lambda parameters, or case-branch bindings.
type Scope struct {
	Parent ScopeID // -1 for a module's top-level scope
	File   string
	Range  ByteRange
}

// BindingKind classifies what introduced a local binding.
type BindingKind int

const (
	BindingArgument BindingKind = iota
	BindingLet
	BindingLambdaParam
	BindingCasePattern
)

// Binding is a local name bound within a Scope.
type Binding struct {
	Scope ScopeID
	Name  string
	Kind  BindingKind
	Range ByteRange
}

// Occurrence is one identifier reference in source text.
type Occurrence struct {
	File       string
	Range      ByteRange
	Qualifier  string // "" if unqualified
	Name       string
	Kind       SymbolKind
	ResolvedTo Resolution
}

// Resolution is what a name occurrence resolves to, or the zero value if
// it is unresolved.
type Resolution struct {
	Resolved  bool
	Ambiguous bool
	// Module/Declaration identify a module-level symbol. Kind is the
	// declaration's own SymbolKind and is only meaningful when Resolved
	// is true and Local is false -- a local binding has no SymbolKind of
	// its own.
	Module      ModuleIndex
	Declaration string
	Kind        SymbolKind
	// Local/InScope identify a local binding instead, when Local is true;
	// the binding's name is then held in Declaration.
	Local   bool
	InScope ScopeID
}

// Symbol identifies a resolved name: either a module-level declaration or
// a local binding. It is what resolve and find_usages return and accept.
type Symbol struct {
	Local bool
	// Module-level fields, valid when Local is false.
	Module ModuleIndex
	Name   string
	Kind   SymbolKind
	// Local-binding fields, valid when Local is true.
	Scope ScopeID
}
