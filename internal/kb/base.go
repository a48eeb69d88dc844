package kb

import "sort"

// Base is the daemon's whole-project knowledge base: the six relations
// from the KB's relation table, plus the derived import graph, held
// in-memory for the lifetime of a session. It is owned exclusively by
// the analysis thread; nothing outside that thread may read or write it
// without first taking ownership the way the thread model hands off a
// syntax.File.
type Base struct {
	modules      map[string]*Module
	moduleIndex  map[string]ModuleIndex
	moduleByIdx  []string
	declarations map[declKey]*Declaration
	declsByMod   map[ModuleIndex][]declKey
	imports      map[importKey]*Import
	importsByMod map[ModuleIndex][]importKey
	scopes       map[ScopeID]*Scope
	scopesByFile map[string][]ScopeID
	nextScope    ScopeID
	bindings     map[bindingKey]*Binding
	bindingsByScope map[ScopeID][]string
	occurrences  map[occKey]*Occurrence
	occByFile    map[string][]occKey
	graph        *Graph
}

type importKey struct {
	Importing ModuleIndex
	Imported  string
}

type bindingKey struct {
	Scope ScopeID
	Name  string
}

type occKey struct {
	File  string
	Range ByteRange
}

// New returns an empty knowledge base.
func New() *Base {
	return &Base{
		modules:         make(map[string]*Module),
		moduleIndex:     make(map[string]ModuleIndex),
		declarations:    make(map[declKey]*Declaration),
		declsByMod:      make(map[ModuleIndex][]declKey),
		imports:         make(map[importKey]*Import),
		importsByMod:    make(map[ModuleIndex][]importKey),
		scopes:          make(map[ScopeID]*Scope),
		scopesByFile:    make(map[string][]ScopeID),
		bindings:        make(map[bindingKey]*Binding),
		bindingsByScope: make(map[ScopeID][]string),
		occurrences:     make(map[occKey]*Occurrence),
		occByFile:       make(map[string][]occKey),
		graph:           NewGraph(),
	}
}

// Stats reports relation sizes for the store's periodic snapshot; it takes
// no lock of its own since callers already run on the analysis thread that
// exclusively owns the Base.
func (b *Base) Stats() (modules, declarations, imports, scopes, occurrences int) {
	return len(b.modules), len(b.declarations), len(b.imports), len(b.scopes), len(b.occurrences)
}

// ModuleIndexFor interns name, assigning it a stable index the first time
// it is seen. Modules referenced only as import targets (not yet parsed)
// get an index too, so the import graph can record the edge before the
// target file is opened.
func (b *Base) ModuleIndexFor(name string) ModuleIndex {
	if idx, ok := b.moduleIndex[name]; ok {
		return idx
	}
	idx := ModuleIndex(len(b.moduleByIdx))
	b.moduleIndex[name] = idx
	b.moduleByIdx = append(b.moduleByIdx, name)
	return idx
}

// ModuleName returns the name interned at idx, or "" if idx is unknown.
func (b *Base) ModuleName(idx ModuleIndex) string {
	if int(idx) < 0 || int(idx) >= len(b.moduleByIdx) {
		return ""
	}
	return b.moduleByIdx[idx]
}

// UpsertModule records or replaces a module's header facts.
func (b *Base) UpsertModule(m Module) ModuleIndex {
	b.modules[m.Name] = &m
	return b.ModuleIndexFor(m.Name)
}

// RemoveFile deletes every row derived from file, ahead of a full
// re-extraction of that file's tree. This is the recomputation
// granularity the analysis thread uses: coarser than per-declaration
// invalidation, but bounded to the one file whose tree the triggering
// TreeEdit touched.
func (b *Base) RemoveFile(file string) {
	for name, mod := range b.modules {
		if mod.File == file {
			idx := b.moduleIndex[name]
			delete(b.modules, name)
			for _, k := range b.declsByMod[idx] {
				delete(b.declarations, k)
			}
			delete(b.declsByMod, idx)
			for _, k := range b.importsByMod[idx] {
				delete(b.imports, k)
			}
			delete(b.importsByMod, idx)
			b.graph.RemoveImporter(idx)
		}
	}
	for _, id := range b.scopesByFile[file] {
		for _, name := range b.bindingsByScope[id] {
			delete(b.bindings, bindingKey{Scope: id, Name: name})
		}
		delete(b.bindingsByScope, id)
		delete(b.scopes, id)
	}
	delete(b.scopesByFile, file)
	for _, k := range b.occByFile[file] {
		delete(b.occurrences, k)
	}
	delete(b.occByFile, file)
}

// AddDeclaration records a top-level or nested declaration.
func (b *Base) AddDeclaration(d Declaration) {
	k := declKey{Module: d.Module, Name: d.Name, Kind: d.Kind}
	b.declarations[k] = &d
	b.declsByMod[d.Module] = append(b.declsByMod[d.Module], k)
}

// AddImport records one import clause and its edge in the import graph.
func (b *Base) AddImport(imp Import) {
	k := importKey{Importing: imp.Importing, Imported: imp.Imported}
	b.imports[k] = &imp
	b.importsByMod[imp.Importing] = append(b.importsByMod[imp.Importing], k)
	b.graph.AddEdge(imp.Importing, b.ModuleIndexFor(imp.Imported))
}

// AddScope creates a new scope nested under parent (-1 for a file's
// top-level scope) and returns its ID.
func (b *Base) AddScope(parent ScopeID, file string, r ByteRange) ScopeID {
	id := b.nextScope
	b.nextScope++
	b.scopes[id] = &Scope{Parent: parent, File: file, Range: r}
	b.scopesByFile[file] = append(b.scopesByFile[file], id)
	return id
}

// AddBinding records a local binding within scope.
func (b *Base) AddBinding(bind Binding) {
	k := bindingKey{Scope: bind.Scope, Name: bind.Name}
	b.bindings[k] = &bind
	b.bindingsByScope[bind.Scope] = append(b.bindingsByScope[bind.Scope], bind.Name)
}

// AddOccurrence records a name occurrence and its resolution.
func (b *Base) AddOccurrence(o Occurrence) {
	k := occKey{File: o.File, Range: o.Range}
	b.occurrences[k] = &o
	b.occByFile[o.File] = append(b.occByFile[o.File], k)
}

// Module looks up a module by name.
func (b *Base) Module(name string) (*Module, bool) {
	m, ok := b.modules[name]
	return m, ok
}

// Declaration looks up a declaration by (module, name, kind).
func (b *Base) Declaration(mod ModuleIndex, name string, kind SymbolKind) (*Declaration, bool) {
	d, ok := b.declarations[declKey{Module: mod, Name: name, Kind: kind}]
	return d, ok
}

// Graph exposes the whole-project import graph.
func (b *Base) Graph() *Graph {
	return b.graph
}

// ImportsOf returns every import clause belonging to mod.
func (b *Base) ImportsOf(mod ModuleIndex) []*Import {
	keys := b.importsByMod[mod]
	out := make([]*Import, 0, len(keys))
	for _, k := range keys {
		if imp, ok := b.imports[k]; ok {
			out = append(out, imp)
		}
	}
	return out
}

// ImportByQualifier finds the import in mod addressed by qualifier,
// matching either its `as`-alias or, absent one, its full module name.
func (b *Base) ImportByQualifier(mod ModuleIndex, qualifier string) *Import {
	for _, imp := range b.ImportsOf(mod) {
		if imp.Alias == qualifier || (imp.Alias == "" && imp.Imported == qualifier) {
			return imp
		}
	}
	return nil
}

// resolve walks scopes outward from the innermost scope containing
// position, then falls through to imports and the file's own module,
// per §4.2's operation contract. It returns (nil, false) when the name
// is unresolved and returns (nil, true) with Ambiguous set when more
// than one visible binding matches.
func (b *Base) resolve(file string, position int, name string) (*Symbol, bool) {
	scope := b.innermostScope(file, position)
	for scope != -1 {
		if _, ok := b.bindings[bindingKey{Scope: scope, Name: name}]; ok {
			return &Symbol{Local: true, Scope: scope, Name: name}, true
		}
		s, ok := b.scopes[scope]
		if !ok {
			break
		}
		scope = s.Parent
	}

	mod, ok := b.moduleForFile(file)
	if !ok {
		return nil, false
	}

	// The module's own declarations take precedence over imports.
	for _, kind := range allSymbolKinds {
		if d, ok := b.Declaration(mod, name, kind); ok {
			return &Symbol{Module: d.Module, Name: d.Name, Kind: d.Kind}, true
		}
	}

	var matches []*Symbol
	for _, k := range b.importsByMod[mod] {
		imp := b.imports[k]
		if !importExposes(imp, name) {
			continue
		}
		impIdx := b.ModuleIndexFor(imp.Imported)
		for _, kind := range allSymbolKinds {
			if d, ok := b.Declaration(impIdx, name, kind); ok {
				matches = append(matches, &Symbol{Module: d.Module, Name: d.Name, Kind: d.Kind})
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, false
	case 1:
		return matches[0], true
	default:
		// Ambiguous: signal via (nil, true) so Resolve distinguishes this
		// from a plain miss.
		return nil, true
	}
}

// Resolve is the exported form of resolve, returning an explicit
// Resolution so callers can distinguish "unresolved" from "ambiguous"
// per invariant (ii).
func (b *Base) Resolve(file string, position int, name string) Resolution {
	sym, ok := b.resolve(file, position, name)
	if !ok {
		return Resolution{Resolved: false}
	}
	if sym == nil {
		return Resolution{Resolved: false, Ambiguous: true}
	}
	if sym.Local {
		return Resolution{Resolved: true, Local: true, InScope: sym.Scope, Declaration: sym.Name}
	}
	return Resolution{Resolved: true, Module: sym.Module, Declaration: sym.Name, Kind: sym.Kind}
}

// FindUsages returns every occurrence in the project resolving to sym,
// for whole-project rename support.
func (b *Base) FindUsages(sym Symbol) []Occurrence {
	var out []Occurrence
	for _, o := range b.occurrences {
		if occurrenceMatches(o, sym) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Range.Start < out[j].Range.Start
	})
	return out
}

func occurrenceMatches(o *Occurrence, sym Symbol) bool {
	if sym.Local {
		return o.ResolvedTo.Resolved && o.ResolvedTo.Local && o.ResolvedTo.InScope == sym.Scope && o.Name == sym.Name
	}
	return o.ResolvedTo.Resolved && !o.ResolvedTo.Local && o.ResolvedTo.Module == sym.Module && o.ResolvedTo.Declaration == sym.Name
}

// VisibleNames returns every name visible at position in file: bindings
// from every enclosing scope, the module's own declarations, and every
// name exposed by its imports. Used to pick non-colliding fresh names.
func (b *Base) VisibleNames(file string, position int) map[string]struct{} {
	names := make(map[string]struct{})
	scope := b.innermostScope(file, position)
	for scope != -1 {
		s, ok := b.scopes[scope]
		if !ok {
			break
		}
		for _, n := range b.bindingsByScope[scope] {
			names[n] = struct{}{}
		}
		scope = s.Parent
	}
	mod, ok := b.moduleForFile(file)
	if !ok {
		return names
	}
	for _, k := range b.declsByMod[mod] {
		names[k.Name] = struct{}{}
	}
	for _, k := range b.importsByMod[mod] {
		imp := b.imports[k]
		impIdx := b.ModuleIndexFor(imp.Imported)
		for _, dk := range b.declsByMod[impIdx] {
			if importExposes(imp, dk.Name) {
				names[dk.Name] = struct{}{}
			}
		}
	}
	return names
}

func (b *Base) moduleForFile(file string) (ModuleIndex, bool) {
	for name, m := range b.modules {
		if m.File == file {
			return b.moduleIndex[name], true
		}
	}
	return 0, false
}

// ModuleForFile is the exported form of moduleForFile, used by the
// refactor engine to find which module a triggering edit's file belongs
// to.
func (b *Base) ModuleForFile(file string) (ModuleIndex, bool) {
	return b.moduleForFile(file)
}

// FilesReferencing returns every file with at least one occurrence named
// name, used by R1 to find candidate rename sites.
func (b *Base) FilesReferencing(name string) []string {
	files := map[string]struct{}{}
	for _, o := range b.occurrences {
		if o.Name == name {
			files[o.File] = struct{}{}
		}
	}
	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// OccurrencesInFile returns every occurrence recorded for file.
func (b *Base) OccurrencesInFile(file string) []Occurrence {
	var out []Occurrence
	for _, k := range b.occByFile[file] {
		if o := b.occurrences[k]; o != nil {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// OccurrencesNamed returns every occurrence in file named name.
func (b *Base) OccurrencesNamed(file, name string) []Occurrence {
	var out []Occurrence
	for _, k := range b.occByFile[file] {
		o := b.occurrences[k]
		if o != nil && o.Name == name {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// innermostScope returns the smallest scope in file containing position,
// or -1 if none does (module-level, outside every recorded scope).
func (b *Base) innermostScope(file string, position int) ScopeID {
	best := ScopeID(-1)
	bestLen := -1
	for _, id := range b.scopesByFile[file] {
		s := b.scopes[id]
		if s.Range.Start <= position && position <= s.Range.End {
			length := s.Range.End - s.Range.Start
			if bestLen == -1 || length < bestLen {
				best = id
				bestLen = length
			}
		}
	}
	return best
}

func importExposes(imp *Import, name string) bool {
	if imp.ExposingMode == ExposingAll {
		return true
	}
	for _, n := range imp.Exposed {
		if n == name {
			return true
		}
	}
	return false
}

var allSymbolKinds = AllSymbolKinds

// AllSymbolKinds enumerates every SymbolKind, in the order resolve tries
// them when a bare name could be a value, type, type alias, constructor,
// or operator.
var AllSymbolKinds = []SymbolKind{SymbolValue, SymbolType, SymbolTypeAlias, SymbolConstructor, SymbolOperator}
