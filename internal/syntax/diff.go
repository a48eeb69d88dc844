package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// diffNodeKinds walks the old and new trees in parallel, descending into
// corresponding children while kinds and byte spans still line up, and
// returns the kinds of the smallest enclosing node pair whose text
// differs. When the edited region spans multiple sibling nodes on either
// side, the walk stops at their common ancestor, per §4.1's diff
// algorithm.
func diffNodeKinds(oldTree, newTree *sitter.Tree, oldRange, newRange ByteRange) (oldKind, newKind string) {
	if newTree == nil {
		return "", ""
	}
	newOriginal := smallestEnclosing(newTree.RootNode(), newRange)
	newNode := newOriginal
	newKind = safeType(newNode)

	if oldTree == nil {
		return "", newKind
	}
	oldNode := smallestEnclosing(oldTree.RootNode(), oldRange)
	oldKind = safeType(oldNode)

	// Walk both nodes upward together while their children no longer
	// correspond 1:1 in kind and count, so the reported pair is the
	// smallest ancestor pair whose shape actually still matches on both
	// sides of the edit. The climb stops at the root on either side.
	for oldNode != nil && newNode != nil && !nodesCorrespond(oldNode, newNode) {
		if oldNode.Parent() == nil || newNode.Parent() == nil {
			break
		}
		oldNode = oldNode.Parent()
		newNode = newNode.Parent()
		oldKind = safeType(oldNode)
		newKind = safeType(newNode)
	}

	// §7's error table carves out one exception to reporting a malformed
	// edit as "ERROR": an edit positioned inside an exposing_list, which
	// R4/R5 must still see through to recognize a partial or malformed
	// exposing-list edit. Search from newOriginal (the node found before
	// the correspondence climb, which may already have passed an
	// exposing_list ancestor on its way up) rather than the post-climb
	// newNode.
	if newNode != nil && (newNode.HasError() || newNode.IsError()) {
		if enclosing := enclosingExposingList(newOriginal); enclosing != nil {
			newKind = "exposing_list"
		} else {
			newKind = "ERROR"
		}
	}
	return oldKind, newKind
}

// enclosingExposingList walks n's ancestors looking for an exposing_list
// node, stopping (and reporting no match) as soon as it reaches an
// import_clause or module_declaration boundary it hasn't found one
// within.
func enclosingExposingList(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "exposing_list":
			return n
		case "import_clause", "module_declaration":
			return nil
		}
		n = n.Parent()
	}
	return nil
}

// smallestEnclosing returns the smallest node in tree fully containing
// byte range r, descending into named children whenever exactly one
// child's span covers the whole range.
func smallestEnclosing(node *sitter.Node, r ByteRange) *sitter.Node {
	if node == nil {
		return nil
	}
	for {
		child := coveringChild(node, r)
		if child == nil {
			return node
		}
		node = child
	}
}

// coveringChild returns the single child of node whose span fully covers
// r, or nil if no single child does (meaning node itself is the smallest
// enclosing node, or r spans multiple children).
func coveringChild(node *sitter.Node, r ByteRange) *sitter.Node {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		start, end := int(child.StartByte()), int(child.EndByte())
		if start <= r.Start && r.End <= end && !(r.Start == r.End && start == end && start == r.Start) {
			return child
		}
		// Degenerate zero-width inserts: prefer a child whose start
		// equals the insertion point over stopping at the parent.
		if r.Start == r.End && start == r.Start && end >= r.Start {
			return child
		}
	}
	return nil
}

// nodesCorrespond reports whether two nodes from different tree
// generations plausibly represent "the same" syntactic position: same
// kind and same count of named children. It is a heuristic, not an exact
// unchanged-subtree check; exactness is unnecessary because the caller
// only uses it to decide when to stop climbing toward the root.
func nodesCorrespond(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && a.NamedChildCount() == b.NamedChildCount()
}

func safeType(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Type()
}
