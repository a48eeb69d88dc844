// Package syntax wraps a tree-sitter grammar for Elm behind the same
// incremental-parse contract the teacher's per-language providers expose,
// generalized from "run one query against a fresh parse" to "keep a tree
// alive across edits and diff it against its predecessor."
package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
	elmsitter "github.com/smacker/go-tree-sitter/elm"
)

// Language returns the tree-sitter grammar used to parse Elm source. It is
// the daemon's only supported grammar; unlike the teacher's multi-language
// provider registry, there is nothing to register or resolve by extension.
func Language() *sitter.Language {
	return elmsitter.GetLanguage()
}
