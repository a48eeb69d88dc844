package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser performs incremental reparses for a single file, mirroring the
// tree-sitter query/cursor usage in the teacher's internal/matcher.Matcher
// but generalized from "parse once and query" to "reparse using the prior
// tree as an edit hint and diff the result."
type Parser struct {
	sitter *sitter.Parser
}

// NewParser returns a Parser configured with the Elm grammar.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(Language())
	return &Parser{sitter: p}
}

// ApplyEdit mutates f's rope with the given byte-range replacement,
// reparses incrementally, and returns the resulting TreeEdit. Ownership
// of f's rope and tree is the caller's for the duration of this call; per
// the daemon's thread model this is invoked only by the editor listener
// thread, before handing the returned TreeEdit (and the file) off to the
// analysis thread.
func (p *Parser) ApplyEdit(f *File, oldRange ByteRange, newText []byte, undoRedo bool) (*TreeEdit, error) {
	startLine, startCol, err := f.Rope.ByteToLineCol(oldRange.Start)
	if err != nil {
		return nil, fmt.Errorf("syntax: locating edit start: %w", err)
	}
	oldEndLine, oldEndCol, err := f.Rope.ByteToLineCol(oldRange.End)
	if err != nil {
		return nil, fmt.Errorf("syntax: locating edit end: %w", err)
	}

	oldTree := f.Tree

	oldText, err := f.Rope.Slice(oldRange.Start, oldRange.End)
	if err != nil {
		return nil, fmt.Errorf("syntax: reading replaced text: %w", err)
	}

	if err := f.Rope.Splice(oldRange.Start, oldRange.End, newText); err != nil {
		return nil, fmt.Errorf("syntax: splicing rope: %w", err)
	}
	newEndOffset := oldRange.Start + len(newText)
	newEndLine, newEndCol, err := f.Rope.ByteToLineCol(newEndOffset)
	if err != nil {
		return nil, fmt.Errorf("syntax: locating new edit end: %w", err)
	}

	if oldTree != nil {
		oldTree.Edit(sitter.EditInput{
			StartIndex:  uint32(oldRange.Start),
			OldEndIndex: uint32(oldRange.End),
			NewEndIndex: uint32(newEndOffset),
			StartPoint:  sitter.Point{Row: uint32(startLine), Column: uint32(startCol)},
			OldEndPoint: sitter.Point{Row: uint32(oldEndLine), Column: uint32(oldEndCol)},
			NewEndPoint: sitter.Point{Row: uint32(newEndLine), Column: uint32(newEndCol)},
		})
	}

	newTree, err := p.sitter.ParseCtx(context.Background(), oldTree, f.Rope.Bytes())
	if err != nil {
		return nil, fmt.Errorf("syntax: reparsing: %w", err)
	}

	newRange := ByteRange{Start: oldRange.Start, End: newEndOffset}
	oldKind, newKind := diffNodeKinds(oldTree, newTree, oldRange, newRange)

	f.Revision++
	f.DoNotRefactor = undoRedo
	if oldTree != nil && oldTree != newTree {
		oldTree.Close()
	}
	f.Tree = newTree

	return &TreeEdit{
		File:          f.ID,
		OldRange:      oldRange,
		NewRange:      newRange,
		OldText:       oldText,
		NewText:       newText,
		OldNodeKind:   oldKind,
		NewNodeKind:   newKind,
		DoNotRefactor: undoRedo,
		Revision:      f.Revision,
	}, nil
}
