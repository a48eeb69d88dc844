package syntax

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jwoudenberg/elm-pair/internal/rope"
)

// File is a single open or watched Elm source file. It is identified by
// its absolute path and, within one editor session, by an editor-assigned
// 32-bit file id.
//
// Ownership follows the daemon's thread model: the editor listener thread
// owns a File until it hands the resulting TreeEdit to the analysis
// thread, at which point the analysis thread owns it exclusively until
// the next accepted edit for that file id arrives on the listener side.
type File struct {
	Path string
	ID   int32

	Rope *rope.Rope
	Tree *sitter.Tree

	// Revision counts accepted edits, used to detect staleness: a
	// refactor produced in response to edit N is discarded if the
	// revision has advanced past N by the time the gate completes.
	Revision uint64

	// DoNotRefactor is set when the edit that produced the file's
	// current revision carried an undo/redo origin. No recognizer may
	// fire against this revision.
	DoNotRefactor bool
}

// NewFile parses the given initial content and returns a File at
// revision 0.
func NewFile(path string, id int32, content []byte) (*File, error) {
	r := rope.New(content)
	parser := sitter.NewParser()
	parser.SetLanguage(Language())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	return &File{
		Path: path,
		ID:   id,
		Rope: r,
		Tree: tree,
	}, nil
}

// Close releases the tree-sitter resources held by the file.
func (f *File) Close() {
	if f.Tree != nil {
		f.Tree.Close()
		f.Tree = nil
	}
}
