package syntax

// ByteRange is a half-open [Start, End) byte span.
type ByteRange struct {
	Start int
	End   int
}

// Len returns the number of bytes the range spans.
func (r ByteRange) Len() int {
	return r.End - r.Start
}

// TreeEdit is the structural counterpart of a byte-level editor edit: the
// smallest pair of syntax nodes, one from the tree before the edit and one
// from the tree after, whose textual content differs. Exactly one
// TreeEdit is produced per accepted editor change.
type TreeEdit struct {
	File int32

	OldRange ByteRange
	NewRange ByteRange
	OldText  []byte
	NewText  []byte

	OldNodeKind string
	NewNodeKind string

	// DoNotRefactor mirrors File.DoNotRefactor at the time this edit was
	// produced: an undo/redo-origin edit that must not reach a
	// recognizer.
	DoNotRefactor bool

	// Revision is File.Revision after this edit was applied, used by the
	// gate's staleness check.
	Revision uint64
}

// IsError reports whether the reparse produced an error node at the
// edit's position, meaning the grammar rejected the surrounding text.
func (e TreeEdit) IsError() bool {
	return e.NewNodeKind == "ERROR"
}
