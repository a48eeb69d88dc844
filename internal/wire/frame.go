// Package wire implements the binary, big-endian editor-driver protocol
// described in spec §6.2: a handshake exchanging an editor id, followed by
// length-prefixed frames carrying edits in one direction and refactors,
// open-file, and show-file commands in the other.
//
// Every multibyte integer on the wire is a big-endian signed 32-bit value,
// matching the teacher's own preference for explicit binary.BigEndian
// encode/decode calls (see elves-elvish's store/cmd.go) over a
// self-describing wire format: the protocol has exactly one shape per
// message and doesn't need to.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// EditorID identifies which editor front-end is on the other end of the
// socket, sent once at handshake time.
type EditorID int32

const (
	EditorVSCode EditorID = 0
	EditorNeovim EditorID = 1
)

// ChangeReason distinguishes an ordinary edit from one originating from the
// editor's own undo/redo stack (spec §5's do-not-refactor rule). Zero means
// no reason given (an ordinary edit).
type ChangeReason uint8

const (
	ReasonNone ChangeReason = 0
	ReasonUndo ChangeReason = 1
	ReasonRedo ChangeReason = 2
)

// MsgType tags an editor -> daemon frame body.
type MsgType uint8

const (
	MsgNewFile MsgType = 0
	MsgChange  MsgType = 1
)

// Cmd tags a daemon -> editor frame body.
type Cmd uint8

const (
	CmdRefactor  Cmd = 0
	CmdOpenFiles Cmd = 1
	CmdShowFile  Cmd = 2
)

// Position is a zero-indexed, UTF-8 code-point line/column pair, per §6.2's
// explicit "positions are UTF-8 code-point offsets, not UTF-16 units."
type Position struct {
	Line   int32
	Column int32
}

// Frame is one editor -> daemon message, tagged with the file id the
// editor assigned it at NewFile time (SPEC_FULL's resolved Open Question:
// the file id is assigned by the editor, not the daemon, and echoed on
// every subsequent frame including the new-file frame itself).
type Frame struct {
	FileID int32
	Type   MsgType

	// Populated when Type == MsgNewFile.
	Path    string
	Content []byte

	// Populated when Type == MsgChange.
	Start, End Position
	Text       []byte
	// Reason is 0 for an ordinary edit, 1 for undo, 2 for redo. A Neovim
	// front-end that never supplies the field sends 0; the daemon treats
	// any value outside {1, 2} as "do refactor" rather than special-casing
	// absence (SPEC_FULL §9's resolution of this Open Question).
	Reason ChangeReason
}

// DoNotRefactor reports whether this frame's edit must be excluded from
// recognizer dispatch per spec §5's undo/redo oscillation guard.
func (f Frame) DoNotRefactor() bool {
	return f.Reason == ReasonUndo || f.Reason == ReasonRedo
}

// Edit is one file-scoped text replacement within a refactor command.
type Edit struct {
	Path       string
	Start, End Position
	NewText    string
}

// Command is one daemon -> editor message.
type Command struct {
	Cmd Cmd

	// Populated when Cmd == CmdRefactor.
	Edits []Edit
	// Populated when Cmd == CmdOpenFiles.
	Paths []string
	// Populated when Cmd == CmdShowFile.
	Path string
}

// ReadHandshake reads the 4-byte editor id sent immediately on connect.
func ReadHandshake(r io.Reader) (EditorID, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("wire: reading handshake: %w", err)
	}
	return EditorID(int32(binary.BigEndian.Uint32(buf[:]))), nil
}

// WriteHandshake writes the 4-byte editor id.
func WriteHandshake(w io.Writer, id EditorID) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(int32(id)))
	_, err := w.Write(buf[:])
	return err
}

// Reader decodes editor -> daemon frames from a buffered stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for frame decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) readI32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (r *Reader) readU8() (uint8, error) {
	b, err := r.r.ReadByte()
	return b, err
}

func (r *Reader) readString() (string, error) {
	n, err := r.readI32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("wire: negative length prefix %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *Reader) readBytes() ([]byte, error) {
	n, err := r.readI32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("wire: negative length prefix %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFrame decodes the next frame, or returns io.EOF when the stream ends
// cleanly between frames.
func (r *Reader) ReadFrame() (Frame, error) {
	fileID, err := r.readI32()
	if err != nil {
		return Frame{}, err
	}
	msgTypeByte, err := r.readU8()
	if err != nil {
		return Frame{}, fmt.Errorf("wire: reading msg-type: %w", err)
	}

	f := Frame{FileID: fileID, Type: MsgType(msgTypeByte)}
	switch f.Type {
	case MsgNewFile:
		path, err := r.readString()
		if err != nil {
			return Frame{}, fmt.Errorf("wire: reading new-file path: %w", err)
		}
		content, err := r.readBytes()
		if err != nil {
			return Frame{}, fmt.Errorf("wire: reading new-file content: %w", err)
		}
		f.Path = path
		f.Content = content

	case MsgChange:
		reason, err := r.readU8()
		if err != nil {
			return Frame{}, fmt.Errorf("wire: reading reason: %w", err)
		}
		startLine, err := r.readI32()
		if err != nil {
			return Frame{}, err
		}
		startCol, err := r.readI32()
		if err != nil {
			return Frame{}, err
		}
		endLine, err := r.readI32()
		if err != nil {
			return Frame{}, err
		}
		endCol, err := r.readI32()
		if err != nil {
			return Frame{}, err
		}
		text, err := r.readBytes()
		if err != nil {
			return Frame{}, fmt.Errorf("wire: reading change text: %w", err)
		}
		f.Reason = ChangeReason(reason)
		f.Start = Position{Line: startLine, Column: startCol}
		f.End = Position{Line: endLine, Column: endCol}
		f.Text = text

	default:
		return Frame{}, fmt.Errorf("wire: unknown msg-type %d", msgTypeByte)
	}
	return f, nil
}

// ReadCommand decodes one daemon -> editor command. Production editor code
// (out of scope) would call this; the daemon-side test suite uses it to
// verify WriteCommand's output round-trips.
func (r *Reader) ReadCommand() (Command, error) {
	tag, err := r.readU8()
	if err != nil {
		return Command{}, err
	}
	c := Command{Cmd: Cmd(tag)}
	switch c.Cmd {
	case CmdRefactor:
		n, err := r.readI32()
		if err != nil {
			return Command{}, err
		}
		c.Edits = make([]Edit, 0, n)
		for i := int32(0); i < n; i++ {
			path, err := r.readString()
			if err != nil {
				return Command{}, err
			}
			startLine, err := r.readI32()
			if err != nil {
				return Command{}, err
			}
			startCol, err := r.readI32()
			if err != nil {
				return Command{}, err
			}
			endLine, err := r.readI32()
			if err != nil {
				return Command{}, err
			}
			endCol, err := r.readI32()
			if err != nil {
				return Command{}, err
			}
			newText, err := r.readString()
			if err != nil {
				return Command{}, err
			}
			c.Edits = append(c.Edits, Edit{
				Path:    path,
				Start:   Position{Line: startLine, Column: startCol},
				End:     Position{Line: endLine, Column: endCol},
				NewText: newText,
			})
		}

	case CmdOpenFiles:
		n, err := r.readI32()
		if err != nil {
			return Command{}, err
		}
		c.Paths = make([]string, 0, n)
		for i := int32(0); i < n; i++ {
			p, err := r.readString()
			if err != nil {
				return Command{}, err
			}
			c.Paths = append(c.Paths, p)
		}

	case CmdShowFile:
		p, err := r.readString()
		if err != nil {
			return Command{}, err
		}
		c.Path = p

	default:
		return Command{}, fmt.Errorf("wire: unknown cmd %d", tag)
	}
	return c, nil
}

// Writer encodes daemon -> editor commands to a stream. The caller is
// responsible for serializing writes across goroutines (spec §5's
// socket-write mutex); Writer itself does no locking.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for command encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeI32(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *Writer) writeU8(v uint8) error {
	_, err := w.w.Write([]byte{v})
	return err
}

func (w *Writer) writeString(s string) error {
	if err := w.writeI32(int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, s)
	return err
}

// WriteFrame encodes one editor -> daemon frame. Production code never
// calls this (the daemon only reads frames) but tests use it to build
// round-trip fixtures without hand-assembling bytes.
func (w *Writer) WriteFrame(f Frame) error {
	if err := w.writeI32(f.FileID); err != nil {
		return err
	}
	if err := w.writeU8(uint8(f.Type)); err != nil {
		return err
	}
	switch f.Type {
	case MsgNewFile:
		if err := w.writeString(f.Path); err != nil {
			return err
		}
		if err := w.writeI32(int32(len(f.Content))); err != nil {
			return err
		}
		_, err := w.w.Write(f.Content)
		return err

	case MsgChange:
		if err := w.writeU8(uint8(f.Reason)); err != nil {
			return err
		}
		if err := w.writeI32(f.Start.Line); err != nil {
			return err
		}
		if err := w.writeI32(f.Start.Column); err != nil {
			return err
		}
		if err := w.writeI32(f.End.Line); err != nil {
			return err
		}
		if err := w.writeI32(f.End.Column); err != nil {
			return err
		}
		if err := w.writeI32(int32(len(f.Text))); err != nil {
			return err
		}
		_, err := w.w.Write(f.Text)
		return err

	default:
		return fmt.Errorf("wire: unknown msg-type %d", f.Type)
	}
}

// WriteCommand encodes and writes one daemon -> editor command.
func (w *Writer) WriteCommand(c Command) error {
	if err := w.writeU8(uint8(c.Cmd)); err != nil {
		return fmt.Errorf("wire: writing cmd tag: %w", err)
	}
	switch c.Cmd {
	case CmdRefactor:
		if err := w.writeI32(int32(len(c.Edits))); err != nil {
			return err
		}
		for _, e := range c.Edits {
			if err := w.writeString(e.Path); err != nil {
				return err
			}
			if err := w.writeI32(e.Start.Line); err != nil {
				return err
			}
			if err := w.writeI32(e.Start.Column); err != nil {
				return err
			}
			if err := w.writeI32(e.End.Line); err != nil {
				return err
			}
			if err := w.writeI32(e.End.Column); err != nil {
				return err
			}
			if err := w.writeString(e.NewText); err != nil {
				return err
			}
		}

	case CmdOpenFiles:
		if err := w.writeI32(int32(len(c.Paths))); err != nil {
			return err
		}
		for _, p := range c.Paths {
			if err := w.writeString(p); err != nil {
				return err
			}
		}

	case CmdShowFile:
		if err := w.writeString(c.Path); err != nil {
			return err
		}

	default:
		return fmt.Errorf("wire: unknown cmd %d", c.Cmd)
	}
	return nil
}
