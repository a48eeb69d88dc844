package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/wire"
)

func TestHandshakeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteHandshake(&buf, wire.EditorNeovim))

	got, err := wire.ReadHandshake(&buf)
	require.NoError(t, err)
	assert.Equal(t, wire.EditorNeovim, got)
}

func TestNewFileFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	frame := wire.Frame{FileID: 7, Type: wire.MsgNewFile, Path: "src/Main.elm", Content: []byte("module Main exposing (main)\n")}
	require.NoError(t, w.WriteFrame(frame))

	r := wire.NewReader(&buf)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestChangeFrameRoundTripsWithUndoReason(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	frame := wire.Frame{
		FileID: 3,
		Type:   wire.MsgChange,
		Start:  wire.Position{Line: 2, Column: 4},
		End:    wire.Position{Line: 2, Column: 9},
		Text:   []byte("hello"),
		Reason: wire.ReasonUndo,
	}
	require.NoError(t, w.WriteFrame(frame))

	r := wire.NewReader(&buf)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
	assert.True(t, got.DoNotRefactor())
}

func TestChangeFrameWithZeroReasonAllowsRefactor(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	frame := wire.Frame{FileID: 1, Type: wire.MsgChange, Text: []byte("x")}
	require.NoError(t, w.WriteFrame(frame))

	r := wire.NewReader(&buf)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.False(t, got.DoNotRefactor())
}

func TestRefactorCommandRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	cmd := wire.Command{
		Cmd: wire.CmdRefactor,
		Edits: []wire.Edit{
			{Path: "Main.elm", Start: wire.Position{Line: 1, Column: 0}, End: wire.Position{Line: 1, Column: 3}, NewText: "inc"},
			{Path: "Helper.elm", Start: wire.Position{Line: 5, Column: 2}, End: wire.Position{Line: 5, Column: 2}, NewText: ""},
		},
	}
	require.NoError(t, w.WriteCommand(cmd))

	r := wire.NewReader(&buf)
	got, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}

func TestOpenFilesCommandRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	cmd := wire.Command{Cmd: wire.CmdOpenFiles, Paths: []string{"A.elm", "B.elm"}}
	require.NoError(t, w.WriteCommand(cmd))

	r := wire.NewReader(&buf)
	got, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}

func TestShowFileCommandRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	cmd := wire.Command{Cmd: wire.CmdShowFile, Path: "Main.elm"}
	require.NoError(t, w.WriteCommand(cmd))

	r := wire.NewReader(&buf)
	got, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}

func TestReadFrameRejectsUnknownMsgType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1, 9}) // file-id=1, msg-type=9 (invalid)

	r := wire.NewReader(&buf)
	_, err := r.ReadFrame()
	assert.Error(t, err)
}
