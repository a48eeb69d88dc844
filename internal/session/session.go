// Package session implements the per-editor connection lifecycle: the
// editor listener, analysis, and compilation threads described in spec §5,
// wired together with bounded channels and the ordering/cancellation rules
// those three threads must jointly uphold.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/jwoudenberg/elm-pair/internal/gate"
	"github.com/jwoudenberg/elm-pair/internal/kb"
	"github.com/jwoudenberg/elm-pair/internal/project"
	"github.com/jwoudenberg/elm-pair/internal/refactor"
	"github.com/jwoudenberg/elm-pair/internal/store"
	"github.com/jwoudenberg/elm-pair/internal/syntax"
	"github.com/jwoudenberg/elm-pair/internal/telemetry"
	"github.com/jwoudenberg/elm-pair/internal/wire"
)

// editChannelBuffer bounds the editor-listener -> analysis channel,
// mirroring the teacher's DocWatcher.eventChannelBuffer sizing idiom
// (buffer generously, count drops rather than blocking the producer
// indefinitely) though here the producer is a single socket reader that
// we do want to apply backpressure to, so the bound is small.
const editChannelBuffer = 32

// pendingEdit is what the editor listener thread hands to the analysis
// thread: the structural edit plus enough context to run recognizers and,
// if one fires, the gate.
type pendingEdit struct {
	edit      syntax.TreeEdit
	file      *syntax.File
	isNewFile bool
}

// Session owns one editor connection's full three-thread pipeline.
type Session struct {
	id       string
	editorID wire.EditorID
	conn     net.Conn
	logger   *slog.Logger

	writeMu sync.Mutex // guards conn writes from both analysis and listener threads

	base   *kb.Base
	parser *syntax.Parser
	extr   *kb.Extractor

	files   map[int32]*syntax.File
	filesMu sync.Mutex // editor listener owns files map entries until handoff
	// externalFileSeq assigns negative, ever-decreasing ids to files this
	// session learns about from the project watcher rather than from the
	// editor. Per §6.2 the editor assigns file ids for files it opens, so
	// watcher-discovered files are kept in a disjoint id space to rule out
	// any collision with an id the editor assigns later.
	externalFileSeq int32

	toAnalysis chan pendingEdit
	gate       *gate.Gate
	projectDir string
	peerUID    uint32
	store      *store.Store
	metrics    *telemetry.Metrics

	done chan struct{}
	wg   sync.WaitGroup

	// revisionAtStart records, per file, the revision the file had
	// when the currently-running gate check began, so a later edit can be
	// detected as making an in-flight refactor stale (§5's "no later edit
	// to the same file has been observed since the gate completed").
	mu              sync.Mutex
	revisionAtStart map[int32]uint64
}

// New builds a Session bound to an accepted connection. base and extr are
// shared with nothing else; ownership rules mean a Session must not be
// constructed twice against the same *kb.Base.
func New(id string, conn net.Conn, editorID wire.EditorID, projectDir string, g *gate.Gate, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	extr, err := kb.NewExtractor()
	if err != nil {
		logger.Error("session: failed to compile knowledge-base queries", "error", err)
	}
	return &Session{
		id:              id,
		editorID:        editorID,
		conn:            conn,
		logger:          logger.With("session_id", id),
		base:            kb.New(),
		parser:          syntax.NewParser(),
		extr:            extr,
		files:           make(map[int32]*syntax.File),
		toAnalysis:      make(chan pendingEdit, editChannelBuffer),
		gate:            g,
		projectDir:      projectDir,
		done:            make(chan struct{}),
		revisionAtStart: make(map[int32]uint64),
	}
}

// WithStore attaches the durable write-behind shadow described by
// [EXPANSION] Persistence, recording this session's start immediately.
// PeerUID is the SO_PEERCRED-authenticated caller's uid, for the store's
// SessionRecord.
func (s *Session) WithStore(st *store.Store, peerUID uint32) *Session {
	s.store = st
	s.peerUID = peerUID
	if st != nil {
		st.RecordSessionStart(s.id, int(s.editorID), s.projectDir, peerUID)
	}
	return s
}

// WithMetrics attaches the Prometheus collectors described in
// [[internal/telemetry]], incrementing the active-sessions gauge
// immediately; Close decrements it.
func (s *Session) WithMetrics(m *telemetry.Metrics) *Session {
	s.metrics = m
	if m != nil {
		m.ActiveSessions.Inc()
	}
	return s
}

// Run starts the editor listener and analysis threads and blocks until the
// connection closes or ctx is cancelled. The compilation thread is
// represented by gate.Debouncer, started internally.
func (s *Session) Run(ctx context.Context) error {
	debouncer := gate.NewDebouncer(s.gate)
	defer debouncer.Stop()

	s.wg.Add(1)
	go s.analysisLoop(ctx, debouncer)

	err := s.listenerLoop(ctx)
	close(s.toAnalysis)
	s.wg.Wait()
	return err
}

// listenerLoop is the editor listener thread: owns the socket read half
// and per-file ropes, blocks on socket reads, never touches the knowledge
// base directly (spec §5, thread 1).
func (s *Session) listenerLoop(ctx context.Context) error {
	r := wire.NewReader(s.conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		frame, err := r.ReadFrame()
		if err != nil {
			s.logger.Warn("session: protocol framing error, closing session", "error", err)
			return fmt.Errorf("session: reading frame: %w", err)
		}

		if err := s.handleFrame(frame); err != nil {
			s.logger.Warn("session: dropping malformed frame", "error", err, "file_id", frame.FileID)
			continue
		}
	}
}

func (s *Session) handleFrame(frame wire.Frame) error {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	switch frame.Type {
	case wire.MsgNewFile:
		f, err := syntax.NewFile(frame.Path, frame.FileID, frame.Content)
		if err != nil {
			return fmt.Errorf("session: parsing new file %s: %w", frame.Path, err)
		}
		s.files[frame.FileID] = f
		s.enqueue(pendingEdit{file: f, isNewFile: true})
		return nil

	case wire.MsgChange:
		f, ok := s.files[frame.FileID]
		if !ok {
			return fmt.Errorf("session: change frame for unknown file id %d", frame.FileID)
		}
		startByte, err := f.Rope.LineColToByte(int(frame.Start.Line), int(frame.Start.Column))
		if err != nil {
			return fmt.Errorf("session: locating change start: %w", err)
		}
		endByte, err := f.Rope.LineColToByte(int(frame.End.Line), int(frame.End.Column))
		if err != nil {
			return fmt.Errorf("session: locating change end: %w", err)
		}
		treeEdit, err := s.parser.ApplyEdit(f, syntax.ByteRange{Start: startByte, End: endByte}, frame.Text, frame.DoNotRefactor())
		if err != nil {
			return fmt.Errorf("session: applying edit: %w", err)
		}
		s.enqueue(pendingEdit{edit: *treeEdit, file: f})
		return nil

	default:
		return fmt.Errorf("session: unknown msg-type %d", frame.Type)
	}
}

// HandleExternalChange incorporates one filesystem change the project
// watcher observed outside this session's own editor connection into the
// same analysis pipeline an editor-driven edit travels through (spec
// §6.3's "delivered into the knowledge base the same way as an editor
// edit"). It mirrors handleFrame's MsgNewFile/MsgChange cases, the
// difference being that a watcher event carries only a path and a kind,
// not a byte range or replacement text, so a change is always applied as
// a whole-file replacement.
func (s *Session) HandleExternalChange(change project.Change) {
	if change.Kind == project.ChangeDelete {
		s.forgetExternalFile(change.Path)
		return
	}

	content, err := os.ReadFile(change.Path)
	if err != nil {
		s.logger.Debug("session: failed to read externally changed file", "path", change.Path, "error", err)
		return
	}

	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	f := s.fileByPath(change.Path)
	if f == nil {
		id := s.nextExternalFileID()
		newFile, err := syntax.NewFile(change.Path, id, content)
		if err != nil {
			s.logger.Debug("session: failed to parse externally created file", "path", change.Path, "error", err)
			return
		}
		s.files[id] = newFile
		s.enqueue(pendingEdit{file: newFile, isNewFile: true})
		return
	}

	oldRange := syntax.ByteRange{Start: 0, End: len(f.Rope.Bytes())}
	treeEdit, err := s.parser.ApplyEdit(f, oldRange, content, false)
	if err != nil {
		s.logger.Debug("session: failed to apply externally changed file", "path", change.Path, "error", err)
		return
	}
	s.enqueue(pendingEdit{edit: *treeEdit, file: f})
}

// forgetExternalFile drops a deleted file from this session's open-file
// set. There is no TreeEdit to dispatch for a deletion -- recognizers
// operate on parse trees, not on the absence of one -- so the knowledge
// base simply stops hearing about the file's contents from here on.
func (s *Session) forgetExternalFile(path string) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	f := s.fileByPath(path)
	if f == nil {
		return
	}
	delete(s.files, f.ID)
	f.Close()
}

// nextExternalFileID hands out the next id in the negative id space
// reserved for watcher-discovered files. Callers must hold filesMu.
func (s *Session) nextExternalFileID() int32 {
	s.externalFileSeq--
	return s.externalFileSeq
}

// enqueue hands a TreeEdit to the analysis thread. Per §5, edits from a
// single buffer must be processed in submission order; the buffered
// channel plus a single analysis goroutine guarantees this without a
// separate per-file queue.
func (s *Session) enqueue(pe pendingEdit) {
	select {
	case s.toAnalysis <- pe:
	case <-s.done:
	}
}

// analysisLoop is the analysis thread: owns the knowledge base and parse
// trees, single-threaded cooperative processing of TreeEdits (spec §5,
// thread 2). For each edit it runs KB update -> recognizer dispatch ->
// (if recognized) gate -> emit-or-discard.
func (s *Session) analysisLoop(ctx context.Context, debouncer *gate.Debouncer) {
	defer s.wg.Done()
	for pe := range s.toAnalysis {
		if s.extr != nil {
			s.extr.Recompute(s.base, pe.file)
			if s.store != nil {
				modules, decls, imports, scopes, occs := s.base.Stats()
				s.store.SnapshotKB(s.id, modules, decls, imports, scopes, occs)
			}
		}
		if pe.isNewFile {
			// The new-file bootstrap edit carries no TreeEdit to dispatch.
			continue
		}
		if pe.edit.DoNotRefactor {
			s.logger.Debug("session: skipping recognizer dispatch for undo/redo edit", "file", pe.file.Path)
			continue
		}
		s.dispatch(ctx, pe, debouncer)
	}
}

func (s *Session) dispatch(ctx context.Context, pe pendingEdit, debouncer *gate.Debouncer) {
	result := refactor.Dispatch(refactor.Context{Edit: pe.edit, File: pe.file, Base: s.base})
	if result == nil || result.State == refactor.Unrecognized {
		return
	}
	if result.State == refactor.Discarded {
		s.logger.Debug("session: recognizer declined", "recognizer", result.Recognizer, "reason", result.Reason)
		s.recordRefactor(result, pe.file.Path, "")
		return
	}
	if result.Event != nil {
		// R8-style structural events: nothing to gate or emit as text.
		if s.store != nil {
			moduleName := s.base.ModuleName(result.Event.Module)
			s.store.RecordStructuralEvent(s.id, result.Event, moduleName)
		}
		return
	}
	if len(result.Edits) == 0 {
		return
	}

	s.recordRevisionAtGateStart(pe.file)

	preEdit := s.captureView()
	postRefactor := s.applyToView(preEdit, result.Edits)

	decision := make(chan gate.Decision, 1)
	gateStart := time.Now()
	debouncer.Submit(ctx, gate.Candidate{
		Seq:          pe.edit.Revision,
		PreEdit:      preEdit,
		PostRefactor: postRefactor,
		Result:       decision,
	})

	select {
	case d := <-decision:
		if s.metrics != nil && !d.Superseded {
			s.metrics.ObserveGateLatency(d.Outcome.String(), time.Since(gateStart).Seconds())
		}
		if d.Superseded {
			s.logger.Debug("session: refactor superseded by a later edit before gating", "recognizer", result.Recognizer)
			result.State = refactor.Discarded
			result.Reason = refactor.DiscardStale
			s.recordRefactor(result, pe.file.Path, "")
			return
		}
		if d.Err != nil {
			s.logger.Warn("session: compiler invocation failure, treating as gate rejection", "error", d.Err)
			result.State = refactor.Discarded
			result.Reason = refactor.DiscardGateFailed
			s.recordRefactor(result, pe.file.Path, "")
			return
		}
		if d.Outcome != gate.Pass {
			s.logger.Debug("session: gate rejected refactor", "recognizer", result.Recognizer)
			result.State = refactor.Discarded
			result.Reason = refactor.DiscardGateFailed
			s.recordRefactor(result, pe.file.Path, "")
			return
		}
		if s.isStale(pe.file) {
			s.logger.Debug("session: discarding stale refactor", "recognizer", result.Recognizer, "file", pe.file.Path)
			result.State = refactor.Discarded
			result.Reason = refactor.DiscardStale
			s.recordRefactor(result, pe.file.Path, "")
			return
		}
		result.State = refactor.Emitted
		s.emit(result.Edits)
		s.recordRefactor(result, pe.file.Path, unifiedDiff(pe.file.Path, preEdit, postRefactor))
	case <-ctx.Done():
		result.State = refactor.Discarded
		result.Reason = refactor.DiscardCancelled
		s.recordRefactor(result, pe.file.Path, "")
	case <-s.done:
		result.State = refactor.Discarded
		result.Reason = refactor.DiscardCancelled
		s.recordRefactor(result, pe.file.Path, "")
	}
}

// unifiedDiff renders the trigger file's before/after content as a unified
// diff for the audit trail, grounded on providers/base/provider.go's use
// of difflib.UnifiedDiff to preview a transformation.
func unifiedDiff(path string, preEdit, postRefactor gate.View) string {
	before, after := preEdit.Files[path], postRefactor.Files[path]
	if bytes.Equal(before, after) {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// recordRefactor persists a refactor's terminal outcome and updates its
// counters, a no-op for whichever of store/metrics is not attached. diff is
// the unified diff of the trigger file, empty for a Discarded refactor.
func (s *Session) recordRefactor(r *refactor.Refactor, triggerFile, diff string) {
	if s.metrics != nil {
		s.metrics.ObserveRefactor(r.Recognizer, r.State.String(), r.Reason.String())
	}
	if s.store == nil {
		return
	}
	s.store.RecordRefactor(s.id, uuid.NewString(), r, triggerFile, diff)
}

func (s *Session) recordRevisionAtGateStart(f *syntax.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisionAtStart[f.ID] = f.Revision
}

// isStale implements §5's "a refactor produced in response to edit e is
// emitted only if no later edit to the same file has been observed since
// the gate completed" rule.
func (s *Session) isStale(f *syntax.File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.Revision != s.revisionAtStart[f.ID]
}

// captureView builds the pre-edit virtual file set from every open file's
// current rope contents.
func (s *Session) captureView() gate.View {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	files := make(map[string][]byte, len(s.files))
	for _, f := range s.files {
		files[f.Path] = f.Rope.Bytes()
	}
	return gate.View{ProjectRoot: s.projectDir, Files: files}
}

// applyToView overlays a refactor's edits on top of a captured view,
// producing the post-refactor virtual file set the gate compiles.
func (s *Session) applyToView(base gate.View, edits []refactor.Edit) gate.View {
	out := make(map[string][]byte, len(base.Files))
	for path, content := range base.Files {
		out[path] = content
	}
	byFile := make(map[string][]refactor.Edit)
	for _, e := range edits {
		byFile[e.File] = append(byFile[e.File], e)
	}
	for path, fileEdits := range byFile {
		content, ok := out[path]
		if !ok {
			continue
		}
		out[path] = applyEdits(content, fileEdits)
	}
	return gate.View{ProjectRoot: base.ProjectRoot, Files: out}
}

// applyEdits applies a set of non-overlapping byte-range replacements to
// content, highest offset first so earlier ranges stay valid.
func applyEdits(content []byte, edits []refactor.Edit) []byte {
	sorted := make([]refactor.Edit, len(edits))
	copy(sorted, edits)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Range.Start > sorted[j-1].Range.Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := append([]byte(nil), content...)
	for _, e := range sorted {
		if e.Range.Start < 0 || e.Range.End > len(out) || e.Range.Start > e.Range.End {
			continue
		}
		var buf []byte
		buf = append(buf, out[:e.Range.Start]...)
		buf = append(buf, []byte(e.NewText)...)
		buf = append(buf, out[e.Range.End:]...)
		out = buf
	}
	return out
}

// emit sends a refactor command to the editor, holding the write mutex for
// the duration of the write (spec §5's socket-write mutex, shared with the
// listener thread which never writes but is documented here for clarity).
func (s *Session) emit(edits []refactor.Edit) {
	cmd := wire.Command{Cmd: wire.CmdRefactor}
	s.filesMu.Lock()
	for _, e := range edits {
		f := s.fileByPath(e.File)
		if f == nil {
			continue
		}
		startLine, startCol, err := f.Rope.ByteToLineCol(e.Range.Start)
		if err != nil {
			continue
		}
		endLine, endCol, err := f.Rope.ByteToLineCol(e.Range.End)
		if err != nil {
			continue
		}
		cmd.Edits = append(cmd.Edits, wire.Edit{
			Path:    e.File,
			Start:   wire.Position{Line: int32(startLine), Column: int32(startCol)},
			End:     wire.Position{Line: int32(endLine), Column: int32(endCol)},
			NewText: e.NewText,
		})
	}
	s.filesMu.Unlock()
	if len(cmd.Edits) == 0 {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	w := wire.NewWriter(s.conn)
	if err := w.WriteCommand(cmd); err != nil {
		s.logger.Warn("session: failed to write refactor command", "error", err)
	}
}

// fileByPath finds an open file by path. Callers must hold filesMu.
func (s *Session) fileByPath(path string) *syntax.File {
	for _, f := range s.files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Close ends the session, cancelling in-flight work (§5's "session ends"
// cancellation trigger).
func (s *Session) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.store != nil {
		s.store.RecordSessionEnd(s.id)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	_ = s.conn.Close()
	s.filesMu.Lock()
	for _, f := range s.files {
		f.Close()
	}
	s.filesMu.Unlock()
}
