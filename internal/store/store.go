package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jwoudenberg/elm-pair/internal/refactor"
)

// queueDepth bounds the write-behind queue; a burst larger than this drops
// the newly submitted writes rather than let a slow disk apply backpressure
// to the analysis thread, mirroring the same non-blocking discipline
// internal/project.Watcher applies to its own event channel.
const queueDepth = 256

// job is one deferred write. Store's background goroutine is the only
// thing that ever touches db directly.
type job func(db *gorm.DB) error

// Store is the write-behind SQLite shadow described by [EXPANSION]
// Persistence: session lifecycle, refactor outcomes, and R8 structural
// events, plus periodic knowledge-base snapshots. Grounded on
// termfx-morfx/db/sqlite.go's Connect (dialector selection, AutoMigrate on
// open) and models.Stage/Apply/Session's table shapes.
type Store struct {
	db     *gorm.DB
	mirror *gorm.DB
	logger *slog.Logger

	jobs chan job
	wg   sync.WaitGroup
}

// Open connects to a local SQLite database at dsn (a file path, or
// ":memory:") and runs AutoMigrate. debug enables gorm's SQL logger, the
// same debug flag db/sqlite.go exposes.
func Open(dsn string, debug bool, log *slog.Logger) (*Store, error) {
	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(localDialector(dsn), cfg)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: log,
		jobs:   make(chan job, queueDepth),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SessionRecord{},
		&RefactorRecord{},
		&StructuralEventRecord{},
		&KBSnapshotRecord{},
	)
}

// WithMirror attaches a remote libSQL replica opened via OpenMirror. Every
// subsequent write-behind job also runs against the mirror; a mirror
// failure is logged and never affects the local write's outcome.
func (s *Store) WithMirror(mirror *gorm.DB) *Store {
	s.mirror = mirror
	return s
}

// run drains the job queue on a single goroutine, the same one-writer
// discipline internal/gate.Debouncer applies to compilation: serialize
// writes, never let a slow database call block a caller.
func (s *Store) run() {
	defer s.wg.Done()
	for j := range s.jobs {
		if err := j(s.db); err != nil {
			s.logger.Error("store: write failed", "error", err)
			continue
		}
		if s.mirror != nil {
			if err := j(s.mirror); err != nil {
				s.logger.Warn("store: mirror write failed", "error", err)
			}
		}
	}
}

// enqueue submits j without blocking the caller. A full queue drops the
// job and logs a warning rather than block the analysis thread.
func (s *Store) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		s.logger.Warn("store: write queue full, dropping write")
	}
}

// RecordSessionStart persists a new SessionRecord for an accepted editor
// connection.
func (s *Store) RecordSessionStart(id string, editorID int, projectDir string, peerUID uint32) {
	rec := SessionRecord{
		ID:         id,
		EditorID:   editorID,
		ProjectDir: projectDir,
		PeerUID:    peerUID,
		StartedAt:  time.Now(),
	}
	s.enqueue(func(db *gorm.DB) error {
		return db.Create(&rec).Error
	})
}

// RecordSessionEnd marks a session's end time.
func (s *Store) RecordSessionEnd(id string) {
	now := time.Now()
	s.enqueue(func(db *gorm.DB) error {
		return db.Model(&SessionRecord{}).Where("id = ?", id).Update("ended_at", now).Error
	})
}

// RecordRefactor persists the outcome of one refactor reaching Emitted or
// Discarded, and increments the owning session's running counters. diff is
// a precomputed unified diff of the trigger file, empty when not
// applicable (e.g. a Discarded refactor).
func (s *Store) RecordRefactor(sessionID, id string, r *refactor.Refactor, triggerFile, diff string) {
	var edits []byte
	if r.State == refactor.Emitted && len(r.Edits) > 0 {
		if b, err := json.Marshal(r.Edits); err == nil {
			edits = b
		}
	}
	rec := RefactorRecord{
		ID:          id,
		SessionID:   sessionID,
		Recognizer:  r.Recognizer,
		State:       r.State.String(),
		Reason:      r.Reason.String(),
		TriggerFile: triggerFile,
		Edits:       edits,
		Diff:        diff,
	}
	counterColumn := "refactors_discarded"
	if r.State == refactor.Emitted {
		counterColumn = "refactors_emitted"
	}
	s.enqueue(func(db *gorm.DB) error {
		if err := db.Create(&rec).Error; err != nil {
			return err
		}
		return db.Model(&SessionRecord{}).Where("id = ?", sessionID).
			UpdateColumn(counterColumn, gorm.Expr(counterColumn+" + 1")).Error
	})
}

// RecordStructuralEvent persists one R8 structural event: the durable
// record the concrete test scenario in spec §8 observes since these events
// have no wire representation.
func (s *Store) RecordStructuralEvent(sessionID string, e *refactor.StructuralEvent, moduleName string) {
	rec := StructuralEventRecord{
		SessionID: sessionID,
		Kind:      e.Kind.String(),
		Module:    moduleName,
		Name:      e.Name,
	}
	s.enqueue(func(db *gorm.DB) error {
		return db.Create(&rec).Error
	})
}

// SnapshotKB records a best-effort point-in-time snapshot of the knowledge
// base's relation sizes, per [EXPANSION] Persistence in §4.2.
func (s *Store) SnapshotKB(sessionID string, modules, declarations, imports, scopes, occurrences int) {
	rec := KBSnapshotRecord{
		SessionID:    sessionID,
		Modules:      modules,
		Declarations: declarations,
		Imports:      imports,
		Scopes:       scopes,
		Occurrences:  occurrences,
	}
	s.enqueue(func(db *gorm.DB) error {
		return db.Create(&rec).Error
	})
}

// Close drains the queue and closes the underlying connection(s). It
// blocks until every already-enqueued write has been attempted, or until
// ctx is done, whichever comes first.
func (s *Store) Close(ctx context.Context) error {
	close(s.jobs)
	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
	if s.mirror != nil {
		if sqlDB, err := s.mirror.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
