package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/jwoudenberg/elm-pair/internal/gate"
	"github.com/jwoudenberg/elm-pair/internal/project"
	"github.com/jwoudenberg/elm-pair/internal/store"
	"github.com/jwoudenberg/elm-pair/internal/telemetry"
	"github.com/jwoudenberg/elm-pair/internal/wire"
)

// Server accepts connections on a Unix domain socket and spawns one
// Session per connection, per spec §4.5's "multi-editor session layer."
type Server struct {
	listener   net.Listener
	gate       *gate.Gate
	projectDir string
	logger     *slog.Logger
	store      *store.Store
	metrics    *telemetry.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer wraps an already-bound listener (typically a Unix socket
// created by cmd/elm-pair) with session accept/dispatch logic. st and m may
// each be nil, in which case sessions run without a durable audit trail or
// without metrics, respectively.
func NewServer(listener net.Listener, g *gate.Gate, projectDir string, st *store.Store, m *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener:   listener,
		gate:       g,
		projectDir: projectDir,
		logger:     logger,
		store:      st,
		metrics:    m,
		sessions:   make(map[string]*Session),
	}
}

// Serve accepts connections until ctx is cancelled or the listener errors.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session: accept: %w", err)
		}

		peerUID, credErr := PeerUID(conn)
		if credErr != nil {
			s.logger.Warn("session: protocol framing error, refusing peer", "error", credErr)
			_ = conn.Close()
			continue
		}

		editorID, err := wire.ReadHandshake(conn)
		if err != nil {
			s.logger.Warn("session: protocol framing error during handshake", "error", err)
			_ = conn.Close()
			continue
		}

		id := uuid.NewString()
		sess := New(id, conn, editorID, s.projectDir, s.gate, s.logger).WithStore(s.store, peerUID).WithMetrics(s.metrics)
		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.sessions, id)
				s.mu.Unlock()
			}()
			if err := sess.Run(ctx); err != nil {
				s.logger.Info("session: connection closed", "session_id", id, "error", err)
			}
		}()
	}
}

// BroadcastExternalChange delivers one project.Watcher change to every
// live session rooted at this server's projectDir, feeding it into each
// session's knowledge base the same way a wire-protocol edit is (spec
// §6.3). A Server watches a single project root, so every session it
// holds is a candidate; there is no further root-matching to do.
func (s *Server) BroadcastExternalChange(change project.Change) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.HandleExternalChange(change)
	}
}

// Close ends every active session, used at shutdown (spec §5's "session
// ends" cancellation trigger).
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.Close()
	}
}
