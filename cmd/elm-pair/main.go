// Command elm-pair runs the elm-pair daemon: a background process an
// editor plug-in connects to over a Unix domain socket to receive live
// refactor suggestions as the programmer types.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwoudenberg/elm-pair/internal/config"
	"github.com/jwoudenberg/elm-pair/internal/gate"
	"github.com/jwoudenberg/elm-pair/internal/project"
	"github.com/jwoudenberg/elm-pair/internal/session"
	"github.com/jwoudenberg/elm-pair/internal/store"
	"github.com/jwoudenberg/elm-pair/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "elm-pair: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		yamlPath  string
		projectFl string
		socketFl  string
		elmFl     string
		logLvlFl  string
		dbPathFl  string
		metricsFl string
	)

	cmd := &cobra.Command{
		Use:   "elm-pair",
		Short: "Live refactor daemon for the Elm programming language",
		Long: "elm-pair watches Elm source as it is edited and streams back\n" +
			"safe, mechanical refactors an editor plug-in applies automatically.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, runFlags{
				yamlPath:  yamlPath,
				projectFl: projectFl,
				socketFl:  socketFl,
				elmFl:     elmFl,
				logLvlFl:  logLvlFl,
				dbPathFl:  dbPathFl,
				metricsFl: metricsFl,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&yamlPath, "config", "", "path to a YAML config file")
	flags.StringVar(&projectFl, "project", "", "Elm project root (defaults to the current directory)")
	flags.StringVar(&socketFl, "socket-dir", "", "directory in which to create the daemon's Unix socket")
	flags.StringVar(&elmFl, "elm-binary", "", "path to the elm compiler binary (falls back to ELM_BINARY_PATH, then PATH)")
	flags.StringVar(&logLvlFl, "log-level", "", "debug, info, warn, or error")
	flags.StringVar(&dbPathFl, "db-path", "", "path to the daemon's SQLite audit-trail database")
	flags.StringVar(&metricsFl, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9110 (disabled if empty)")

	return cmd
}

type runFlags struct {
	yamlPath  string
	projectFl string
	socketFl  string
	elmFl     string
	logLvlFl  string
	dbPathFl  string
	metricsFl string
}

func run(cmd *cobra.Command, flags runFlags) error {
	projectDir := flags.projectFl
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("elm-pair: determining working directory: %w", err)
		}
		projectDir = cwd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("elm-pair: resolving project directory: %w", err)
	}

	cfg, err := config.Load(flags.yamlPath, projectDir)
	if err != nil {
		return fmt.Errorf("elm-pair: loading configuration: %w", err)
	}
	applyFlagOverrides(cfg, flags)
	cfg.ProjectDir = projectDir

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	root, err := project.FindRoot(filepath.Join(projectDir, "placeholder.elm"))
	if err != nil {
		logger.Warn("elm-pair: no elm.json found walking up from project directory, using it as the root directly", "project_dir", projectDir, "error", err)
		root = projectDir
	}

	elmBinary, err := gate.ResolveBinary(cfg.ElmBinary)
	if err != nil {
		return fmt.Errorf("elm-pair: resolving elm compiler: %w", err)
	}
	logger.Info("elm-pair: resolved elm compiler", "path", elmBinary)

	st, err := store.Open(cfg.DBPath, cfg.DBDebug, logger)
	if err != nil {
		return fmt.Errorf("elm-pair: opening audit-trail database: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			logger.Warn("elm-pair: error closing audit-trail database", "error", err)
		}
	}()

	if cfg.MirrorURL != "" {
		mirror, err := store.OpenMirror(cfg.MirrorURL, cfg.MirrorAuthToken)
		if err != nil {
			logger.Warn("elm-pair: failed to open remote database mirror, continuing without one", "url", cfg.MirrorURL, "error", err)
		} else {
			st.WithMirror(mirror)
			logger.Info("elm-pair: mirroring audit trail to remote database", "url", cfg.MirrorURL)
		}
	}

	metrics := telemetry.New()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("elm-pair: metrics server failed", "error", err)
			}
		}()
		logger.Info("elm-pair: serving metrics", "addr", cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner := project.NewScanner()
	results, err := scanner.Scan(ctx, root)
	if err != nil {
		logger.Warn("elm-pair: initial project scan failed", "error", err)
	}
	discovered := 0
	for _, r := range results {
		if r.Error != nil {
			logger.Debug("elm-pair: skipping file during initial scan", "path", r.Path, "error", r.Error)
			continue
		}
		discovered++
	}
	logger.Info("elm-pair: initial project scan complete", "files_found", discovered)

	if err := os.MkdirAll(cfg.SocketDir, 0o700); err != nil {
		return fmt.Errorf("elm-pair: creating socket directory: %w", err)
	}
	socketPath := filepath.Join(cfg.SocketDir, fmt.Sprintf("elm-pair-%s.sock", uuid.NewString()))
	_ = os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("elm-pair: binding Unix socket: %w", err)
	}
	defer os.Remove(socketPath)

	compiler := gate.NewSubprocessCompiler(elmBinary)
	g := gate.New(compiler, cfg.GateTimeout)

	server := session.NewServer(listener, g, root, st, metrics, logger)

	watcher, err := project.NewWatcherWithDebounce(root, logger, cfg.WatchDebounce)
	if err != nil {
		logger.Warn("elm-pair: failed to start filesystem watcher, external edits will not be picked up", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("elm-pair: filesystem watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
			go watchLoop(ctx, watcher, server, metrics, logger)
		}
	}

	// The socket path is the daemon's entire external contract with the
	// editor plug-in that spawned it (§6.1): print it and nothing else on
	// this line, so a plug-in reading stdout line-by-line finds it easily.
	fmt.Println(socketPath)

	serveErr := server.Serve(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	server.Close()

	if serveErr != nil {
		return fmt.Errorf("elm-pair: %w", serveErr)
	}
	return nil
}

// watchLoop feeds filesystem-watch events into every live session's
// knowledge base (§6.3) and periodically reflects the watcher's
// cumulative drop count into the drops gauge. Each session owns its own
// knowledge base (§5), so delivery is a broadcast to all sessions
// currently held by server rather than a single shared update.
func watchLoop(ctx context.Context, w *project.Watcher, server *session.Server, m *telemetry.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Debug("elm-pair: external filesystem change", "path", change.Path, "kind", change.Kind)
			server.BroadcastExternalChange(change)
		case <-ticker.C:
			m.SetWatchEventsDropped(w.DroppedEvents())
		}
	}
}

func applyFlagOverrides(cfg *config.Config, flags runFlags) {
	if flags.socketFl != "" {
		cfg.SocketDir = flags.socketFl
	}
	if flags.elmFl != "" {
		cfg.ElmBinary = flags.elmFl
	}
	if flags.logLvlFl != "" {
		cfg.LogLevel = flags.logLvlFl
	}
	if flags.dbPathFl != "" {
		cfg.DBPath = flags.dbPathFl
	}
	if flags.metricsFl != "" {
		cfg.MetricsAddr = flags.metricsFl
	}
}
