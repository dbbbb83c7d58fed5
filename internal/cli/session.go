package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/config"
	"github.com/roach88/objsync/internal/engine"
	"github.com/roach88/objsync/internal/executor"
	"github.com/roach88/objsync/internal/host/memdoc"
	"github.com/roach88/objsync/internal/kit"
	"github.com/roach88/objsync/internal/progress"
	"github.com/roach88/objsync/internal/store"
	"github.com/roach88/objsync/internal/transport"
)

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.Config != "":
		cfg, err = config.Load(opts.Config)
	case fileExists(DefaultConfigFile):
		cfg, err = config.Load(DefaultConfigFile)
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.Document != "" {
		cfg.Document = opts.Document
	}
	if opts.Stream != "" {
		cfg.Stream = opts.Stream
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if opts.Format == "json" {
		cfg.LogFormat = "json"
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newLogger builds the slog handler described by cfg.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// session is everything one send or receive command needs: the state
// store, the document, the mutation loop running on its own goroutine,
// and the engine on top.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	doc    *memdoc.Document
	exec   *executor.Executor
	engine *engine.Engine
	pool   *transportPool

	runDone chan error
}

func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	s := &session{cfg: cfg, logger: logger, pool: newTransportPool(cfg, logger)}

	s.doc, err = memdoc.LoadFile(cfg.Document)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("document not found, starting empty", "path", cfg.Document)
		s.doc = memdoc.New()
	case err != nil:
		return nil, WrapExitError(ExitCommandError, "failed to load document", err)
	}

	s.store, err = store.Open(cfg.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open state database", err)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithProgress(progress.LogSink{Logger: logger}),
		engine.WithChunkSize(cfg.Transfer.ChunkSize),
		engine.WithContinueOnError(cfg.Transfer.ContinueOnError),
	}
	if cfg.Transfer.Cache != "" {
		cache, err := s.pool.get(ctx, cfg.Transfer.Cache)
		if err != nil {
			s.pool.close()
			s.store.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, engine.WithCache(cache))
	}

	s.exec = executor.New(s.doc, executor.WithLogger(logger))
	s.runDone = make(chan error, 1)
	go func() { s.runDone <- s.exec.Run(context.Background()) }()

	s.engine, err = engine.New(ctx, s.doc, kit.New(s.doc), s.exec, s.store, engineOpts...)
	if err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	return s, nil
}

// transports opens the named transports, or every configured one when
// names is empty.
func (s *session) transports(ctx context.Context, names []string) ([]transport.Transport, error) {
	if len(names) == 0 {
		for _, t := range s.cfg.Transports {
			if t.Name != s.cfg.Transfer.Cache {
				names = append(names, t.Name)
			}
		}
	}
	out := make([]transport.Transport, 0, len(names))
	for _, name := range names {
		tr, err := s.pool.get(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// saveDocument writes the document back to its file.
func (s *session) saveDocument() error {
	if err := s.doc.SaveFile(s.cfg.Document); err != nil {
		return WrapExitError(ExitCommandError, "failed to save document", err)
	}
	return nil
}

// close stops the mutation loop after it drains, then releases the
// transports and the store.
func (s *session) close() {
	if s.exec != nil {
		s.exec.Close()
		if err := <-s.runDone; err != nil {
			s.logger.Error("executor stopped", "error", err)
		}
	}
	s.pool.close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing state database", "error", err)
		}
	}
}

// withSession opens a session for the duration of fn.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := notifyContext(ctx)
	defer stop()

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

func fmtTransports(trs []transport.Transport) []string {
	out := make([]string, len(trs))
	for i, tr := range trs {
		out[i] = tr.Name()
	}
	return out
}

var errUnknownTransport = errors.New("unknown transport")

func unknownTransport(name string) error {
	return WrapExitError(ExitCommandError, fmt.Sprintf("transport %q", name), errUnknownTransport)
}
