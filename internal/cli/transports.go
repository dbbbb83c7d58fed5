package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/objsync/internal/config"
	"github.com/roach88/objsync/internal/transport"
	"github.com/roach88/objsync/internal/transport/badger"
	"github.com/roach88/objsync/internal/transport/memory"
	"github.com/roach88/objsync/internal/transport/minio"
	"github.com/roach88/objsync/internal/transport/redis"
	"github.com/roach88/objsync/internal/transport/server"
	"github.com/roach88/objsync/internal/transport/sqlite"
)

// openTransport builds the transport described by t.
func openTransport(ctx context.Context, t config.Transport, logger *slog.Logger) (transport.Transport, error) {
	switch t.Kind {
	case config.KindMemory:
		return memory.New(t.Name), nil
	case config.KindSQLite:
		return sqlite.Open(t.Path)
	case config.KindBadger:
		cfg := badger.DefaultConfig(t.Path)
		if t.InMemory {
			cfg = badger.InMemoryConfig()
		}
		cfg.Logger = logger.With("transport", t.Name)
		return badger.Open(cfg)
	case config.KindRedis:
		ttl, err := t.TTLDuration()
		if err != nil {
			return nil, err
		}
		var opts []redis.Option
		if t.Prefix != "" {
			opts = append(opts, redis.WithPrefix(t.Prefix))
		}
		if ttl > 0 {
			opts = append(opts, redis.WithTTL(ttl))
		}
		return redis.New(t.Addr, t.Password, t.DB, opts...), nil
	case config.KindServer:
		return server.NewClient(t.URL, nil), nil
	case config.KindMinio:
		return minio.New(ctx, minio.Config{
			Endpoint:  t.Endpoint,
			AccessKey: t.AccessKey,
			SecretKey: t.SecretKey,
			Bucket:    t.Bucket,
			Prefix:    t.Prefix,
			Secure:    t.Secure,
		})
	default:
		return nil, fmt.Errorf("unsupported transport kind %q", t.Kind)
	}
}

// transportPool opens configured transports on first use and closes them
// all at the end of a command.
type transportPool struct {
	cfg    *config.Config
	logger *slog.Logger
	open   map[string]transport.Transport
	order  []string
}

func newTransportPool(cfg *config.Config, logger *slog.Logger) *transportPool {
	return &transportPool{cfg: cfg, logger: logger, open: make(map[string]transport.Transport)}
}

func (p *transportPool) get(ctx context.Context, name string) (transport.Transport, error) {
	if tr, ok := p.open[name]; ok {
		return tr, nil
	}
	tc, ok := p.cfg.Transport(name)
	if !ok {
		return nil, unknownTransport(name)
	}
	tr, err := openTransport(ctx, tc, p.logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open transport %s", name), err)
	}
	p.logger.Debug("transport opened", "name", name, "kind", tc.Kind, "transport", tr.Name())
	p.open[name] = tr
	p.order = append(p.order, name)
	return tr, nil
}

func (p *transportPool) close() {
	for _, name := range p.order {
		if err := p.open[name].Close(); err != nil {
			p.logger.Error("error closing transport", "name", name, "error", err)
		}
	}
	p.open = make(map[string]transport.Transport)
	p.order = nil
}

// notifyContext cancels on SIGINT or SIGTERM. An operation cancelled this
// way finishes in state cancelled.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
