package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	cfgpkg "github.com/rzbill/seglog/internal/config"
	"github.com/rzbill/seglog/internal/runtime"
	grpcserver "github.com/rzbill/seglog/internal/server/grpc"
	httpserver "github.com/rzbill/seglog/internal/server/http"
	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

// Options configures Run.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log. Optional.
	Logger logpkg.Logger
	// CatchUpInterval, when positive and the store is opened as a secondary,
	// resyncs with the primary on this period.
	CatchUpInterval time.Duration
}

// Run opens the runtime, serves HTTP and gRPC on the configured addresses and
// blocks until ctx is cancelled or a listener fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(&cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		logpkg.RedirectStdLog(logger)
	}

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("close runtime", logpkg.Err(err))
		}
	}()

	logger.Info("starting seglog server",
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("mode", cfg.StoreMode().String()),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("fsync", cfg.Fsync),
	)

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		first error
	)
	fail := func(name string, err error) {
		if err == nil || sctx.Err() != nil {
			return
		}
		logger.Error(name+" server stopped", logpkg.Err(err))
		errMu.Lock()
		if first == nil {
			first = errors.Wrapf(err, "%s server", name)
		}
		errMu.Unlock()
		stop()
	}

	var gsrv *grpcserver.Server
	if addr := cfg.Server.GRPCAddr; addr != "" {
		gsrv = grpcserver.New(rt, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("grpc", gsrv.ListenAndServe(sctx, addr))
		}()
	}
	var hsrv *httpserver.Server
	if addr := cfg.Server.HTTPAddr; addr != "" {
		hsrv = httpserver.New(rt, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("http", hsrv.ListenAndServe(sctx, addr))
		}()
	}
	if opts.CatchUpInterval > 0 && cfg.StoreMode() == pebblestore.ModeSecondary {
		wg.Add(1)
		go func() {
			defer wg.Done()
			followPrimary(sctx, rt, opts.CatchUpInterval, logger)
		}()
	}

	<-sctx.Done()
	if gsrv != nil {
		gsrv.Close()
	}
	if hsrv != nil {
		hsrv.Close()
	}
	wg.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return first
}

// followPrimary resyncs a secondary until ctx is done. Failures are logged
// and retried on the next tick.
func followPrimary(ctx context.Context, rt *runtime.Runtime, every time.Duration, logger logpkg.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := rt.CatchUp(); err != nil {
				logger.Warn("catch up failed", logpkg.Err(err))
			}
		}
	}
}
