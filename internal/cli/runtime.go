package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/mms/internal/config"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/events"
	"github.com/roach88/mms/internal/journal"
	"github.com/roach88/mms/internal/metrics"
	"github.com/roach88/mms/internal/resource"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// runtime is the wired service stack behind a command.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.Metrics
	service *resource.Service
	closers []func() error
}

// loadConfig reads the configured file and raises the log level for
// --verbose.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openRuntime wires store, journal, events and metrics into a resource
// service. Diagnostics go to logOut.
func openRuntime(opts *RootOptions, cfg *config.Config, logOut io.Writer) (*runtime, error) {
	logger := cfg.Log.NewLogger(logOut)
	rt := &runtime{cfg: cfg, logger: logger}

	rt.store = opts.Store
	if rt.store == nil {
		rt.store = store.NewHTTPStore(cfg.Store.QueryURL, cfg.Store.UpdateURL,
			store.WithTimeout(cfg.Store.Timeout),
			store.WithLogger(logger),
		)
	}

	rt.metrics = metrics.New(nil)
	execOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(rt.metrics),
		engine.WithCleanupTimeout(cfg.Engine.CleanupTimeout),
	}

	if cfg.Journal.Path != "" {
		logger.Debug("opening journal", "path", cfg.Journal.Path)
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			rt.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		rt.closers = append(rt.closers, j.Close)
		execOpts = append(execOpts, engine.WithJournal(j))
	}

	if cfg.Events.NATSURL != "" {
		logger.Debug("connecting to NATS", "url", cfg.Events.NATSURL)
		pub, nc, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			rt.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		rt.closers = append(rt.closers, nc.Drain)
		execOpts = append(execOpts, engine.WithPublisher(pub))
	}

	ids := opts.IDs
	if ids == nil {
		ids = txn.UUIDv7Generator{}
	}
	rt.service = resource.New(engine.New(rt.store, execOpts...), resource.Config{
		RootIRI:       cfg.Service.RootIRI,
		ServiceID:     cfg.Service.ID,
		DefaultBranch: cfg.Service.DefaultBranch,
	},
		resource.WithLogger(logger),
		resource.WithIDGenerator(ids),
	)
	return rt, nil
}

// Close releases the journal and NATS connection.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
