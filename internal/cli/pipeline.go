package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/config"
	"github.com/roach88/tablekit/internal/dataset"
	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/querycache"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/store"
)

// pipeline is the source, adapter and query cache a command works against.
type pipeline struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Store // nil unless the rows live in SQLite
	adapter  *fetch.Adapter
	client   *querycache.Client
}

// openPipeline wires the configured source into an adapter and query cache.
// Failures are reported on f and returned as ExitErrors.
func openPipeline(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*pipeline, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	p := &pipeline{
		cfg:      cfg,
		logger:   opts.Logger(cfg, cmd.ErrOrStderr()),
		registry: prometheus.NewRegistry(),
	}
	p.metrics = metrics.New(p.registry)

	adapterOpts := []fetch.Option{
		fetch.WithSimulation(cfg.FetchSimulation()),
		fetch.WithStrictQueries(cfg.Query.Strict),
		fetch.WithResolver(resolver.New(resolver.WithLanguage(cfg.Language()))),
		fetch.WithMetrics(p.metrics),
		fetch.WithLogger(p.logger),
	}

	var source fetch.Source
	switch {
	case cfg.Dataset.DB != "":
		st, err := store.Open(cfg.Dataset.DB)
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeSource, fmt.Sprintf("open database: %v", err), nil)
		}
		p.store = st
		source = st
		adapterOpts = append(adapterOpts, fetch.WithPersister(st))
		f.VerboseLog("Using database %s", cfg.Dataset.DB)
	case cfg.Dataset.Path != "":
		if _, err := os.Stat(cfg.Dataset.Path); err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("dataset not found: %s", cfg.Dataset.Path), nil)
		}
		source = dataset.FileSource{Path: cfg.Dataset.Path}
		f.VerboseLog("Using dataset %s (changes are not saved)", cfg.Dataset.Path)
	default:
		source = dataset.SampleSource{}
		f.VerboseLog("Using embedded sample dataset (changes are not saved)")
	}

	p.adapter = fetch.New(source, adapterOpts...)
	p.client = querycache.New(p.adapter,
		querycache.WithStaleTime(cfg.Cache.StaleTime),
		querycache.WithRetry(cfg.RetryPolicy()),
		querycache.WithTimeout(cfg.Cache.Timeout),
		querycache.WithMetrics(p.metrics),
		querycache.WithLogger(p.logger),
	)
	return p, nil
}

// Close stops the adapter's writer, then closes the database.
func (p *pipeline) Close() error {
	err := p.adapter.Close()
	if p.store != nil {
		err = errors.Join(err, p.store.Close())
	}
	return err
}
