package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/stevemurr/stub-server/config"
	"github.com/stevemurr/stub-server/handler"
	"github.com/stevemurr/stub-server/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.Config)
		},
	}
}

// runServe listens until ctx is cancelled, then shuts down gracefully.
func runServe(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := handler.NewMetrics(reg)

	src, release, err := openSource(cfg)
	if err != nil {
		return errors.Wrapf(err, "create store (backend=%s)", cfg.Backend)
	}
	defer release()

	storeOpts := []store.Option{store.WithLoadHook(metrics.ObserveLoad)}
	if cfg.StrictLoad {
		storeOpts = append(storeOpts, store.WithStrictLoad())
	}
	h := handler.New(store.NewCollections(src, storeOpts...),
		handler.WithAllowedOrigins(cfg.AllowedOrigins),
		handler.WithLogger(slog.Default()),
		handler.WithMetrics(metrics, reg),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("Stub Server starting",
		"addr", cfg.Addr(),
		"backend", cfg.Backend,
		"data", cfg.DataDirectory,
		"strict_load", cfg.StrictLoad,
	)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	slog.Info("Stub Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
