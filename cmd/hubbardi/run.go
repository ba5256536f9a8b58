// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/comm"
	"github.com/katalvlaran/hubbardi/config"
	"github.com/katalvlaran/hubbardi/dmft"
)

// ConfigInput is the DMFT_input key holding the YAML of the last run.
const ConfigInput = "config"

type runFlags struct {
	ranks       int
	metricsAddr string
}

func newRunCmd(g *globals) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run or resume the DMFT self-consistency loop",
		Long: `Run n_iterations DMFT cycles. If the checkpoint file already holds
iterations, the loop resumes after the last one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDMFT(ctx, cfg, f, log)
		},
	}
	f.register(cmd.Flags())

	return cmd
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.ranks, "ranks", 1, "in-process SPMD ranks")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runDMFT(ctx context.Context, cfg config.Config, f *runFlags, log *zap.Logger) error {
	if f.ranks < 1 {
		return fmt.Errorf("--ranks=%d: %w", f.ranks, config.ErrInvalid)
	}
	dcfg, err := cfg.DMFT()
	if err != nil {
		return err
	}
	var metrics *dmft.Metrics
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = dmft.NewMetrics(reg); err != nil {
			return err
		}
		shutdown := serveMetrics(f.metricsAddr, reg, log)
		defer shutdown()
	}
	dump, err := config.Dump(cfg)
	if err != nil {
		return err
	}

	return checkpoint.With(cfg.Filename, func(store *checkpoint.Store) error {
		if err := store.PutInput(ConfigInput, dump); err != nil {
			return err
		}
		group := comm.NewGroup(f.ranks)
		drivers := make([]*dmft.Driver, 0, len(group))
		for _, c := range group {
			rlog := log.With(zap.Int("rank", c.Rank()))
			s, err := cfg.NewSolver(rlog)
			if err != nil {
				return err
			}
			p, err := cfg.NewProjector(rlog)
			if err != nil {
				return err
			}
			opts := []dmft.Option{dmft.WithCommunicator(c), dmft.WithLogger(rlog)}
			if c.IsCoordinator() {
				opts = append(opts, dmft.WithStore(store), dmft.WithMetrics(metrics))
			}
			if cfg.Convergence > 0 {
				opts = append(opts, dmft.WithConvergence(dmft.SigmaConverged(cfg.Convergence)))
			}
			d, err := dmft.New(dcfg, s, p, opts...)
			if err != nil {
				return err
			}
			drivers = append(drivers, d)
		}
		eg, ctx := errgroup.WithContext(ctx)
		for _, d := range drivers {
			eg.Go(func() error { return d.Run(ctx) })
		}

		return eg.Wait()
	}, checkpoint.WithLogger(log))
}

// serveMetrics exposes reg on addr and returns the shutdown hook.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
