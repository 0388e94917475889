package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pkordes/tripplanner/internal/notify"
	"github.com/pkordes/tripplanner/internal/worker"
)

func workerCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued plan requests and notify clients through Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.work(cmd.Context(), metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address for /metrics; empty disables it")
	return cmd
}

func (a *app) work(ctx context.Context, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cleanup
	defer c.run()

	// Sockets live in the serve process; a standalone worker can only reach
	// them through the relay.
	rdb, err := connectRedis(ctx, a.cfg, &c)
	if err != nil {
		return err
	}
	if rdb == nil {
		return errors.New("worker: REDIS_URL is required to reach client connections; use `serve --worker` for a single process")
	}

	reg, m := newRegistry()
	plans, err := newPlanService(ctx, a.cfg, m, &c, a.logger)
	if err != nil {
		return err
	}
	q, err := connectQueue(ctx, a.cfg, &c, a.logger)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", "error", err)
			}
		}()
		c.add(func() { _ = metricsSrv.Close() })
	}

	w := worker.New(plans, notify.NewRedisRelay(rdb, a.logger), m, a.logger)
	a.logger.Info("worker starting", "stream", a.cfg.QueueStream)
	if err := q.Consume(ctx, w.HandleBatch); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("worker stopped")
	return nil
}
