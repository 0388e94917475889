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

	"github.com/pkordes/tripplanner/internal/handler"
	"github.com/pkordes/tripplanner/internal/notify"
	"github.com/pkordes/tripplanner/internal/queue"
	"github.com/pkordes/tripplanner/internal/worker"
)

// shutdownGrace bounds how long in-flight requests get after a signal.
const shutdownGrace = 15 * time.Second

func serveCmd(a *app) *cobra.Command {
	var inProcessWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), inProcessWorker)
		},
	}
	cmd.Flags().BoolVar(&inProcessWorker, "worker", false, "also consume the plan queue in this process")
	return cmd
}

func (a *app) serve(ctx context.Context, inProcessWorker bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cleanup
	defer c.run()

	reg, m := newRegistry()
	plans, err := newPlanService(ctx, a.cfg, m, &c, a.logger)
	if err != nil {
		return err
	}

	hub := notify.NewHub(a.logger)
	var publisher queue.Publisher
	var conns handler.Connections
	q, err := connectQueue(ctx, a.cfg, &c, a.logger)
	if err != nil {
		// The synchronous surface works without the queue.
		a.logger.Warn("queue unavailable; /ws disabled", "error", err)
	} else {
		publisher, conns = q, hub
	}

	rdb, err := connectRedis(ctx, a.cfg, &c)
	if err != nil {
		return err
	}
	if rdb != nil {
		relay := notify.NewRedisRelay(rdb, a.logger)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				a.logger.Error("notification relay stopped", "error", err)
			}
		}()
	}

	if inProcessWorker && q != nil {
		w := worker.New(plans, hub, m, a.logger)
		go func() {
			if err := q.Consume(ctx, w.HandleBatch); err != nil {
				a.logger.Error("in-process worker stopped", "error", err)
			}
		}()
	}

	srv := handler.NewServer(plans, publisher, conns, a.logger)
	router := handler.NewRouter(srv, handler.RouterConfig{
		CORSOrigins:  a.cfg.CORSOrigins,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
		RateLimit:    newRateLimiter(a.cfg, a.logger),
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, a.logger)

	// Synchronous plans wait for the model, so the write timeout follows the
	// completion timeout. Hijacked WebSocket connections manage their own deadlines.
	httpSrv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      a.cfg.CompletionTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
