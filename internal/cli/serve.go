package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/reactions/internal/server"
	"github.com/lazypower/reactions/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, eng, backend, logger, err := openEngine()
	if err != nil {
		return err
	}
	defer backend.Close()

	// Restore failures are not fatal: the store starts empty and the
	// breaker reflects the backend's health.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	n, err := eng.Load(loadCtx)
	cancelLoad()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: restore failed (%v), starting empty\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "  restored %d messages\n", n)
	}

	eng.StartCleanupTimer(cfg.Cleanup.Interval)
	defer eng.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := telemetry.NewCollector(eng, eng.Breaker)
	reg.MustRegister(collector)
	unsubscribe := eng.Subscribe(collector.Observe)
	defer unsubscribe()

	srv := server.New(eng, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "reactions serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  backend: %s\n", cfg.Backend.Driver)
		logger.Info("policy loaded",
			"max_users_per_reaction", cfg.Policy.MaxUsersPerReaction,
			"max_reactions_per_message", cfg.Policy.MaxReactionsPerMessage,
			"max_tracked_messages", cfg.Policy.MaxTrackedMessages,
			"cleanup_interval", cfg.Cleanup.Interval)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
