package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcourtman/pulse-compliance/internal/api"
	"github.com/rcourtman/pulse-compliance/internal/config"
)

var evaluateInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compliance API and metrics servers with periodic evaluation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(ctx, a, evaluateInterval)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&evaluateInterval, "interval", time.Hour, "how often to evaluate the license in the background")
}

func serve(ctx context.Context, a *app, interval time.Duration) error {
	log.Info().Str("version", Version).Str("store", a.cfg.Store).Msg("Starting pulse-compliance")

	apiSrv := &http.Server{
		Addr:              a.cfg.BindAddress,
		Handler:           api.NewRouter(api.NewComplianceHandlers(a.ctrl, a.board)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	trigger := make(chan struct{}, 1)
	requestEvaluation := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runServer(ctx, "Compliance API", apiSrv) })
	g.Go(func() error { return runServer(ctx, "Metrics endpoint", newMetricsServer(a.cfg.MetricsBindAddress)) })
	g.Go(func() error { return evaluateLoop(ctx, a, interval, trigger) })
	if a.cfg.LicenseKeyFile != "" && a.cfg.LicenseKey == "" {
		watcher := config.NewKeyFileWatcher(a.cfg.LicenseKeyFile, requestEvaluation)
		g.Go(func() error { return watcher.Run(ctx) })
	}

	err := g.Wait()
	log.Info().Msg("pulse-compliance stopped")
	return err
}

func evaluateLoop(ctx context.Context, a *app, interval time.Duration, trigger <-chan struct{}) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	evaluate := func(reason string) {
		result := a.ctrl.Evaluate(ctx)
		log.Info().
			Str("reason", reason).
			Str("state", string(result.State)).
			Str("level", string(result.Level)).
			Int("days", result.DaysElapsed).
			Msg("License compliance evaluated")
	}

	evaluate("startup")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			evaluate("interval")
		case <-trigger:
			evaluate("key_changed")
		}
	}
}
