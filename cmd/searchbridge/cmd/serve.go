package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/compiler"
	"github.com/kailas-cloud/searchbridge/internal/config"
	logpkg "github.com/kailas-cloud/searchbridge/internal/logger"
	"github.com/kailas-cloud/searchbridge/internal/metrics"
	chiTransport "github.com/kailas-cloud/searchbridge/internal/transport/chi"
	natsTransport "github.com/kailas-cloud/searchbridge/internal/transport/nats"
	healthuc "github.com/kailas-cloud/searchbridge/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchbridge/internal/usecase/search"
	"github.com/kailas-cloud/searchbridge/internal/version"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional change-feed consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	env := opts.environment()
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting searchbridge API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("elastic_addrs", cfg.Elastic.Addrs),
		zap.String("records_driver", cfg.Records.Driver),
	)

	profiles, err := cfg.ProfileSet()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg.Elastic, logger)
	if err != nil {
		return err
	}
	records, err := openRecords(cfg.Records)
	if err != nil {
		return err
	}
	defer records.Close()

	if err := engine.WaitForReady(ctx, time.Duration(cfg.Elastic.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("elasticsearch not ready: %w", err)
	}
	logger.Info("Connected to elasticsearch")
	if err := records.WaitForReady(ctx, time.Duration(cfg.Records.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("record store not ready: %w", err)
	}
	logger.Info("Connected to record store")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterReconcileMetrics()

	rec := searchuc.NewReconciler(cfg.Elastic.Index, engine, records, nil, profiles)
	searchSvc := searchuc.New(compiler.New(cfg.Elastic.Index, profiles), rec)
	healthSvc := healthuc.New(engine, records)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)
	handler := server.Handler(
		chiTransport.JSONRecoverer(logger),
		chiMiddleware.RequestID,
		chiTransport.WideEventMiddleware(logger),
		chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys),
		metrics.Middleware(),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Connect the change feed before the listener starts so a failure leaves nothing running.
	feed, err := openFeed(cfg.NATS, searchSvc, logger.Named("nats"))
	if err != nil {
		return err
	}
	if feed != nil {
		defer feed.Close()
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveUntilDone(ctx, srv, feed, time.Duration(cfg.HTTP.ShutdownSec)*time.Second, logger)
}

// changeFeed is a long-running consumer stopped by cancelling its context.
type changeFeed interface {
	Run(ctx context.Context) error
	Close()
}

// openFeed connects the NATS consumer. It returns nil when no URL is configured.
func openFeed(cfg config.NATSConfig, applier natsTransport.Applier, logger *zap.Logger) (changeFeed, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	consumer, err := natsTransport.NewConsumer(natsTransport.Config{
		URL:     cfg.URL,
		Subject: cfg.Subject,
		Queue:   cfg.Queue,
	}, applier, logger)
	if err != nil {
		return nil, fmt.Errorf("change feed: %w", err)
	}
	return consumer, nil
}

// serveUntilDone runs srv and the optional feed until ctx ends or either fails,
// then shuts the server down. The first component error is returned.
func serveUntilDone(ctx context.Context, srv *http.Server, feed changeFeed, shutdown time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if feed != nil {
		feedCtx := logpkg.ContextWithLogger(ctx, logger.Named("nats"))
		go func() {
			if err := feed.Run(feedCtx); err != nil {
				errCh <- fmt.Errorf("change feed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		logger.Error("Component failed, shutting down", zap.Error(runErr))
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdown)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return runErr
}
