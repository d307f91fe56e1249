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

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/api"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/graphql"
	"github.com/covhub/covhub/internal/provider"
	"github.com/covhub/covhub/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	dispatchQueueSize = 256
)

// serveCmd runs the REST and GraphQL APIs.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST and GraphQL APIs",
	Long: `Start the HTTP server.

Routes:
- GET  /healthz
- POST /graphql
- GET  /internal/{service}/{owner}/{repo}/commits/{commitid}
- GET  /internal/{service}/{owner}/{repo}/commits/{commitid}/flags/{flag}
- GET  /internal/{service}/{owner}/plan
- POST /internal/{service}/{owner}/plan/trial/start
- POST /internal/{service}/{owner}/plan/trial/expire

Activation mutations queue their backfills on a pool of --workers goroutines.
SIGINT and SIGTERM drain in-flight requests and cancel running backfills.

Examples:
  # Serve on the default address with sqlite
  covhub serve

  # Serve against postgres with JSON logs
  COVHUB_DB_CONNECT="host=db dbname=covhub user=covhub" covhub serve --db-backend postgresql --log-format json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		defer CloseStores()
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runServer(ctx, cfg, store.Default, logger); err != nil {
			contract.LogFatal("Server failed", err)
		}
	},
}

// buildHandler wires the stores, provider adapters and background dispatcher
// into the HTTP handler tree.
func buildHandler(cfg *contract.Config, mgr contract.StoreManager, fetcher contract.DiffFetcher, submitter core.TaskSubmitter, log logrus.FieldLogger) http.Handler {
	st := mgr.GetStore()
	reports := core.NewReportService(mgr.GetArchiveStore())
	measurements := core.NewMeasurementService(st, reports, cfg.Components)
	commands := core.NewRepositoryCommands(st, measurements, submitter)

	srv := api.NewServer(st, core.NewCommitSerializer(st, reports, fetcher), log)
	return srv.Handler(api.Mount{Pattern: "/graphql", Handler: graphql.Handler(graphql.NewSchema(st, commands))})
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, log *logrus.Logger) error {
	dispatcher := core.NewDispatcher(cfg.Workers, dispatchQueueSize, log)
	dispatcher.Start(ctx)

	fetcher := provider.NewService(cfg, contract.NewLocalGitClient(), nil, log)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           buildHandler(cfg, mgr, fetcher, dispatcher, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("listen", cfg.Listen).Info("serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	err := g.Wait()
	dispatcher.Shutdown()

	processed, failed := dispatcher.Stats()
	log.WithFields(logrus.Fields{"processed": processed, "failed": failed}).Info("background tasks finished")
	return err
}
