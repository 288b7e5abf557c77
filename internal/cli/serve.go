package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/milestone-tracker/internal/httpapi"
	"github.com/rcliao/milestone-tracker/internal/metrics"
	"github.com/rcliao/milestone-tracker/internal/reconcile"
	"github.com/rcliao/milestone-tracker/internal/remote"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		Long:  "Serve the catalog, responses, progress, evaluation and chat over a local JSON API, with Prometheus metrics on /metrics.",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr or :8787)")
	if err := v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	m := metrics.New()

	s, err := openSession(ctx, m)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	rec, err := newEvidenceRecorder(s.book)
	if err != nil {
		exitErr("evidence", err)
	}
	client := remote.NewClient(cfg.Service.BaseURL)
	handler := httpapi.New(httpapi.Deps{
		Book:    s.book,
		Profile: s.profile,
		Reconciler: reconcile.New(s.book, client,
			reconcile.WithChild(s.profile),
			reconcile.WithRecorder(m),
			reconcile.WithLogger(logger)),
		Evidence: rec,
		Chat:     client,
		Metrics:  m,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("profile", s.book.Profile()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		exitErr("serve", err)
	}
}
