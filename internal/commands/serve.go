package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/pocketledger/internal/api"
	"github.com/cleared-dev/pocketledger/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(cfgPath *string) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recurring transaction worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a, !noWorker)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not materialize recurring templates in the background")
	return cmd
}

func serve(ctx context.Context, a *app, worker bool) error {
	gin.SetMode(gin.ReleaseMode)
	handler := api.New(api.Services{
		Accounts:  a.accounts,
		Journal:   a.journal,
		Rollover:  a.rollover,
		Recurring: a.recurring,
		Planner:   a.planner,
	}, a.cfg.Server, a.cfg.Rollover.ThresholdPercent, a.logger).Handler()

	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", log.FieldAddr, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker {
		g.Go(func() error {
			return a.recurring.Run(gctx, a.cfg.Recurring.Interval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
