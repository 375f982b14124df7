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

	httpSrv "github.com/jmehdipour/titletester/internal/http"
	"github.com/jmehdipour/titletester/internal/identity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = lg.Sync() }()
		ctx := cmd.Context()

		verifier := identity.New(cfg.Firebase, cfg.App.Production(), lg)
		if err := verifier.Init(ctx); err != nil {
			return fmt.Errorf("firebase init: %w", err)
		}

		mysqlDB, err := openMySQL(ctx, cfg, lg)
		if err != nil {
			return err
		}
		if mysqlDB != nil {
			defer mysqlDB.Close()
		}

		redisClient, err := openRedis(ctx, cfg, lg)
		if err != nil {
			return err
		}

		deps := httpSrv.Deps{Verifier: verifier, Log: lg}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
			deps.Redis = redisClient
			deps.Quota = newQuotaManager(cfg, redisClient, mysqlDB, newLockManager(cfg, redisClient, lg), lg)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		lg.Info("starting http", zap.String("environment", cfg.App.Environment))
		return runServer(httpSrv.NewServer(cfg, deps), cfg.HTTP.ListenAddr(), sigCh, lg)
	},
}

type server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// runServer serves until a signal arrives or Start fails. A failed Start is
// returned so the process exits non-zero.
func runServer(srv server, addr string, sigCh <-chan os.Signal, lg *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		lg.Info("signal received, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server exited", zap.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}

	return runErr
}
