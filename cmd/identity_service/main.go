package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"identity_service/internal/auth"
	"identity_service/internal/config"
	"identity_service/internal/handler"
	"identity_service/internal/service"
	"identity_service/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the yaml config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting identity service", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("identity service stopped", slog.Any("error", err))
		os.Exit(1)
	}

	lgr.Info("identity service stopped")
}

func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	// Configuration errors surface here, before any request is served.
	hasher, err := auth.NewHasher(cfg.Hashing.Algorithm)
	if err != nil {
		return err
	}

	signer, err := auth.NewTokenSigner(cfg.Token)
	if err != nil {
		return err
	}

	//INIT DB
	st, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := checkDefaultClaim(ctx, st, cfg.DefaultClaimID); err != nil {
		return err
	}

	//INIT SERVER
	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	srvc := service.NewService(st, hasher, signer, cfg.DefaultClaimID)
	h := handler.NewHandler(srvc, signer, lgr)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lgr.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage == config.StorageMemory {
		return storage.NewMemoryStorage(), nil
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// checkDefaultClaim fails startup when the role assigned on registration is
// not seeded in storage.
func checkDefaultClaim(ctx context.Context, st storage.Storage, claimID int) error {
	const op = "main.checkDefaultClaim"

	_, err := st.FindOperationClaim(ctx, claimID)
	if errors.Is(err, storage.ErrClaimNotFound) {
		return fmt.Errorf("%s: %w: default claim %d: %w", op, auth.ErrConfiguration, claimID, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
